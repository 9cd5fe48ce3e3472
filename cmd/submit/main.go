// submit posts a YAML workflow spec to a running slidebridge server and
// optionally polls the created jobs until every one is terminal.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/slidebridge-backend/internal/domain/workflow"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "slidebridge server base URL")
	user := flag.String("user", "dev-user", "value for the X-User-ID header")
	file := flag.String("file", "workflow.yaml", "workflow spec YAML")
	wait := flag.Bool("wait", false, "poll job status until all jobs are terminal")
	flag.Parse()

	raw, err := os.ReadFile(*file)
	if err != nil {
		fatal("read spec: %v", err)
	}
	var spec workflow.WorkflowSpec
	if err := yaml.Unmarshal(raw, &spec); err != nil {
		fatal("parse spec: %v", err)
	}

	view, err := createWorkflow(*server, *user, spec)
	if err != nil {
		fatal("create workflow: %v", err)
	}
	fmt.Printf("created workflow %s (%d jobs)\n", view.ID, len(view.JobIDs))

	if !*wait {
		return
	}
	for {
		jobs, err := listJobs(*server, *user, view.ID)
		if err != nil {
			fatal("poll jobs: %v", err)
		}
		done := 0
		for _, j := range jobs {
			fmt.Printf("  %s %-22s %-9s %5.1f%%\n", j.ID, j.JobType, j.Status, j.Progress*100)
			if j.Status.Terminal() {
				done++
			}
		}
		if done == len(jobs) {
			fmt.Println("all jobs terminal")
			return
		}
		time.Sleep(time.Second)
	}
}

func createWorkflow(server, user string, spec workflow.WorkflowSpec) (workflow.WorkflowView, error) {
	var view workflow.WorkflowView
	body, err := json.Marshal(spec)
	if err != nil {
		return view, err
	}
	req, err := http.NewRequest(http.MethodPost, server+"/workflows", bytes.NewReader(body))
	if err != nil {
		return view, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", user)
	err = doJSON(req, http.StatusCreated, &view)
	return view, err
}

func listJobs(server, user, wfID string) ([]workflow.JobView, error) {
	req, err := http.NewRequest(http.MethodGet, server+"/jobs/workflow/"+wfID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-User-ID", user)
	var jobs []workflow.JobView
	err = doJSON(req, http.StatusOK, &jobs)
	return jobs, err
}

func doJSON(req *http.Request, wantStatus int, out any) error {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != wantStatus {
		return fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, raw)
	}
	return json.Unmarshal(raw, out)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
