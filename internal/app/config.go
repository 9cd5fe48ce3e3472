package app

import (
	"strings"
	"time"

	"github.com/yungbote/slidebridge-backend/internal/platform/envutil"
	"github.com/yungbote/slidebridge-backend/internal/platform/logger"
)

type Config struct {
	Port      string
	LogMode   string
	OutputDir string

	MaxWorkers        int
	MaxActiveUsers    int
	SchedulerInterval time.Duration

	AnalyzerThreshold float64
	AnalyzerMinArea   int

	CORSAllowOrigins []string
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		Port:              envutil.Str("PORT", "8080"),
		LogMode:           envutil.Str("LOG_MODE", "development"),
		OutputDir:         envutil.Str("OUTPUT_DIR", "outputs"),
		MaxWorkers:        envutil.Int("SCHEDULER_MAX_WORKERS", 4),
		MaxActiveUsers:    envutil.Int("SCHEDULER_MAX_ACTIVE_USERS", 3),
		SchedulerInterval: envutil.DurationMS("SCHEDULER_INTERVAL_MS", 500),
		AnalyzerThreshold: envutil.Float("ANALYZER_THRESHOLD", 0.62),
		AnalyzerMinArea:   envutil.Int("ANALYZER_MIN_AREA", 24),
		CORSAllowOrigins:  splitCSV(envutil.Str("CORS_ALLOW_ORIGINS", "*")),
	}
	log.Info("Config loaded",
		"port", cfg.Port,
		"output_dir", cfg.OutputDir,
		"max_workers", cfg.MaxWorkers,
		"max_active_users", cfg.MaxActiveUsers,
		"scheduler_interval", cfg.SchedulerInterval.String(),
	)
	return cfg
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		out = []string{"*"}
	}
	return out
}
