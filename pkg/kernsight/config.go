package kernsight

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds the tunables every component in the pipeline reads. It is
// loaded from a JSON config file, then overridden by environment
// variables, then by CLI flags, in that order.
type Config struct {
	DBPath string `json:"db_path"`

	BatchSize    int           `json:"batch_size"`
	BatchTimeout time.Duration `json:"batch_timeout"`
	DropCap      int           `json:"drop_cap"`

	CoalesceWindow time.Duration `json:"coalesce_window"`

	BaselineLookback     time.Duration `json:"baseline_lookback"`
	BaselineMinSamples   int           `json:"baseline_min_samples"`
	TrendWindow          time.Duration `json:"trend_window"`
	TrendMinRSquared     float64       `json:"trend_min_r_squared"`

	DecisionInterval time.Duration `json:"decision_interval"`
	VerifyCooldown   time.Duration `json:"verify_cooldown"`
	RequireApproval  bool          `json:"require_approval"`
	LearningRate     float64       `json:"learning_rate"`

	OracleEnabled  bool   `json:"oracle_enabled"`
	ApprovalSocket string `json:"approval_socket"`

	ConfidenceThresholds map[string]float64 `json:"confidence_thresholds"`
}

// Default returns a Config with the spec's stated defaults.
func Default() Config {
	return Config{
		DBPath: "kernelsight.db",

		BatchSize:    100,
		BatchTimeout: time.Second,
		DropCap:      50_000,

		CoalesceWindow: 60 * time.Second,

		BaselineLookback:   7 * 24 * time.Hour,
		BaselineMinSamples: 1000,
		TrendWindow:        30 * time.Minute,
		TrendMinRSquared:   0.7,

		DecisionInterval: 60 * time.Second,
		VerifyCooldown:   10 * time.Second,
		RequireApproval:  true,
		LearningRate:     0.05,

		OracleEnabled:  true,
		ApprovalSocket: "",

		ConfidenceThresholds: map[string]float64{
			"critical": 0.75,
			"high":     0.80,
			"medium":   0.85,
		},
	}
}

// Path returns $XDG_CONFIG_HOME/kernelsight/config.json, falling back to
// ~/.config. Returns "" if no home directory can be determined — callers
// must not fall back to /tmp.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "kernelsight", "config.json")
}

// Load reads config from disk, applying environment variable overrides.
// Returns defaults if no file exists or it cannot be parsed.
func Load() Config {
	cfg := Default()
	if p := Path(); p != "" {
		if data, err := os.ReadFile(p); err == nil {
			_ = json.Unmarshal(data, &cfg)
		}
	}
	applyEnv(&cfg)
	return cfg
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("KERNELSIGHT_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("KERNELSIGHT_ORACLE_ENABLED"); v == "false" {
		cfg.OracleEnabled = false
	}
	if v := os.Getenv("KERNELSIGHT_APPROVAL_SOCKET"); v != "" {
		cfg.ApprovalSocket = v
	}
}

// Save writes cfg to disk as indented JSON, creating the parent directory
// with owner-only permissions.
func Save(cfg Config) error {
	path := Path()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// ConfidenceThreshold returns the gate threshold for a signal severity,
// defaulting to the "medium" band for anything unrecognized.
func (c Config) ConfidenceThreshold(severity string) float64 {
	if t, ok := c.ConfidenceThresholds[severity]; ok {
		return t
	}
	return c.ConfidenceThresholds["medium"]
}
