package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/aryankumar/fanout/internal/util"
)

const (
	defaultConfigName = ".fanout"
	envPrefix         = "FANOUT"

	// OutputExtension is the file extension of output stores
	OutputExtension = ".db"
)

// Manager loads the run configuration
type Manager struct {
	configPath string
	config     *Config
	viper      *viper.Viper
}

// NewManager creates a new configuration manager. An empty path searches the working
// directory and the home directory for .fanout.yaml.
func NewManager(configPath string) *Manager {
	return &Manager{
		configPath: configPath,
		viper:      viper.New(),
		config:     &Config{},
	}
}

// Load reads the configuration file, applies FANOUT_* environment overrides and defaults
func (m *Manager) Load() (*Config, error) {
	if m.configPath != "" {
		m.viper.SetConfigFile(m.configPath)
	} else {
		m.viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			m.viper.AddConfigPath(home)
		}
		m.viper.SetConfigName(defaultConfigName)
		m.viper.SetConfigType("yaml")
	}

	// FANOUT_GEN_EXECUTION_CONTROL_NODES overrides gen.execution_control.nodes
	m.viper.SetEnvPrefix(envPrefix)
	m.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	m.viper.AutomaticEnv()
	setDefaults(m.viper)

	m.config = &Config{}

	if err := m.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if m.configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := m.viper.Unmarshal(m.config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	m.applyDefaults()
	return m.config, nil
}

// ConfigFile returns the file the configuration was read from, if any
func (m *Manager) ConfigFile() string {
	return m.viper.ConfigFileUsed()
}

// setDefaults registers every key so environment overrides apply even when the file omits it
func setDefaults(v *viper.Viper) {
	v.SetDefault("gen.name", "")
	v.SetDefault("gen.model", "capacity-factor")
	v.SetDefault("gen.project_points", "")
	v.SetDefault("gen.resource_files", []string{})
	v.SetDefault("gen.resource_dataset", "ghi")
	v.SetDefault("gen.analysis_years", []int{})
	v.SetDefault("gen.output_directory", "")
	v.SetDefault("gen.log_directory", "")
	v.SetDefault("gen.profiles", false)
	v.SetDefault("gen.execution_control.option", "local")
	v.SetDefault("gen.execution_control.workers", 0)
	v.SetDefault("gen.execution_control.sites_per_worker", 0)
	v.SetDefault("gen.execution_control.nodes", 1)
	v.SetDefault("gen.execution_control.backend", "pbs")
	v.SetDefault("gen.execution_control.allocation", "")
	v.SetDefault("gen.execution_control.queue", "short")
	v.SetDefault("gen.execution_control.stdout_path", "./out/stdout")
	v.SetDefault("gen.execution_control.walltime", "")
	v.SetDefault("gen.execution_control.concurrency", 1)
	v.SetDefault("gen.execution_control.kubernetes.kubeconfig", "")
	v.SetDefault("gen.execution_control.kubernetes.context", "")
	v.SetDefault("gen.execution_control.kubernetes.namespace", "")
	v.SetDefault("gen.execution_control.kubernetes.image", "")
	v.SetDefault("summary.store", "")
	v.SetDefault("summary.datasets", []string{})
	v.SetDefault("summary.process_size", 0)
	v.SetDefault("summary.max_workers", 0)
	v.SetDefault("summary.output_directory", "")
	v.SetDefault("logging.verbose", false)
	v.SetDefault("logging.json", false)
}

// applyDefaults fills values that depend on other settings
func (m *Manager) applyDefaults() {
	gen := &m.config.Gen
	if gen.LogDirectory == "" && gen.OutputDirectory != "" {
		gen.LogDirectory = filepath.Join(gen.OutputDirectory, "logs")
	}
	if gen.ExecutionControl.Nodes <= 0 {
		gen.ExecutionControl.Nodes = 1
	}

	sum := &m.config.Summary
	if sum.OutputDirectory == "" && sum.Store != "" {
		sum.OutputDirectory = filepath.Dir(sum.Store)
	}
}

// Validate reports every missing or invalid generation setting
func (g GenConfig) Validate() error {
	merr := &util.MultiError{}

	if g.Name == "" {
		merr.Add(util.NewValidationError("gen.name", g.Name, "required"))
	}
	if g.ProjectPoints == "" {
		merr.Add(util.NewValidationError("gen.project_points", g.ProjectPoints, "required"))
	}
	if len(g.ResourceFiles) == 0 {
		merr.Add(util.NewValidationError("gen.resource_files", g.ResourceFiles, "at least one resource store is required"))
	}
	if g.OutputDirectory == "" {
		merr.Add(util.NewValidationError("gen.output_directory", g.OutputDirectory, "required"))
	}

	ec := g.ExecutionControl
	switch strings.ToLower(ec.Option) {
	case "local", "":
	default:
		if ec.Nodes < 1 {
			merr.Add(util.NewValidationError("gen.execution_control.nodes", ec.Nodes, "must be at least 1"))
		}
	}
	if ec.Workers < 0 {
		merr.Add(util.NewValidationError("gen.execution_control.workers", ec.Workers, "must not be negative"))
	}
	if ec.SitesPerWorker < 0 {
		merr.Add(util.NewValidationError("gen.execution_control.sites_per_worker", ec.SitesPerWorker, "must not be negative"))
	}

	n := len(g.AnalysisYears)
	if n > 0 && len(g.ResourceFiles) > 1 && len(g.ResourceFiles) != n {
		merr.Add(util.NewValidationError("gen.resource_files", g.ResourceFiles,
			fmt.Sprintf("%d resource stores given for %d analysis years", len(g.ResourceFiles), n)))
	}

	return merr.ErrorOrNil()
}

// Validate reports every missing or invalid summary setting
func (s SummaryConfig) Validate() error {
	merr := &util.MultiError{}
	if s.Store == "" {
		merr.Add(util.NewValidationError("summary.store", s.Store, "required"))
	}
	if s.ProcessSize < 0 {
		merr.Add(util.NewValidationError("summary.process_size", s.ProcessSize, "must not be negative"))
	}
	if s.MaxWorkers < 0 {
		merr.Add(util.NewValidationError("summary.max_workers", s.MaxWorkers, "must not be negative"))
	}
	return merr.ErrorOrNil()
}

// Runs resolves one run per analysis year (or a single run without years).
//
// Each year's resource store must mention the year; the run name gets a "_<year>" suffix
// unless it already contains the year.
func (g GenConfig) Runs() ([]YearRun, error) {
	if len(g.ResourceFiles) == 0 {
		return nil, util.NewValidationError("gen.resource_files", g.ResourceFiles, "at least one resource store is required")
	}

	if len(g.AnalysisYears) == 0 {
		return []YearRun{{
			Name:         g.Name,
			ResourceFile: g.ResourceFiles[0],
			OutputFile:   filepath.Join(g.OutputDirectory, g.Name+OutputExtension),
		}}, nil
	}

	runs := make([]YearRun, 0, len(g.AnalysisYears))
	for i, year := range g.AnalysisYears {
		ys := strconv.Itoa(year)

		res := g.ResourceFiles[0]
		if len(g.ResourceFiles) > 1 {
			if i >= len(g.ResourceFiles) {
				return nil, util.NewValidationError("gen.resource_files", g.ResourceFiles, "fewer resource stores than analysis years")
			}
			res = g.ResourceFiles[i]
		}
		res = strings.ReplaceAll(res, "{year}", ys)
		if !strings.Contains(res, ys) {
			return nil, util.NewValidationError("gen.resource_files", res,
				fmt.Sprintf("resource store does not match analysis year %d", year))
		}

		name := g.Name
		if !strings.Contains(name, ys) {
			name = fmt.Sprintf("%s_%s", name, ys)
		}

		runs = append(runs, YearRun{
			Year:         year,
			Name:         name,
			ResourceFile: res,
			OutputFile:   filepath.Join(g.OutputDirectory, name+OutputExtension),
		})
	}
	return runs, nil
}
