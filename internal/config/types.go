package config

// Config is the run configuration file structure
type Config struct {
	// Gen configures generation runs
	Gen GenConfig `mapstructure:"gen" yaml:"gen,omitempty" json:"gen,omitempty"`

	// Summary configures dataset summaries
	Summary SummaryConfig `mapstructure:"summary" yaml:"summary,omitempty" json:"summary,omitempty"`

	// Logging controls the process logger
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging,omitempty" json:"logging,omitempty"`
}

// GenConfig configures a generation run
type GenConfig struct {
	// Name is the job name; year runs receive a "_<year>" suffix
	Name string `mapstructure:"name" yaml:"name" json:"name"`

	// Model is the per-site model
	Model string `mapstructure:"model" yaml:"model" json:"model"`

	// ProjectPoints selects the sites: "start:stop", "1,4,9" or a CSV file with a gid column
	ProjectPoints string `mapstructure:"project_points" yaml:"project_points" json:"project_points"`

	// ResourceFiles lists one resource store per analysis year, or a single path containing
	// "{year}"
	ResourceFiles []string `mapstructure:"resource_files" yaml:"resource_files" json:"resource_files"`

	// ResourceDataset is the dataset read from each resource store
	ResourceDataset string `mapstructure:"resource_dataset" yaml:"resource_dataset,omitempty" json:"resource_dataset,omitempty"`

	// AnalysisYears runs the job once per year
	AnalysisYears []int `mapstructure:"analysis_years" yaml:"analysis_years,omitempty" json:"analysis_years,omitempty"`

	// OutputDirectory receives the output stores
	OutputDirectory string `mapstructure:"output_directory" yaml:"output_directory" json:"output_directory"`

	// LogDirectory receives one log file per run
	LogDirectory string `mapstructure:"log_directory" yaml:"log_directory,omitempty" json:"log_directory,omitempty"`

	// Profiles keeps the per-step output of every site
	Profiles bool `mapstructure:"profiles" yaml:"profiles,omitempty" json:"profiles,omitempty"`

	// ExecutionControl selects local or batch execution
	ExecutionControl ExecutionControl `mapstructure:"execution_control" yaml:"execution_control" json:"execution_control"`
}

// ExecutionControl configures where and how a run executes
type ExecutionControl struct {
	// Option is "local" or "batch"
	Option string `mapstructure:"option" yaml:"option" json:"option"`

	// Workers bounds the local pool (0 = all CPUs)
	Workers int `mapstructure:"workers" yaml:"workers,omitempty" json:"workers,omitempty"`

	// SitesPerWorker is the local chunk size (0 = split evenly across workers)
	SitesPerWorker int `mapstructure:"sites_per_worker" yaml:"sites_per_worker,omitempty" json:"sites_per_worker,omitempty"`

	// Nodes is the number of batch sub-jobs
	Nodes int `mapstructure:"nodes" yaml:"nodes,omitempty" json:"nodes,omitempty"`

	// Backend is the batch queue: pbs, slurm or kubernetes
	Backend string `mapstructure:"backend" yaml:"backend,omitempty" json:"backend,omitempty"`

	// Allocation is the account charged for batch jobs
	Allocation string `mapstructure:"allocation" yaml:"allocation,omitempty" json:"allocation,omitempty"`

	// Queue is the target batch queue
	Queue string `mapstructure:"queue" yaml:"queue,omitempty" json:"queue,omitempty"`

	// StdoutPath receives batch job stdout
	StdoutPath string `mapstructure:"stdout_path" yaml:"stdout_path,omitempty" json:"stdout_path,omitempty"`

	// Walltime is the per-node limit as HH:MM:SS
	Walltime string `mapstructure:"walltime" yaml:"walltime,omitempty" json:"walltime,omitempty"`

	// Concurrency bounds in-flight submissions
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency,omitempty" json:"concurrency,omitempty"`

	// Kubernetes configures the kubernetes backend
	Kubernetes KubernetesConfig `mapstructure:"kubernetes" yaml:"kubernetes,omitempty" json:"kubernetes,omitempty"`
}

// KubernetesConfig configures the kubernetes batch backend
type KubernetesConfig struct {
	Kubeconfig string `mapstructure:"kubeconfig" yaml:"kubeconfig,omitempty" json:"kubeconfig,omitempty"`
	Context    string `mapstructure:"context" yaml:"context,omitempty" json:"context,omitempty"`
	Namespace  string `mapstructure:"namespace" yaml:"namespace,omitempty" json:"namespace,omitempty"`
	Image      string `mapstructure:"image" yaml:"image,omitempty" json:"image,omitempty"`
}

// SummaryConfig configures a dataset summary run
type SummaryConfig struct {
	// Store is the store to summarize
	Store string `mapstructure:"store" yaml:"store" json:"store"`

	// Datasets limits the summary to these datasets (all when empty)
	Datasets []string `mapstructure:"datasets" yaml:"datasets,omitempty" json:"datasets,omitempty"`

	// ProcessSize is the number of units per chunk
	ProcessSize int `mapstructure:"process_size" yaml:"process_size,omitempty" json:"process_size,omitempty"`

	// MaxWorkers bounds the pool (1 = serial, 0 = all CPUs)
	MaxWorkers int `mapstructure:"max_workers" yaml:"max_workers,omitempty" json:"max_workers,omitempty"`

	// OutputDirectory receives the summary CSV files
	OutputDirectory string `mapstructure:"output_directory" yaml:"output_directory" json:"output_directory"`
}

// LoggingConfig controls the process logger
type LoggingConfig struct {
	Verbose bool `mapstructure:"verbose" yaml:"verbose,omitempty" json:"verbose,omitempty"`
	JSON    bool `mapstructure:"json" yaml:"json,omitempty" json:"json,omitempty"`
}

// YearRun is one resolved run of a generation config
type YearRun struct {
	// Year is 0 when the config has no analysis years
	Year int

	// Name is the job name, suffixed with the year
	Name string

	// ResourceFile is the resource store for the year
	ResourceFile string

	// OutputFile is the output store path
	OutputFile string
}
