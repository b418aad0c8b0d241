package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/tools/clientcmd/api"
)

// DefaultNamespace is used when a context names no namespace
const DefaultNamespace = "default"

// KubeconfigLoader resolves the kubeconfig used by the kubernetes batch backend
type KubeconfigLoader struct {
	paths  []string
	loaded *api.Config
}

// NewKubeconfigLoader creates a new kubeconfig loader.
// Sources are checked in order: the explicit path, then KUBECONFIG (a path list),
// then ~/.kube/config.
func NewKubeconfigLoader(explicitPath string) *KubeconfigLoader {
	loader := &KubeconfigLoader{paths: make([]string, 0)}

	if explicitPath != "" {
		if expanded, err := expandPath(explicitPath); err == nil {
			loader.paths = append(loader.paths, expanded)
		}
		return loader
	}

	if env := os.Getenv("KUBECONFIG"); env != "" {
		for _, path := range filepath.SplitList(env) {
			path = strings.TrimSpace(path)
			if path == "" {
				continue
			}
			if expanded, err := expandPath(path); err == nil {
				loader.paths = append(loader.paths, expanded)
			}
		}
	}

	if len(loader.paths) == 0 {
		if home, err := os.UserHomeDir(); err == nil {
			loader.paths = append(loader.paths, filepath.Join(home, ".kube", "config"))
		}
	}

	return loader
}

func (l *KubeconfigLoader) rules() *clientcmd.ClientConfigLoadingRules {
	return &clientcmd.ClientConfigLoadingRules{Precedence: l.paths}
}

// Load returns the merged kubeconfig from all sources
func (l *KubeconfigLoader) Load() (*api.Config, error) {
	if l.loaded != nil {
		return l.loaded, nil
	}
	if len(l.paths) == 0 {
		return nil, fmt.Errorf("no kubeconfig paths available")
	}

	cfg, err := l.rules().Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load kubeconfig: %w", err)
	}
	if cfg == nil {
		return nil, fmt.Errorf("kubeconfig is empty")
	}

	l.loaded = cfg
	return cfg, nil
}

// Contexts returns all context names, sorted
func (l *KubeconfigLoader) Contexts() ([]string, error) {
	cfg, err := l.Load()
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(cfg.Contexts))
	for name := range cfg.Contexts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// CurrentContext returns the current context name
func (l *KubeconfigLoader) CurrentContext() (string, error) {
	cfg, err := l.Load()
	if err != nil {
		return "", err
	}
	return cfg.CurrentContext, nil
}

// Namespace returns the namespace of a context ("" means the current context)
func (l *KubeconfigLoader) Namespace(contextName string) (string, error) {
	cfg, err := l.Load()
	if err != nil {
		return "", err
	}

	if contextName == "" {
		contextName = cfg.CurrentContext
	}

	ctx, ok := cfg.Contexts[contextName]
	if !ok || ctx == nil {
		return "", fmt.Errorf("context %q not found in kubeconfig", contextName)
	}
	if ctx.Namespace == "" {
		return DefaultNamespace, nil
	}
	return ctx.Namespace, nil
}

// BuildClientConfig creates a rest.Config for a context ("" means the current context)
func (l *KubeconfigLoader) BuildClientConfig(contextName string) (*rest.Config, error) {
	if len(l.paths) == 0 {
		return nil, fmt.Errorf("no kubeconfig paths available")
	}

	overrides := &clientcmd.ConfigOverrides{}
	if contextName != "" {
		overrides.CurrentContext = contextName
	}

	restConfig, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(l.rules(), overrides).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to create client config for context %q: %w", contextName, err)
	}
	return restConfig, nil
}

// Paths returns the kubeconfig paths being used
func (l *KubeconfigLoader) Paths() []string {
	return l.paths
}

// expandPath expands environment variables and a leading ~
func expandPath(path string) (string, error) {
	path = os.ExpandEnv(path)

	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[1:])
	}

	return filepath.Clean(path), nil
}
