// Package kubernetes runs workloads as batch/v1 Jobs.
package kubernetes

import (
	"fmt"

	"cooker/internal/config"
	"cooker/internal/workload"
	"cooker/pkg/backoff"

	k8sclient "k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// DefaultNamespace is where stress Jobs are created.
const DefaultNamespace = "pressure-pot"

// Config holds the Kubernetes backend settings.
type Config struct {
	Namespace     string
	Kubeconfig    string  // Explicit kubeconfig path; empty uses the default rules
	ClientQPS     float64 // Client-side API rate limit
	Workload      workload.Spec
	Poll          workload.PollSettings
	TeardownRetry backoff.Config // Retries of each delete call
}

// LoadConfigFromEnv loads Kubernetes backend settings from environment variables.
func LoadConfigFromEnv() (Config, error) {
	spec, err := workload.LoadSpecFromEnv()
	if err != nil {
		return Config{}, err
	}

	return Config{
		Namespace:  config.GetEnv("COOKER_NAMESPACE", DefaultNamespace),
		Kubeconfig: config.GetEnv("KUBECONFIG", ""),
		ClientQPS:  config.GetFloatEnv("COOKER_KUBE_QPS", 50),
		Workload:   spec,
		Poll:       workload.LoadPollFromEnv(),
	}, nil
}

// Config sources reported by NewClientset.
const (
	SourceInCluster  = "InCluster"
	SourceKubeconfig = "Kubeconfig"
)

// NewClientset builds a clientset from the in-cluster configuration, falling
// back to the kubeconfig file. It also reports which source was used.
func NewClientset(cfg Config) (k8sclient.Interface, string, error) {
	source := SourceInCluster
	restConfig, err := rest.InClusterConfig()
	if err != nil {
		rules := clientcmd.NewDefaultClientConfigLoadingRules()
		if cfg.Kubeconfig != "" {
			rules.ExplicitPath = cfg.Kubeconfig
		}
		restConfig, err = clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
			rules, &clientcmd.ConfigOverrides{},
		).ClientConfig()
		if err != nil {
			return nil, "", fmt.Errorf("no kubernetes configuration: %w", err)
		}
		source = SourceKubeconfig
	}

	if cfg.ClientQPS > 0 {
		restConfig.QPS = float32(cfg.ClientQPS)
		restConfig.Burst = int(cfg.ClientQPS * 2)
	}

	clientset, err := k8sclient.NewForConfig(restConfig)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create kubernetes client: %w", err)
	}
	return clientset, source, nil
}
