package docker

import (
	"strings"

	"cooker/internal/config"
	"cooker/internal/workload"
	"cooker/pkg/backoff"
)

// Config holds configuration for the Docker backend.
type Config struct {
	Network       string   // Network containers join; empty uses the daemon default
	ExtraHosts    []string // Extra /etc/hosts entries (e.g., ["registry.test:host-gateway"])
	RegistryAuth  string   // Base64 encoded auth config for pulling a private image
	Workload      workload.Spec
	Poll          workload.PollSettings
	TeardownRetry backoff.Config // Retries of the remove call
}

// LoadConfigFromEnv loads Docker backend configuration from environment variables.
func LoadConfigFromEnv() (Config, error) {
	spec, err := workload.LoadSpecFromEnv()
	if err != nil {
		return Config{}, err
	}

	var extraHosts []string
	if hosts := config.GetEnv("COOKER_DOCKER_EXTRA_HOSTS", ""); hosts != "" {
		extraHosts = strings.Split(hosts, ",")
	}

	return Config{
		Network:      config.GetEnv("COOKER_DOCKER_NETWORK", ""),
		ExtraHosts:   extraHosts,
		RegistryAuth: config.GetSecretFile(config.GetEnv("COOKER_REGISTRY_AUTH_FILE", "")),
		Workload:     spec,
		Poll:         workload.LoadPollFromEnv(),
	}, nil
}
