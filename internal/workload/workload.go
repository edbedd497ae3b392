// Package workload describes the stress workload every runner launches and
// how its substrate is polled.
package workload

import (
	"strconv"
	"time"

	"cooker/internal/apperrors"
	"cooker/internal/config"

	"golang.org/x/time/rate"
	"k8s.io/apimachinery/pkg/api/resource"
)

// DefaultImage is the workload container image.
const DefaultImage = "alanbchristie/pydatalister:latest"

// Spec holds the per-workload resource and behavioural parameters.
type Spec struct {
	Image         string
	CPURequest    resource.Quantity
	CPULimit      resource.Quantity
	MemoryRequest resource.Quantity
	MemoryLimit   resource.Quantity
	BusyPeriod    float64 // Seconds the workload stays busy after sleeping
	BusyProcesses int     // Processes kept busy during the busy period
	UseMemoryM    int     // MiB the workload allocates
	PreBusySleep  float64 // Seconds the workload sleeps before the busy period
}

// EnvVar is one environment parameter passed to the workload.
type EnvVar struct {
	Name  string
	Value string
}

// Env returns the workload's environment parameters in a stable order.
func (s Spec) Env() []EnvVar {
	return []EnvVar{
		{Name: "PRE_LIST_SLEEP", Value: "0"},
		{Name: "POST_LIST_SLEEP", Value: formatFloat(s.PreBusySleep)},
		{Name: "POST_SLEEP_BUSY_PERIOD", Value: formatFloat(s.BusyPeriod)},
		{Name: "BUSY_PROCESSES", Value: strconv.Itoa(s.BusyProcesses)},
		{Name: "USE_MEMORY_M", Value: strconv.Itoa(s.UseMemoryM)},
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// LoadSpecFromEnv loads the workload parameters from environment variables.
func LoadSpecFromEnv() (Spec, error) {
	spec := Spec{
		Image:         config.GetEnv("COOKER_IMAGE", DefaultImage),
		BusyPeriod:    config.GetFloatEnv("COOKER_BUSY_PERIOD", 0),
		BusyProcesses: config.GetIntEnv("COOKER_BUSY_PROCESSES", 0),
		UseMemoryM:    config.GetIntEnv("COOKER_USE_MEMORY_M", 0),
		PreBusySleep:  config.GetFloatEnv("COOKER_PRE_BUSY_SLEEP_S", 120),
	}

	quantities := []struct {
		key, def string
		dst      *resource.Quantity
	}{
		{"COOKER_CPU_REQUEST", "150m", &spec.CPURequest},
		{"COOKER_CPU_LIMIT", "150m", &spec.CPULimit},
		{"COOKER_MEMORY_REQUEST", "10Mi", &spec.MemoryRequest},
		{"COOKER_MEMORY_LIMIT", "10Mi", &spec.MemoryLimit},
	}
	for _, q := range quantities {
		parsed, err := resource.ParseQuantity(config.GetEnv(q.key, q.def))
		if err != nil {
			return Spec{}, apperrors.Config(q.key, err.Error())
		}
		*q.dst = parsed
	}

	if spec.CPURequest.Cmp(spec.CPULimit) > 0 {
		return Spec{}, apperrors.Config("COOKER_CPU_REQUEST", "request exceeds limit")
	}
	if spec.MemoryRequest.Cmp(spec.MemoryLimit) > 0 {
		return Spec{}, apperrors.Config("COOKER_MEMORY_REQUEST", "request exceeds limit")
	}
	if spec.BusyProcesses < 0 || spec.UseMemoryM < 0 {
		return Spec{}, apperrors.Config("COOKER_BUSY_PROCESSES", "must not be negative")
	}

	return spec, nil
}

// PollSettings controls how backends poll their substrate.
type PollSettings struct {
	Period  time.Duration // Between polls of one runner (default 6s)
	Timeout time.Duration // Per wait; zero waits forever
	QPS     float64       // Polls per second across all runners; zero is unlimited
}

// LoadPollFromEnv loads poll settings from environment variables.
func LoadPollFromEnv() PollSettings {
	return PollSettings{
		Period:  config.GetDurationEnv("COOKER_POLL_PERIOD", 6*time.Second),
		Timeout: config.GetDurationEnv("COOKER_POLL_TIMEOUT", 0),
		QPS:     config.GetFloatEnv("COOKER_POLL_QPS", 0),
	}
}

// Limiter returns a limiter shared by every runner of one substrate, or nil
// when polling is unlimited.
func (p PollSettings) Limiter() *rate.Limiter {
	if p.QPS <= 0 {
		return nil
	}
	burst := int(p.QPS)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(p.QPS), burst)
}
