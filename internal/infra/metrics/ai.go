package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(scriptPromptTokens)
}

var scriptPromptTokens = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "autoshorts_script_prompt_tokens",
		Help:    "Locally estimated prompt size of script calls.",
		Buckets: prometheus.ExponentialBuckets(64, 2, 8),
	},
	[]string{"provider"},
)

// Tokens receives prompt token estimates from the script adapters.
type Tokens struct{}

func (Tokens) ObservePromptTokens(provider string, n int) {
	scriptPromptTokens.WithLabelValues(norm(provider)).Observe(float64(n))
}
