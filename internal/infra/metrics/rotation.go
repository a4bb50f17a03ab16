package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	derror "autoshorts/internal/error"
	"autoshorts/internal/rotation"
)

func init() {
	register(keyAttemptsTotal, keyRotationsTotal)
}

var (
	keyAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autoshorts_key_attempts_total",
			Help: "Calls made through the key rotation executor, by operation and outcome kind.",
		},
		[]string{"op", "key_index", "outcome"},
	)

	keyRotationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autoshorts_key_rotations_total",
			Help: "Moves to the next credential after a quota failure.",
		},
		[]string{"op"},
	)
)

// Rotation feeds the executor's attempt hook into the counters above.
type Rotation struct{}

var _ rotation.Observer = Rotation{}

func (Rotation) Attempt(op string, keyIndex int, err error) {
	keyAttemptsTotal.WithLabelValues(norm(op), strconv.Itoa(keyIndex), outcome(err, derror.KindOf(err).String())).Inc()
}

func (Rotation) Rotated(op string, fromIndex int) {
	keyRotationsTotal.WithLabelValues(norm(op)).Inc()
}
