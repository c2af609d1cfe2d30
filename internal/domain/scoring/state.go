package scoring

// State buckets a score for display and alerting.
type State string

const (
	StateHealthy  State = "healthy"
	StateDegraded State = "degraded"
	StateCritical State = "critical"
	StateUnknown  State = "unknown"
)

// Score thresholds for State.
const (
	healthyThreshold  = 85.0
	degradedThreshold = 60.0
)

// StateFor classifies score. With zero coverage nothing was measured and the
// state is unknown regardless of score.
func StateFor(score, coverage float64) State {
	switch {
	case coverage <= 0:
		return StateUnknown
	case score >= healthyThreshold:
		return StateHealthy
	case score >= degradedThreshold:
		return StateDegraded
	default:
		return StateCritical
	}
}
