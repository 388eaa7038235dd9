package async

import "sheetchart-web/internal/shared/metrics"

// RecordMetrics is an Observer that counts every phase and times terminal
// phases.
func RecordMetrics(t Transition) {
	metrics.ObserveOperation(t.Slice, t.Operation, string(t.Phase), t.Duration)
}
