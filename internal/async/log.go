package async

import "sheetchart-web/internal/shared/telemetry"

// LogTransitions is an Observer that writes terminal transitions to the
// structured log. Pending phases are too chatty to log.
func LogTransitions(t Transition) {
	switch t.Phase {
	case PhaseFulfilled:
		telemetry.Info("operation.fulfilled", map[string]any{
			"slice":       t.Slice,
			"operation":   t.Operation,
			"duration_ms": float64(t.Duration.Microseconds()) / 1000.0,
		})
	case PhaseRejected:
		fields := map[string]any{
			"slice":       t.Slice,
			"operation":   t.Operation,
			"duration_ms": float64(t.Duration.Microseconds()) / 1000.0,
			"message":     t.Message,
		}
		if t.Err != nil {
			fields["error"] = t.Err.Error()
		}
		telemetry.Error("operation.rejected", fields)
	}
}
