// Package in defines input ports (interfaces) the driving adapters call
// into. The control surface is the sole driving adapter (§6); it only
// needs to trigger a cycle and read the loop's readiness/run state.
package in

// LoopState is the control loop's coarse run state, exposed at GET
// /healthz.
type LoopState string

const (
	// LoopNotReady means the first inventory pass has not completed yet.
	LoopNotReady LoopState = "not_ready"
	LoopIdle     LoopState = "idle"
	LoopRunning  LoopState = "running"
)

// Loop is what the control surface drives: POST /v1/update queues a
// cycle, GET /healthz reads the current state.
type Loop interface {
	// TriggerCycle requests an out-of-schedule cycle. Non-blocking;
	// multiple triggers before the loop picks one up coalesce into a
	// single extra cycle.
	TriggerCycle()
	State() LoopState
}
