package harness

type ProgressEventType string

const (
	EventRunStart           = ProgressEventType("run_start")
	EventScenarioStart      = ProgressEventType("scenario_start")
	EventScenarioRunning    = ProgressEventType("scenario_running")
	EventScenarioEvaluating = ProgressEventType("scenario_evaluating")
	EventScenarioComplete   = ProgressEventType("scenario_complete")
	EventScenarioError      = ProgressEventType("scenario_error")
	EventRunComplete        = ProgressEventType("run_complete")
)

// ProgressEvent is emitted at each lifecycle step so CLIs can render live
// progress without coupling to the runner internals.
type ProgressEvent struct {
	Type     ProgressEventType
	Message  string
	Scenario *TestResult
}

type ProgressCallback func(event ProgressEvent)

var NoopProgressCallback ProgressCallback = func(event ProgressEvent) {}
