package temporal

// Signal and query names for external interaction with generation workflows.
// These are defined here (not in the workflows package) so that the server
// layer and the workflow implementation can both reference them without
// creating a dependency from server -> workflows.
const (
	// SignalCancel requests cooperative workflow cancellation. The workflow
	// stops at the next checkpoint and marks the job cancelled.
	SignalCancel = "cancel"

	// QueryProgress retrieves the current progress report. The response
	// decodes into domain.Progress.
	QueryProgress = "progress"
)
