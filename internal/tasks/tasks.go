package tasks

const (
	TypePlanExecute = "plan:execute"

	QUEUE_NAME = "autosave_queue"
)
