package kafka

const (
	// TopicStageCompleted carries one envelope per finished pipeline stage.
	TopicStageCompleted = "advisor.stage.completed"
	// TopicRunFinished carries the terminal state of a pipeline run.
	TopicRunFinished = "advisor.run.finished"

	// HeaderEventType lets consumers route a record without decoding it.
	HeaderEventType = "event-type"
)
