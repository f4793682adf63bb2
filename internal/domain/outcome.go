package domain

import "time"

// Stage enumerates orchestrator states.
type Stage string

const (
	StageFetching    Stage = "fetching"
	StageFiltering   Stage = "filtering"
	StageRanking     Stage = "ranking"
	StageSummarizing Stage = "summarizing"
	StageFormatting  Stage = "formatting"
	StagePublishing  Stage = "publishing"
	StageDone        Stage = "done"
	StageAborted     Stage = "aborted"
)

// PublishStatus summarizes delivery of the formatted digest.
type PublishStatus string

const (
	PublishNotAttempted PublishStatus = "not_attempted"
	PublishDelivered    PublishStatus = "delivered"
	PublishPartial      PublishStatus = "partial"
	PublishFailedStatus PublishStatus = "failed"
)

// RunOutcome describes one pipeline execution.
type RunOutcome struct {
	RunID       string
	State       Stage
	FailedStage Stage
	ErrorKind   ErrorKind
	Err         error

	Fetched          int
	Filtered         int
	Ranked           int
	SummarizedOK     int
	SummarizedFailed int

	Publish       PublishStatus
	MessagesSent  int
	MessagesTotal int

	// Notice is set when a policy replaced the digest with a notice message.
	Notice ErrorKind

	StartedAt  time.Time
	FinishedAt time.Time
}

// Aborted reports whether the run ended in the aborted state.
func (o RunOutcome) Aborted() bool {
	return o.State == StageAborted
}

// Duration is the wall-clock time of the run.
func (o RunOutcome) Duration() time.Duration {
	if o.FinishedAt.IsZero() {
		return 0
	}
	return o.FinishedAt.Sub(o.StartedAt)
}
