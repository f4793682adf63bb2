package digest

import (
	"fmt"
	"strings"
	"time"

	"PaperDigest/internal/domain"
)

// OutcomeText renders a run outcome for the error-notification channel.
// Aborted runs name the stage, the error kind and the cause.
func OutcomeText(o domain.RunOutcome, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	finished := o.FinishedAt
	if finished.IsZero() {
		finished = o.StartedAt
	}

	var sb strings.Builder
	if o.Aborted() {
		sb.WriteString("*AI Research Digest: run failed*\n")
		fmt.Fprintf(&sb, "Time: %s\n", finished.In(loc).Format("2006-01-02 15:04:05 MST"))
		fmt.Fprintf(&sb, "Stage: %s\n", o.FailedStage)
		fmt.Fprintf(&sb, "Error: %s\n", o.ErrorKind)
		if o.Err != nil {
			fmt.Fprintf(&sb, "Cause: %s\n", o.Err.Error())
		}
	} else {
		sb.WriteString("*AI Research Digest: run completed*\n")
		fmt.Fprintf(&sb, "Time: %s\n", finished.In(loc).Format("2006-01-02 15:04:05 MST"))
		if o.Notice != "" {
			fmt.Fprintf(&sb, "Notice: %s\n", o.Notice)
		}
	}

	fmt.Fprintf(&sb, "Papers: fetched %d, relevant %d, ranked %d, summarized %d, failed %d\n",
		o.Fetched, o.Filtered, o.Ranked, o.SummarizedOK, o.SummarizedFailed)
	if o.Publish != "" && o.Publish != domain.PublishNotAttempted {
		fmt.Fprintf(&sb, "Publish: %s (%d/%d messages)\n", o.Publish, o.MessagesSent, o.MessagesTotal)
	}
	fmt.Fprintf(&sb, "Run: %s (%s)", o.RunID, o.Duration().Round(time.Millisecond))
	return sb.String()
}
