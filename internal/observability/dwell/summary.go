package dwell

import (
	"fmt"
	"strings"
	"time"
)

// TurnSummary is the per-turn latency record emitted at turn close.
type TurnSummary struct {
	TurnID           uint64
	Transcript       string
	STTDuration      time.Duration
	DialogueDuration time.Duration
	TTSDuration      time.Duration
	Total            time.Duration
	Stages           []StageMean
}

// String renders the single summary line: turn id, transcript, the merged
// collaborator durations that are present, the total, then the ordered
// stage dwell list.
func (s TurnSummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "turn %d", s.TurnID)
	if s.Transcript != "" {
		fmt.Fprintf(&b, " %q", s.Transcript)
	}
	if s.STTDuration > 0 {
		fmt.Fprintf(&b, " stt=%s", formatDuration(s.STTDuration))
	}
	if s.DialogueDuration > 0 {
		fmt.Fprintf(&b, " dialogue=%s", formatDuration(s.DialogueDuration))
	}
	if s.TTSDuration > 0 {
		fmt.Fprintf(&b, " tts=%s", formatDuration(s.TTSDuration))
	}
	fmt.Fprintf(&b, " total=%s", formatDuration(s.Total))
	if len(s.Stages) > 0 {
		b.WriteString(" queue_dwell[")
		for i, stage := range s.Stages {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s: %.1fms", stage.Stage, stage.MeanMS)
		}
		b.WriteString("]")
	}
	return b.String()
}

func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.0fms", float64(d)/float64(time.Millisecond))
}
