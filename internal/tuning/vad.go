package tuning

import (
	"fmt"
	"time"

	"github.com/tiger/voicebot-latency/internal/config"
)

// VADParams are the endpointing parameters handed to the STT/VAD
// collaborator. Tighter stop_secs shortens the silence the pipeline waits
// for before declaring the user's utterance finished.
type VADParams struct {
	StartSecs  float64
	StopSecs   float64
	Confidence float64
	MinVolume  float64
}

// VADFromConfig converts the validated tuning section.
func VADFromConfig(cfg config.VAD) VADParams {
	return VADParams{
		StartSecs:  cfg.StartSecs,
		StopSecs:   cfg.StopSecs,
		Confidence: cfg.Confidence,
		MinVolume:  cfg.MinVolume,
	}
}

// Validate enforces parameter ranges.
func (p VADParams) Validate() error {
	if p.StartSecs <= 0 || p.StopSecs <= 0 {
		return fmt.Errorf("start_secs and stop_secs must be > 0")
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		return fmt.Errorf("confidence must be within [0, 1]")
	}
	if p.MinVolume < 0 || p.MinVolume > 1 {
		return fmt.Errorf("min_volume must be within [0, 1]")
	}
	return nil
}

// EndpointDelay is the minimum silence before the turn is considered
// finished, the floor on speech-to-transcript latency.
func (p VADParams) EndpointDelay() time.Duration {
	return time.Duration(p.StopSecs * float64(time.Second))
}
