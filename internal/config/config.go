// Package config loads and validates the latency-tuning configuration:
// VAD/STT endpointing parameters, the LLM context-prune budget, TTS
// pre-warm settings, and observer bounds.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// VAD holds voice-activity endpointing parameters.
type VAD struct {
	StartSecs  float64 `json:"start_secs"`
	StopSecs   float64 `json:"stop_secs"`
	Confidence float64 `json:"confidence"`
	MinVolume  float64 `json:"min_volume"`
}

// Prune holds the LLM context-pruning budget.
type Prune struct {
	MaxTokens  int    `json:"max_tokens"`
	KeepSystem bool   `json:"keep_system"`
	Encoding   string `json:"encoding"`
}

// Prewarm holds TTS connection pre-warm settings.
type Prewarm struct {
	Enabled    bool   `json:"enabled"`
	Region     string `json:"region"`
	VoiceID    string `json:"voice_id"`
	Engine     string `json:"engine"`
	SampleText string `json:"sample_text"`
	TimeoutMS  int    `json:"timeout_ms"`
}

// Observer bounds the instrumentation engine's internal queues.
type Observer struct {
	MaxOpenTurns  int `json:"max_open_turns"`
	QueueCapacity int `json:"queue_capacity"`
}

// Config is the full tuning document.
type Config struct {
	VAD      VAD      `json:"vad"`
	Prune    Prune    `json:"prune"`
	Prewarm  Prewarm  `json:"prewarm"`
	Observer Observer `json:"observer"`
}

// Default returns the tuning values used when no file is supplied.
func Default() Config {
	return Config{
		VAD:      VAD{StartSecs: 0.2, StopSecs: 0.35, Confidence: 0.6, MinVolume: 0.6},
		Prune:    Prune{MaxTokens: 6000, KeepSystem: true, Encoding: "cl100k_base"},
		Prewarm:  Prewarm{Enabled: true, Region: "us-east-1", VoiceID: "Joanna", Engine: "neural", TimeoutMS: 15000},
		Observer: Observer{MaxOpenTurns: 8, QueueCapacity: 256},
	}
}

const schemaDoc = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "vad": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "start_secs": {"type": "number", "exclusiveMinimum": 0},
        "stop_secs": {"type": "number", "exclusiveMinimum": 0},
        "confidence": {"type": "number", "minimum": 0, "maximum": 1},
        "min_volume": {"type": "number", "minimum": 0, "maximum": 1}
      }
    },
    "prune": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "max_tokens": {"type": "integer", "minimum": 1},
        "keep_system": {"type": "boolean"},
        "encoding": {"type": "string", "minLength": 1}
      }
    },
    "prewarm": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "enabled": {"type": "boolean"},
        "region": {"type": "string", "minLength": 1},
        "voice_id": {"type": "string", "minLength": 1},
        "engine": {"type": "string", "enum": ["standard", "neural"]},
        "sample_text": {"type": "string"},
        "timeout_ms": {"type": "integer", "minimum": 1}
      }
    },
    "observer": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "max_open_turns": {"type": "integer", "minimum": 1},
        "queue_capacity": {"type": "integer", "minimum": 1}
      }
    }
  }
}`

// Parse validates a tuning document against the schema and merges it over
// the defaults. Absent sections keep their default values.
func Parse(raw []byte) (Config, error) {
	schema, err := jsonschema.CompileString("tuning.schema.json", schemaDoc)
	if err != nil {
		return Config{}, fmt.Errorf("compile tuning schema: %w", err)
	}
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Config{}, fmt.Errorf("decode tuning document: %w", err)
	}
	if err := schema.Validate(payload); err != nil {
		return Config{}, fmt.Errorf("invalid tuning document: %w", err)
	}

	cfg := Default()
	if err := strictUnmarshal(raw, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads and parses a tuning file. An empty path yields the defaults.
func Load(path string) (Config, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read tuning file: %w", err)
	}
	return Parse(raw)
}

func strictUnmarshal(data []byte, target any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return err
	}
	var extra any
	if err := dec.Decode(&extra); err != io.EOF {
		return fmt.Errorf("unexpected trailing JSON payload")
	}
	return nil
}
