package scanner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"

	"MeloFM/model"
)

// FeatureAnalyzer invokes the external audio-feature-analysis script as a
// subprocess. The script takes a single file path argument and prints one
// JSON object of shape {status, data, message} to stdout.
type FeatureAnalyzer struct {
	python string
	script string
}

// NewFeatureAnalyzer returns nil when no script is configured, which disables
// feature analysis entirely.
func NewFeatureAnalyzer(python, script string) *FeatureAnalyzer {
	if script == "" {
		return nil
	}
	return &FeatureAnalyzer{python: python, script: script}
}

type analyzerOutput struct {
	Status  string                 `json:"status"`
	Data    map[string]interface{} `json:"data"`
	Message string                 `json:"message"`
}

// Analyze runs the analyzer on one file. Any failure (non-zero exit,
// malformed JSON, non-success status) is a recoverable per-file error.
func (a *FeatureAnalyzer) Analyze(ctx context.Context, path string) (*model.AudioFeatures, error) {
	cmd := exec.CommandContext(ctx, a.python, a.script, path)
	cmd.Dir = filepath.Dir(a.script)

	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("analyzer exited abnormally for %s: %w: %s", path, err, stderr.String())
	}

	return parseAnalyzerOutput(out.Bytes())
}

func parseAnalyzerOutput(raw []byte) (*model.AudioFeatures, error) {
	var output analyzerOutput
	if err := json.Unmarshal(raw, &output); err != nil {
		return nil, fmt.Errorf("failed to parse analyzer output: %w", err)
	}
	if output.Status != "success" {
		if output.Message != "" {
			return nil, fmt.Errorf("feature analysis failed: %s", output.Message)
		}
		return nil, fmt.Errorf("feature analysis failed with status %q", output.Status)
	}
	return &model.AudioFeatures{Data: output.Data}, nil
}
