package scanner

import (
	"strings"
	"testing"
)

func TestNewFeatureAnalyzerDisabled(t *testing.T) {
	if a := NewFeatureAnalyzer("python3", ""); a != nil {
		t.Fatal("expected nil analyzer when no script is configured")
	}
}

func TestParseAnalyzerOutputSuccess(t *testing.T) {
	raw := []byte(`{"status":"success","data":{"tempo":120.5,"key":"C"},"message":""}`)

	features, err := parseAnalyzerOutput(raw)
	if err != nil {
		t.Fatalf("parseAnalyzerOutput failed: %v", err)
	}
	if features.Data["tempo"] != 120.5 {
		t.Errorf("tempo = %v, want 120.5", features.Data["tempo"])
	}
	if features.Data["key"] != "C" {
		t.Errorf("key = %v, want C", features.Data["key"])
	}
}

func TestParseAnalyzerOutputErrorStatus(t *testing.T) {
	raw := []byte(`{"status":"error","data":null,"message":"unsupported codec"}`)

	_, err := parseAnalyzerOutput(raw)
	if err == nil {
		t.Fatal("expected error for non-success status")
	}
	if !strings.Contains(err.Error(), "unsupported codec") {
		t.Errorf("error %q should carry the analyzer message", err)
	}
}

func TestParseAnalyzerOutputErrorStatusNoMessage(t *testing.T) {
	raw := []byte(`{"status":"error","data":null}`)

	if _, err := parseAnalyzerOutput(raw); err == nil {
		t.Fatal("expected error for non-success status without message")
	}
}

func TestParseAnalyzerOutputMalformed(t *testing.T) {
	if _, err := parseAnalyzerOutput([]byte("Traceback (most recent call last):")); err == nil {
		t.Fatal("expected error for non-JSON output")
	}
}
