package scanner

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
)

// probeInfo mirrors the JSON printed by `ffprobe -show_format -show_streams`.
type probeInfo struct {
	Streams []probeStream `json:"streams"`
	Format  *probeFormat  `json:"format"`
}

type probeStream struct {
	CodecType     string      `json:"codec_type"`
	CodecName     string      `json:"codec_name"`
	SampleRate    string      `json:"sample_rate"`
	Channels      int         `json:"channels"`
	BitsPerSample intOrString `json:"bits_per_sample"`
	Duration      string      `json:"duration"`
}

type probeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
}

// intOrString tolerates ffprobe emitting a number either bare or quoted.
type intOrString struct {
	Value int
}

func (i *intOrString) UnmarshalJSON(data []byte) error {
	var intVal int
	if err := json.Unmarshal(data, &intVal); err == nil {
		i.Value = intVal
		return nil
	}

	var strVal string
	if err := json.Unmarshal(data, &strVal); err != nil {
		return err
	}
	if strVal == "" || strVal == "N/A" {
		i.Value = 0
		return nil
	}

	parsed, err := strconv.Atoi(strVal)
	if err != nil {
		i.Value = 0
		return nil
	}
	i.Value = parsed
	return nil
}

// runFFprobe executes ffprobe on one file and parses its JSON output.
func runFFprobe(ffprobePath, path string) (*probeInfo, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}

	cmd := exec.Command(ffprobePath, args...)
	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe execution failed for %s: %w\nFFprobe Error: %s", path, err, stderr.String())
	}

	var info probeInfo
	if err := json.Unmarshal(out.Bytes(), &info); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ffprobe output: %w", err)
	}

	return &info, nil
}

// audioStream returns the first audio stream, falling back to the first
// stream of any type.
func (p *probeInfo) audioStream() *probeStream {
	for i := range p.Streams {
		if p.Streams[i].CodecType == "audio" {
			return &p.Streams[i]
		}
	}
	if len(p.Streams) > 0 {
		return &p.Streams[0]
	}
	return nil
}
