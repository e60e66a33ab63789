package scenario

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is a scenario file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatOf picks the encoding from a file extension. Anything that is not
// .json is read as YAML.
func FormatOf(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// LoadFile reads every scenario in the file at path.
func LoadFile(path string) ([]Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}
	out, err := Decode(bytes.NewReader(data), FormatOf(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}

// Decode reads a stream of scenarios: YAML documents separated by "---", or
// concatenated JSON objects.
func Decode(r io.Reader, format Format) ([]Scenario, error) {
	var next func(*Scenario) error
	switch format {
	case FormatYAML, "yml", "":
		dec := yaml.NewDecoder(r)
		next = func(sc *Scenario) error { return dec.Decode(sc) }
	case FormatJSON:
		dec := json.NewDecoder(r)
		next = func(sc *Scenario) error { return dec.Decode(sc) }
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	var out []Scenario
	for {
		var sc Scenario
		err := next(&sc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w %d: %w", ErrDecode, len(out)+1, err)
		}
		if sc.Name == "" {
			sc.Name = fmt.Sprintf("scenario-%d", len(out)+1)
		}
		out = append(out, sc)
	}
	if len(out) == 0 {
		return nil, ErrNoScenarios
	}
	return out, nil
}
