package ai

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// ErrUnparsableResponse marks model output that could not be coerced into a
// JSON object.
var ErrUnparsableResponse = errors.New("unparsable model response")

// UnparsableResponseError keeps the raw model output for diagnostics.
type UnparsableResponseError struct {
	Raw string
	Err error
}

func (e *UnparsableResponseError) Error() string {
	return fmt.Sprintf("failed to parse AI response: %v", e.Err)
}

func (e *UnparsableResponseError) Unwrap() []error {
	return []error{ErrUnparsableResponse, e.Err}
}

var fenceOpenRE = regexp.MustCompile("^```[A-Za-z0-9_+-]*")

// StripCodeFence removes a leading ``` marker with its optional language tag
// and a trailing ``` marker.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = fenceOpenRE.ReplaceAllString(s, "")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ParseAnalysis decodes model output into a JSON object. The strategies are,
// in order: fence strip, direct decode, and decoding the span from the first
// '{' to the last '}'. Nothing else is attempted.
func ParseAnalysis(raw string) (map[string]any, error) {
	cleaned := StripCodeFence(raw)

	obj, err := decodeObject(cleaned)
	if err == nil {
		return obj, nil
	}

	if candidate, ok := salvageObject(cleaned); ok {
		salvaged, salvageErr := decodeObject(candidate)
		if salvageErr == nil {
			return salvaged, nil
		}
		err = fmt.Errorf("%w (salvaged object also failed: %v)", err, salvageErr)
	}

	return nil, &UnparsableResponseError{Raw: raw, Err: err}
}

func salvageObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// decodeObject decodes exactly one JSON object. Numbers are kept as
// json.Number so large integers survive the round trip.
func decodeObject(s string) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errors.New("response is not a JSON object")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after JSON object")
	}
	return obj, nil
}
