// internal/llmutil/parser.go
package llmutil

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNoJSON is returned when a response contains no JSON object or array.
var ErrNoJSON = errors.New("no JSON structure found in model response")

var (
	// \x60 is a backtick; raw strings cannot contain one.

	// fencedBlockRegex extracts the body of the first fenced code block.
	fencedBlockRegex = regexp.MustCompile("(?s)\x60\x60\x60[a-zA-Z]*\\s*(.*?)\\s*\x60\x60\x60")
)

// ExtractJSON isolates the JSON document inside a model response. It handles
// fenced code blocks and JSON embedded in conversational text. The returned
// string is not guaranteed to be valid JSON.
func ExtractJSON(response string) (string, error) {
	response = strings.TrimSpace(response)
	if m := fencedBlockRegex.FindStringSubmatch(response); len(m) > 1 {
		body := strings.TrimSpace(m[1])
		if strings.HasPrefix(body, "{") || strings.HasPrefix(body, "[") {
			return body, nil
		}
	}

	if strings.HasPrefix(response, "{") || strings.HasPrefix(response, "[") {
		return response, nil
	}

	objStart, objEnd := strings.Index(response, "{"), strings.LastIndex(response, "}")
	arrStart, arrEnd := strings.Index(response, "["), strings.LastIndex(response, "]")
	hasObj := objStart != -1 && objEnd > objStart
	hasArr := arrStart != -1 && arrEnd > arrStart

	switch {
	case hasObj && (!hasArr || objStart < arrStart):
		return response[objStart : objEnd+1], nil
	case hasArr:
		return response[arrStart : arrEnd+1], nil
	}
	return "", ErrNoJSON
}

// ParseJSONResponse parses a model response into T, tolerating markdown fences
// and surrounding prose.
func ParseJSONResponse[T any](response string) (*T, error) {
	raw, err := ExtractJSON(response)
	if err != nil {
		return nil, fmt.Errorf("failed to parse model response: %w (response: %s)", err, truncateString(response, 200))
	}

	var result T
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal model JSON response: %w. Extracted JSON (truncated): %s", err, truncateString(raw, 500))
	}
	return &result, nil
}

// truncateString shortens s for log and error output.
func truncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
