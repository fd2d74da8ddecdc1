package schemas

import (
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ToolResult is the outcome of one tool invocation: either Ok(data) or
// Err(message). The zero value is an Err with an empty message and should not
// be constructed directly; use OkResult or ErrResult.
type ToolResult struct {
	CallID string `json:"call_id"`
	Name   string `json:"name"`

	ok   bool
	data jsoniter.RawMessage
	err  string
	code string
}

// OkResult wraps a successful payload. Data that cannot be marshaled becomes an
// Err result so the boundary never panics.
func OkResult(data any) ToolResult {
	raw, err := json.Marshal(data)
	if err != nil {
		return ErrResult("", "failed to encode tool result: "+err.Error())
	}
	return ToolResult{ok: true, data: raw}
}

// ErrResult wraps a failure. code is an optional machine readable classification.
func ErrResult(code, message string) ToolResult {
	return ToolResult{err: message, code: code}
}

// WithCall stamps the result with the call it answers.
func (r ToolResult) WithCall(call ToolCall) ToolResult {
	r.CallID = call.ID
	r.Name = call.Name
	return r
}

// IsOk reports whether the result is the Ok variant.
func (r ToolResult) IsOk() bool { return r.ok }

// Data returns the raw JSON payload of an Ok result, nil otherwise.
func (r ToolResult) Data() []byte {
	if !r.ok {
		return nil
	}
	return r.data
}

// Error returns the message of an Err result, empty otherwise.
func (r ToolResult) Error() string {
	if r.ok {
		return ""
	}
	return r.err
}

// Code returns the error classification of an Err result.
func (r ToolResult) Code() string { return r.code }

// Decode unmarshals the Ok payload into v.
func (r ToolResult) Decode(v any) error {
	if !r.ok {
		return &ToolError{Code: r.code, Message: r.err}
	}
	return json.Unmarshal(r.data, v)
}

// Content renders the result as the text placed in the transcript.
func (r ToolResult) Content() string {
	if r.ok {
		return string(r.data)
	}
	payload := map[string]string{"error": r.err}
	if r.code != "" {
		payload["code"] = r.code
	}
	out, _ := json.Marshal(payload)
	return string(out)
}

// ToolError is returned by Decode on an Err result.
type ToolError struct {
	Code    string
	Message string
}

func (e *ToolError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}
