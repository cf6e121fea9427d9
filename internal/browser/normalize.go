// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package browser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// payload is a decoded tool response with the envelopes removed.
type payload map[string]any

// unwrap strips the tool gateway envelope. Responses arrive as the bare
// object, as {"data":{...}}, or as {"data":{"data":{...}}} with optional
// "successful" and "error" siblings at the outer levels.
func unwrap(body []byte) (payload, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return payload{}, nil
	}

	var root map[string]any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}

	cur := root
	for range 2 {
		if err := envelopeError(cur); err != nil {
			return nil, err
		}
		inner, ok := cur["data"].(map[string]any)
		if !ok || !isEnvelope(cur) {
			break
		}
		cur = inner
	}
	return payload(cur), nil
}

var envelopeKeys = map[string]bool{
	"data": true, "successful": true, "error": true, "logId": true, "log_id": true, "message": true,
}

// isEnvelope reports whether m only carries envelope keys, so that a
// payload with its own nested "data" field is not unwrapped too far.
func isEnvelope(m map[string]any) bool {
	for k := range m {
		if !envelopeKeys[k] {
			return false
		}
	}
	return true
}

func envelopeError(m map[string]any) error {
	if ok, present := m["successful"].(bool); present && !ok {
		msg := stringOf(m["error"])
		if msg == "" {
			msg = "unsuccessful"
		}
		return fmt.Errorf("%w: %s", ErrToolFailed, msg)
	}
	if msg := stringOf(m["error"]); msg != "" {
		if _, hasData := m["data"]; !hasData {
			return fmt.Errorf("%w: %s", ErrToolFailed, msg)
		}
	}
	return nil
}

// str returns the first non-empty string among keys.
func (p payload) str(keys ...string) string {
	for _, k := range keys {
		if s := stringOf(p[k]); s != "" {
			return s
		}
	}
	return ""
}

func (p payload) boolean(keys ...string) bool {
	for _, k := range keys {
		switch v := p[k].(type) {
		case bool:
			return v
		case string:
			if strings.EqualFold(v, "true") {
				return true
			}
		}
	}
	return false
}

func stringOf(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// decodeHandle reads a start response.
func decodeHandle(p payload) (TaskHandle, error) {
	h := TaskHandle{
		TaskID:    p.str("jobId", "job_id", "taskId", "task_id", "watch_task_id", "id"),
		SessionID: p.str("sessionId", "session_id", "browser_session_id"),
		LiveURL:   p.str("liveUrl", "live_url"),
	}
	if h.TaskID == "" {
		return TaskHandle{}, ErrMissingTaskID
	}
	return h, nil
}

// decodeStatus reads a poll response. Hyperbrowser nests results one level
// deeper under "data" again after unwrapping; both shapes are accepted.
func decodeStatus(p payload) TaskStatus {
	raw := p.str("status", "state")
	ts := TaskStatus{
		RawStatus:  raw,
		Status:     NormalizeStatus(raw),
		CurrentURL: p.str("current_url", "currentUrl", "url", "final_url"),
		Output:     p.str("output", "finalResult", "final_result", "result"),
		IsSuccess:  p.boolean("is_success", "isSuccess", "success"),
	}
	if nested, ok := p["data"].(map[string]any); ok {
		inner := payload(nested)
		if ts.CurrentURL == "" {
			ts.CurrentURL = inner.str("current_url", "currentUrl", "url", "final_url")
		}
		if ts.Output == "" {
			ts.Output = inner.str("output", "finalResult", "final_result", "result")
		}
		if !ts.IsSuccess {
			ts.IsSuccess = inner.boolean("is_success", "isSuccess", "success")
		}
	}
	return ts
}

func decodeLiveURL(p payload) string {
	return p.str("liveUrl", "live_url", "liveURL")
}
