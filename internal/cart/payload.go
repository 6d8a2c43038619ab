package cart

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

const maxBodyBytes = 1 << 20

// Tool-call envelope as sent by voice/LLM agent platforms:
//
//	{"message":{"call":{"id":"..."},"toolCalls":[{"id":"...","function":{"arguments":{...}}}]}}
//
// arguments may also arrive as a JSON-encoded string.
type envelope struct {
	Message *struct {
		Call *struct {
			ID string `json:"id"`
		} `json:"call"`
		ToolCalls []toolCall `json:"toolCalls"`
	} `json:"message"`
}

type toolCall struct {
	ID       string `json:"id"`
	Function struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

// request is a mutation payload with any envelope stripped off.
type request struct {
	SessionID  string
	ToolCallID string
	Args       mutationArgs
}

// mutationArgs accepts either a single flat item or an items list.
type mutationArgs struct {
	LineInput
	Items []LineInput `json:"items"`
}

func (a mutationArgs) lines() []LineInput {
	if a.Items != nil {
		return a.Items
	}
	if a.ID != "" || a.Quantity != nil || a.Name != "" {
		return []LineInput{a.LineInput}
	}
	return nil
}

func decodeRequest(w http.ResponseWriter, r *http.Request) (request, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer func() { _ = r.Body.Close() }()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return request{}, invalid("body", "unreadable or too large")
	}
	return parseRequest(body)
}

func parseRequest(body []byte) (request, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return request{}, nil
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return request{}, asValidation("body", err)
	}

	var req request
	args := json.RawMessage(body)

	if m := env.Message; m != nil && len(m.ToolCalls) > 0 {
		tc := m.ToolCalls[0]
		req.ToolCallID = tc.ID
		if m.Call != nil {
			req.SessionID = m.Call.ID
		}
		if req.SessionID == "" {
			req.SessionID = tc.ID
		}

		unwrapped, err := unwrapArguments(tc.Function.Arguments)
		if err != nil {
			return request{}, err
		}
		args = unwrapped
	}

	if len(args) == 0 {
		return req, nil
	}
	if err := json.Unmarshal(args, &req.Args); err != nil {
		return request{}, asValidation("arguments", err)
	}
	return req, nil
}

func unwrapArguments(raw json.RawMessage) (json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] != '"' {
		return raw, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, asValidation("arguments", err)
	}
	return json.RawMessage(bytes.TrimSpace([]byte(s))), nil
}

func asValidation(field string, err error) error {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve
	}
	return invalid(field, "malformed json")
}
