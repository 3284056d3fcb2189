package transport

import (
	"bytes"
	"encoding/json"
	"mime"
	"strings"
)

// Response is a decoded 2xx response. JSON bodies land in Data, with a
// {data, message, error} envelope already unwrapped; anything else in Text.
type Response struct {
	Status      int
	ContentType string
	Data        json.RawMessage
	Text        string
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

func decodeBody(path string, status int, contentType string, raw []byte) (*Response, error) {
	resp := &Response{Status: status, ContentType: contentType}
	if !isJSON(contentType) {
		resp.Text = string(raw)
		return resp, nil
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return resp, nil
	}
	if !json.Valid(raw) {
		return nil, &DecodeError{Path: path, Err: errInvalidJSON}
	}
	resp.Data = unwrap(raw)
	return resp, nil
}

// unwrap returns the data member of an envelope object, or raw itself when
// raw is not an envelope.
func unwrap(raw []byte) json.RawMessage {
	if raw[0] != '{' {
		return raw
	}
	var env map[string]json.RawMessage
	if err := json.Unmarshal(raw, &env); err != nil {
		return raw
	}
	data, ok := env["data"]
	if !ok {
		return raw
	}
	for k := range env {
		switch k {
		case "data", "message", "error":
		default:
			return raw
		}
	}
	return data
}
