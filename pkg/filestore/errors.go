package filestore

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// RequestError is returned for every failed call, whether the store
// answered with a non-2xx status or the request never completed. Status is 0
// in the latter case and Err holds the transport error.
type RequestError struct {
	Op     string
	Status int
	Text   string
	Err    error
}

func (e *RequestError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s failed (%d): %s", e.Op, e.Status, e.Text)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

const maxErrorBody = 4 << 10

// statusError reads what the store said about a non-2xx response. A JSON
// {"message": ...} body wins over the raw body, which wins over the status text.
func statusError(op string, resp *http.Response) *RequestError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	text := strings.TrimSpace(string(body))

	var msg struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if json.Unmarshal(body, &msg) == nil {
		switch {
		case msg.Message != "":
			text = msg.Message
		case msg.Detail != "":
			text = msg.Detail
		}
	}
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return &RequestError{Op: op, Status: resp.StatusCode, Text: text}
}
