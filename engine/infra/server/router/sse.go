package router

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// DoneSentinel terminates a data-only stream.
const DoneSentinel = "[DONE]"

// SSEStream writes Server-Sent Events and flushes after every frame.
type SSEStream struct {
	w       gin.ResponseWriter
	flusher http.Flusher
}

// StartSSE sets the event-stream headers. It returns nil when the writer
// cannot flush.
func StartSSE(w gin.ResponseWriter) *SSEStream {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &SSEStream{w: w, flusher: flusher}
}

// WriteEvent writes a named event with a JSON payload.
func (s *SSEStream) WriteEvent(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event, err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// WriteData writes an unnamed event. Strings are sent verbatim, anything else as JSON.
func (s *SSEStream) WriteData(payload any) error {
	var data []byte
	switch v := payload.(type) {
	case string:
		data = []byte(v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal data event: %w", err)
		}
		data = encoded
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
