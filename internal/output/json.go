package output

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/vulnverified/pry/internal/engine"
)

// WriteJSON writes the run result as indented JSON to w.
func WriteJSON(w io.Writer, result *engine.RunResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// JSONLSink streams attempt records to w as one JSON object per line.
type JSONLSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONLSink creates a streaming record sink over w.
func NewJSONLSink(w io.Writer) *JSONLSink {
	return &JSONLSink{enc: json.NewEncoder(w)}
}

// Record writes one attempt record. Encoding errors are dropped; a broken
// stream must not abort the run feeding it.
func (s *JSONLSink) Record(rec engine.AttemptRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enc.Encode(rec)
}
