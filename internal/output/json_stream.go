package output

import (
	"encoding/json"
	"io"

	"github.com/temirov/codereview/internal/services/stream"
)

type jsonStreamRenderer struct {
	encoder *json.Encoder
}

// NewJSONStreamRenderer writes every event as one JSON object per line.
func NewJSONStreamRenderer(stdout io.Writer) StreamRenderer {
	encoder := json.NewEncoder(stdout)
	encoder.SetEscapeHTML(false)
	return &jsonStreamRenderer{encoder: encoder}
}

func (renderer *jsonStreamRenderer) Handle(event stream.Event) error {
	return renderer.encoder.Encode(event)
}

func (renderer *jsonStreamRenderer) Flush() error {
	return nil
}
