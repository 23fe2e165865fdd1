// Package output renders stream events as terminal markdown, JSON lines or plain trees.
package output

import (
	"github.com/temirov/codereview/internal/services/stream"
)

type StreamRenderer interface {
	Handle(event stream.Event) error
	Flush() error
}
