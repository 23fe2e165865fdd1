// Package clipboard copies finished reports to the system clipboard.
package clipboard

import (
	"errors"
	"fmt"

	"github.com/atotto/clipboard"
)

// ErrUnavailable reports a system without a supported clipboard utility.
var ErrUnavailable = errors.New("clipboard unavailable")

// Copier copies textual data to the system clipboard.
type Copier interface {
	Copy(text string) error
}

// Service implements Copier using github.com/atotto/clipboard.
type Service struct {
	write       func(string) error
	unsupported func() bool
}

// NewService constructs a clipboard service backed by the system clipboard.
func NewService() *Service {
	return &Service{
		write:       clipboard.WriteAll,
		unsupported: func() bool { return clipboard.Unsupported },
	}
}

// Copy writes text to the system clipboard.
func (service *Service) Copy(text string) error {
	if service.unsupported() {
		return ErrUnavailable
	}
	if err := service.write(text); err != nil {
		return fmt.Errorf("copy report to clipboard: %w", err)
	}
	return nil
}

var _ Copier = (*Service)(nil)
