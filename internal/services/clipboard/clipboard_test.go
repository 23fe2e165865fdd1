package clipboard

import (
	"errors"
	"testing"
)

func TestServiceCopy(t *testing.T) {
	var copied string
	service := &Service{
		write:       func(text string) error { copied = text; return nil },
		unsupported: func() bool { return false },
	}
	if err := service.Copy("# Recommendations\n"); err != nil {
		t.Fatalf("Copy error: %v", err)
	}
	if copied != "# Recommendations\n" {
		t.Fatalf("unexpected copied text %q", copied)
	}
}

func TestServiceCopyUnsupported(t *testing.T) {
	service := &Service{
		write:       func(string) error { t.Fatalf("write must not be called"); return nil },
		unsupported: func() bool { return true },
	}
	if err := service.Copy("text"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestServiceCopyWrapsWriteErrors(t *testing.T) {
	writeError := errors.New("xclip exited 1")
	service := &Service{
		write:       func(string) error { return writeError },
		unsupported: func() bool { return false },
	}
	if err := service.Copy("text"); !errors.Is(err, writeError) {
		t.Fatalf("expected wrapped write error, got %v", err)
	}
}
