package output

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

const (
	markdownWordWrap = 100
	plainStyleName   = "notty"
)

// MarkdownFormatter turns markdown into terminal output.
type MarkdownFormatter interface {
	Render(markdown string) (string, error)
}

// PlainMarkdown returns markdown unchanged.
type PlainMarkdown struct{}

// Render returns markdown unchanged.
func (PlainMarkdown) Render(markdown string) (string, error) {
	return markdown, nil
}

// NewMarkdownFormatter returns a glamour renderer styled for the terminal when
// styled is set and the unstyled notty theme otherwise. Renderer construction
// failures fall back to PlainMarkdown.
func NewMarkdownFormatter(styled bool) MarkdownFormatter {
	styleOption := glamour.WithStandardStyle(plainStyleName)
	if styled {
		styleOption = glamour.WithAutoStyle()
	}
	renderer, err := glamour.NewTermRenderer(styleOption, glamour.WithWordWrap(markdownWordWrap))
	if err != nil {
		return PlainMarkdown{}
	}
	return renderer
}

func renderMarkdown(formatter MarkdownFormatter, markdown string) string {
	if formatter == nil {
		return markdown
	}
	rendered, err := formatter.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.TrimSpace(rendered)
}
