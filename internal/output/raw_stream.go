package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/temirov/codereview/internal/report"
	"github.com/temirov/codereview/internal/repository"
	"github.com/temirov/codereview/internal/services/stream"
	"github.com/temirov/codereview/internal/types"
)

const (
	progressLineFormat = "Analyzing [%d/%d] %s\n"
	sectionFormat      = "## %s\n\n%s"
	codeBlockFormat    = "\n\n%s%s\n%s\n%s"
	minimumFenceLength = 3
)

type rawStreamRenderer struct {
	stdout   io.Writer
	stderr   io.Writer
	command  string
	markdown MarkdownFormatter
	showCode bool
	root     string
	trees    [][]*types.FileTreeNode
	summary  *types.AnalysisSummary
}

// NewRawStreamRenderer prints recommendations as they arrive, rendering each
// through markdown, and prints trees and the summary on Flush. With showCode
// every recommendation is followed by the reviewed code in a fenced block.
func NewRawStreamRenderer(stdout, stderr io.Writer, command string, markdown MarkdownFormatter, showCode bool) StreamRenderer {
	return &rawStreamRenderer{
		stdout:   stdout,
		stderr:   stderr,
		command:  command,
		markdown: markdown,
		showCode: showCode,
	}
}

func (renderer *rawStreamRenderer) Handle(event stream.Event) error {
	switch event.Kind {
	case stream.EventKindStart:
		renderer.root = event.Path
	case stream.EventKindWarning:
		if event.Message != nil && renderer.stderr != nil {
			fmt.Fprintln(renderer.stderr, event.Message.Message)
		}
	case stream.EventKindError:
		if event.Err != nil && renderer.stderr != nil {
			fmt.Fprintln(renderer.stderr, event.Err.Message)
		}
	case stream.EventKindFile:
		if event.File != nil && renderer.stderr != nil {
			fmt.Fprintf(renderer.stderr, progressLineFormat, event.File.Index, event.File.Total, event.File.Path)
		}
	case stream.EventKindResult:
		return renderer.handleResult(event.Result)
	case stream.EventKindTree:
		renderer.trees = append(renderer.trees, event.Tree)
	case stream.EventKindSummary:
		renderer.summary = event.Summary
	}
	return nil
}

func (renderer *rawStreamRenderer) handleResult(result *types.AnalysisResult) error {
	if result == nil || renderer.stdout == nil {
		return nil
	}
	section := fmt.Sprintf(sectionFormat, report.EscapeMarkdown(result.CodeFile), result.Recommendation)
	if renderer.showCode && result.CodeSnippet != "" {
		section += codeBlock(result.CodeFile, result.CodeSnippet)
	}
	_, err := fmt.Fprintln(renderer.stdout, renderMarkdown(renderer.markdown, section)+"\n")
	return err
}

func (renderer *rawStreamRenderer) Flush() error {
	if renderer.stdout == nil {
		return nil
	}
	for _, tree := range renderer.trees {
		WriteTreeRaw(renderer.stdout, renderer.root, tree)
	}
	if renderer.summary != nil {
		if renderer.command == types.CommandTree && len(renderer.trees) > 0 {
			fmt.Fprintln(renderer.stdout)
		}
		fmt.Fprintln(renderer.stdout, FormatSummaryLine(renderer.summary))
	}
	return nil
}

// codeBlock fences snippet with a backtick run longer than any run inside it.
func codeBlock(path string, snippet string) string {
	longestRun, currentRun := 0, 0
	for _, character := range snippet {
		if character != '`' {
			currentRun = 0
			continue
		}
		currentRun++
		longestRun = max(longestRun, currentRun)
	}
	fence := strings.Repeat("`", max(minimumFenceLength, longestRun+1))
	return fmt.Sprintf(codeBlockFormat, fence, repository.LanguageForPath(path), strings.TrimRight(snippet, "\n"), fence)
}
