// Package stream converts repository listings and analysis results into typed
// events delivered over a channel.
package stream

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/temirov/codereview/internal/repository"
	"github.com/temirov/codereview/internal/types"
	"github.com/temirov/codereview/internal/utils"
)

var errNilChannel = errors.New("stream: event channel is nil")

const failedResultFormat = "%s: analysis failed: %s"

// TreeOptions describes the listing rendered by StreamTree.
type TreeOptions struct {
	Root  string
	Paths []string
}

// AnalysisOptions describes the batch rendered by StreamAnalysis. Paths must
// list the files in the order the results sequence yields them.
type AnalysisOptions struct {
	Root    string
	Paths   []string
	Model   string
	Results iter.Seq[types.AnalysisResult]
}

type emitter struct {
	ctx     context.Context
	out     chan<- Event
	command string
}

func newEmitter(ctx context.Context, out chan<- Event, command string) *emitter {
	if ctx == nil {
		ctx = context.Background()
	}
	return &emitter{ctx: ctx, out: out, command: command}
}

func (e *emitter) send(event Event) error {
	if e.out == nil {
		return errNilChannel
	}
	event.Version = SchemaVersion
	if event.Command == "" {
		event.Command = e.command
	}
	if event.EmittedAt.IsZero() {
		event.EmittedAt = time.Now().UTC()
	}
	select {
	case <-e.ctx.Done():
		return e.ctx.Err()
	case e.out <- event:
		return nil
	}
}

func (e *emitter) warn(path, message string) error {
	trimmed := strings.TrimRight(message, "\n")
	if trimmed == "" {
		return nil
	}
	return e.send(Event{
		Kind:    EventKindWarning,
		Path:    path,
		Message: &LogEvent{Level: "warning", Message: trimmed},
	})
}

func (e *emitter) fail(result types.AnalysisResult) error {
	cause := strings.TrimPrefix(result.Recommendation, types.AnalysisErrorMessagePrefix)
	return e.send(Event{
		Kind: EventKindError,
		Path: result.CodeFile,
		Err:  &ErrorEvent{Message: fmt.Sprintf(failedResultFormat, result.CodeFile, cause)},
	})
}

type summaryTracker struct {
	files    int
	bytes    int64
	outcomes map[string]int
	model    string
}

func (tracker *summaryTracker) add(result types.AnalysisResult) {
	tracker.files++
	tracker.bytes += int64(len(result.CodeSnippet))
	if result.Outcome == "" {
		return
	}
	if tracker.outcomes == nil {
		tracker.outcomes = make(map[string]int)
	}
	tracker.outcomes[string(result.Outcome)]++
}

func (tracker *summaryTracker) summary() *types.AnalysisSummary {
	return &types.AnalysisSummary{
		TotalFiles: tracker.files,
		TotalBytes: utils.FormatFileSize(tracker.bytes),
		Outcomes:   tracker.outcomes,
		Model:      tracker.model,
	}
}

// StreamTree emits the selection tree built from the listing.
func StreamTree(ctx context.Context, opts TreeOptions, out chan<- Event) error {
	emitter := newEmitter(ctx, out, types.CommandTree)
	if err := emitter.send(Event{Kind: EventKindStart, Path: opts.Root}); err != nil {
		return err
	}
	if len(opts.Paths) == 0 {
		if err := emitter.warn(opts.Root, "no files found"); err != nil {
			return err
		}
	}
	relativePaths := repository.RelativePaths(opts.Root, opts.Paths)
	tree := repository.BuildFileTree(relativePaths, repository.PathSeparator)
	if err := emitter.send(Event{Kind: EventKindTree, Path: opts.Root, Tree: tree}); err != nil {
		return err
	}
	summary := &types.AnalysisSummary{TotalFiles: len(opts.Paths), TotalBytes: utils.FormatFileSize(0)}
	if err := emitter.send(Event{Kind: EventKindSummary, Path: opts.Root, Summary: summary}); err != nil {
		return err
	}
	return emitter.send(Event{Kind: EventKindDone, Path: opts.Root})
}

// StreamAnalysis announces each file, pulls its result from opts.Results and
// emits both, followed by an error event when the analysis failed. A summary
// closes the batch. The next file is not analyzed until the
// current result has been delivered.
func StreamAnalysis(ctx context.Context, opts AnalysisOptions, out chan<- Event) error {
	if opts.Results == nil {
		return fmt.Errorf("stream: analysis results are nil")
	}
	emitter := newEmitter(ctx, out, types.CommandAnalyze)
	if err := emitter.send(Event{Kind: EventKindStart, Path: opts.Root}); err != nil {
		return err
	}
	if len(opts.Paths) == 0 {
		if err := emitter.warn(opts.Root, "no files found"); err != nil {
			return err
		}
	}

	next, stop := iter.Pull(opts.Results)
	defer stop()

	tracker := &summaryTracker{model: opts.Model}
	for index, path := range opts.Paths {
		if err := emitter.send(Event{
			Kind: EventKindFile,
			Path: path,
			File: &FileEvent{Path: path, Index: index + 1, Total: len(opts.Paths)},
		}); err != nil {
			return err
		}
		result, ok := next()
		if !ok {
			if ctxErr := emitter.ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("stream: results ended before %s", path)
		}
		tracker.add(result)
		resultCopy := result
		if err := emitter.send(Event{Kind: EventKindResult, Path: result.CodeFile, Result: &resultCopy}); err != nil {
			return err
		}
		if result.Failed() {
			if err := emitter.fail(result); err != nil {
				return err
			}
		}
	}

	if err := emitter.send(Event{Kind: EventKindSummary, Path: opts.Root, Summary: tracker.summary()}); err != nil {
		return err
	}
	return emitter.send(Event{Kind: EventKindDone, Path: opts.Root})
}
