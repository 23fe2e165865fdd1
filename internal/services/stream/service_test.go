package stream_test

import (
	"context"
	"iter"
	"path/filepath"
	"slices"
	"testing"

	"github.com/temirov/codereview/internal/services/stream"
	"github.com/temirov/codereview/internal/types"
)

func TestStreamTreeEmitsTreeWithSummary(t *testing.T) {
	root := t.TempDir()
	paths := []string{filepath.Join(root, "pkg", "b.go"), filepath.Join(root, "a.go")}

	events := collectEvents(t, func(ch chan<- stream.Event) error {
		return stream.StreamTree(context.Background(), stream.TreeOptions{Root: root, Paths: paths}, ch)
	})

	kinds := eventKinds(events)
	expected := []stream.EventKind{stream.EventKindStart, stream.EventKindTree, stream.EventKindSummary, stream.EventKindDone}
	if !slices.Equal(kinds, expected) {
		t.Fatalf("expected %v, got %v", expected, kinds)
	}
	tree := events[1].Tree
	if len(tree) != 2 || tree[0].Label != "a.go" || tree[1].Label != "pkg" || tree[1].Children[0].Value != "pkg/b.go" {
		t.Fatalf("unexpected tree %+v", tree)
	}
	if events[2].Summary.TotalFiles != 2 {
		t.Fatalf("expected two files in summary, got %d", events[2].Summary.TotalFiles)
	}
	for _, event := range events {
		if event.Version != stream.SchemaVersion || event.Command != types.CommandTree {
			t.Fatalf("unexpected envelope %+v", event)
		}
	}
}

func TestStreamTreeWarnsWhenEmpty(t *testing.T) {
	events := collectEvents(t, func(ch chan<- stream.Event) error {
		return stream.StreamTree(context.Background(), stream.TreeOptions{}, ch)
	})
	if events[1].Kind != stream.EventKindWarning || events[1].Message.Message != "no files found" {
		t.Fatalf("expected warning event, got %+v", events[1])
	}
}

func TestStreamAnalysisInterleavesFilesAndResults(t *testing.T) {
	paths := []string{"a.py", "b.py"}
	results := []types.AnalysisResult{
		{CodeFile: "a.py", CodeSnippet: "x = 1", Recommendation: "fine", Outcome: types.OutcomeCompleted},
		{CodeFile: "b.py", Recommendation: types.NoCodeFoundMessage, Outcome: types.OutcomeEmpty},
	}

	events := collectEvents(t, func(ch chan<- stream.Event) error {
		return stream.StreamAnalysis(context.Background(), stream.AnalysisOptions{
			Root:    "/work/repo",
			Paths:   paths,
			Model:   "gpt-4",
			Results: slices.Values(results),
		}, ch)
	})

	expected := []stream.EventKind{
		stream.EventKindStart,
		stream.EventKindFile, stream.EventKindResult,
		stream.EventKindFile, stream.EventKindResult,
		stream.EventKindSummary, stream.EventKindDone,
	}
	if kinds := eventKinds(events); !slices.Equal(kinds, expected) {
		t.Fatalf("expected %v, got %v", expected, kinds)
	}
	if events[1].File.Index != 1 || events[1].File.Total != 2 {
		t.Fatalf("unexpected file event %+v", events[1].File)
	}
	if events[4].Result.Recommendation != types.NoCodeFoundMessage {
		t.Fatalf("unexpected second result %+v", events[4].Result)
	}
	summary := events[5].Summary
	if summary.TotalFiles != 2 || summary.Model != "gpt-4" || summary.TotalBytes != "5b" {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.Outcomes[string(types.OutcomeCompleted)] != 1 || summary.Outcomes[string(types.OutcomeEmpty)] != 1 {
		t.Fatalf("unexpected outcome counts %v", summary.Outcomes)
	}
}

func TestStreamAnalysisReportsFailedResults(t *testing.T) {
	results := []types.AnalysisResult{
		{CodeFile: "gone.py", Recommendation: types.AnalysisErrorMessagePrefix + "open gone.py: no such file", Outcome: types.OutcomeReadFailure},
		{CodeFile: "ok.py", CodeSnippet: "x", Recommendation: "fine", Outcome: types.OutcomeCompleted},
	}
	events := collectEvents(t, func(ch chan<- stream.Event) error {
		return stream.StreamAnalysis(context.Background(), stream.AnalysisOptions{
			Paths:   []string{"gone.py", "ok.py"},
			Results: slices.Values(results),
		}, ch)
	})

	expected := []stream.EventKind{
		stream.EventKindStart,
		stream.EventKindFile, stream.EventKindResult, stream.EventKindError,
		stream.EventKindFile, stream.EventKindResult,
		stream.EventKindSummary, stream.EventKindDone,
	}
	if kinds := eventKinds(events); !slices.Equal(kinds, expected) {
		t.Fatalf("expected %v, got %v", expected, kinds)
	}
	failure := events[3]
	if failure.Path != "gone.py" || failure.Err == nil || failure.Err.Message != "gone.py: analysis failed: open gone.py: no such file" {
		t.Fatalf("unexpected error event %+v", failure)
	}
	if events[6].Summary.Outcomes[string(types.OutcomeReadFailure)] != 1 {
		t.Fatalf("expected read failure counted, got %v", events[6].Summary.Outcomes)
	}
}

func TestStreamAnalysisPullsLazily(t *testing.T) {
	produced := 0
	var sequence iter.Seq[types.AnalysisResult] = func(yield func(types.AnalysisResult) bool) {
		for _, name := range []string{"a", "b"} {
			produced++
			if !yield(types.AnalysisResult{CodeFile: name, Recommendation: "ok"}) {
				return
			}
		}
	}
	events := make(chan stream.Event)
	errCh := make(chan error, 1)
	go func() {
		errCh <- stream.StreamAnalysis(context.Background(), stream.AnalysisOptions{Paths: []string{"a", "b"}, Results: sequence}, events)
		close(events)
	}()

	<-events
	if produced != 0 {
		t.Fatalf("expected no result before the first file event was delivered, produced %d", produced)
	}
	for range events {
	}
	if err := <-errCh; err != nil {
		t.Fatalf("StreamAnalysis error: %v", err)
	}
	if produced != 2 {
		t.Fatalf("expected two produced results, got %d", produced)
	}
}

func TestStreamAnalysisStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := stream.StreamAnalysis(ctx, stream.AnalysisOptions{Paths: []string{"a"}, Results: slices.Values([]types.AnalysisResult{{CodeFile: "a"}})}, make(chan stream.Event))
	if err == nil {
		t.Fatalf("expected cancellation error")
	}
}

func eventKinds(events []stream.Event) []stream.EventKind {
	kinds := make([]stream.EventKind, 0, len(events))
	for _, event := range events {
		kinds = append(kinds, event.Kind)
	}
	return kinds
}

func collectEvents(t *testing.T, producer func(chan<- stream.Event) error) []stream.Event {
	t.Helper()
	events := make(chan stream.Event, 32)
	errCh := make(chan error, 1)
	go func() {
		errCh <- producer(events)
		close(events)
	}()

	var out []stream.Event
	for event := range events {
		out = append(out, event)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("producer returned error: %v", err)
	}
	return out
}
