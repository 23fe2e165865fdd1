package analysis_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/codereview/internal/analysis"
	"github.com/temirov/codereview/internal/tokenizer"
	"github.com/temirov/codereview/internal/types"
)

type wordCounter struct{}

func (wordCounter) Name() string { return "words" }

func (wordCounter) CountString(input string) (int, error) { return len(strings.Fields(input)), nil }

type stubCompleter struct {
	mutex    sync.Mutex
	requests []analysis.CompletionRequest
	respond  func(ctx context.Context, request analysis.CompletionRequest) (string, error)
}

func (completer *stubCompleter) Complete(ctx context.Context, request analysis.CompletionRequest) (string, error) {
	completer.mutex.Lock()
	completer.requests = append(completer.requests, request)
	completer.mutex.Unlock()
	if completer.respond == nil {
		return "  review of " + lastLine(request) + "  \n", nil
	}
	return completer.respond(ctx, request)
}

func (completer *stubCompleter) callCount() int {
	completer.mutex.Lock()
	defer completer.mutex.Unlock()
	return len(completer.requests)
}

func lastLine(request analysis.CompletionRequest) string {
	content := request.Messages[len(request.Messages)-1].Content
	start := strings.Index(content, "```") + 3
	end := strings.LastIndex(content, "```")
	return content[start:end]
}

func newTestAnalyzer(t *testing.T, completer analysis.Completer, settings analysis.Settings) *analysis.Analyzer {
	t.Helper()
	if settings.Model == "" {
		settings.Model = "gpt-3.5-turbo"
	}
	analyzer, err := analysis.NewAnalyzer(completer, wordCounter{}, settings, zap.NewNop())
	if err != nil {
		t.Fatalf("NewAnalyzer error: %v", err)
	}
	return analyzer
}

func collect(t *testing.T, analyzer *analysis.Analyzer, records []types.FileRecord) []types.AnalysisResult {
	t.Helper()
	var results []types.AnalysisResult
	for result := range analyzer.Results(context.Background(), records) {
		results = append(results, result)
	}
	return results
}

func TestNewAnalyzerRejectsUnsupportedModel(t *testing.T) {
	_, err := analysis.NewAnalyzer(&stubCompleter{}, wordCounter{}, analysis.Settings{Model: "mistral-large"}, zap.NewNop())
	if !errors.Is(err, tokenizer.ErrUnsupportedModel) {
		t.Fatalf("expected ErrUnsupportedModel, got %v", err)
	}
}

func TestAnalyzeFileEmptyContent(t *testing.T) {
	completer := &stubCompleter{}
	analyzer := newTestAnalyzer(t, completer, analysis.Settings{})

	result := analyzer.AnalyzeFile(context.Background(), types.FileRecord{Path: "empty.py"})
	if result.Recommendation != types.NoCodeFoundMessage {
		t.Fatalf("expected %q, got %q", types.NoCodeFoundMessage, result.Recommendation)
	}
	if result.Outcome != types.OutcomeEmpty {
		t.Fatalf("expected empty outcome, got %s", result.Outcome)
	}
	if completer.callCount() != 0 {
		t.Fatalf("expected no provider call, got %d", completer.callCount())
	}
}

func TestAnalyzeFileTooLong(t *testing.T) {
	completer := &stubCompleter{}
	analyzer := newTestAnalyzer(t, completer, analysis.Settings{ContextWindow: 300})

	longContent := strings.Repeat("token ", 200)
	result := analyzer.AnalyzeFile(context.Background(), types.FileRecord{Path: "long.py", Content: longContent})
	if result.Recommendation != types.CodeTooLongMessage {
		t.Fatalf("expected too long advisory, got %q", result.Recommendation)
	}
	if result.Outcome != types.OutcomeBudgetExhausted {
		t.Fatalf("expected budget exhausted outcome, got %s", result.Outcome)
	}
	if completer.callCount() != 0 {
		t.Fatalf("expected no provider call, got %d", completer.callCount())
	}
}

func TestAnalyzeFileRequestsRemainingBudget(t *testing.T) {
	completer := &stubCompleter{}
	analyzer := newTestAnalyzer(t, completer, analysis.Settings{Temperature: 0.2})

	result := analyzer.AnalyzeFile(context.Background(), types.FileRecord{Path: "main.py", Content: "print(1)"})
	if result.Outcome != types.OutcomeCompleted {
		t.Fatalf("expected completed outcome, got %s: %s", result.Outcome, result.Recommendation)
	}
	if result.Recommendation != "review of print(1)" {
		t.Fatalf("expected stripped recommendation, got %q", result.Recommendation)
	}
	if len(completer.requests) != 1 {
		t.Fatalf("expected one request, got %d", len(completer.requests))
	}
	request := completer.requests[0]
	if request.MaxTokens != 4096-result.PromptTokens || request.MaxTokens != result.MaxTokens {
		t.Fatalf("expected max tokens %d, got %d", 4096-result.PromptTokens, request.MaxTokens)
	}
	if request.Temperature != 0.2 || request.Model != "gpt-3.5-turbo" {
		t.Fatalf("unexpected request parameters %+v", request)
	}
}

func TestAnalyzeFileCapsResponseTokens(t *testing.T) {
	testCases := []struct {
		name     string
		settings analysis.Settings
		expected int
	}{
		{name: "gpt-4o limit", settings: analysis.Settings{Model: "gpt-4o"}, expected: 16384},
		{name: "configured limit", settings: analysis.Settings{Model: "gpt-4o", MaxResponseTokens: 1024}, expected: 1024},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			completer := &stubCompleter{}
			analyzer := newTestAnalyzer(t, completer, testCase.settings)

			result := analyzer.AnalyzeFile(context.Background(), types.FileRecord{Path: "main.py", Content: "print(1)"})
			if result.Outcome != types.OutcomeCompleted {
				t.Fatalf("expected completed outcome, got %s: %s", result.Outcome, result.Recommendation)
			}
			if len(completer.requests) != 1 || completer.requests[0].MaxTokens != testCase.expected {
				t.Fatalf("expected max tokens %d, got %+v", testCase.expected, completer.requests)
			}
			if result.MaxTokens != testCase.expected {
				t.Fatalf("expected result max tokens %d, got %d", testCase.expected, result.MaxTokens)
			}
		})
	}
}

func TestAnalyzeFileChecksBudgetBeforeCapping(t *testing.T) {
	completer := &stubCompleter{}
	analyzer := newTestAnalyzer(t, completer, analysis.Settings{Model: "gpt-4o", MaxResponseTokens: 100})

	result := analyzer.AnalyzeFile(context.Background(), types.FileRecord{Path: "main.py", Content: "print(1)"})
	if result.Outcome != types.OutcomeCompleted {
		t.Fatalf("expected a limit below the minimum to still request, got %s", result.Outcome)
	}
	if completer.callCount() != 1 || completer.requests[0].MaxTokens != 100 {
		t.Fatalf("expected one request for 100 tokens, got %+v", completer.requests)
	}
}

func TestResultsContinueAfterProviderFailure(t *testing.T) {
	completer := &stubCompleter{respond: func(_ context.Context, request analysis.CompletionRequest) (string, error) {
		if strings.Contains(lastLine(request), "broken") {
			return "", errors.New("dial tcp: connection refused")
		}
		return "looks fine", nil
	}}
	analyzer := newTestAnalyzer(t, completer, analysis.Settings{})

	results := collect(t, analyzer, []types.FileRecord{
		{Path: "a.py", Content: "broken()"},
		{Path: "b.py", Content: "working()"},
	})
	if len(results) != 2 {
		t.Fatalf("expected two results, got %d", len(results))
	}
	if results[0].Recommendation != "Error analyzing code file: dial tcp: connection refused" {
		t.Fatalf("unexpected failure recommendation %q", results[0].Recommendation)
	}
	if !results[0].Failed() {
		t.Fatalf("expected first result to be marked failed")
	}
	if results[1].Recommendation != "looks fine" || results[1].CodeFile != "b.py" {
		t.Fatalf("expected second file to be analyzed, got %+v", results[1])
	}
}

func TestAnalyzeFileRecoversFromCompleterPanic(t *testing.T) {
	completer := &stubCompleter{respond: func(context.Context, analysis.CompletionRequest) (string, error) {
		panic("unexpected response shape")
	}}
	analyzer := newTestAnalyzer(t, completer, analysis.Settings{})

	result := analyzer.AnalyzeFile(context.Background(), types.FileRecord{Path: "a.py", Content: "x = 1"})
	if !strings.HasPrefix(result.Recommendation, types.AnalysisErrorMessagePrefix) {
		t.Fatalf("expected error recommendation, got %q", result.Recommendation)
	}
}

func TestAnalyzeFileEmptyCompletion(t *testing.T) {
	completer := &stubCompleter{respond: func(context.Context, analysis.CompletionRequest) (string, error) {
		return "   ", nil
	}}
	analyzer := newTestAnalyzer(t, completer, analysis.Settings{})

	result := analyzer.AnalyzeFile(context.Background(), types.FileRecord{Path: "a.py", Content: "x = 1"})
	if result.Recommendation != types.NoRecommendationsMessage {
		t.Fatalf("expected placeholder recommendation, got %q", result.Recommendation)
	}
}

func TestAnalyzeFileRequestTimeout(t *testing.T) {
	completer := &stubCompleter{respond: func(ctx context.Context, _ analysis.CompletionRequest) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	analyzer := newTestAnalyzer(t, completer, analysis.Settings{RequestTimeout: 10 * time.Millisecond})

	result := analyzer.AnalyzeFile(context.Background(), types.FileRecord{Path: "slow.py", Content: "sleep()"})
	if result.Recommendation != types.AnalysisErrorMessagePrefix+context.DeadlineExceeded.Error() {
		t.Fatalf("unexpected recommendation %q", result.Recommendation)
	}
}

func TestAnalyzeFileUsesCache(t *testing.T) {
	completer := &stubCompleter{}
	analyzer := newTestAnalyzer(t, completer, analysis.Settings{CacheSize: 8})

	record := types.FileRecord{Path: "a.py", Content: "x = 1"}
	first := analyzer.AnalyzeFile(context.Background(), record)
	second := analyzer.AnalyzeFile(context.Background(), types.FileRecord{Path: "copy.py", Content: record.Content})
	if completer.callCount() != 1 {
		t.Fatalf("expected one provider call, got %d", completer.callCount())
	}
	if second.Outcome != types.OutcomeCached || second.Recommendation != first.Recommendation {
		t.Fatalf("expected cached recommendation, got %+v", second)
	}
	if second.CodeFile != "copy.py" {
		t.Fatalf("expected cached result to keep its own path, got %s", second.CodeFile)
	}
}

func TestAnalyzeFileWithoutCache(t *testing.T) {
	completer := &stubCompleter{}
	analyzer := newTestAnalyzer(t, completer, analysis.Settings{CacheSize: 0})

	record := types.FileRecord{Path: "a.py", Content: "x = 1"}
	analyzer.AnalyzeFile(context.Background(), record)
	analyzer.AnalyzeFile(context.Background(), record)
	if completer.callCount() != 2 {
		t.Fatalf("expected two provider calls, got %d", completer.callCount())
	}
}

func TestResultsNeverReturnEmptyRecommendation(t *testing.T) {
	completer := &stubCompleter{respond: func(_ context.Context, request analysis.CompletionRequest) (string, error) {
		switch lastLine(request) {
		case "fail":
			return "", errors.New("")
		case "blank":
			return "", nil
		default:
			return "ok", nil
		}
	}}
	analyzer := newTestAnalyzer(t, completer, analysis.Settings{ContextWindow: 400})

	records := []types.FileRecord{
		{Path: "1", Content: ""},
		{Path: "2", Content: "fail"},
		{Path: "3", Content: "blank"},
		{Path: "4", Content: strings.Repeat("word ", 500)},
		{Path: "5", Content: "fine"},
	}
	for _, result := range collect(t, analyzer, records) {
		if result.Recommendation == "" {
			t.Fatalf("empty recommendation for %s", result.CodeFile)
		}
	}
}

func TestResultsAreLazy(t *testing.T) {
	completer := &stubCompleter{}
	analyzer := newTestAnalyzer(t, completer, analysis.Settings{})

	records := []types.FileRecord{{Path: "a", Content: "a"}, {Path: "b", Content: "b"}, {Path: "c", Content: "c"}}
	sequence := analyzer.Results(context.Background(), records)
	if completer.callCount() != 0 {
		t.Fatalf("expected no calls before iteration")
	}
	for result := range sequence {
		if result.CodeFile != "a" {
			t.Fatalf("unexpected first result %s", result.CodeFile)
		}
		break
	}
	if completer.callCount() != 1 {
		t.Fatalf("expected one call after consuming one result, got %d", completer.callCount())
	}
}

func TestResultsWithWorkersPreserveOrder(t *testing.T) {
	completer := &stubCompleter{respond: func(_ context.Context, request analysis.CompletionRequest) (string, error) {
		code := lastLine(request)
		if code == "file0" {
			time.Sleep(20 * time.Millisecond)
		}
		return "review " + code, nil
	}}
	analyzer := newTestAnalyzer(t, completer, analysis.Settings{Workers: 4})

	var records []types.FileRecord
	for index := 0; index < 8; index++ {
		records = append(records, types.FileRecord{Path: fmt.Sprintf("f%d.py", index), Content: fmt.Sprintf("file%d", index)})
	}
	results := collect(t, analyzer, records)
	if len(results) != len(records) {
		t.Fatalf("expected %d results, got %d", len(records), len(results))
	}
	for index, result := range results {
		if result.CodeFile != records[index].Path || result.Recommendation != "review "+records[index].Content {
			t.Fatalf("result %d out of order: %+v", index, result)
		}
	}
}

func TestResultsWithWorkersWaitForTasksWhenStopped(t *testing.T) {
	var active atomic.Int32
	completer := &stubCompleter{respond: func(ctx context.Context, request analysis.CompletionRequest) (string, error) {
		active.Add(1)
		defer active.Add(-1)
		if lastLine(request) == "file0" {
			time.Sleep(20 * time.Millisecond)
			return "review file0", nil
		}
		<-ctx.Done()
		time.Sleep(5 * time.Millisecond)
		return "", ctx.Err()
	}}
	analyzer := newTestAnalyzer(t, completer, analysis.Settings{Workers: 4})

	var records []types.FileRecord
	for index := 0; index < 8; index++ {
		records = append(records, types.FileRecord{Path: fmt.Sprintf("f%d.py", index), Content: fmt.Sprintf("file%d", index)})
	}
	for result := range analyzer.Results(context.Background(), records) {
		if result.CodeFile != "f0.py" {
			t.Fatalf("unexpected first result %s", result.CodeFile)
		}
		break
	}
	if running := active.Load(); running != 0 {
		t.Fatalf("expected no running tasks after iteration stopped, got %d", running)
	}
}

func TestResultsStopOnCancellation(t *testing.T) {
	completer := &stubCompleter{}
	analyzer := newTestAnalyzer(t, completer, analysis.Settings{})
	ctx, cancel := context.WithCancel(context.Background())

	records := []types.FileRecord{{Path: "a", Content: "a"}, {Path: "b", Content: "b"}}
	count := 0
	for range analyzer.Results(ctx, records) {
		count++
		cancel()
	}
	if count != 1 {
		t.Fatalf("expected iteration to stop after cancellation, got %d results", count)
	}
}

func TestResultsForPathsReportsReadFailures(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "present.py"), []byte("x = 1"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	completer := &stubCompleter{}
	analyzer := newTestAnalyzer(t, completer, analysis.Settings{})

	var results []types.AnalysisResult
	for result := range analyzer.ResultsForPaths(context.Background(), root, []string{"missing.py", "present.py"}) {
		results = append(results, result)
	}
	if len(results) != 2 {
		t.Fatalf("expected two results, got %d", len(results))
	}
	if results[0].Outcome != types.OutcomeReadFailure || !strings.HasPrefix(results[0].Recommendation, types.AnalysisErrorMessagePrefix) {
		t.Fatalf("expected read failure, got %+v", results[0])
	}
	if results[1].CodeFile != "present.py" || results[1].CodeSnippet != "x = 1" || results[1].Outcome != types.OutcomeCompleted {
		t.Fatalf("unexpected second result %+v", results[1])
	}
}
