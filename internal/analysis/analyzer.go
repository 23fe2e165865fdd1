// Package analysis turns file contents into review recommendations through a
// chat completion provider.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/codereview/internal/prompt"
	"github.com/temirov/codereview/internal/tokenizer"
	"github.com/temirov/codereview/internal/types"
)

var errNilCompleter = errors.New("nil completer")

const (
	panicErrorFormat = "completer panic: %v"

	logMessageSkippedEmpty     = "skipping empty file"
	logMessageSkippedTooLong   = "skipping file exceeding the context window"
	logMessageRequesting       = "requesting analysis"
	logMessageCacheHit         = "reusing cached analysis"
	logMessageAnalysisFailed   = "analysis failed"
	logMessageAnalysisComplete = "analysis complete"
	logFieldPath               = "path"
	logFieldModel              = "model"
	logFieldMaxTokens          = "max_tokens"
	logFieldPromptTokens       = "prompt_tokens"
)

// Settings controls how files are analyzed.
type Settings struct {
	Model                 string
	Temperature           float32
	ContextWindow         int
	MinimumResponseTokens int
	MaxResponseTokens     int
	MessageFormat         *tokenizer.MessageFormat
	RequestTimeout        time.Duration
	Workers               int
	CacheSize             int
}

// Analyzer reviews files one request at a time or with a bounded worker pool.
type Analyzer struct {
	completer Completer
	budget    tokenizer.Budget
	settings  Settings
	cache     *completionCache
	logger    *zap.Logger
}

// NewAnalyzer validates settings and builds an Analyzer. A model without known
// token accounting fails with tokenizer.ErrUnsupportedModel.
func NewAnalyzer(completer Completer, counter tokenizer.Counter, settings Settings, logger *zap.Logger) (*Analyzer, error) {
	if completer == nil {
		return nil, errNilCompleter
	}
	if strings.TrimSpace(settings.Model) == "" {
		settings.Model = tokenizer.DefaultModel
	}
	budget, budgetError := tokenizer.NewBudget(counter, tokenizer.BudgetConfig{
		Model:                 settings.Model,
		ContextWindow:         settings.ContextWindow,
		MinimumResponseTokens: settings.MinimumResponseTokens,
		MaxResponseTokens:     settings.MaxResponseTokens,
		Format:                settings.MessageFormat,
	})
	if budgetError != nil {
		return nil, budgetError
	}
	cache, cacheError := newCompletionCache(settings.CacheSize)
	if cacheError != nil {
		return nil, fmt.Errorf("create completion cache: %w", cacheError)
	}
	if settings.Workers < 1 {
		settings.Workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{
		completer: completer,
		budget:    budget,
		settings:  settings,
		cache:     cache,
		logger:    logger,
	}, nil
}

// Model returns the model requests are sent to.
func (analyzer *Analyzer) Model() string {
	return analyzer.settings.Model
}

// AnalyzeFile reviews one file. It always returns a non-empty recommendation:
// the review, a placeholder for empty files, an advisory for files too large
// for the context window, or an error description.
func (analyzer *Analyzer) AnalyzeFile(ctx context.Context, record types.FileRecord) types.AnalysisResult {
	result := types.AnalysisResult{CodeFile: record.Path, CodeSnippet: record.Content}
	if record.Content == "" {
		analyzer.logger.Info(logMessageSkippedEmpty, zap.String(logFieldPath, record.Path))
		result.Recommendation = types.NoCodeFoundMessage
		result.Outcome = types.OutcomeEmpty
		return result
	}

	messages := prompt.Messages(record.Content)
	promptTokens, countError := analyzer.budget.CountMessages(messages)
	if countError != nil {
		return analyzer.failure(result, types.OutcomeProviderFailure, countError)
	}
	remaining := analyzer.budget.ContextWindow() - promptTokens
	result.PromptTokens = promptTokens
	if !analyzer.budget.Sufficient(remaining) {
		analyzer.logger.Warn(logMessageSkippedTooLong, zap.String(logFieldPath, record.Path), zap.Int(logFieldPromptTokens, promptTokens))
		result.Recommendation = types.CodeTooLongMessage
		result.Outcome = types.OutcomeBudgetExhausted
		return result
	}
	maxTokens := analyzer.budget.ResponseTokens(remaining)
	result.MaxTokens = maxTokens

	cacheKey := completionCacheKey(record.Content, analyzer.settings.Model, analyzer.settings.Temperature, maxTokens)
	if cached, found := analyzer.cache.get(cacheKey); found {
		analyzer.logger.Info(logMessageCacheHit, zap.String(logFieldPath, record.Path))
		result.Recommendation = cached
		result.Outcome = types.OutcomeCached
		return result
	}

	analyzer.logger.Info(logMessageRequesting,
		zap.String(logFieldPath, record.Path),
		zap.String(logFieldModel, analyzer.settings.Model),
		zap.Int(logFieldMaxTokens, maxTokens),
	)
	completion, completeError := analyzer.complete(ctx, CompletionRequest{
		Model:       analyzer.settings.Model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: analyzer.settings.Temperature,
	})
	if completeError != nil {
		return analyzer.failure(result, types.OutcomeProviderFailure, completeError)
	}

	recommendation := strings.TrimSpace(completion)
	if recommendation == "" {
		recommendation = types.NoRecommendationsMessage
	}
	analyzer.cache.add(cacheKey, recommendation)
	analyzer.logger.Info(logMessageAnalysisComplete, zap.String(logFieldPath, record.Path))
	result.Recommendation = recommendation
	result.Outcome = types.OutcomeCompleted
	return result
}

func (analyzer *Analyzer) complete(ctx context.Context, request CompletionRequest) (completion string, err error) {
	if analyzer.settings.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, analyzer.settings.RequestTimeout)
		defer cancel()
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			completion = ""
			err = fmt.Errorf(panicErrorFormat, recovered)
		}
	}()
	return analyzer.completer.Complete(ctx, request)
}

func (analyzer *Analyzer) failure(result types.AnalysisResult, outcome types.Outcome, cause error) types.AnalysisResult {
	analyzer.logger.Warn(logMessageAnalysisFailed, zap.String(logFieldPath, result.CodeFile), zap.Error(cause))
	result.Recommendation = types.AnalysisErrorMessagePrefix + cause.Error()
	result.Outcome = outcome
	return result
}
