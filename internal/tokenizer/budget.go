package tokenizer

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/temirov/codereview/internal/types"
)

// ErrUnsupportedModel reports a model without known chat accounting constants.
var ErrUnsupportedModel = errors.New("unsupported model")

// ErrUnknownContextWindow reports a model whose context window is neither configured nor tabulated.
var ErrUnknownContextWindow = errors.New("unknown context window")

const (
	legacyTurboModel   = "gpt-3.5-turbo-0301"
	turboModelPrefix   = "gpt-3.5-turbo"
	gpt4ModelPrefix    = "gpt-4"
	replyPrimingTokens = 3

	// DefaultMinimumResponseTokens is the smallest response budget worth requesting.
	DefaultMinimumResponseTokens = 200

	unsupportedModelErrorFormat     = "%w: %s"
	unknownContextWindowErrorFormat = "%w for model %s"
	countMessageErrorFormat         = "count %s tokens: %w"
)

// MessageFormat holds the per-message accounting constants of a chat model family.
type MessageFormat struct {
	TokensPerMessage int `mapstructure:"tokens_per_message"`
	TokensPerName    int `mapstructure:"tokens_per_name"`
	ReplyPriming     int `mapstructure:"reply_priming"`
}

// contextWindows maps model name prefixes to context window sizes in tokens.
var contextWindows = map[string]int{
	"gpt-3.5-turbo":     4096,
	"gpt-3.5-turbo-16k": 16384,
	"gpt-4":             8192,
	"gpt-4-32k":         32768,
	"gpt-4o":            128000,
	"gpt-4-turbo":       128000,
}

// responseLimits maps model name prefixes to the largest completion the
// provider accepts. Models absent here are limited by their context window.
var responseLimits = map[string]int{
	"gpt-3.5-turbo":     4096,
	"gpt-3.5-turbo-16k": 16384,
	"gpt-4-1106":        4096,
	"gpt-4-0125":        4096,
	"gpt-4-turbo":       4096,
	"gpt-4o":            16384,
}

// ResolveMessageFormat returns the accounting constants for the model.
func ResolveMessageFormat(model string) (MessageFormat, error) {
	normalizedModel := strings.ToLower(strings.TrimSpace(model))
	switch {
	case normalizedModel == legacyTurboModel:
		return MessageFormat{TokensPerMessage: 4, TokensPerName: -1, ReplyPriming: replyPrimingTokens}, nil
	case strings.HasPrefix(normalizedModel, turboModelPrefix), strings.HasPrefix(normalizedModel, gpt4ModelPrefix):
		return MessageFormat{TokensPerMessage: 3, TokensPerName: 1, ReplyPriming: replyPrimingTokens}, nil
	default:
		return MessageFormat{}, fmt.Errorf(unsupportedModelErrorFormat, ErrUnsupportedModel, model)
	}
}

// ContextWindow returns the tabulated context window for the longest matching model prefix.
func ContextWindow(model string) (int, bool) {
	return lookupLongestPrefix(contextWindows, model)
}

// ResponseLimit returns the tabulated completion limit for the longest matching model prefix.
func ResponseLimit(model string) (int, bool) {
	return lookupLongestPrefix(responseLimits, model)
}

func lookupLongestPrefix(table map[string]int, model string) (int, bool) {
	normalizedModel := strings.ToLower(strings.TrimSpace(model))
	prefixes := make([]string, 0, len(table))
	for prefix := range table {
		prefixes = append(prefixes, prefix)
	}
	sort.Slice(prefixes, func(left, right int) bool {
		return len(prefixes[left]) > len(prefixes[right])
	})
	for _, prefix := range prefixes {
		if strings.HasPrefix(normalizedModel, prefix) {
			return table[prefix], true
		}
	}
	return 0, false
}

// BudgetConfig selects the accounting used by a Budget. Zero values fall back
// to the model tables; Format replaces the model family constants entirely.
type BudgetConfig struct {
	Model                 string
	ContextWindow         int
	MinimumResponseTokens int
	MaxResponseTokens     int
	Format                *MessageFormat
}

// Budget computes how many response tokens remain after a prompt.
type Budget struct {
	counter               Counter
	model                 string
	format                MessageFormat
	contextWindow         int
	minimumResponseTokens int
	maxResponseTokens     int
}

// NewBudget validates the model and builds a Budget around counter.
func NewBudget(counter Counter, cfg BudgetConfig) (Budget, error) {
	if counter == nil {
		return Budget{}, errors.New("nil tokenizer counter")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}

	var format MessageFormat
	if cfg.Format != nil {
		format = *cfg.Format
	} else {
		resolvedFormat, resolveError := ResolveMessageFormat(model)
		if resolveError != nil {
			return Budget{}, resolveError
		}
		format = resolvedFormat
	}

	contextWindow := cfg.ContextWindow
	if contextWindow <= 0 {
		tabulatedWindow, found := ContextWindow(model)
		if !found {
			return Budget{}, fmt.Errorf(unknownContextWindowErrorFormat, ErrUnknownContextWindow, model)
		}
		contextWindow = tabulatedWindow
	}

	minimumResponseTokens := cfg.MinimumResponseTokens
	if minimumResponseTokens <= 0 {
		minimumResponseTokens = DefaultMinimumResponseTokens
	}

	maxResponseTokens := cfg.MaxResponseTokens
	if maxResponseTokens <= 0 {
		maxResponseTokens, _ = ResponseLimit(model)
	}

	return Budget{
		counter:               counter,
		model:                 model,
		format:                format,
		contextWindow:         contextWindow,
		minimumResponseTokens: minimumResponseTokens,
		maxResponseTokens:     maxResponseTokens,
	}, nil
}

// Model returns the model the budget accounts for.
func (budget Budget) Model() string { return budget.model }

// ContextWindow returns the context window size in tokens.
func (budget Budget) ContextWindow() int { return budget.contextWindow }

// MinimumResponseTokens returns the smallest response budget worth requesting.
func (budget Budget) MinimumResponseTokens() int { return budget.minimumResponseTokens }

// CountMessages returns the prompt cost of messages including per-message
// overhead and reply priming.
func (budget Budget) CountMessages(messages []types.ChatMessage) (int, error) {
	total := 0
	for _, message := range messages {
		total += budget.format.TokensPerMessage
		for _, field := range []struct {
			name  string
			value string
		}{
			{name: "role", value: message.Role},
			{name: "content", value: message.Content},
			{name: "name", value: message.Name},
		} {
			fieldTokens, countError := budget.counter.CountString(field.value)
			if countError != nil {
				return 0, fmt.Errorf(countMessageErrorFormat, field.name, countError)
			}
			total += fieldTokens
		}
		if message.Name != "" {
			total += budget.format.TokensPerName
		}
	}
	return total + budget.format.ReplyPriming, nil
}

// Remaining returns the context window minus the prompt cost of messages.
// The result is negative when the prompt alone exceeds the window.
func (budget Budget) Remaining(messages []types.ChatMessage) (int, error) {
	promptTokens, countError := budget.CountMessages(messages)
	if countError != nil {
		return 0, countError
	}
	return budget.contextWindow - promptTokens, nil
}

// RemainingForText treats text as a single user message.
func (budget Budget) RemainingForText(text string) (int, error) {
	return budget.Remaining([]types.ChatMessage{{Role: types.RoleUser, Content: text}})
}

// ResponseTokens caps remaining at the completion limit of the model. Zero
// means the model has no limit besides its context window.
func (budget Budget) ResponseTokens(remaining int) int {
	if budget.maxResponseTokens > 0 && remaining > budget.maxResponseTokens {
		return budget.maxResponseTokens
	}
	return remaining
}

// Sufficient reports whether remaining leaves room for a useful response.
func (budget Budget) Sufficient(remaining int) bool {
	return remaining >= budget.minimumResponseTokens
}
