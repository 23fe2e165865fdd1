package analysis

import (
	"context"
	"errors"
	"math"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/temirov/codereview/internal/config"
	"github.com/temirov/codereview/internal/types"
)

// errNoChoices reports a completion response without any choices.
var errNoChoices = errors.New("completion returned no choices")

const defaultConnectTimeout = 10 * time.Second

// CompletionRequest is one chat completion call.
type CompletionRequest struct {
	Model       string
	Messages    []types.ChatMessage
	MaxTokens   int
	Temperature float32
}

// Completer sends a chat completion request and returns the first choice's text.
type Completer interface {
	Complete(ctx context.Context, request CompletionRequest) (string, error)
}

// OpenAICompleter talks to the OpenAI chat completion API or a compatible server.
type OpenAICompleter struct {
	client *openai.Client
}

// NewOpenAICompleter builds a completer for apiKey. A non-empty baseURL
// targets an OpenAI compatible server instead of the public API.
func NewOpenAICompleter(apiKey string, baseURL string) (*OpenAICompleter, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, config.ErrMissingCredential
	}
	clientConfig := openai.DefaultConfig(apiKey)
	if trimmedBaseURL := strings.TrimSuffix(strings.TrimSpace(baseURL), "/"); trimmedBaseURL != "" {
		clientConfig.BaseURL = trimmedBaseURL
	}
	clientConfig.HTTPClient = newHTTPClient()
	return &OpenAICompleter{client: openai.NewClientWithConfig(clientConfig)}, nil
}

// Complete requests a single completion. A zero temperature is sent as the
// smallest positive float32 since the client omits zero values.
func (completer *OpenAICompleter) Complete(ctx context.Context, request CompletionRequest) (string, error) {
	temperature := request.Temperature
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}
	messages := make([]openai.ChatCompletionMessage, 0, len(request.Messages))
	for _, message := range request.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    message.Role,
			Content: message.Content,
			Name:    message.Name,
		})
	}
	response, err := completer.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       request.Model,
		Messages:    messages,
		MaxTokens:   request.MaxTokens,
		Temperature: temperature,
		N:           1,
	})
	if err != nil {
		return "", err
	}
	if len(response.Choices) == 0 {
		return "", errNoChoices
	}
	return response.Choices[0].Message.Content, nil
}

// newHTTPClient leaves the overall timeout to the request context.
func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   defaultConnectTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}
