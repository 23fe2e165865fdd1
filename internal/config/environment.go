package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/temirov/codereview/internal/utils"
)

const (
	// APIKeyEnvironmentVariable holds the completion provider credential.
	APIKeyEnvironmentVariable = "OPENAI_API_KEY"
	// BaseURLEnvironmentVariable optionally points at an OpenAI compatible server.
	BaseURLEnvironmentVariable = "OPENAI_BASE_URL"
)

// ErrMissingCredential reports that no API key was supplied.
var ErrMissingCredential = errors.New("missing API key: pass --api-key or set " + APIKeyEnvironmentVariable)

// LoadEnvironment loads the dotenv file from workingDirectory without
// overriding variables that are already set. A missing file is not an error.
func LoadEnvironment(workingDirectory string) error {
	environmentPath := filepath.Join(workingDirectory, utils.EnvironmentFileName)
	if _, statError := os.Stat(environmentPath); statError != nil {
		if os.IsNotExist(statError) {
			return nil
		}
		return statError
	}
	return godotenv.Load(environmentPath)
}

// Credentials carries the provider connection settings for one run.
type Credentials struct {
	APIKey  string
	BaseURL string
}

// ResolveCredentials prefers explicit values over the environment and
// configuration. An empty API key yields ErrMissingCredential.
func ResolveCredentials(explicitAPIKey string, explicitBaseURL string, configuredBaseURL string) (Credentials, error) {
	apiKey := firstNonEmpty(explicitAPIKey, os.Getenv(APIKeyEnvironmentVariable))
	baseURL := firstNonEmpty(explicitBaseURL, os.Getenv(BaseURLEnvironmentVariable), configuredBaseURL)
	if apiKey == utils.EmptyString {
		return Credentials{BaseURL: baseURL}, ErrMissingCredential
	}
	return Credentials{APIKey: apiKey, BaseURL: baseURL}, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != utils.EmptyString {
			return trimmed
		}
	}
	return utils.EmptyString
}
