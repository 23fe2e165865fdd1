package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/temirov/codereview/internal/tokenizer"
	"github.com/temirov/codereview/internal/utils"
)

const (
	// DefaultTemperature is the sampling temperature used when none is configured.
	DefaultTemperature = 0.1
	// DefaultRequestTimeout bounds each completion request.
	DefaultRequestTimeout = 2 * time.Minute
	// DefaultWorkers analyzes files one at a time.
	DefaultWorkers = 1
	// DefaultCacheSize is the number of completions kept in memory.
	DefaultCacheSize = 256
)

// LoadOptions controls how application configuration is discovered.
type LoadOptions struct {
	WorkingDirectory string
	ExplicitFilePath string
}

// ApplicationConfiguration holds the defaults applied to every command.
type ApplicationConfiguration struct {
	Repository RepositoryConfiguration `mapstructure:"repository"`
	Analysis   AnalysisConfiguration   `mapstructure:"analysis"`
	Output     OutputConfiguration     `mapstructure:"output"`
	LogLevel   string                  `mapstructure:"log_level"`
}

// RepositoryConfiguration controls where repositories are cloned and which files are listed.
type RepositoryConfiguration struct {
	Workspace  string            `mapstructure:"workspace"`
	Extensions []string          `mapstructure:"extensions"`
	Paths      PathConfiguration `mapstructure:"paths"`
}

// PathConfiguration configures inclusion and exclusion rules for working copy traversal.
type PathConfiguration struct {
	Exclude       []string `mapstructure:"exclude"`
	UseGitignore  *bool    `mapstructure:"use_gitignore"`
	UseIgnoreFile *bool    `mapstructure:"use_ignore"`
	IncludeGit    *bool    `mapstructure:"include_git"`
}

// AnalysisConfiguration controls completion requests and token accounting.
type AnalysisConfiguration struct {
	Model                 string                  `mapstructure:"model"`
	BaseURL               string                  `mapstructure:"base_url"`
	Temperature           *float64                `mapstructure:"temperature"`
	ContextWindow         *int                    `mapstructure:"context_window"`
	MinimumResponseTokens *int                    `mapstructure:"minimum_response_tokens"`
	MaxResponseTokens     *int                    `mapstructure:"max_response_tokens"`
	RequestTimeout        string                  `mapstructure:"request_timeout"`
	Workers               *int                    `mapstructure:"workers"`
	CacheSize             *int                    `mapstructure:"cache_size"`
	TokenAccounting       TokenAccountingSettings `mapstructure:"token_accounting"`
}

// TokenAccountingSettings overrides the per-message constants of the model family.
type TokenAccountingSettings struct {
	TokensPerMessage *int `mapstructure:"tokens_per_message"`
	TokensPerName    *int `mapstructure:"tokens_per_name"`
	ReplyPriming     *int `mapstructure:"reply_priming"`
}

// OutputConfiguration controls rendering and the report artifact.
type OutputConfiguration struct {
	Format    string `mapstructure:"format"`
	Directory string `mapstructure:"directory"`
	Clipboard *bool  `mapstructure:"clipboard"`
}

// LoadApplicationConfiguration loads configuration from global and local files.
func LoadApplicationConfiguration(options LoadOptions) (ApplicationConfiguration, error) {
	workingDirectory := options.WorkingDirectory
	if workingDirectory == "" {
		currentDirectory, err := os.Getwd()
		if err != nil {
			return ApplicationConfiguration{}, fmt.Errorf("determine working directory: %w", err)
		}
		workingDirectory = currentDirectory
	}

	var merged ApplicationConfiguration

	if homeDirectory, err := os.UserHomeDir(); err == nil && homeDirectory != "" {
		globalPath := filepath.Join(homeDirectory, utils.GlobalConfigDirectoryName, utils.GlobalConfigFileName)
		globalConfig, loadErr := loadConfigurationFromPath(globalPath)
		if loadErr != nil {
			return ApplicationConfiguration{}, loadErr
		}
		merged = merged.Merge(globalConfig)
	}

	localPath, resolveErr := resolveLocalConfigPath(workingDirectory, options.ExplicitFilePath)
	if resolveErr != nil {
		return ApplicationConfiguration{}, resolveErr
	}
	if localPath != "" {
		localConfig, loadErr := loadConfigurationFromPath(localPath)
		if loadErr != nil {
			return ApplicationConfiguration{}, loadErr
		}
		merged = merged.Merge(localConfig)
	}

	merged.Repository.Paths.Exclude = utils.DeduplicatePatterns(merged.Repository.Paths.Exclude)
	if _, durationErr := merged.Analysis.RequestTimeoutDuration(); durationErr != nil {
		return ApplicationConfiguration{}, durationErr
	}

	return merged, nil
}

func resolveLocalConfigPath(workingDirectory, explicitPath string) (string, error) {
	if explicitPath != "" {
		if filepath.IsAbs(explicitPath) {
			return explicitPath, nil
		}
		if workingDirectory == "" {
			absolute, err := filepath.Abs(explicitPath)
			if err != nil {
				return "", fmt.Errorf("resolve configuration path %s: %w", explicitPath, err)
			}
			return absolute, nil
		}
		return filepath.Join(workingDirectory, explicitPath), nil
	}
	if workingDirectory == "" {
		return "", nil
	}
	return filepath.Join(workingDirectory, utils.ConfigFileName), nil
}

func loadConfigurationFromPath(path string) (ApplicationConfiguration, error) {
	if path == "" {
		return ApplicationConfiguration{}, nil
	}
	info, statErr := os.Stat(path)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return ApplicationConfiguration{}, nil
		}
		return ApplicationConfiguration{}, fmt.Errorf("stat configuration %s: %w", path, statErr)
	}
	if info.IsDir() {
		return ApplicationConfiguration{}, fmt.Errorf("configuration path %s is a directory", path)
	}

	reader := viper.New()
	reader.SetConfigFile(path)
	reader.SetConfigType("yaml")
	if readErr := reader.ReadInConfig(); readErr != nil {
		return ApplicationConfiguration{}, fmt.Errorf("read configuration from %s: %w", path, readErr)
	}
	var config ApplicationConfiguration
	if decodeErr := reader.Unmarshal(&config); decodeErr != nil {
		return ApplicationConfiguration{}, fmt.Errorf("decode configuration from %s: %w", path, decodeErr)
	}
	return config, nil
}

// Merge overlays override onto the receiver returning the combined configuration.
func (config ApplicationConfiguration) Merge(override ApplicationConfiguration) ApplicationConfiguration {
	result := config
	result.Repository = result.Repository.merge(override.Repository)
	result.Analysis = result.Analysis.merge(override.Analysis)
	result.Output = result.Output.merge(override.Output)
	if override.LogLevel != "" {
		result.LogLevel = override.LogLevel
	}
	return result
}

func (config RepositoryConfiguration) merge(override RepositoryConfiguration) RepositoryConfiguration {
	result := config
	if override.Workspace != "" {
		result.Workspace = override.Workspace
	}
	if len(override.Extensions) > 0 {
		result.Extensions = append([]string{}, override.Extensions...)
	}
	result.Paths = result.Paths.merge(override.Paths)
	return result
}

func (config PathConfiguration) merge(override PathConfiguration) PathConfiguration {
	result := config
	if len(override.Exclude) > 0 {
		result.Exclude = append([]string{}, utils.DeduplicatePatterns(override.Exclude)...)
	}
	if override.UseGitignore != nil {
		result.UseGitignore = clonePointer(override.UseGitignore)
	}
	if override.UseIgnoreFile != nil {
		result.UseIgnoreFile = clonePointer(override.UseIgnoreFile)
	}
	if override.IncludeGit != nil {
		result.IncludeGit = clonePointer(override.IncludeGit)
	}
	return result
}

func (config AnalysisConfiguration) merge(override AnalysisConfiguration) AnalysisConfiguration {
	result := config
	if override.Model != "" {
		result.Model = override.Model
	}
	if override.BaseURL != "" {
		result.BaseURL = override.BaseURL
	}
	if override.Temperature != nil {
		result.Temperature = clonePointer(override.Temperature)
	}
	if override.ContextWindow != nil {
		result.ContextWindow = clonePointer(override.ContextWindow)
	}
	if override.MinimumResponseTokens != nil {
		result.MinimumResponseTokens = clonePointer(override.MinimumResponseTokens)
	}
	if override.MaxResponseTokens != nil {
		result.MaxResponseTokens = clonePointer(override.MaxResponseTokens)
	}
	if override.RequestTimeout != "" {
		result.RequestTimeout = override.RequestTimeout
	}
	if override.Workers != nil {
		result.Workers = clonePointer(override.Workers)
	}
	if override.CacheSize != nil {
		result.CacheSize = clonePointer(override.CacheSize)
	}
	result.TokenAccounting = result.TokenAccounting.merge(override.TokenAccounting)
	return result
}

func (config TokenAccountingSettings) merge(override TokenAccountingSettings) TokenAccountingSettings {
	result := config
	if override.TokensPerMessage != nil {
		result.TokensPerMessage = clonePointer(override.TokensPerMessage)
	}
	if override.TokensPerName != nil {
		result.TokensPerName = clonePointer(override.TokensPerName)
	}
	if override.ReplyPriming != nil {
		result.ReplyPriming = clonePointer(override.ReplyPriming)
	}
	return result
}

func (config OutputConfiguration) merge(override OutputConfiguration) OutputConfiguration {
	result := config
	if override.Format != "" {
		result.Format = override.Format
	}
	if override.Directory != "" {
		result.Directory = override.Directory
	}
	if override.Clipboard != nil {
		result.Clipboard = clonePointer(override.Clipboard)
	}
	return result
}

// ModelOrDefault returns the configured model or tokenizer.DefaultModel.
func (config AnalysisConfiguration) ModelOrDefault() string {
	if trimmed := strings.TrimSpace(config.Model); trimmed != "" {
		return trimmed
	}
	return tokenizer.DefaultModel
}

// TemperatureOrDefault returns the configured temperature or DefaultTemperature.
func (config AnalysisConfiguration) TemperatureOrDefault() float32 {
	if config.Temperature == nil {
		return DefaultTemperature
	}
	return float32(*config.Temperature)
}

// WorkersOrDefault returns the configured worker count, never below one.
func (config AnalysisConfiguration) WorkersOrDefault() int {
	if config.Workers == nil || *config.Workers < 1 {
		return DefaultWorkers
	}
	return *config.Workers
}

// CacheSizeOrDefault returns the configured cache size. Zero or negative disables caching.
func (config AnalysisConfiguration) CacheSizeOrDefault() int {
	if config.CacheSize == nil {
		return DefaultCacheSize
	}
	return *config.CacheSize
}

// RequestTimeoutDuration parses RequestTimeout. An empty value selects
// DefaultRequestTimeout and "0" disables the timeout.
func (config AnalysisConfiguration) RequestTimeoutDuration() (time.Duration, error) {
	trimmed := strings.TrimSpace(config.RequestTimeout)
	if trimmed == "" {
		return DefaultRequestTimeout, nil
	}
	duration, err := time.ParseDuration(trimmed)
	if err != nil {
		return 0, fmt.Errorf("parse analysis.request_timeout %q: %w", config.RequestTimeout, err)
	}
	if duration < 0 {
		return 0, fmt.Errorf("analysis.request_timeout %q must not be negative", config.RequestTimeout)
	}
	return duration, nil
}

func clonePointer[T any](value *T) *T {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}
