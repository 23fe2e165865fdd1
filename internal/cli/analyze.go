package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/codereview/internal/analysis"
	"github.com/temirov/codereview/internal/config"
	"github.com/temirov/codereview/internal/report"
	"github.com/temirov/codereview/internal/repository"
	"github.com/temirov/codereview/internal/services/stream"
	"github.com/temirov/codereview/internal/tokenizer"
	"github.com/temirov/codereview/internal/types"
)

type analyzeOptions struct {
	repositoryOptions
	files           []string
	interactive     bool
	outputDirectory string
	clipboard       bool
	showCode        bool
	apiKey          string
	baseURL         string
	model           string
	workers         int
}

// createAnalyzeCommand returns the analyze subcommand.
func createAnalyzeCommand(deps dependencies) *cobra.Command {
	var options analyzeOptions

	analyzeCommand := &cobra.Command{
		Use:     analyzeUse,
		Aliases: []string{analyzeAlias},
		Short:   analyzeShortDescription,
		Long:    analyzeLongDescription,
		Example: analyzeUsageExample,
		Args:    cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			return runAnalyze(command, deps, options, arguments[0])
		},
	}

	addRepositoryFlags(analyzeCommand, &options.repositoryOptions)
	analyzeCommand.Flags().StringSliceVar(&options.files, filesFlagName, nil, filesFlagDescription)
	analyzeCommand.Flags().BoolVar(&options.interactive, interactiveFlagName, false, interactiveFlagDescription)
	analyzeCommand.Flags().StringVar(&options.outputDirectory, outputFlagName, "", outputFlagDescription)
	registerToggleFlag(analyzeCommand.Flags(), &options.clipboard, clipboardFlagName, false, clipboardFlagDescription)
	registerToggleFlag(analyzeCommand.Flags(), &options.showCode, showCodeFlagName, false, showCodeFlagDescription)
	analyzeCommand.Flags().StringVar(&options.apiKey, apiKeyFlagName, "", apiKeyFlagDescription)
	analyzeCommand.Flags().StringVar(&options.baseURL, baseURLFlagName, "", baseURLFlagDescription)
	analyzeCommand.Flags().StringVar(&options.model, modelFlagName, "", modelFlagDescription)
	analyzeCommand.Flags().IntVar(&options.workers, workersFlagName, config.DefaultWorkers, workersFlagDescription)
	analyzeCommand.MarkFlagsMutuallyExclusive(filesFlagName, interactiveFlagName)
	return analyzeCommand
}

func runAnalyze(command *cobra.Command, deps dependencies, options analyzeOptions, repositoryURL string) error {
	run, err := prepareRun(command, deps, options.repositoryOptions)
	if err != nil {
		return err
	}
	analysisConfiguration := run.configuration.Analysis

	workingDirectory, err := os.Getwd()
	if err != nil {
		return fmt.Errorf(workingDirectoryErrorFmt, err)
	}
	if err := config.LoadEnvironment(workingDirectory); err != nil {
		return fmt.Errorf(environmentErrorFormat, err)
	}
	credentials, err := config.ResolveCredentials(options.apiKey, options.baseURL, analysisConfiguration.BaseURL)
	if err != nil {
		return fmt.Errorf(missingCredentialAdvice, err)
	}

	if command.Flags().Changed(modelFlagName) {
		analysisConfiguration.Model = options.model
	}
	workers := analysisConfiguration.WorkersOrDefault()
	if command.Flags().Changed(workersFlagName) {
		workers = options.workers
	}
	analyzer, err := buildAnalyzer(deps, analysisConfiguration, workers, credentials, run.logger)
	if err != nil {
		return err
	}

	ctx := command.Context()
	root, files := run.listRepositoryFiles(ctx, repositoryURL)
	relativePaths := repository.RelativePaths(root, files)
	selected, err := selectFiles(deps, relativePaths, options, repositoryURL)
	if err != nil {
		return err
	}
	if root == "" {
		root = repositoryURL
	}

	renderer := run.newRenderer(deps, types.CommandAnalyze, options.showCode)
	var results []types.AnalysisResult
	producer := func(streamCtx context.Context, events chan<- stream.Event) error {
		return stream.StreamAnalysis(streamCtx, stream.AnalysisOptions{
			Root:    root,
			Paths:   selected,
			Model:   analyzer.Model(),
			Results: analyzer.ResultsForPaths(streamCtx, root, selected),
		}, events)
	}
	consumer := func(event stream.Event) error {
		if event.Kind == stream.EventKindResult && event.Result != nil {
			results = append(results, *event.Result)
		}
		return renderer.Handle(event)
	}
	streamErr := dispatchStream(ctx, producer, consumer)
	if flushErr := renderer.Flush(); flushErr != nil && streamErr == nil {
		streamErr = flushErr
	}
	if streamErr != nil {
		return streamErr
	}
	if len(results) == 0 {
		return nil
	}

	outputDirectory := run.configuration.Output.Directory
	if command.Flags().Changed(outputFlagName) {
		outputDirectory = options.outputDirectory
	}
	markdown := report.Assemble(results)
	reportPath, err := report.Write(outputDirectory, markdown)
	if err != nil {
		return err
	}
	fmt.Fprintf(deps.stderr, reportWrittenFormat, reportPath)

	copyReport := run.configuration.Output.Clipboard != nil && *run.configuration.Output.Clipboard
	if command.Flags().Changed(clipboardFlagName) {
		copyReport = options.clipboard
	}
	if copyReport {
		if copyErr := deps.copier.Copy(markdown); copyErr != nil {
			run.logger.Warn(logMessageClipboardFailed, zap.Error(copyErr))
		} else {
			fmt.Fprintln(deps.stderr, clipboardCopiedMessage)
		}
	}
	return nil
}

// buildAnalyzer assembles the tokenizer, completion client and analyzer for one run.
func buildAnalyzer(deps dependencies, settings config.AnalysisConfiguration, workers int, credentials config.Credentials, logger *zap.Logger) (*analysis.Analyzer, error) {
	model := settings.ModelOrDefault()
	requestTimeout, err := settings.RequestTimeoutDuration()
	if err != nil {
		return nil, err
	}
	messageFormat, err := messageFormatOverride(model, settings.TokenAccounting)
	if err != nil {
		return nil, err
	}
	counter, err := deps.newCounter(model)
	if err != nil {
		return nil, err
	}
	completer, err := deps.newCompleter(credentials)
	if err != nil {
		return nil, err
	}
	return analysis.NewAnalyzer(completer, counter, analysis.Settings{
		Model:                 model,
		Temperature:           settings.TemperatureOrDefault(),
		ContextWindow:         intOrZero(settings.ContextWindow),
		MinimumResponseTokens: intOrZero(settings.MinimumResponseTokens),
		MaxResponseTokens:     intOrZero(settings.MaxResponseTokens),
		MessageFormat:         messageFormat,
		RequestTimeout:        requestTimeout,
		Workers:               workers,
		CacheSize:             settings.CacheSizeOrDefault(),
	}, logger)
}

// messageFormatOverride returns nil unless accounting overrides are configured.
// Overrides apply on top of the model family constants; a model without known
// constants must configure all of them.
func messageFormatOverride(model string, accounting config.TokenAccountingSettings) (*tokenizer.MessageFormat, error) {
	if accounting.TokensPerMessage == nil && accounting.TokensPerName == nil && accounting.ReplyPriming == nil {
		return nil, nil
	}
	format, resolveErr := tokenizer.ResolveMessageFormat(model)
	complete := accounting.TokensPerMessage != nil && accounting.TokensPerName != nil && accounting.ReplyPriming != nil
	if resolveErr != nil && !complete {
		return nil, resolveErr
	}
	if accounting.TokensPerMessage != nil {
		format.TokensPerMessage = *accounting.TokensPerMessage
	}
	if accounting.TokensPerName != nil {
		format.TokensPerName = *accounting.TokensPerName
	}
	if accounting.ReplyPriming != nil {
		format.ReplyPriming = *accounting.ReplyPriming
	}
	return &format, nil
}

// selectFiles narrows the listing to the --files list or the interactive picker.
func selectFiles(deps dependencies, available []string, options analyzeOptions, repositoryURL string) ([]string, error) {
	if len(available) == 0 {
		return nil, nil
	}
	if options.interactive {
		return deps.pickFiles(available)
	}
	if len(options.files) == 0 {
		return available, nil
	}
	eligible := make(map[string]struct{}, len(available))
	for _, path := range available {
		eligible[path] = struct{}{}
	}
	selected := make([]string, 0, len(options.files))
	for _, requested := range options.files {
		normalized := strings.TrimPrefix(strings.TrimSpace(requested), "./")
		if normalized == "" {
			continue
		}
		if _, ok := eligible[normalized]; !ok {
			return nil, fmt.Errorf(unknownFileErrorFormat, requested, repositoryURL)
		}
		selected = append(selected, normalized)
	}
	return selected, nil
}

func intOrZero(value *int) int {
	if value == nil {
		return 0
	}
	return *value
}
