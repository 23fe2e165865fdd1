// Package cli provides the command line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/codereview/internal/analysis"
	"github.com/temirov/codereview/internal/config"
	"github.com/temirov/codereview/internal/output"
	"github.com/temirov/codereview/internal/repository"
	"github.com/temirov/codereview/internal/services/clipboard"
	"github.com/temirov/codereview/internal/services/stream"
	"github.com/temirov/codereview/internal/tokenizer"
	"github.com/temirov/codereview/internal/types"
	"github.com/temirov/codereview/internal/utils"
)

const (
	configFlagName       = "config"
	logLevelFlagName     = "log-level"
	workspaceFlagName    = "workspace"
	extensionsFlagName   = "extensions"
	exclusionFlagName    = "e"
	noGitignoreFlagName  = "no-gitignore"
	noIgnoreFlagName     = "no-ignore"
	includeGitFlagName   = "git"
	formatFlagName       = "format"
	filesFlagName        = "files"
	interactiveFlagName  = "interactive"
	outputFlagName       = "output"
	clipboardFlagName    = "clipboard"
	showCodeFlagName     = "show-code"
	apiKeyFlagName       = "api-key"
	baseURLFlagName      = "base-url"
	modelFlagName        = "model"
	workersFlagName      = "workers"
	globalFlagName       = "global"
	forceFlagName        = "force"
	versionTemplate      = "codereview version: {{.Version}}\n"
	rootUse              = "codereview"
	rootShortDescription = "codereview command line interface"
	rootLongDescription  = `codereview clones a Git repository and asks a chat completion model to review its source files.
Use tree to preview the files that would be reviewed, analyze to run the review and write
` + "code_review_recommendations.md" + `, and init to create a configuration file.`

	treeUse              = "tree <repository-url>"
	treeAlias            = "t"
	treeShortDescription = "display the files eligible for review (" + treeAlias + ")"
	treeLongDescription  = `Clone the repository, list files matching the configured extensions and render them as a tree.
Use --format to select raw or json output.`
	treeUsageExample = `  # Preview a GitHub repository
  codereview tree temirov/ctx

  # Only list Go files as JSON lines
  codereview tree --extensions .go --format json https://github.com/temirov/ctx.git`

	analyzeUse              = "analyze <repository-url>"
	analyzeAlias            = "a"
	analyzeShortDescription = "review repository files (" + analyzeAlias + ")"
	analyzeLongDescription  = `Clone the repository, select files and review each one with the configured model.
Recommendations are printed as they arrive and collected into a markdown report.
The API key is read from --api-key, ` + config.APIKeyEnvironmentVariable + ` or a .env file.`
	analyzeUsageExample = `  # Review every Python and Go file
  codereview analyze --extensions .py,.go owner/repo

  # Pick files interactively, copy the report and print each reviewed file
  codereview analyze --interactive --clipboard --show-code owner/repo

  # Review two files with a larger model
  codereview analyze --files src/app.py,src/db.py --model gpt-4o owner/repo`

	initUse              = "init"
	initShortDescription = "write the default configuration file"
	initLongDescription  = `Write the default configuration to ` + utils.ConfigFileName + ` in the working directory,
or to ~/` + utils.GlobalConfigDirectoryName + `/` + utils.GlobalConfigFileName + ` with --global.`

	configFlagDescription      = "configuration file path"
	logLevelFlagDescription    = "log level (debug, info, warn, error)"
	workspaceFlagDescription   = "directory holding cloned repositories"
	extensionsFlagDescription  = "file extensions to review"
	exclusionFlagDescription   = "exclude path pattern"
	noGitignoreFlagDescription = "do not use .gitignore"
	noIgnoreFlagDescription    = "do not use .ignore"
	includeGitFlagDescription  = "include git directory"
	formatFlagDescription      = "output format (raw or json)"
	filesFlagDescription       = "repository-relative files to review"
	interactiveFlagDescription = "pick files interactively"
	outputFlagDescription      = "directory receiving the report"
	clipboardFlagDescription   = "copy the report to the clipboard"
	showCodeFlagDescription    = "print the reviewed code after each recommendation"
	apiKeyFlagDescription      = "API key of the completion provider"
	baseURLFlagDescription     = "base URL of an OpenAI compatible provider"
	modelFlagDescription       = "chat completion model"
	workersFlagDescription     = "number of files analyzed concurrently"
	globalFlagDescription      = "write the global configuration"
	forceFlagDescription       = "overwrite an existing configuration"

	invalidFormatMessage      = "invalid format value '%s'"
	unknownFileErrorFormat    = "file %q is not eligible for review in %s"
	loggerErrorFormat         = "configure logger: %w"
	environmentErrorFormat    = "load environment: %w"
	workingDirectoryErrorFmt  = "unable to determine working directory: %w"
	missingCredentialAdvice   = "%w; supply an API key to analyze files"
	reportWrittenFormat       = "Report written to %s\n"
	configurationWrittenFmt   = "Configuration written to %s\n"
	clipboardCopiedMessage    = "Report copied to clipboard"
	logMessageFetchFailed     = "no repository available"
	logMessageIgnoreFailed    = "ignore patterns unavailable, using defaults"
	logMessageClipboardFailed = "copying report failed"
	logFieldURL               = "url"
	logFieldPath              = "path"
)

// dependencies holds the collaborators a command run needs. Tests replace
// them with stubs.
type dependencies struct {
	stdout       io.Writer
	stderr       io.Writer
	logger       *zap.Logger
	gitRunner    repository.GitRunner
	markdown     output.MarkdownFormatter
	newCounter   func(model string) (tokenizer.Counter, error)
	newCompleter func(credentials config.Credentials) (analysis.Completer, error)
	copier       clipboard.Copier
	pickFiles    func(paths []string) ([]string, error)
}

func defaultDependencies(logger *zap.Logger) dependencies {
	return dependencies{
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		logger:    logger,
		gitRunner: repository.CommandGitRunner{},
		markdown:  output.NewMarkdownFormatter(true),
		newCounter: func(model string) (tokenizer.Counter, error) {
			counter, _, err := tokenizer.NewCounter(tokenizer.Config{Model: model})
			return counter, err
		},
		newCompleter: func(credentials config.Credentials) (analysis.Completer, error) {
			return analysis.NewOpenAICompleter(credentials.APIKey, credentials.BaseURL)
		},
		copier:    clipboard.NewService(),
		pickFiles: pickFilesInteractively,
	}
}

// Execute runs the codereview application until it completes or receives an interrupt.
func Execute(logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	rootCommand := createRootCommand(defaultDependencies(logger))
	rootCommand.SetArgs(joinToggleArguments(rootCommand, os.Args[1:]))
	return rootCommand.ExecuteContext(ctx)
}

// createRootCommand builds the root Cobra command.
func createRootCommand(deps dependencies) *cobra.Command {
	if deps.logger == nil {
		deps.logger = zap.NewNop()
	}
	rootCommand := &cobra.Command{
		Use:          rootUse,
		Short:        rootShortDescription,
		Long:         rootLongDescription,
		Version:      utils.GetApplicationVersion(),
		SilenceUsage: true,
		RunE: func(command *cobra.Command, arguments []string) error {
			return command.Help()
		},
	}
	rootCommand.SetVersionTemplate(versionTemplate)
	rootCommand.SetOut(deps.stdout)
	rootCommand.SetErr(deps.stderr)
	rootCommand.AddCommand(
		createTreeCommand(deps),
		createAnalyzeCommand(deps),
		createInitCommand(deps),
	)
	rootCommand.InitDefaultHelpCmd()
	rootCommand.InitDefaultCompletionCmd()
	return rootCommand
}

// repositoryOptions stores the flags shared by commands that read a repository.
type repositoryOptions struct {
	configPath        string
	logLevel          string
	workspace         string
	extensions        []string
	exclusionPatterns []string
	disableGitignore  bool
	disableIgnoreFile bool
	includeGit        bool
	format            string
}

func addRepositoryFlags(command *cobra.Command, options *repositoryOptions) {
	command.Flags().StringVar(&options.configPath, configFlagName, "", configFlagDescription)
	command.Flags().StringVar(&options.logLevel, logLevelFlagName, "", logLevelFlagDescription)
	command.Flags().StringVar(&options.workspace, workspaceFlagName, "", workspaceFlagDescription)
	command.Flags().StringSliceVar(&options.extensions, extensionsFlagName, nil, extensionsFlagDescription)
	command.Flags().StringArrayVarP(&options.exclusionPatterns, exclusionFlagName, exclusionFlagName, nil, exclusionFlagDescription)
	command.Flags().BoolVar(&options.disableGitignore, noGitignoreFlagName, false, noGitignoreFlagDescription)
	command.Flags().BoolVar(&options.disableIgnoreFile, noIgnoreFlagName, false, noIgnoreFlagDescription)
	command.Flags().BoolVar(&options.includeGit, includeGitFlagName, false, includeGitFlagDescription)
	command.Flags().StringVar(&options.format, formatFlagName, types.FormatRaw, formatFlagDescription)
}

// commandRun carries the configuration resolved for one command invocation.
type commandRun struct {
	configuration config.ApplicationConfiguration
	logger        *zap.Logger
	fetcher       *repository.Fetcher
	extensions    []string
	ignore        config.IgnoreOptions
	format        string
}

// prepareRun loads configuration and applies the flags that override it.
func prepareRun(command *cobra.Command, deps dependencies, options repositoryOptions) (commandRun, error) {
	configuration, err := config.LoadApplicationConfiguration(config.LoadOptions{ExplicitFilePath: options.configPath})
	if err != nil {
		return commandRun{}, err
	}

	logger := deps.logger
	levelName := configuration.LogLevel
	if command.Flags().Changed(logLevelFlagName) {
		levelName = options.logLevel
	}
	if strings.TrimSpace(levelName) != "" {
		leveled, loggerErr := utils.NewLeveledApplicationLogger(levelName)
		if loggerErr != nil {
			return commandRun{}, fmt.Errorf(loggerErrorFormat, loggerErr)
		}
		logger = leveled
	}

	format := configuration.Output.Format
	if command.Flags().Changed(formatFlagName) || strings.TrimSpace(format) == "" {
		format = options.format
	}
	format = strings.ToLower(strings.TrimSpace(format))
	if format != types.FormatRaw && format != types.FormatJSON {
		return commandRun{}, fmt.Errorf(invalidFormatMessage, format)
	}

	workspace := configuration.Repository.Workspace
	if command.Flags().Changed(workspaceFlagName) {
		workspace = options.workspace
	}

	extensions := configuration.Repository.Extensions
	if command.Flags().Changed(extensionsFlagName) {
		extensions = options.extensions
	}
	if len(extensions) == 0 {
		extensions = repository.DefaultExtensions
	}

	ignore := configuration.Repository.Paths.IgnoreOptions()
	ignore.Exclude = append(ignore.Exclude, options.exclusionPatterns...)
	if options.disableGitignore {
		ignore.UseGitignore = false
	}
	if options.disableIgnoreFile {
		ignore.UseIgnoreFile = false
	}
	if options.includeGit {
		ignore.IncludeGit = true
	}

	return commandRun{
		configuration: configuration,
		logger:        logger,
		fetcher:       repository.NewFetcher(workspace, deps.gitRunner, logger),
		extensions:    repository.NormalizeExtensions(extensions),
		ignore:        ignore,
		format:        format,
	}, nil
}

// listRepositoryFiles clones repositoryURL and lists its eligible files. An
// unavailable repository yields no root and no files.
func (run commandRun) listRepositoryFiles(ctx context.Context, repositoryURL string) (string, []string) {
	localPath, fetchErr := run.fetcher.Fetch(ctx, repositoryURL)
	if fetchErr != nil {
		run.logger.Warn(logMessageFetchFailed, zap.String(logFieldURL, repositoryURL), zap.Error(fetchErr))
		return "", nil
	}
	ignorePatterns, ignoreErr := config.LoadRecursiveIgnorePatterns(localPath, run.ignore)
	if ignoreErr != nil {
		run.logger.Warn(logMessageIgnoreFailed, zap.String(logFieldPath, localPath), zap.Error(ignoreErr))
		ignorePatterns = repository.DefaultIgnorePatterns
	}
	return run.fetcher.ListCodeFiles(ctx, repositoryURL, run.extensions, ignorePatterns)
}

func (run commandRun) newRenderer(deps dependencies, commandName string, showCode bool) output.StreamRenderer {
	if run.format == types.FormatJSON {
		return output.NewJSONStreamRenderer(deps.stdout)
	}
	return output.NewRawStreamRenderer(deps.stdout, deps.stderr, commandName, deps.markdown, showCode)
}

// createTreeCommand returns the tree subcommand.
func createTreeCommand(deps dependencies) *cobra.Command {
	var options repositoryOptions

	treeCommand := &cobra.Command{
		Use:     treeUse,
		Aliases: []string{treeAlias},
		Short:   treeShortDescription,
		Long:    treeLongDescription,
		Example: treeUsageExample,
		Args:    cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, arguments []string) (err error) {
			run, prepareErr := prepareRun(command, deps, options)
			if prepareErr != nil {
				return prepareErr
			}
			ctx := command.Context()
			root, files := run.listRepositoryFiles(ctx, arguments[0])
			if root == "" {
				root = arguments[0]
			}

			renderer := run.newRenderer(deps, types.CommandTree, false)
			defer func() {
				if flushErr := renderer.Flush(); flushErr != nil && err == nil {
					err = flushErr
				}
			}()

			producer := func(streamCtx context.Context, events chan<- stream.Event) error {
				return stream.StreamTree(streamCtx, stream.TreeOptions{Root: root, Paths: files}, events)
			}
			return dispatchStream(ctx, producer, renderer.Handle)
		},
	}

	addRepositoryFlags(treeCommand, &options)
	return treeCommand
}

// createInitCommand returns the init subcommand.
func createInitCommand(deps dependencies) *cobra.Command {
	var global bool
	var force bool

	initCommand := &cobra.Command{
		Use:   initUse,
		Short: initShortDescription,
		Long:  initLongDescription,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			target := config.InitTargetLocal
			if global {
				target = config.InitTargetGlobal
			}
			destination, err := config.InitializeConfiguration(config.InitOptions{Target: target, Force: force})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(deps.stdout, configurationWrittenFmt, destination)
			return err
		},
	}
	initCommand.Flags().BoolVar(&global, globalFlagName, false, globalFlagDescription)
	initCommand.Flags().BoolVar(&force, forceFlagName, false, forceFlagDescription)
	return initCommand
}

// dispatchStream runs produce and consume concurrently over an unbuffered
// channel. Cancellation is not reported as an error.
func dispatchStream(
	ctx context.Context,
	produce func(context.Context, chan<- stream.Event) error,
	consume func(stream.Event) error,
) error {
	group, streamCtx := errgroup.WithContext(ctx)
	events := make(chan stream.Event)

	group.Go(func() error {
		defer close(events)
		return produce(streamCtx, events)
	})

	group.Go(func() error {
		for {
			select {
			case <-streamCtx.Done():
				return streamCtx.Err()
			case event, ok := <-events:
				if !ok {
					return nil
				}
				if err := consume(event); err != nil {
					return err
				}
			}
		}
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
