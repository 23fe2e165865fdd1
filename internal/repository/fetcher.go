// Package repository clones remote repositories into a local workspace and
// turns their contents into file lists and selection trees.
package repository

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/codereview/internal/utils"
)

// ErrRepositoryUnavailable reports a repository that could not be cloned.
var ErrRepositoryUnavailable = errors.New("repository unavailable")

// ErrInvalidRepositoryURL reports a URL without a usable repository name.
var ErrInvalidRepositoryURL = errors.New("invalid repository url")

const (
	gitExecutableName   = "git"
	gitSuffix           = ".git"
	scpStyleSeparator   = ":"
	githubHost          = "github.com"
	defaultCloneDepth   = 1
	workspacePermission = 0o755

	gitCommandErrorFormat        = "git %s: %w: %s"
	invalidRepositoryErrorFormat = "%w: %q"
	createWorkspaceErrorFormat   = "create workspace %s: %w"
	cloneErrorFormat             = "%w: %s: %w"

	logMessageReusingWorkingCopy = "reusing working copy"
	logMessageCloning            = "cloning repository"
	logMessageCloned             = "repository cloned"
	logMessageCleanupFailed      = "failed to remove partial clone"
	logMessageNoRepository       = "no repository available"
	logMessageEnumerationFailed  = "failed to enumerate files"
	logMessageEnumerationDone    = "files enumerated"
	logFieldURL                  = "url"
	logFieldPath                 = "path"
	logFieldFiles                = "files"
)

// GitRunner clones a repository into a destination directory.
type GitRunner interface {
	Clone(ctx context.Context, repositoryURL string, destination string) error
}

// CommandGitRunner clones with the git executable found on PATH.
type CommandGitRunner struct {
	Depth int
}

// Clone runs a shallow git clone.
func (runner CommandGitRunner) Clone(ctx context.Context, repositoryURL string, destination string) error {
	depth := runner.Depth
	if depth <= 0 {
		depth = defaultCloneDepth
	}
	arguments := []string{"clone", "--depth", strconv.Itoa(depth), repositoryURL, destination}
	command := exec.CommandContext(ctx, gitExecutableName, arguments...)
	combinedOutput, runError := command.CombinedOutput()
	if runError != nil {
		return fmt.Errorf(gitCommandErrorFormat, strings.Join(arguments, " "), runError, strings.TrimSpace(string(combinedOutput)))
	}
	return nil
}

// DefaultWorkspace returns the directory under the system temp dir holding working copies.
func DefaultWorkspace() string {
	return filepath.Join(os.TempDir(), utils.WorkspaceDirectoryName)
}

// Fetcher materializes remote repositories as working copies under Workspace.
type Fetcher struct {
	workspace string
	git       GitRunner
	logger    *zap.Logger
}

// NewFetcher builds a Fetcher. Empty workspace selects DefaultWorkspace and a nil
// runner selects CommandGitRunner.
func NewFetcher(workspace string, git GitRunner, logger *zap.Logger) *Fetcher {
	if strings.TrimSpace(workspace) == utils.EmptyString {
		workspace = DefaultWorkspace()
	}
	if git == nil {
		git = CommandGitRunner{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{workspace: workspace, git: git, logger: logger}
}

// Workspace returns the directory holding working copies.
func (fetcher *Fetcher) Workspace() string {
	return fetcher.workspace
}

// Fetch returns the working copy path for repositoryURL, cloning it first when
// the path does not exist yet. A failed clone leaves no directory behind.
func (fetcher *Fetcher) Fetch(ctx context.Context, repositoryURL string) (string, error) {
	cloneURL, repositoryName, resolveError := ResolveRepository(repositoryURL)
	if resolveError != nil {
		return utils.EmptyString, resolveError
	}
	localPath := filepath.Join(fetcher.workspace, repositoryName)

	if _, statError := os.Stat(localPath); statError == nil {
		fetcher.logger.Info(logMessageReusingWorkingCopy, zap.String(logFieldURL, repositoryURL), zap.String(logFieldPath, localPath))
		return localPath, nil
	}

	if makeError := os.MkdirAll(fetcher.workspace, workspacePermission); makeError != nil {
		return utils.EmptyString, fmt.Errorf(createWorkspaceErrorFormat, fetcher.workspace, makeError)
	}

	fetcher.logger.Info(logMessageCloning, zap.String(logFieldURL, cloneURL), zap.String(logFieldPath, localPath))
	if cloneError := fetcher.git.Clone(ctx, cloneURL, localPath); cloneError != nil {
		if removeError := os.RemoveAll(localPath); removeError != nil {
			fetcher.logger.Warn(logMessageCleanupFailed, zap.String(logFieldPath, localPath), zap.Error(removeError))
		}
		return utils.EmptyString, fmt.Errorf(cloneErrorFormat, ErrRepositoryUnavailable, repositoryURL, cloneError)
	}
	fetcher.logger.Info(logMessageCloned, zap.String(logFieldPath, localPath))
	return localPath, nil
}

// ListCodeFiles fetches repositoryURL and enumerates the files matching
// extensions. It never fails: an unavailable repository yields an empty root
// and no files.
func (fetcher *Fetcher) ListCodeFiles(ctx context.Context, repositoryURL string, extensions []string, ignorePatterns []string) (string, []string) {
	localPath, fetchError := fetcher.Fetch(ctx, repositoryURL)
	if fetchError != nil {
		fetcher.logger.Warn(logMessageNoRepository, zap.String(logFieldURL, repositoryURL), zap.Error(fetchError))
		return utils.EmptyString, nil
	}
	files, enumerateError := EnumerateFiles(localPath, extensions, ignorePatterns)
	if enumerateError != nil {
		fetcher.logger.Warn(logMessageEnumerationFailed, zap.String(logFieldPath, localPath), zap.Error(enumerateError))
		return localPath, nil
	}
	fetcher.logger.Info(logMessageEnumerationDone, zap.String(logFieldPath, localPath), zap.Int(logFieldFiles, len(files)))
	return localPath, files
}

// ResolveRepository normalizes a repository reference into a clone URL and the
// working copy directory name. Accepted forms are owner/repo shorthand for
// GitHub, URLs with any scheme, and scp-style git@host:owner/repo addresses.
func ResolveRepository(rawURL string) (string, string, error) {
	trimmedURL := strings.TrimSpace(rawURL)
	if trimmedURL == utils.EmptyString {
		return utils.EmptyString, utils.EmptyString, fmt.Errorf(invalidRepositoryErrorFormat, ErrInvalidRepositoryURL, rawURL)
	}

	cloneURL := trimmedURL
	var repositoryPath string
	switch {
	case strings.Contains(trimmedURL, "://"):
		parsedURL, parseError := url.Parse(trimmedURL)
		if parseError != nil {
			return utils.EmptyString, utils.EmptyString, fmt.Errorf(invalidRepositoryErrorFormat, ErrInvalidRepositoryURL, rawURL)
		}
		repositoryPath = parsedURL.Path
	case strings.HasPrefix(trimmedURL, "git@"):
		separatorIndex := strings.Index(trimmedURL, scpStyleSeparator)
		if separatorIndex < 0 {
			return utils.EmptyString, utils.EmptyString, fmt.Errorf(invalidRepositoryErrorFormat, ErrInvalidRepositoryURL, rawURL)
		}
		repositoryPath = trimmedURL[separatorIndex+1:]
	default:
		if _, statError := os.Stat(trimmedURL); statError == nil {
			repositoryPath = filepath.ToSlash(trimmedURL)
			break
		}
		owner, repository, isShorthand := splitOwnerRepository(trimmedURL)
		if !isShorthand {
			return utils.EmptyString, utils.EmptyString, fmt.Errorf(invalidRepositoryErrorFormat, ErrInvalidRepositoryURL, rawURL)
		}
		cloneURL = fmt.Sprintf("https://%s/%s/%s%s", githubHost, owner, repository, gitSuffix)
		repositoryPath = repository
	}

	repositoryName := repositoryNameFromPath(repositoryPath)
	if validationError := validateRepositoryName(repositoryName); validationError != nil {
		return utils.EmptyString, utils.EmptyString, fmt.Errorf(invalidRepositoryErrorFormat, ErrInvalidRepositoryURL, rawURL)
	}
	return cloneURL, repositoryName, nil
}

func repositoryNameFromPath(repositoryPath string) string {
	trimmedPath := strings.TrimRight(strings.TrimSpace(repositoryPath), "/")
	segments := strings.Split(trimmedPath, "/")
	lastSegment := segments[len(segments)-1]
	return strings.TrimSuffix(lastSegment, gitSuffix)
}

func splitOwnerRepository(repositoryPath string) (string, string, bool) {
	parts := strings.Split(strings.Trim(repositoryPath, "/"), "/")
	if len(parts) != 2 {
		return utils.EmptyString, utils.EmptyString, false
	}
	owner := strings.TrimSpace(parts[0])
	repository := strings.TrimSuffix(strings.TrimSpace(parts[1]), gitSuffix)
	if owner == utils.EmptyString || repository == utils.EmptyString {
		return utils.EmptyString, utils.EmptyString, false
	}
	return owner, repository, true
}

func validateRepositoryName(name string) error {
	if name == utils.EmptyString || name == "." || name == ".." {
		return ErrInvalidRepositoryURL
	}
	if strings.ContainsAny(name, `/\`) || path.Clean(name) != name {
		return ErrInvalidRepositoryURL
	}
	return nil
}
