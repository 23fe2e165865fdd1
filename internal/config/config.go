// Package config loads application configuration, environment credentials and
// the ignore files found inside working copies.
package config

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/temirov/codereview/internal/utils"
)

// gitDirectoryPattern represents the pattern that matches the Git directory.
const gitDirectoryPattern = utils.GitDirectoryName + "/"

// IgnoreOptions selects which ignore sources LoadRecursiveIgnorePatterns honors.
type IgnoreOptions struct {
	Exclude       []string
	UseGitignore  bool
	UseIgnoreFile bool
	IncludeGit    bool
}

// IgnoreOptions resolves the path configuration into loader options. Unset
// switches honor both ignore files and exclude the Git directory.
func (config PathConfiguration) IgnoreOptions() IgnoreOptions {
	return IgnoreOptions{
		Exclude:       config.Exclude,
		UseGitignore:  boolOrDefault(config.UseGitignore, true),
		UseIgnoreFile: boolOrDefault(config.UseIgnoreFile, true),
		IncludeGit:    boolOrDefault(config.IncludeGit, false),
	}
}

// LoadIgnoreFilePatterns reads one ignore file. Blank lines and comments are
// skipped; a missing file yields no patterns.
//
// #nosec G304
func LoadIgnoreFilePatterns(ignoreFilePath string) ([]string, error) {
	fileHandle, openFileError := os.Open(ignoreFilePath)
	if openFileError != nil {
		if os.IsNotExist(openFileError) {
			return nil, nil
		}
		return nil, openFileError
	}
	defer func() {
		closeError := fileHandle.Close()
		if closeError != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close %s: %v\n", ignoreFilePath, closeError)
		}
	}()

	var ignorePatterns []string
	scanner := bufio.NewScanner(fileHandle)
	for scanner.Scan() {
		trimmedLine := strings.TrimSpace(scanner.Text())
		if trimmedLine == "" || strings.HasPrefix(trimmedLine, "#") || strings.HasPrefix(trimmedLine, "!") {
			continue
		}
		ignorePatterns = append(ignorePatterns, strings.TrimPrefix(trimmedLine, "/"))
	}
	if scanError := scanner.Err(); scanError != nil {
		return nil, scanError
	}
	return ignorePatterns, nil
}

// LoadRecursiveIgnorePatterns walks rootDirectoryPath and aggregates the patterns
// of every nested utils.IgnoreFileName and utils.GitIgnoreFileName. Patterns from
// a child directory are prefixed with that directory's path relative to the
// root. The Git directory is excluded unless options.IncludeGit is set, and
// options.Exclude is appended last.
func LoadRecursiveIgnorePatterns(rootDirectoryPath string, options IgnoreOptions) ([]string, error) {
	var aggregatedPatterns []string

	walkFunction := func(currentDirectoryPath string, directoryEntry fs.DirEntry, walkError error) error {
		if walkError != nil {
			return walkError
		}
		if !directoryEntry.IsDir() {
			return nil
		}
		if !options.IncludeGit && directoryEntry.Name() == utils.GitDirectoryName {
			return filepath.SkipDir
		}

		relativeDirectory := utils.RelativePathOrSelf(currentDirectoryPath, rootDirectoryPath)
		prefix := ""
		if relativeDirectory != "." {
			prefix = relativeDirectory + "/"
		}

		var sources []string
		if options.UseIgnoreFile {
			sources = append(sources, utils.IgnoreFileName)
		}
		if options.UseGitignore {
			sources = append(sources, utils.GitIgnoreFileName)
		}
		for _, sourceName := range sources {
			patterns, loadError := LoadIgnoreFilePatterns(filepath.Join(currentDirectoryPath, sourceName))
			if loadError != nil {
				return fmt.Errorf("loading %s from %s: %w", sourceName, currentDirectoryPath, loadError)
			}
			for _, pattern := range patterns {
				aggregatedPatterns = append(aggregatedPatterns, prefix+pattern)
			}
		}
		return nil
	}

	if _, statError := os.Stat(rootDirectoryPath); statError == nil {
		if walkError := filepath.WalkDir(rootDirectoryPath, walkFunction); walkError != nil {
			return nil, walkError
		}
	}

	if !options.IncludeGit {
		aggregatedPatterns = append(aggregatedPatterns, gitDirectoryPattern)
	}
	for _, pattern := range options.Exclude {
		if trimmedPattern := strings.TrimSpace(pattern); trimmedPattern != "" {
			aggregatedPatterns = append(aggregatedPatterns, trimmedPattern)
		}
	}

	return utils.DeduplicatePatterns(aggregatedPatterns), nil
}

func boolOrDefault(value *bool, fallback bool) bool {
	if value == nil {
		return fallback
	}
	return *value
}
