package repository

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/temirov/codereview/internal/utils"
)

const extensionPrefix = "."

// DefaultExtensions lists the source file extensions analyzed when none are configured.
var DefaultExtensions = []string{
	".py", ".js", ".java", ".cpp", ".c", ".rb", ".php", ".cs", ".go", ".swift", ".ts", ".rs", ".kt", ".m",
}

// extensionLanguages maps source extensions to markdown code fence tags.
var extensionLanguages = map[string]string{
	".py":    "python",
	".js":    "javascript",
	".java":  "java",
	".cpp":   "cpp",
	".c":     "c",
	".rb":    "ruby",
	".php":   "php",
	".cs":    "csharp",
	".go":    "go",
	".swift": "swift",
	".ts":    "typescript",
	".rs":    "rust",
	".kt":    "kotlin",
	".m":     "objective-c",
}

// LanguageForPath returns the fence tag for path's extension, or an empty
// string when the extension is unknown.
func LanguageForPath(path string) string {
	return extensionLanguages[strings.ToLower(filepath.Ext(path))]
}

// DefaultIgnorePatterns excludes version control metadata from enumeration.
var DefaultIgnorePatterns = []string{utils.GitDirectoryName + "/"}

// NormalizeExtensions trims extensions, adds a missing leading dot, drops
// empty values and removes duplicates while preserving order.
func NormalizeExtensions(extensions []string) []string {
	normalized := make([]string, 0, len(extensions))
	for _, extension := range extensions {
		trimmedExtension := strings.TrimSpace(extension)
		if trimmedExtension == utils.EmptyString || trimmedExtension == extensionPrefix {
			continue
		}
		if !strings.HasPrefix(trimmedExtension, extensionPrefix) {
			trimmedExtension = extensionPrefix + trimmedExtension
		}
		normalized = append(normalized, trimmedExtension)
	}
	return utils.DeduplicatePatterns(normalized)
}

// EnumerateFiles returns every regular file below root whose name ends with one
// of extensions, joined with root and sorted. Paths matching ignorePatterns
// relative to root are skipped, and so are entries that cannot be read. A
// missing root yields no files and no error.
func EnumerateFiles(root string, extensions []string, ignorePatterns []string) ([]string, error) {
	normalizedExtensions := NormalizeExtensions(extensions)
	if len(normalizedExtensions) == 0 {
		return nil, nil
	}
	if _, statError := os.Stat(root); statError != nil {
		if errors.Is(statError, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, statError
	}

	var matchedFiles []string
	walkError := filepath.WalkDir(root, func(currentPath string, entry fs.DirEntry, entryError error) error {
		if entryError != nil {
			if entry != nil && entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if currentPath == root {
			return nil
		}
		relativePath := utils.RelativePathOrSelf(currentPath, root)
		if utils.ShouldIgnoreByPath(relativePath, ignorePatterns) {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !entry.Type().IsRegular() {
			return nil
		}
		if hasAnySuffix(entry.Name(), normalizedExtensions) {
			matchedFiles = append(matchedFiles, currentPath)
		}
		return nil
	})
	if walkError != nil {
		return nil, walkError
	}
	sort.Strings(matchedFiles)
	return matchedFiles, nil
}

// RelativePaths converts paths below root into forward-slash relative paths.
func RelativePaths(root string, paths []string) []string {
	relativePaths := make([]string, 0, len(paths))
	for _, currentPath := range paths {
		relativePaths = append(relativePaths, utils.RelativePathOrSelf(currentPath, root))
	}
	return relativePaths
}

func hasAnySuffix(name string, suffixes []string) bool {
	for _, suffix := range suffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}
