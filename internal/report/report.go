// Package report assembles analysis results into the downloadable markdown document.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/temirov/codereview/internal/types"
)

const (
	documentHeading = "# Recommendations"
	sectionFormat   = "\n\n## %s\n\n%s"
	filePermission  = 0o644

	writeReportErrorFormat = "write report %s: %w"
)

// ArtifactDescriptor names the report file and its media type.
type ArtifactDescriptor struct {
	FileName string
	MimeType string
}

// Artifact describes the report written by Write.
var Artifact = ArtifactDescriptor{
	FileName: "code_review_recommendations.md",
	MimeType: "text/markdown",
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"`", "\\`",
	"*", `\*`,
	"_", `\_`,
	"[", `\[`,
	"]", `\]`,
	"<", `\<`,
	">", `\>`,
	"~", `\~`,
)

// EscapeMarkdown backslash-escapes the characters that would start inline
// formatting, so a path such as pkg/__init__.py renders literally.
func EscapeMarkdown(text string) string {
	return markdownEscaper.Replace(text)
}

// Assemble renders results as one markdown document with a section per file
// in input order. No results produce the heading alone.
func Assemble(results []types.AnalysisResult) string {
	var builder strings.Builder
	builder.WriteString(documentHeading)
	for _, result := range results {
		recommendation := result.Recommendation
		if recommendation == "" {
			recommendation = types.NoRecommendationsMessage
		}
		builder.WriteString(fmt.Sprintf(sectionFormat, EscapeMarkdown(result.CodeFile), recommendation))
	}
	builder.WriteString("\n")
	return builder.String()
}

// Write stores markdown as the report artifact inside directory and returns its path.
func Write(directory string, markdown string) (string, error) {
	if directory == "" {
		directory = "."
	}
	reportPath := filepath.Join(directory, Artifact.FileName)
	if makeError := os.MkdirAll(directory, 0o755); makeError != nil {
		return "", fmt.Errorf(writeReportErrorFormat, reportPath, makeError)
	}
	if writeError := os.WriteFile(reportPath, []byte(markdown), filePermission); writeError != nil {
		return "", fmt.Errorf(writeReportErrorFormat, reportPath, writeError)
	}
	return reportPath, nil
}
