// Package types defines every cross‑package data structure used by the codereview CLI.
package types

const (
	CommandTree    = "tree"
	CommandAnalyze = "analyze"

	FormatRaw  = "raw"
	FormatJSON = "json"

	// NoCodeFoundMessage is the recommendation attached to files without content.
	NoCodeFoundMessage = "No code found in file"
	// CodeTooLongMessage is the recommendation attached to files whose prompt leaves too small a response budget.
	CodeTooLongMessage = "The code file is too long to analyze. Select a smaller file or a model with a larger context window."
	// AnalysisErrorMessagePrefix starts every recommendation produced from a failed analysis.
	AnalysisErrorMessagePrefix = "Error analyzing code file: "
	// NoRecommendationsMessage replaces an empty recommendation in reports.
	NoRecommendationsMessage = "No recommendations"
)

// Outcome classifies how a recommendation was produced.
type Outcome string

const (
	OutcomeCompleted       Outcome = "completed"
	OutcomeCached          Outcome = "cached"
	OutcomeEmpty           Outcome = "empty"
	OutcomeBudgetExhausted Outcome = "budget_exhausted"
	OutcomeProviderFailure Outcome = "provider_failure"
	OutcomeReadFailure     Outcome = "read_failure"
)

// FileRecord is one file read from the working copy for analysis.
type FileRecord struct {
	Path    string
	Content string
}

// FileTreeNode is a node of the selection tree built from relative file paths.
// Leaves carry no children.
type FileTreeNode struct {
	Label    string          `json:"label"`
	Value    string          `json:"value"`
	Children []*FileTreeNode `json:"children,omitempty"`
}

// IsLeaf reports whether the node represents a file.
func (node *FileTreeNode) IsLeaf() bool {
	return node != nil && node.Children == nil
}

// AnalysisResult is the outcome of analyzing one file.
type AnalysisResult struct {
	CodeFile       string  `json:"code_file"`
	CodeSnippet    string  `json:"code_snippet"`
	Recommendation string  `json:"recommendation"`
	Outcome        Outcome `json:"outcome,omitempty"`
	PromptTokens   int     `json:"prompt_tokens,omitempty"`
	MaxTokens      int     `json:"max_tokens,omitempty"`
}

// Failed reports whether the recommendation describes an error instead of a review.
func (result AnalysisResult) Failed() bool {
	return result.Outcome == OutcomeProviderFailure || result.Outcome == OutcomeReadFailure
}

// AnalysisSummary aggregates the outcomes of a batch.
type AnalysisSummary struct {
	TotalFiles int            `json:"totalFiles"`
	TotalBytes string         `json:"totalBytes"`
	Outcomes   map[string]int `json:"outcomes,omitempty"`
	Model      string         `json:"model,omitempty"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one entry of a chat completion conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}
