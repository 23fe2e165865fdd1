package output

import (
	"fmt"
	"io"

	"github.com/temirov/codereview/internal/types"
)

const (
	treeBranchConnector = "├── "
	treeLastConnector   = "└── "
	treeIndentSpacer    = "    "
	treeVerticalSpacer  = "│   "
)

// WriteTreeRaw prints nodes with box drawing connectors under a root label.
func WriteTreeRaw(writer io.Writer, rootLabel string, nodes []*types.FileTreeNode) {
	if rootLabel != "" {
		fmt.Fprintln(writer, rootLabel)
	}
	for index, node := range nodes {
		renderTreeNode(writer, node, "", index == len(nodes)-1)
	}
}

func renderTreeNode(writer io.Writer, node *types.FileTreeNode, prefix string, isLast bool) {
	if node == nil {
		return
	}
	connector := treeBranchConnector
	childPrefix := prefix + treeVerticalSpacer
	if isLast {
		connector = treeLastConnector
		childPrefix = prefix + treeIndentSpacer
	}
	fmt.Fprintf(writer, "%s%s%s\n", prefix, connector, node.Label)
	for index, child := range node.Children {
		renderTreeNode(writer, child, childPrefix, index == len(node.Children)-1)
	}
}

// FormatSummaryLine renders the batch summary on one line.
func FormatSummaryLine(summary *types.AnalysisSummary) string {
	if summary == nil {
		return ""
	}
	line := fmt.Sprintf("Summary: %d file", summary.TotalFiles)
	if summary.TotalFiles != 1 {
		line += "s"
	}
	if summary.TotalBytes != "" {
		line += ", " + summary.TotalBytes
	}
	for _, outcome := range []types.Outcome{
		types.OutcomeCompleted,
		types.OutcomeCached,
		types.OutcomeEmpty,
		types.OutcomeBudgetExhausted,
		types.OutcomeProviderFailure,
		types.OutcomeReadFailure,
	} {
		if count := summary.Outcomes[string(outcome)]; count > 0 {
			line += fmt.Sprintf(", %d %s", count, outcome)
		}
	}
	if summary.Model != "" {
		line += fmt.Sprintf(" (model %s)", summary.Model)
	}
	return line
}
