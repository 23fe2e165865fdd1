package repository

import (
	"sort"
	"strings"

	"github.com/temirov/codereview/internal/types"
)

// PathSeparator separates segments of the relative paths fed to BuildFileTree.
const PathSeparator = "/"

// BuildFileTree nests paths into labeled nodes split on separator. Each node's
// Value is the path prefix up to and including its label; leaves carry no
// children. Siblings appear in the order of the sorted input.
func BuildFileTree(paths []string, separator string) []*types.FileTreeNode {
	sortedPaths := append([]string(nil), paths...)
	sort.Strings(sortedPaths)

	var roots []*types.FileTreeNode
	for _, currentPath := range sortedPaths {
		if currentPath == "" {
			continue
		}
		level := &roots
		segments := strings.Split(currentPath, separator)
		for depth, segment := range segments {
			node := findNode(*level, segment)
			if node == nil {
				node = &types.FileTreeNode{
					Label: segment,
					Value: strings.Join(segments[:depth+1], separator),
				}
				*level = append(*level, node)
			}
			if depth == len(segments)-1 {
				break
			}
			if node.Children == nil {
				node.Children = []*types.FileTreeNode{}
			}
			level = &node.Children
		}
	}
	return roots
}

// FlattenFileTree returns the root-to-leaf paths of nodes joined with separator.
func FlattenFileTree(nodes []*types.FileTreeNode, separator string) []string {
	var paths []string
	var visit func(node *types.FileTreeNode, prefix string)
	visit = func(node *types.FileTreeNode, prefix string) {
		if node == nil {
			return
		}
		currentPath := node.Label
		if prefix != "" {
			currentPath = prefix + separator + node.Label
		}
		if node.IsLeaf() {
			paths = append(paths, currentPath)
			return
		}
		for _, child := range node.Children {
			visit(child, currentPath)
		}
	}
	for _, node := range nodes {
		visit(node, "")
	}
	return paths
}

func findNode(nodes []*types.FileTreeNode, label string) *types.FileTreeNode {
	for _, node := range nodes {
		if node.Label == label {
			return node
		}
	}
	return nil
}
