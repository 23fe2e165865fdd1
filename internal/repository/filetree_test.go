package repository_test

import (
	"encoding/json"
	"reflect"
	"sort"
	"testing"

	"github.com/temirov/codereview/internal/repository"
	"github.com/temirov/codereview/internal/types"
)

func TestBuildFileTreeStructure(t *testing.T) {
	paths := []string{"src/util/b.py", "README.py", "src/a.py", "src/util/a.py"}
	tree := repository.BuildFileTree(paths, repository.PathSeparator)

	expected := []*types.FileTreeNode{
		{Label: "README.py", Value: "README.py"},
		{Label: "src", Value: "src", Children: []*types.FileTreeNode{
			{Label: "a.py", Value: "src/a.py"},
			{Label: "util", Value: "src/util", Children: []*types.FileTreeNode{
				{Label: "a.py", Value: "src/util/a.py"},
				{Label: "b.py", Value: "src/util/b.py"},
			}},
		}},
	}
	if !reflect.DeepEqual(tree, expected) {
		actualJSON, _ := json.Marshal(tree)
		expectedJSON, _ := json.Marshal(expected)
		t.Fatalf("expected %s, got %s", expectedJSON, actualJSON)
	}
}

func TestBuildFileTreeLeavesOmitChildren(t *testing.T) {
	tree := repository.BuildFileTree([]string{"main.go"}, repository.PathSeparator)
	encoded, err := json.Marshal(tree)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(encoded) != `[{"label":"main.go","value":"main.go"}]` {
		t.Fatalf("unexpected encoding %s", encoded)
	}
}

func TestFileTreeRoundTrip(t *testing.T) {
	testCases := []struct {
		name      string
		paths     []string
		separator string
	}{
		{name: "empty", paths: nil, separator: "/"},
		{name: "flat", paths: []string{"b.py", "a.py"}, separator: "/"},
		{name: "nested", paths: []string{"x/y/z.go", "x/y.go", "w.go", "x/a/b/c.go"}, separator: "/"},
		{name: "backslash separator", paths: []string{`pkg\mod.rs`, `pkg\sub\lib.rs`}, separator: `\`},
		{name: "shared names", paths: []string{"a/main.c", "b/main.c", "main.c"}, separator: "/"},
	}
	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			tree := repository.BuildFileTree(testCase.paths, testCase.separator)
			flattened := repository.FlattenFileTree(tree, testCase.separator)
			expected := append([]string(nil), testCase.paths...)
			sort.Strings(expected)
			sort.Strings(flattened)
			if len(expected) == 0 && len(flattened) == 0 {
				return
			}
			if !reflect.DeepEqual(flattened, expected) {
				t.Fatalf("expected %v, got %v", expected, flattened)
			}
		})
	}
}
