package prompt_test

import (
	"strings"
	"testing"

	"github.com/temirov/codereview/internal/prompt"
	"github.com/temirov/codereview/internal/types"
)

func TestBuildEmbedsCodeVerbatim(t *testing.T) {
	code := "def add(a, b):\n    return a + b\n"
	built := prompt.Build(code)
	if !strings.Contains(built, "```"+code+"```") {
		t.Fatalf("expected fenced code in prompt:\n%s", built)
	}
	if !strings.HasSuffix(built, "Your review:") {
		t.Fatalf("expected prompt to end with the review cue:\n%s", built)
	}
}

func TestBuildListsSectionsInOrder(t *testing.T) {
	built := prompt.Build("x = 1")
	if len(prompt.Sections) != 5 {
		t.Fatalf("expected five sections, got %d", len(prompt.Sections))
	}
	previousIndex := -1
	for _, section := range prompt.Sections {
		label := "**" + section + "**: RESPONSE"
		index := strings.Index(built, label)
		if index < 0 {
			t.Fatalf("missing section %q", label)
		}
		if index <= previousIndex {
			t.Fatalf("section %q out of order", section)
		}
		previousIndex = index
	}
	if codeIndex := strings.Index(built, "Code:"); codeIndex < previousIndex {
		t.Fatalf("expected code after the section list")
	}
}

func TestMessages(t *testing.T) {
	messages := prompt.Messages("package main")
	if len(messages) != 1 {
		t.Fatalf("expected one message, got %d", len(messages))
	}
	if messages[0].Role != types.RoleUser || messages[0].Content != prompt.Build("package main") {
		t.Fatalf("unexpected message %+v", messages[0])
	}
}
