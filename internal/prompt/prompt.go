// Package prompt builds the review instructions sent to the completion provider.
package prompt

import (
	"fmt"
	"strings"

	"github.com/temirov/codereview/internal/types"
)

// Version identifies the response contract requested by Build.
const Version = "1"

const (
	responsePlaceholder = "RESPONSE"
	codeFence           = "```"
	sectionLineFormat   = "**%s**: %s\n"

	taskInstruction = "Analyze the code below and provide feedback on syntax and logical errors, code\n" +
		"refactoring and quality, performance optimization, security vulnerabilities,\n" +
		"and best practices. Please provide specific examples of improvements for each\n" +
		"area. Be concise and focus on the most important issues.\n\n"
	formatInstruction = "Use the following response format, replacing 'RESPONSE' with feedback.\n" +
		"Keep exactly these five labels in this order and do not add, rename or omit any:\n"
	codeHeading = "\nCode:\n"
	closingCue  = "\n\nYour review:"
)

// Sections lists the labeled sections every review must contain, in order.
var Sections = []string{
	"Syntax and logical errors",
	"Code refactoring and quality",
	"Performance optimization",
	"Security vulnerabilities",
	"Best practices",
}

// Build returns the review prompt embedding code verbatim in a fenced block.
func Build(code string) string {
	var builder strings.Builder
	builder.WriteString(taskInstruction)
	builder.WriteString(formatInstruction)
	for _, section := range Sections {
		builder.WriteString(fmt.Sprintf(sectionLineFormat, section, responsePlaceholder))
	}
	builder.WriteString(codeHeading)
	builder.WriteString(codeFence)
	builder.WriteString(code)
	builder.WriteString(codeFence)
	builder.WriteString(closingCue)
	return builder.String()
}

// Messages wraps the prompt for code into the chat conversation sent to the provider.
func Messages(code string) []types.ChatMessage {
	return []types.ChatMessage{{Role: types.RoleUser, Content: Build(code)}}
}
