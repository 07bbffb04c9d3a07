// Package assets provides embedded static assets for the application.
//
// Prompt templates are stored as text files under prompts/ and embedded at
// compile time.
package assets

import (
	_ "embed"
	"strings"
)

//go:embed prompts/insights-system.txt
var insightsSystemPrompt string

// InsightsSystemPrompt is the system instruction for index-series insights.
func InsightsSystemPrompt() string {
	return strings.TrimSpace(insightsSystemPrompt)
}
