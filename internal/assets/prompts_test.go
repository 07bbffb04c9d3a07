package assets

import (
	"strings"
	"testing"
)

func TestInsightsSystemPrompt(t *testing.T) {
	p := InsightsSystemPrompt()
	if p == "" || strings.HasSuffix(p, "\n") {
		t.Fatalf("prompt = %q", p)
	}
	if !strings.Contains(p, "Vietnam") || !strings.Contains(p, "RVI") {
		t.Errorf("prompt missing context: %q", p)
	}
}
