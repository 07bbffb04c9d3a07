package advisor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"google.golang.org/genai"

	"github.com/agrisa/satellite-data-service/internal/assemble"
)

type fakeModels struct {
	calls  int
	prompt string
	text   string
	err    error
}

func (f *fakeModels) GenerateContent(_ context.Context, _ string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.calls++
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.prompt = contents[0].Parts[0].Text
	}
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromText(f.text, genai.RoleModel)}},
	}, nil
}

func record(date string, mean float64) assemble.ImageRecord {
	d := date
	return assemble.ImageRecord{
		AcquisitionDate: &d,
		NDVIStatistics:  &assemble.StatisticsBlock{Mean: assemble.Measure{Value: mean}},
		Interpretation:  assemble.Interpretation{Category: "Healthy vegetation"},
	}
}

func series() *assemble.Response {
	return &assemble.Response{
		Summary:        assemble.Summary{DateRange: "2024-01-01 to 2024-03-31"},
		ProcessingInfo: assemble.ProcessingInfo{Index: "NDVI"},
		Images: []assemble.ImageRecord{
			record("2024-03-01", 0.52),
			record("2024-01-15", 0.61),
		},
	}
}

func TestPromptOrdersByDate(t *testing.T) {
	p := Prompt(series())
	first := strings.Index(p, "2024-01-15")
	second := strings.Index(p, "2024-03-01")
	if first < 0 || second < 0 || first > second {
		t.Errorf("prompt not in date order:\n%s", p)
	}
	if !strings.Contains(p, "Index: NDVI") {
		t.Errorf("prompt missing index:\n%s", p)
	}
}

func TestSummarize(t *testing.T) {
	fake := &fakeModels{text: "  NDVI fell 15% in February.  "}
	got, err := New(fake, "gemini-2.5-flash").Summarize(context.Background(), series())
	if err != nil {
		t.Fatal(err)
	}
	if got != "NDVI fell 15% in February." {
		t.Errorf("summary = %q", got)
	}
	if !strings.Contains(fake.prompt, "0.610") {
		t.Errorf("prompt = %q", fake.prompt)
	}
}

func TestSummarizeEmptySeriesSkipsModel(t *testing.T) {
	fake := &fakeModels{}
	got, err := New(fake, "m").Summarize(context.Background(), &assemble.Response{})
	if err != nil || got != "" || fake.calls != 0 {
		t.Errorf("got %q, %v after %d calls", got, err, fake.calls)
	}
}

func TestSummarizeError(t *testing.T) {
	fake := &fakeModels{err: errors.New("quota exceeded")}
	if _, err := New(fake, "m").Summarize(context.Background(), series()); err == nil {
		t.Fatal("expected error")
	}
}
