package prompts

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"
)

// ============================================================================
// Shared lexicon
// ============================================================================

// SeasonalMotifs lists example subjects per season, offered to the model as
// inspiration so themes track the calendar.
var SeasonalMotifs = map[string][]string{
	"winter": {"snow", "cozy evenings", "mountains", "holiday lights", "frost"},
	"spring": {"blossoms", "gardens", "rain", "picnics", "new beginnings"},
	"summer": {"beach", "sunsets", "camping", "road trips", "ice cream"},
	"autumn": {"fall leaves", "harvest", "forests", "golden hour", "pumpkins"},
}

// ============================================================================
// Theme prompts
// ============================================================================

// ThemeSystemPrompt defines the role and output contract for theme generation.
const ThemeSystemPrompt = `You choose the theme for a family digital photo frame. The theme is used as a semantic search query against a personal photo library.

Rules:
- Answer with the theme only: 1 to 4 words, no quotes, no punctuation, no explanation
- Prefer concrete, photographable subjects (places, activities, seasons, objects)
- Avoid people's names and anything that would not appear in a photo`

// ThemeUserPrompt is the default instruction. It is a text/template rendered
// with PromptData.
const ThemeUserPrompt = `Today is {{.Weekday}}, {{.Date}}. It is {{.Season}}.
Some ideas for this time of year: {{.Motifs}}.

Suggest one theme for today's photos:`

// PromptData is the data available to theme prompt templates.
type PromptData struct {
	Date    string // 2006-01-02
	Weekday string
	Month   string
	Season  string
	Motifs  string
}

// NewPromptData derives template data from the local time of a run.
func NewPromptData(now time.Time) PromptData {
	season := Season(now)
	return PromptData{
		Date:    now.Format("2006-01-02"),
		Weekday: now.Weekday().String(),
		Month:   now.Month().String(),
		Season:  season,
		Motifs:  strings.Join(SeasonalMotifs[season], ", "),
	}
}

// Season returns the meteorological season (northern hemisphere).
func Season(t time.Time) string {
	switch t.Month() {
	case time.December, time.January, time.February:
		return "winter"
	case time.March, time.April, time.May:
		return "spring"
	case time.June, time.July, time.August:
		return "summer"
	default:
		return "autumn"
	}
}

// Render executes tmpl with data. An empty tmpl renders ThemeUserPrompt.
func Render(tmpl string, data PromptData) (string, error) {
	if strings.TrimSpace(tmpl) == "" {
		tmpl = ThemeUserPrompt
	}
	t, err := template.New("theme").Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("failed to parse prompt template: %w", err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render prompt template: %w", err)
	}
	return buf.String(), nil
}
