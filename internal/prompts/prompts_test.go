package prompts

import (
	"testing"
	"time"
)

func TestSeason(t *testing.T) {
	tests := []struct {
		month time.Month
		want  string
	}{
		{time.January, "winter"},
		{time.April, "spring"},
		{time.July, "summer"},
		{time.October, "autumn"},
		{time.December, "winter"},
	}
	for _, tt := range tests {
		t.Run(tt.month.String(), func(t *testing.T) {
			if got := Season(time.Date(2025, tt.month, 10, 0, 0, 0, 0, time.UTC)); got != tt.want {
				t.Errorf("Season(%s) = %s, want %s", tt.month, got, tt.want)
			}
		})
	}
}

func TestRender(t *testing.T) {
	data := NewPromptData(time.Date(2025, time.July, 4, 9, 0, 0, 0, time.UTC))

	got, err := Render("{{.Weekday}} {{.Date}} {{.Month}} {{.Season}}", data)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if want := "Friday 2025-07-04 July summer"; got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}

	def, err := Render("", data)
	if err != nil {
		t.Fatalf("Render(default) error = %v", err)
	}
	if def == "" {
		t.Error("default prompt rendered empty")
	}

	if _, err := Render("{{.Nope", data); err == nil {
		t.Error("expected parse error")
	}
}
