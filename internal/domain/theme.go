package domain

// DefaultThemeSource tags a theme that came from the configured last-resort constant.
const DefaultThemeSource = "default"

// FilterSetRotationKey is the rotation counter of the selection filter sets.
// Theme sources may not use it as a name.
const FilterSetRotationKey = "selection.filter_set"

// Theme is the resolved text driving a run, tagged with the strategy that produced it.
type Theme struct {
	Text   string `json:"text"`
	Source string `json:"source"` // configured strategy name, or DefaultThemeSource
	Kind   string `json:"kind"`   // strategy kind (static, file, entity, openai, gemini, default)
}

// IsDefault reports whether the theme fell through to the last-resort constant.
func (t Theme) IsDefault() bool {
	return t.Source == DefaultThemeSource
}

// String returns the theme text.
func (t Theme) String() string {
	return t.Text
}
