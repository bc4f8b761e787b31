package tui

import (
	"testing"

	"github.com/function61/gokit/assert"
)

func TestProgressBar(t *testing.T) {
	assert.EqualString(t, ProgressBar(0, 20, ProgressBarDefaultTheme()), "░░░░░░░░░░░░░░░░░░░░")
	assert.EqualString(t, ProgressBar(50, 20, ProgressBarDefaultTheme()), "██████████░░░░░░░░░░")
	assert.EqualString(t, ProgressBar(100, 20, ProgressBarDefaultTheme()), "████████████████████")
}

func TestProgressBarWithPct(t *testing.T) {
	assert.EqualString(t, ProgressBarWithPct(42.5, 10, ProgressBarDefaultTheme()), "████░░░░░░ 42.5 %")
}

func TestProgressBarThemes(t *testing.T) {
	assert.EqualString(t, ProgressBar(13, 20, ProgressBarCirclesTheme()), "⬤⬤○○○○○○○○○○○○○○○○○○")
}
