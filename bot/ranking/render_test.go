package ranking

import (
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wandervogel-001/The-System/bot/models"
)

func renderLines(t *testing.T, entries []Entry) []string {
	t.Helper()
	table := RenderTable(entries)
	require.True(t, strings.HasPrefix(table, "```\n"))
	require.True(t, strings.HasSuffix(table, "\n```"))
	return strings.Split(strings.TrimSuffix(strings.TrimPrefix(table, "```\n"), "\n```"), "\n")
}

func TestRenderTableFixedWidth(t *testing.T) {
	entries := []Entry{
		{Rank: 1, Member: models.Member{DisplayName: "short", HabitCount: 42}},
		{Rank: 2, Member: models.Member{DisplayName: "a considerably longer name", HabitCount: 7}},
	}

	lines := renderLines(t, entries)
	require.Len(t, lines, 6) // top, header, separator, two rows, bottom

	// Every line has the same display width regardless of content.
	want := runewidth.StringWidth(lines[0])
	for _, line := range lines {
		assert.Equal(t, want, runewidth.StringWidth(line), line)
	}
}

func TestRenderTableWideGlyphsKeepAlignment(t *testing.T) {
	// CJK glyphs are double-width; padding compensates so the box
	// stays rectangular, and truncation counts display cells.
	entries := []Entry{
		{Rank: 1, Member: models.Member{DisplayName: "日本語のとても長い名前です", HabitCount: 3}},
		{Rank: 2, Member: models.Member{DisplayName: "ascii", HabitCount: 1}},
	}

	lines := renderLines(t, entries)
	want := runewidth.StringWidth(lines[0])
	for _, line := range lines {
		assert.Equal(t, want, runewidth.StringWidth(line), line)
	}
	assert.Contains(t, lines[3], "…")
}

func TestRenderTableTruncatesLongNames(t *testing.T) {
	entries := []Entry{
		{Rank: 1, Member: models.Member{DisplayName: strings.Repeat("x", 30), HabitCount: 1}},
	}

	lines := renderLines(t, entries)
	row := lines[3]
	assert.Contains(t, row, "…")
	assert.NotContains(t, row, strings.Repeat("x", widthName))
}

func TestRenderTableCentersRankAndCount(t *testing.T) {
	entries := []Entry{
		{Rank: 1, Member: models.Member{DisplayName: "ada", HabitCount: 5}},
	}

	lines := renderLines(t, entries)
	cells := strings.Split(strings.Trim(lines[3], "┃"), "┃")
	require.Len(t, cells, 3)

	assert.Equal(t, "  1   ", cells[0])
	assert.Equal(t, "ada"+strings.Repeat(" ", widthName-3), cells[1])
	assert.Equal(t, "   5   ", cells[2])
}

func TestRenderTableHeader(t *testing.T) {
	lines := renderLines(t, nil)
	require.Len(t, lines, 4)
	assert.Contains(t, lines[1], "Rank")
	assert.Contains(t, lines[1], "Display Name")
	assert.Contains(t, lines[1], "Level")
}
