package ranking

import (
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
)

// Fixed column widths of the leaderboard table. Content never changes
// these: names longer than the name column are truncated with an
// ellipsis, and padding is by display width so double-width glyphs
// cannot break the box.
const (
	widthRank  = 6
	widthName  = 17
	widthCount = 7
)

// RenderTable renders leaderboard entries as a fixed-width box-drawing
// table inside a code block. Rank and count are centered, the display
// name is left-justified.
func RenderTable(entries []Entry) string {
	const (
		tl, tm, tr = "┏", "┳", "┓"
		ml, mm, mr = "┣", "╋", "┫"
		bl, bm, br = "┗", "┻", "┛"
		v, h       = "┃", "━"
	)

	hRank := strings.Repeat(h, widthRank)
	hName := strings.Repeat(h, widthName)
	hCount := strings.Repeat(h, widthCount)

	lines := []string{
		tl + hRank + tm + hName + tm + hCount + tr,
		v + center("Rank", widthRank) + v + center("Display Name", widthName) + v + center("Level", widthCount) + v,
		ml + hRank + mm + hName + mm + hCount + mr,
	}

	for _, entry := range entries {
		name := runewidth.Truncate(entry.Member.DisplayName, widthName, "…")
		lines = append(lines,
			v+center(strconv.Itoa(entry.Rank), widthRank)+
				v+ljust(name, widthName)+
				v+center(strconv.FormatInt(entry.Member.HabitCount, 10), widthCount)+v)
	}

	lines = append(lines, bl+hRank+bm+hName+bm+hCount+br)
	return "```\n" + strings.Join(lines, "\n") + "\n```"
}

func center(s string, width int) string {
	pad := width - runewidth.StringWidth(s)
	if pad <= 0 {
		return s
	}
	left := pad / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", pad-left)
}

func ljust(s string, width int) string {
	pad := width - runewidth.StringWidth(s)
	if pad <= 0 {
		return s
	}
	return s + strings.Repeat(" ", pad)
}
