package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/Wandervogel-001/The-System/bot/roster"
)

// Convert numbers to contain ordinal indicators
func Ordinal(n int) string {
	suffix := "th"
	if n%100 < 11 || n%100 > 13 {
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%v%s", n, suffix)
}

func MessageURL(guildId, channelId, messageId string) string {
	return fmt.Sprintf("https://discord.com/channels/%s/%s/%s", guildId, channelId, messageId)
}

// Truncate shortens s to at most width runes, replacing the tail with a
// single ellipsis when it does not fit.
func Truncate(s string, width int) string {
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 1 {
		return "…"
	}
	return string(runes[:width-1]) + "…"
}

// ParseTimeout parses a compact duration like "30m", "2h" or "1d".
func ParseTimeout(s string) (time.Duration, error) {
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid duration %q, use e.g. 30m, 2h, 1d", s)
	}
	value, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("invalid duration %q, use e.g. 30m, 2h, 1d", s)
	}
	switch strings.ToLower(s[len(s)-1:]) {
	case "m":
		return time.Duration(value) * time.Minute, nil
	case "h":
		return time.Duration(value) * time.Hour, nil
	case "d":
		return time.Duration(value) * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("invalid duration unit in %q, use m/h/d", s)
	}
}

// DisplayName resolves the name shown for a member: nickname, then
// global name, then username.
func DisplayName(m *discordgo.Member) string {
	if m.Nick != "" {
		return m.Nick
	}
	if m.User != nil && m.User.GlobalName != "" {
		return m.User.GlobalName
	}
	if m.User != nil {
		return m.User.Username
	}
	return "Unknown"
}

// ToLiveMember converts a platform member into the reconciler's input.
func ToLiveMember(m *discordgo.Member) roster.LiveMember {
	return roster.LiveMember{
		UserId:      m.User.ID,
		Username:    m.User.Username,
		DisplayName: DisplayName(m),
		JoinedAt:    m.JoinedAt,
		Bot:         m.User.Bot,
	}
}

// LiveMembers fetches the complete membership of a guild, paging
// through the members endpoint 1000 at a time.
func LiveMembers(s *discordgo.Session, guildId string) ([]roster.LiveMember, error) {
	var live []roster.LiveMember
	after := ""
	for {
		page, err := s.GuildMembers(guildId, after, 1000)
		if err != nil {
			return nil, fmt.Errorf("fetch members of %s: %w", guildId, err)
		}
		if len(page) == 0 {
			break
		}
		for _, m := range page {
			live = append(live, ToLiveMember(m))
		}
		after = page[len(page)-1].User.ID
		if len(page) < 1000 {
			break
		}
	}
	return live, nil
}
