package events

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Wandervogel-001/The-System/bot/store"
)

func TestFormatWelcomePlaceholders(t *testing.T) {
	got := formatWelcome(
		"Hey {user_mention} ({user_name}), welcome to {guild_name}! You are member #{member_count}, position {join_position}.",
		"42", "Ada", "The System", 120, 97)

	assert.Equal(t,
		"Hey <@42> (Ada), welcome to The System! You are member #120, position 97.",
		got)
}

func TestFormatWelcomeDefaultMessage(t *testing.T) {
	got := formatWelcome(store.DefaultWelcomeMessage, "42", "Ada", "The System", 1, 1)
	assert.Equal(t, "Welcome to The System, <@42>!", got)
}

func TestFormatWelcomeLeavesUnknownTokens(t *testing.T) {
	got := formatWelcome("{unknown} stays, {user_name} resolves", "42", "Ada", "g", 0, 0)
	assert.Equal(t, "{unknown} stays, Ada resolves", got)
}
