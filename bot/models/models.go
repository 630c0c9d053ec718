package models

import (
	"time"

	"gorm.io/gorm"
)

// Member is one tracked guild member. (UserId, GuildId) is unique;
// JoinPosition numbers humans 1..H by join date, then bots H+1..H+B.
type Member struct {
	gorm.Model
	UserId        string `gorm:"uniqueIndex:idx_member_guild_user"`
	GuildId       string `gorm:"uniqueIndex:idx_member_guild_user;index"`
	Username      string
	DisplayName   string
	JoinedAt      time.Time
	JoinPosition  int
	IsBot         bool
	HabitCount    int64
	LastIncrement *time.Time
}

type ServerSettings struct {
	gorm.Model
	GuildId          string `gorm:"uniqueIndex"`
	WelcomeChannelId string
	WelcomeRoleId    string
	WelcomeMessage   string
	WelcomeEnabled   bool
	AutoRoleEnabled  bool
}

// ModerationLog is an append-only audit row for mod actions.
type ModerationLog struct {
	gorm.Model
	GuildId         string `gorm:"index"`
	UserId          string
	ModeratorId     string
	Action          string
	Reason          string
	DurationSeconds int64
}
