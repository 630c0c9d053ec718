// Package store is the single persistence layer: every read or write of
// member records, guild settings, and moderation logs goes through it.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Wandervogel-001/The-System/bot/models"
)

// ErrNotFound is returned when a record does not exist. Callers are
// expected to treat it as a normal outcome, not a failure.
var ErrNotFound = errors.New("store: record not found")

const DefaultWelcomeMessage = "Welcome to {guild_name}, {user_mention}!"

type Store struct {
	db  *gorm.DB
	log *zap.Logger
}

func New(db *gorm.DB, log *zap.Logger) *Store {
	return &Store{db: db, log: log.Named("store")}
}

// Migrate creates or updates the schema for all models.
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&models.Member{}, &models.ServerSettings{}, &models.ModerationLog{})
}

// ========== Members ==========

func (s *Store) GetMember(ctx context.Context, userId, guildId string) (*models.Member, error) {
	var m models.Member
	result := s.db.WithContext(ctx).
		Where(&models.Member{UserId: userId, GuildId: guildId}).
		First(&m)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if result.Error != nil {
		return nil, fmt.Errorf("get member %s/%s: %w", guildId, userId, result.Error)
	}
	return &m, nil
}

// ListMembers returns every record of a guild ordered by join position.
func (s *Store) ListMembers(ctx context.Context, guildId string) ([]models.Member, error) {
	var members []models.Member
	result := s.db.WithContext(ctx).
		Where(&models.Member{GuildId: guildId}).
		Order("join_position asc").
		Find(&members)
	if result.Error != nil {
		return nil, fmt.Errorf("list members %s: %w", guildId, result.Error)
	}
	return members, nil
}

// ListRanked returns records with at least one habit increment, ordered
// by habit count descending with join position as the tie-break. The
// ordering here is the authoritative leaderboard order.
func (s *Store) ListRanked(ctx context.Context, guildId string) ([]models.Member, error) {
	var members []models.Member
	result := s.db.WithContext(ctx).
		Where("guild_id = ? AND habit_count >= 1", guildId).
		Order("habit_count desc, join_position asc").
		Find(&members)
	if result.Error != nil {
		return nil, fmt.Errorf("list ranked %s: %w", guildId, result.Error)
	}
	return members, nil
}

// UpsertMember inserts a member or, on key conflict, refreshes the
// mutable profile fields while leaving position and habit data alone.
// Reconcile runs race with gateway join events; the conflict clause
// keeps the loser harmless.
func (s *Store) UpsertMember(ctx context.Context, m *models.Member) error {
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "guild_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "display_name", "is_bot", "updated_at"}),
	}).Create(m)
	if result.Error != nil {
		return fmt.Errorf("upsert member %s/%s: %w", m.GuildId, m.UserId, result.Error)
	}
	return nil
}

// UpdateMemberProfile refreshes the mutable fields of an existing
// record. UpdatedAt always advances, so repeated syncs count the row as
// updated every time; that write-through refresh is intentional.
func (s *Store) UpdateMemberProfile(ctx context.Context, userId, guildId, username, displayName string, isBot bool) error {
	result := s.db.WithContext(ctx).Model(&models.Member{}).
		Where(&models.Member{UserId: userId, GuildId: guildId}).
		Updates(map[string]interface{}{
			"username":     username,
			"display_name": displayName,
			"is_bot":       isBot,
			"updated_at":   time.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("update member %s/%s: %w", guildId, userId, result.Error)
	}
	return nil
}

func (s *Store) DeleteMember(ctx context.Context, userId, guildId string) (bool, error) {
	result := s.db.WithContext(ctx).Unscoped().
		Where(&models.Member{UserId: userId, GuildId: guildId}).
		Delete(&models.Member{})
	if result.Error != nil {
		return false, fmt.Errorf("delete member %s/%s: %w", guildId, userId, result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (s *Store) DeleteGuildMembers(ctx context.Context, guildId string) (int64, error) {
	result := s.db.WithContext(ctx).Unscoped().
		Where(&models.Member{GuildId: guildId}).
		Delete(&models.Member{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete guild members %s: %w", guildId, result.Error)
	}
	return result.RowsAffected, nil
}

func (s *Store) CountHumans(ctx context.Context, guildId string) (int64, error) {
	var n int64
	result := s.db.WithContext(ctx).Model(&models.Member{}).
		Where("guild_id = ? AND is_bot = ?", guildId, false).
		Count(&n)
	if result.Error != nil {
		return 0, fmt.Errorf("count humans %s: %w", guildId, result.Error)
	}
	return n, nil
}

// IncrementHabit bumps the habit counter by one, gated to at most one
// increment per UTC calendar day. The gate is a single conditional
// UPDATE so concurrent presses for the same member cannot both succeed.
// Returns false when the cooldown rejected the increment (or no record
// exists).
func (s *Store) IncrementHabit(ctx context.Context, userId, guildId string, now time.Time) (bool, error) {
	dayStart := now.UTC().Truncate(24 * time.Hour)
	result := s.db.WithContext(ctx).Model(&models.Member{}).
		Where("user_id = ? AND guild_id = ?", userId, guildId).
		Where("last_increment IS NULL OR last_increment < ?", dayStart).
		Updates(map[string]interface{}{
			"habit_count":    gorm.Expr("habit_count + 1"),
			"last_increment": now.UTC(),
			"updated_at":     now.UTC(),
		})
	if result.Error != nil {
		return false, fmt.Errorf("increment habit %s/%s: %w", guildId, userId, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ========== Server settings ==========

func (s *Store) GetOrCreateSettings(ctx context.Context, guildId string) (*models.ServerSettings, error) {
	settings := models.ServerSettings{
		GuildId:         guildId,
		WelcomeMessage:  DefaultWelcomeMessage,
		WelcomeEnabled:  true,
		AutoRoleEnabled: true,
	}
	result := s.db.WithContext(ctx).
		Where(&models.ServerSettings{GuildId: guildId}).
		FirstOrCreate(&settings)
	if result.Error != nil {
		return nil, fmt.Errorf("settings %s: %w", guildId, result.Error)
	}
	return &settings, nil
}

// UpdateSetting sets a single settings column for a guild.
func (s *Store) UpdateSetting(ctx context.Context, guildId, column string, value interface{}) error {
	result := s.db.WithContext(ctx).Model(&models.ServerSettings{}).
		Where(&models.ServerSettings{GuildId: guildId}).
		Update(column, value)
	if result.Error != nil {
		return fmt.Errorf("update setting %s.%s: %w", guildId, column, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ========== Moderation logs ==========

func (s *Store) AddModerationLog(ctx context.Context, entry *models.ModerationLog) error {
	if result := s.db.WithContext(ctx).Create(entry); result.Error != nil {
		return fmt.Errorf("add moderation log: %w", result.Error)
	}
	return nil
}

// ListModerationLogs returns the latest actions for a guild, newest
// first. userId narrows to one target when non-empty.
func (s *Store) ListModerationLogs(ctx context.Context, guildId, userId string, limit int) ([]models.ModerationLog, error) {
	query := s.db.WithContext(ctx).
		Where(&models.ModerationLog{GuildId: guildId}).
		Order("created_at desc").
		Limit(limit)
	if userId != "" {
		query = query.Where(&models.ModerationLog{UserId: userId})
	}
	var logs []models.ModerationLog
	if result := query.Find(&logs); result.Error != nil {
		return nil, fmt.Errorf("list moderation logs %s: %w", guildId, result.Error)
	}
	return logs, nil
}

// ========== Stats ==========

type Stats struct {
	Guilds  int64 `json:"guilds"`
	Members int64 `json:"members"`
	ModLogs int64 `json:"mod_logs"`
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	if result := s.db.WithContext(ctx).Model(&models.ServerSettings{}).Count(&st.Guilds); result.Error != nil {
		return st, fmt.Errorf("stats: %w", result.Error)
	}
	if result := s.db.WithContext(ctx).Model(&models.Member{}).Count(&st.Members); result.Error != nil {
		return st, fmt.Errorf("stats: %w", result.Error)
	}
	if result := s.db.WithContext(ctx).Model(&models.ModerationLog{}).Count(&st.ModLogs); result.Error != nil {
		return st, fmt.Errorf("stats: %w", result.Error)
	}
	return st, nil
}
