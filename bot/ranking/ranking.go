// Package ranking produces the habit leaderboard: deterministic
// ordering over habit counts, pagination, single-member rank lookup,
// and the cooldown-gated daily increment.
package ranking

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Wandervogel-001/The-System/bot/models"
)

// DefaultPageSize is the leaderboard page length.
const DefaultPageSize = 10

// Store is the slice of persistence the engine needs. ListRanked must
// return habit_count descending with join_position ascending as the
// tie-break; the engine trusts that order.
type Store interface {
	GetMember(ctx context.Context, userId, guildId string) (*models.Member, error)
	ListRanked(ctx context.Context, guildId string) ([]models.Member, error)
	IncrementHabit(ctx context.Context, userId, guildId string, now time.Time) (bool, error)
}

// CooldownError reports that the member already incremented within the
// current UTC day. It is an expected outcome, not a failure.
type CooldownError struct {
	NextEligible time.Time
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("already incremented today, next eligible at %s", e.NextEligible.Format(time.RFC3339))
}

type Engine struct {
	store Store
	log   *zap.Logger
}

func New(store Store, log *zap.Logger) *Engine {
	return &Engine{store: store, log: log.Named("ranking")}
}

// Entry is one leaderboard row.
type Entry struct {
	Rank   int
	Member models.Member
}

// Rank returns the full leaderboard: members with habit_count >= 1,
// ranked 1..K with no gaps and no shared ranks.
func (e *Engine) Rank(ctx context.Context, guildId string) ([]Entry, error) {
	members, err := e.store.ListRanked(ctx, guildId)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, len(members))
	for i, m := range members {
		entries[i] = Entry{Rank: i + 1, Member: m}
	}
	return entries, nil
}

// Page returns one leaderboard slice plus the total entry count.
// Out-of-range offsets yield an empty slice, never an error. A limit
// of zero or less falls back to DefaultPageSize.
func (e *Engine) Page(ctx context.Context, guildId string, offset, limit int) ([]Entry, int, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	entries, err := e.Rank(ctx, guildId)
	if err != nil {
		return nil, 0, err
	}
	total := len(entries)
	if offset < 0 || offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return entries[offset:end], total, nil
}

// FindRank locates a single member's rank even when outside the
// visible page. The roster of a guild is small enough that a linear
// scan of the full ranking is fine.
func (e *Engine) FindRank(ctx context.Context, guildId, userId string) (Entry, bool, error) {
	entries, err := e.Rank(ctx, guildId)
	if err != nil {
		return Entry{}, false, err
	}
	for _, entry := range entries {
		if entry.Member.UserId == userId {
			return entry, true, nil
		}
	}
	return Entry{}, false, nil
}

// Increment bumps the member's habit counter by one, at most once per
// UTC calendar day. The check-and-set happens inside the store as a
// single conditional update, so concurrent presses for the same member
// cannot both succeed. Returns the new count, a *CooldownError when the
// gate rejected the press, or the store's not-found error when no
// record exists (callers create one via the roster's single-member
// insert first).
func (e *Engine) Increment(ctx context.Context, userId, guildId string, now time.Time) (int64, error) {
	applied, err := e.store.IncrementHabit(ctx, userId, guildId, now)
	if err != nil {
		return 0, err
	}

	member, err := e.store.GetMember(ctx, userId, guildId)
	if err != nil {
		return 0, err
	}
	if !applied {
		next := now.UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
		return member.HabitCount, &CooldownError{NextEligible: next}
	}

	e.log.Info("habit incremented",
		zap.String("guild_id", guildId),
		zap.String("user_id", userId),
		zap.Int64("count", member.HabitCount))
	return member.HabitCount, nil
}
