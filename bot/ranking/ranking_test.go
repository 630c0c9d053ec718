package ranking

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Wandervogel-001/The-System/bot/models"
	"github.com/Wandervogel-001/The-System/bot/store"
)

// fakeStore is an in-memory ranking.Store with the same increment gate
// as the real one: at most one bump per UTC calendar day.
type fakeStore struct {
	members map[string]*models.Member // keyed by userId, single guild
}

func newFakeStore(members ...models.Member) *fakeStore {
	f := &fakeStore{members: make(map[string]*models.Member)}
	for i := range members {
		m := members[i]
		f.members[m.UserId] = &m
	}
	return f
}

func (f *fakeStore) GetMember(_ context.Context, userId, _ string) (*models.Member, error) {
	m, ok := f.members[userId]
	if !ok {
		return nil, store.ErrNotFound
	}
	copy := *m
	return &copy, nil
}

func (f *fakeStore) ListRanked(_ context.Context, _ string) ([]models.Member, error) {
	var out []models.Member
	for _, m := range f.members {
		if m.HabitCount >= 1 {
			out = append(out, *m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].HabitCount != out[j].HabitCount {
			return out[i].HabitCount > out[j].HabitCount
		}
		return out[i].JoinPosition < out[j].JoinPosition
	})
	return out, nil
}

func (f *fakeStore) IncrementHabit(_ context.Context, userId, _ string, now time.Time) (bool, error) {
	m, ok := f.members[userId]
	if !ok {
		return false, nil
	}
	midnight := now.UTC().Truncate(24 * time.Hour)
	if m.LastIncrement != nil && !m.LastIncrement.Before(midnight) {
		return false, nil
	}
	m.HabitCount++
	stamp := now
	m.LastIncrement = &stamp
	return true, nil
}

func member(userId string, count int64, joinPosition int) models.Member {
	return models.Member{
		UserId:       userId,
		GuildId:      "g1",
		Username:     userId,
		DisplayName:  userId,
		JoinPosition: joinPosition,
		HabitCount:   count,
	}
}

func TestRankStrictTotalOrder(t *testing.T) {
	engine := New(newFakeStore(
		member("late", 5, 9),
		member("early", 5, 2),
		member("top", 8, 4),
		member("idle", 0, 1),
	), zap.NewNop())

	entries, err := engine.Rank(context.Background(), "g1")
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// Ties break by join position; zero counts never appear.
	assert.Equal(t, "top", entries[0].Member.UserId)
	assert.Equal(t, "early", entries[1].Member.UserId)
	assert.Equal(t, "late", entries[2].Member.UserId)
	for i, entry := range entries {
		assert.Equal(t, i+1, entry.Rank)
	}
}

func TestRankEmptyGuild(t *testing.T) {
	engine := New(newFakeStore(member("idle", 0, 1)), zap.NewNop())

	entries, err := engine.Rank(context.Background(), "g1")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPageBoundaries(t *testing.T) {
	members := make([]models.Member, 0, 25)
	for i := 0; i < 25; i++ {
		members = append(members, member(string(rune('a'+i)), int64(100-i), i+1))
	}
	engine := New(newFakeStore(members...), zap.NewNop())
	ctx := context.Background()

	first, total, err := engine.Page(ctx, "g1", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 25, total)
	require.Len(t, first, 10)
	assert.Equal(t, 1, first[0].Rank)
	assert.Equal(t, 10, first[9].Rank)

	// Last partial page.
	last, total, err := engine.Page(ctx, "g1", 20, 10)
	require.NoError(t, err)
	assert.Equal(t, 25, total)
	require.Len(t, last, 5)
	assert.Equal(t, 21, last[0].Rank)
	assert.Equal(t, 25, last[4].Rank)

	// Out of range is empty, not an error; total is still reported.
	none, total, err := engine.Page(ctx, "g1", 30, 10)
	require.NoError(t, err)
	assert.Equal(t, 25, total)
	assert.Empty(t, none)

	none, _, err = engine.Page(ctx, "g1", -1, 10)
	require.NoError(t, err)
	assert.Empty(t, none)

	// Zero limit falls back to the default page size.
	page, _, err := engine.Page(ctx, "g1", 0, 0)
	require.NoError(t, err)
	assert.Len(t, page, DefaultPageSize)
}

func TestFindRank(t *testing.T) {
	engine := New(newFakeStore(
		member("top", 9, 1),
		member("mid", 4, 2),
	), zap.NewNop())
	ctx := context.Background()

	entry, ok, err := engine.FindRank(ctx, "g1", "mid")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, entry.Rank)

	_, ok, err = engine.FindRank(ctx, "g1", "stranger")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIncrementOncePerUTCDay(t *testing.T) {
	engine := New(newFakeStore(member("a", 0, 1)), zap.NewNop())
	ctx := context.Background()
	morning := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	count, err := engine.Increment(ctx, "a", "g1", morning)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// Same UTC day, hours later: the gate rejects and names the
	// next eligible instant.
	evening := morning.Add(14 * time.Hour)
	count, err = engine.Increment(ctx, "a", "g1", evening)
	var cooldown *CooldownError
	require.ErrorAs(t, err, &cooldown)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), cooldown.NextEligible)

	// Next UTC day it works again.
	count, err = engine.Increment(ctx, "a", "g1", morning.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestIncrementJustBeforeAndAfterMidnight(t *testing.T) {
	engine := New(newFakeStore(member("a", 0, 1)), zap.NewNop())
	ctx := context.Background()
	lateNight := time.Date(2024, 3, 1, 23, 59, 0, 0, time.UTC)

	_, err := engine.Increment(ctx, "a", "g1", lateNight)
	require.NoError(t, err)

	// Two minutes later is a new UTC day.
	count, err := engine.Increment(ctx, "a", "g1", lateNight.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestIncrementUnknownMember(t *testing.T) {
	engine := New(newFakeStore(), zap.NewNop())

	_, err := engine.Increment(context.Background(), "ghost", "g1", time.Now())
	assert.ErrorIs(t, err, store.ErrNotFound)
}
