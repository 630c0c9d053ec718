package roster

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Wandervogel-001/The-System/bot/models"
)

// fakeStore is an in-memory roster.Store.
type fakeStore struct {
	members []models.Member
	failAt  int // fail the nth insert (1-based), 0 disables
	inserts int
}

var errBoom = errors.New("store unavailable")

func (f *fakeStore) ListMembers(_ context.Context, guildId string) ([]models.Member, error) {
	var out []models.Member
	for _, m := range f.members {
		if m.GuildId == guildId {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].JoinPosition < out[j].JoinPosition })
	return out, nil
}

func (f *fakeStore) UpsertMember(_ context.Context, m *models.Member) error {
	f.inserts++
	if f.failAt > 0 && f.inserts >= f.failAt {
		return errBoom
	}
	for i := range f.members {
		if f.members[i].UserId == m.UserId && f.members[i].GuildId == m.GuildId {
			f.members[i].Username = m.Username
			f.members[i].DisplayName = m.DisplayName
			f.members[i].IsBot = m.IsBot
			return nil
		}
	}
	f.members = append(f.members, *m)
	return nil
}

func (f *fakeStore) UpdateMemberProfile(_ context.Context, userId, guildId, username, displayName string, isBot bool) error {
	for i := range f.members {
		if f.members[i].UserId == userId && f.members[i].GuildId == guildId {
			f.members[i].Username = username
			f.members[i].DisplayName = displayName
			f.members[i].IsBot = isBot
			f.members[i].UpdatedAt = time.Now()
			return nil
		}
	}
	return nil
}

func (f *fakeStore) DeleteGuildMembers(_ context.Context, guildId string) (int64, error) {
	var kept []models.Member
	var deleted int64
	for _, m := range f.members {
		if m.GuildId == guildId {
			deleted++
			continue
		}
		kept = append(kept, m)
	}
	f.members = kept
	return deleted, nil
}

func (f *fakeStore) get(userId string) *models.Member {
	for i := range f.members {
		if f.members[i].UserId == userId {
			return &f.members[i]
		}
	}
	return nil
}

func at(hour int) time.Time {
	return time.Date(2024, 3, 1, hour, 0, 0, 0, time.UTC)
}

func human(id string, joined time.Time) LiveMember {
	return LiveMember{UserId: id, Username: id, DisplayName: id, JoinedAt: joined}
}

func bot(id string, joined time.Time) LiveMember {
	return LiveMember{UserId: id, Username: id, DisplayName: id, JoinedAt: joined, Bot: true}
}

func TestComputeOrderingHumansBeforeBots(t *testing.T) {
	// One bot joined before every human; it still numbers after them.
	live := []LiveMember{
		bot("bot", at(0)),
		human("c", at(3)),
		human("a", at(1)),
		human("b", at(2)),
	}

	ordered := ComputeOrdering(live)
	require.Len(t, ordered, 4)

	assert.Equal(t, "a", ordered[0].UserId)
	assert.Equal(t, "b", ordered[1].UserId)
	assert.Equal(t, "c", ordered[2].UserId)
	assert.Equal(t, "bot", ordered[3].UserId)
	for i, m := range ordered {
		assert.Equal(t, i+1, m.JoinPosition)
	}
}

func TestComputeOrderingDeterministic(t *testing.T) {
	live := []LiveMember{
		human("x", at(5)),
		bot("y", at(2)),
		human("z", at(1)),
	}

	first := ComputeOrdering(live)
	for run := 0; run < 5; run++ {
		assert.Equal(t, first, ComputeOrdering(live))
	}
}

func TestComputeOrderingStableTies(t *testing.T) {
	// Equal join dates keep input order.
	live := []LiveMember{
		human("first", at(1)),
		human("second", at(1)),
		human("third", at(1)),
	}

	ordered := ComputeOrdering(live)
	assert.Equal(t, "first", ordered[0].UserId)
	assert.Equal(t, "second", ordered[1].UserId)
	assert.Equal(t, "third", ordered[2].UserId)
}

func TestComputeOrderingUnknownJoinDateSortsLast(t *testing.T) {
	live := []LiveMember{
		human("unknown", time.Time{}),
		human("known", at(1)),
	}

	ordered := ComputeOrdering(live)
	assert.Equal(t, "known", ordered[0].UserId)
	assert.Equal(t, "unknown", ordered[1].UserId)
}

func TestReconcileInsertsAndIsIdempotent(t *testing.T) {
	store := &fakeStore{}
	rec := New(store, zap.NewNop())
	live := []LiveMember{
		human("a", at(1)),
		human("b", at(2)),
		bot("bot", at(0)),
	}

	first, err := rec.Reconcile(context.Background(), "g1", live)
	require.NoError(t, err)
	assert.Equal(t, Result{Added: 3, Updated: 0}, first)

	positions := map[string]int{}
	for _, m := range store.members {
		positions[m.UserId] = m.JoinPosition
	}

	second, err := rec.Reconcile(context.Background(), "g1", live)
	require.NoError(t, err)
	assert.Equal(t, Result{Added: 0, Updated: 3}, second)

	// Positions survive the second run untouched.
	for _, m := range store.members {
		assert.Equal(t, positions[m.UserId], m.JoinPosition)
	}
}

func TestReconcileKeepsExistingPositions(t *testing.T) {
	// A stored member keeps its position even when its join date would
	// place it elsewhere today; only rebuild renumbers.
	store := &fakeStore{members: []models.Member{
		{UserId: "a", GuildId: "g1", JoinPosition: 7, JoinedAt: at(1)},
	}}
	rec := New(store, zap.NewNop())

	_, err := rec.Reconcile(context.Background(), "g1", []LiveMember{
		human("a", at(1)),
		human("b", at(2)),
	})
	require.NoError(t, err)

	assert.Equal(t, 7, store.get("a").JoinPosition)
	assert.Equal(t, 2, store.get("b").JoinPosition)
}

func TestReconcileRefreshesProfiles(t *testing.T) {
	store := &fakeStore{members: []models.Member{
		{UserId: "a", GuildId: "g1", Username: "old", DisplayName: "old", JoinPosition: 1, JoinedAt: at(1)},
	}}
	rec := New(store, zap.NewNop())

	_, err := rec.Reconcile(context.Background(), "g1", []LiveMember{
		{UserId: "a", Username: "new", DisplayName: "shiny", JoinedAt: at(1)},
	})
	require.NoError(t, err)

	assert.Equal(t, "new", store.get("a").Username)
	assert.Equal(t, "shiny", store.get("a").DisplayName)
}

func TestReconcileAbortsOnStoreError(t *testing.T) {
	store := &fakeStore{failAt: 2}
	rec := New(store, zap.NewNop())
	live := []LiveMember{
		human("a", at(1)),
		human("b", at(2)),
		human("c", at(3)),
	}

	result, err := rec.Reconcile(context.Background(), "g1", live)
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, result.Added)

	// Retry completes the job.
	store.failAt = 0
	result, err = rec.Reconcile(context.Background(), "g1", live)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Added)
	assert.Equal(t, 1, result.Updated)
}

func TestRebuildPreservesHabitFields(t *testing.T) {
	increment := at(9)
	store := &fakeStore{members: []models.Member{
		{UserId: "a", GuildId: "g1", JoinPosition: 2, JoinedAt: at(2), HabitCount: 5, LastIncrement: &increment},
		{UserId: "b", GuildId: "g1", JoinPosition: 1, JoinedAt: at(1), HabitCount: 3},
		{UserId: "gone", GuildId: "g1", JoinPosition: 3, JoinedAt: at(3), HabitCount: 9},
	}}
	rec := New(store, zap.NewNop())

	// "gone" departed; "a" now joins earliest and should renumber.
	inserted, err := rec.Rebuild(context.Background(), "g1", []LiveMember{
		human("a", at(0)),
		human("b", at(1)),
	}, []Field{FieldHabitCount, FieldLastIncrement})
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)

	a := store.get("a")
	require.NotNil(t, a)
	assert.Equal(t, 1, a.JoinPosition)
	assert.Equal(t, int64(5), a.HabitCount)
	require.NotNil(t, a.LastIncrement)
	assert.True(t, a.LastIncrement.Equal(increment))

	b := store.get("b")
	assert.Equal(t, 2, b.JoinPosition)
	assert.Equal(t, int64(3), b.HabitCount)

	// Departed members are discarded along with their counters.
	assert.Nil(t, store.get("gone"))
}

func TestRebuildWithoutPreserveZeroesCounters(t *testing.T) {
	store := &fakeStore{members: []models.Member{
		{UserId: "a", GuildId: "g1", JoinPosition: 1, JoinedAt: at(1), HabitCount: 5},
	}}
	rec := New(store, zap.NewNop())

	_, err := rec.Rebuild(context.Background(), "g1", []LiveMember{human("a", at(1))}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), store.get("a").HabitCount)
}

func TestTrackJoinSlotsHumanByJoinDate(t *testing.T) {
	store := &fakeStore{members: []models.Member{
		{UserId: "a", GuildId: "g1", JoinPosition: 1, JoinedAt: at(1)},
		{UserId: "b", GuildId: "g1", JoinPosition: 2, JoinedAt: at(3)},
	}}
	rec := New(store, zap.NewNop())

	position, err := rec.TrackJoin(context.Background(), "g1", human("c", at(2)))
	require.NoError(t, err)
	assert.Equal(t, 2, position)
}

func TestTrackJoinBotGoesLast(t *testing.T) {
	store := &fakeStore{members: []models.Member{
		{UserId: "a", GuildId: "g1", JoinPosition: 1, JoinedAt: at(1)},
		{UserId: "b", GuildId: "g1", JoinPosition: 2, JoinedAt: at(2)},
	}}
	rec := New(store, zap.NewNop())

	position, err := rec.TrackJoin(context.Background(), "g1", bot("bot", at(0)))
	require.NoError(t, err)
	assert.Equal(t, 3, position)
}

func TestTrackJoinExistingMemberKeepsPosition(t *testing.T) {
	store := &fakeStore{members: []models.Member{
		{UserId: "a", GuildId: "g1", JoinPosition: 4, JoinedAt: at(1), Username: "old"},
	}}
	rec := New(store, zap.NewNop())

	position, err := rec.TrackJoin(context.Background(), "g1", human("a", at(1)))
	require.NoError(t, err)
	assert.Equal(t, 4, position)
	assert.Len(t, store.members, 1)
}

func TestDiffPartitionsByBotFlag(t *testing.T) {
	live := []LiveMember{
		human("tracked", at(1)),
		human("newbie", at(2)),
		bot("newbot", at(3)),
	}
	stored := []models.Member{{UserId: "tracked", GuildId: "g1"}}

	drift := Diff(live, stored)
	require.Len(t, drift.MissingHumans, 1)
	require.Len(t, drift.MissingBots, 1)
	assert.Equal(t, "newbie", drift.MissingHumans[0].UserId)
	assert.Equal(t, "newbot", drift.MissingBots[0].UserId)
	assert.False(t, drift.Empty())

	assert.True(t, Diff(live[:1], stored).Empty())
}
