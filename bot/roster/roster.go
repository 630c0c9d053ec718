// Package roster keeps stored member records consistent with the live
// guild membership: it derives join positions, detects drift, and
// repairs records idempotently.
package roster

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/Wandervogel-001/The-System/bot/models"
)

// LiveMember is a member as reported by the chat platform. A zero
// JoinedAt means the platform did not supply a join date.
type LiveMember struct {
	UserId      string
	Username    string
	DisplayName string
	JoinedAt    time.Time
	Bot         bool
}

// OrderedMember is a live member with its derived join position.
type OrderedMember struct {
	LiveMember
	JoinPosition int
}

// Field names a Member column Rebuild can carry across the wipe.
type Field string

const (
	FieldHabitCount    Field = "habit_count"
	FieldLastIncrement Field = "last_increment"
)

// Store is the slice of persistence the reconciler needs.
type Store interface {
	ListMembers(ctx context.Context, guildId string) ([]models.Member, error)
	UpsertMember(ctx context.Context, m *models.Member) error
	UpdateMemberProfile(ctx context.Context, userId, guildId, username, displayName string, isBot bool) error
	DeleteGuildMembers(ctx context.Context, guildId string) (int64, error)
}

type Reconciler struct {
	store Store
	log   *zap.Logger
}

func New(store Store, log *zap.Logger) *Reconciler {
	return &Reconciler{store: store, log: log.Named("roster")}
}

// ComputeOrdering derives the authoritative join positions for a live
// membership list. Humans come first, sorted by join date ascending and
// numbered 1..H; bots follow, also by join date, numbered H+1..H+B.
// Members with an unknown join date sort last within their partition.
// The sort is stable: equal join dates keep their input order.
func ComputeOrdering(live []LiveMember) []OrderedMember {
	var humans, bots []LiveMember
	for _, m := range live {
		if m.Bot {
			bots = append(bots, m)
		} else {
			humans = append(humans, m)
		}
	}
	sortByJoinDate(humans)
	sortByJoinDate(bots)

	ordered := make([]OrderedMember, 0, len(live))
	position := 0
	for _, m := range humans {
		position++
		ordered = append(ordered, OrderedMember{LiveMember: m, JoinPosition: position})
	}
	for _, m := range bots {
		position++
		ordered = append(ordered, OrderedMember{LiveMember: m, JoinPosition: position})
	}
	return ordered
}

func sortByJoinDate(members []LiveMember) {
	sort.SliceStable(members, func(i, j int) bool {
		a, b := members[i].JoinedAt, members[j].JoinedAt
		switch {
		case a.IsZero():
			return false
		case b.IsZero():
			return true
		default:
			return a.Before(b)
		}
	})
}

// Result reports what a reconcile run changed.
type Result struct {
	Added   int
	Updated int
}

// Reconcile aligns stored records with the live list. Existing records
// get their mutable profile fields refreshed (join position untouched);
// missing records are inserted with freshly computed positions and zero
// habit data. Safe to call repeatedly: a second run with unchanged
// membership adds nothing. A store error aborts the remaining batch;
// rerunning repairs whatever was left.
func (r *Reconciler) Reconcile(ctx context.Context, guildId string, live []LiveMember) (Result, error) {
	stored, err := r.store.ListMembers(ctx, guildId)
	if err != nil {
		return Result{}, err
	}
	known := make(map[string]struct{}, len(stored))
	for _, m := range stored {
		known[m.UserId] = struct{}{}
	}

	var res Result
	for _, m := range ComputeOrdering(live) {
		if _, ok := known[m.UserId]; ok {
			if err := r.store.UpdateMemberProfile(ctx, m.UserId, guildId, m.Username, m.DisplayName, m.Bot); err != nil {
				return res, err
			}
			res.Updated++
			continue
		}
		if err := r.store.UpsertMember(ctx, newRecord(guildId, m)); err != nil {
			return res, err
		}
		res.Added++
	}

	r.log.Info("reconcile complete",
		zap.String("guild_id", guildId),
		zap.Int("added", res.Added),
		zap.Int("updated", res.Updated))
	return res, nil
}

// Rebuild wipes every record of the guild and reinserts from the live
// list with recomputed positions. Fields named in preserve are carried
// over from the pre-wipe snapshot, but only for members still present
// in the live list: counters of departed members are discarded.
func (r *Reconciler) Rebuild(ctx context.Context, guildId string, live []LiveMember, preserve []Field) (int, error) {
	snapshot := make(map[string]models.Member)
	if len(preserve) > 0 {
		stored, err := r.store.ListMembers(ctx, guildId)
		if err != nil {
			return 0, err
		}
		for _, m := range stored {
			snapshot[m.UserId] = m
		}
	}

	deleted, err := r.store.DeleteGuildMembers(ctx, guildId)
	if err != nil {
		return 0, err
	}

	inserted := 0
	for _, m := range ComputeOrdering(live) {
		record := newRecord(guildId, m)
		if old, ok := snapshot[m.UserId]; ok {
			for _, field := range preserve {
				switch field {
				case FieldHabitCount:
					record.HabitCount = old.HabitCount
				case FieldLastIncrement:
					record.LastIncrement = old.LastIncrement
				}
			}
		}
		if err := r.store.UpsertMember(ctx, record); err != nil {
			return inserted, fmt.Errorf("rebuild %s: %w", guildId, err)
		}
		inserted++
	}

	r.log.Info("rebuild complete",
		zap.String("guild_id", guildId),
		zap.Int64("deleted", deleted),
		zap.Int("inserted", inserted))
	return inserted, nil
}

// TrackJoin records a single newly observed member without touching the
// rest of the guild. The join position continues the count: a human
// slots in by join date among stored humans, a bot goes after everyone.
func (r *Reconciler) TrackJoin(ctx context.Context, guildId string, m LiveMember) (int, error) {
	stored, err := r.store.ListMembers(ctx, guildId)
	if err != nil {
		return 0, err
	}
	for _, existing := range stored {
		if existing.UserId == m.UserId {
			if err := r.store.UpdateMemberProfile(ctx, m.UserId, guildId, m.Username, m.DisplayName, m.Bot); err != nil {
				return 0, err
			}
			return existing.JoinPosition, nil
		}
	}

	joinedAt := m.JoinedAt
	if joinedAt.IsZero() {
		joinedAt = time.Now().UTC()
	}
	position := 1
	if m.Bot {
		position = len(stored) + 1
	} else {
		for _, existing := range stored {
			if !existing.IsBot && existing.JoinedAt.Before(joinedAt) {
				position++
			}
		}
	}

	record := newRecord(guildId, OrderedMember{LiveMember: m, JoinPosition: position})
	record.JoinedAt = joinedAt
	if err := r.store.UpsertMember(ctx, record); err != nil {
		return 0, err
	}
	return position, nil
}

// Drift is the set of live members missing from the record store.
type Drift struct {
	MissingHumans []LiveMember
	MissingBots   []LiveMember
}

func (d Drift) Empty() bool {
	return len(d.MissingHumans) == 0 && len(d.MissingBots) == 0
}

// Diff reports live members with no stored record, partitioned by bot
// flag. Pure: it never touches the store.
func Diff(live []LiveMember, stored []models.Member) Drift {
	known := make(map[string]struct{}, len(stored))
	for _, m := range stored {
		known[m.UserId] = struct{}{}
	}
	var drift Drift
	for _, m := range live {
		if _, ok := known[m.UserId]; ok {
			continue
		}
		if m.Bot {
			drift.MissingBots = append(drift.MissingBots, m)
		} else {
			drift.MissingHumans = append(drift.MissingHumans, m)
		}
	}
	return drift
}

func newRecord(guildId string, m OrderedMember) *models.Member {
	joinedAt := m.JoinedAt
	if joinedAt.IsZero() {
		joinedAt = time.Now().UTC()
	}
	return &models.Member{
		UserId:       m.UserId,
		GuildId:      guildId,
		Username:     m.Username,
		DisplayName:  m.DisplayName,
		JoinedAt:     joinedAt,
		JoinPosition: m.JoinPosition,
		IsBot:        m.Bot,
		HabitCount:   0,
	}
}
