package handlers

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wandervogel-001/The-System/bot/models"
)

func TestPaginatorConcurrentNavigation(t *testing.T) {
	deps := &Deps{}
	deps.putPaginator("msg", &paginatorSession{
		GuildId: "g1",
		UserId:  "u1",
		Expires: time.Now().Add(time.Minute),
	})

	// Simultaneous button presses: each one reads a session copy and
	// advances through the locked update, never the shared entry.
	var wg sync.WaitGroup
	for n := 0; n < 16; n++ {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			session, ok := deps.getPaginator("msg")
			if !ok {
				return
			}
			_ = session.Offset
			deps.updatePaginator("msg", offset)
		}(n * 10)
	}
	wg.Wait()

	session, ok := deps.getPaginator("msg")
	require.True(t, ok)
	assert.Equal(t, 0, session.Offset%10)
	assert.Equal(t, "u1", session.UserId)
}

func TestPaginatorExpiry(t *testing.T) {
	deps := &Deps{}
	deps.putPaginator("old", &paginatorSession{Expires: time.Now().Add(-time.Second)})

	_, ok := deps.getPaginator("old")
	assert.False(t, ok)

	// Updating an expired or unknown session must not resurrect it.
	deps.updatePaginator("old", 10)
	_, ok = deps.getPaginator("old")
	assert.False(t, ok)

	deps.putPaginator("live", &paginatorSession{Offset: 0, Expires: time.Now().Add(time.Minute)})
	deps.updatePaginator("live", 20)
	session, ok := deps.getPaginator("live")
	require.True(t, ok)
	assert.Equal(t, 20, session.Offset)
}

func TestResolveConfirmInvokerOnly(t *testing.T) {
	deps := &Deps{}
	deps.putConfirm("tok", &pendingConfirm{
		Kind:    "ban",
		UserId:  "invoker",
		Expires: time.Now().Add(time.Minute),
	})

	// A bystander can neither confirm nor cancel: the prompt stays.
	pending, status := deps.resolveConfirm("tok", "bystander")
	assert.Equal(t, confirmWrongUser, status)
	assert.Nil(t, pending)

	pending, status = deps.resolveConfirm("tok", "invoker")
	require.Equal(t, confirmOK, status)
	assert.Equal(t, "ban", pending.Kind)

	// Consumed: a second press finds nothing.
	_, status = deps.resolveConfirm("tok", "invoker")
	assert.Equal(t, confirmMissing, status)
}

func TestResolveConfirmExpired(t *testing.T) {
	deps := &Deps{}
	deps.putConfirm("tok", &pendingConfirm{
		UserId:  "invoker",
		Expires: time.Now().Add(-time.Second),
	})

	_, status := deps.resolveConfirm("tok", "invoker")
	assert.Equal(t, confirmMissing, status)
}

func TestExpireConfirmLosesToResolve(t *testing.T) {
	deps := &Deps{}
	deps.putConfirm("tok", &pendingConfirm{
		UserId:  "invoker",
		Expires: time.Now().Add(time.Minute),
	})

	_, status := deps.resolveConfirm("tok", "invoker")
	require.Equal(t, confirmOK, status)

	// The timeout path finds nothing left to cancel.
	assert.False(t, deps.expireConfirm("tok"))
}

func TestRosterListEmbedPaging(t *testing.T) {
	members := make([]models.Member, 0, 23)
	for n := 1; n <= 23; n++ {
		members = append(members, models.Member{
			DisplayName:  fmt.Sprintf("member-%d", n),
			JoinPosition: n,
			HabitCount:   int64(n),
			IsBot:        n == 23,
		})
	}

	first := rosterListEmbed(members, 0)
	assert.Contains(t, first.Description, "`#1` member-1")
	assert.Contains(t, first.Description, "`#10` member-10")
	assert.NotContains(t, first.Description, "member-11")
	assert.Equal(t, "Page 1/3 • 23 records", first.Footer.Text)

	last := rosterListEmbed(members, 20)
	assert.Contains(t, last.Description, "`#21` member-21")
	assert.Contains(t, last.Description, "member-23 🤖")
	assert.NotContains(t, last.Description, "member-20")
	assert.Equal(t, "Page 3/3 • 23 records", last.Footer.Text)
}
