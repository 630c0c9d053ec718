// Package handlers wires slash commands and message components to the
// roster and ranking services. Handlers are closures over their
// dependencies, built once at startup.
package handlers

import (
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/Wandervogel-001/The-System/bot/ranking"
	"github.com/Wandervogel-001/The-System/bot/responses"
	"github.com/Wandervogel-001/The-System/bot/roster"
	"github.com/Wandervogel-001/The-System/bot/store"
)

const (
	// Pending confirmations default to cancelled after this long.
	confirmTimeout = 30 * time.Second
	// Leaderboard views stop responding to navigation after this long.
	paginatorTimeout = 5 * time.Minute
)

type Deps struct {
	Store   *store.Store
	Roster  *roster.Reconciler
	Ranking *ranking.Engine
	Log     *zap.Logger
	OwnerId string

	mu         sync.Mutex
	paginators map[string]*paginatorSession
	confirms   map[string]*pendingConfirm
}

// paginatorSession is the state behind one leaderboard message.
type paginatorSession struct {
	GuildId string
	UserId  string
	Offset  int
	Expires time.Time
}

// pendingConfirm is a destructive action awaiting a button press.
type pendingConfirm struct {
	Kind        string // "ban" or "rebuild"
	GuildId     string
	UserId      string // invoker; only they may confirm
	TargetId    string
	TargetName  string
	Reason      string
	Expires     time.Time
}

type CommandHandler = func(s *discordgo.Session, i *discordgo.InteractionCreate)

func InteractionCreateHandler(deps *Deps) func(s *discordgo.Session, i *discordgo.InteractionCreate) {
	deps.paginators = make(map[string]*paginatorSession)
	deps.confirms = make(map[string]*pendingConfirm)

	var commandHandlers = map[string]CommandHandler{
		"habit":       habitCommandHandler(deps),
		"leaderboard": leaderboardCommandHandler(deps),
		"myrank":      myrankCommandHandler(deps),
		"welcome":     welcomeCommandHandler(deps),
		"config":      configCommandHandler(deps),
		"mod":         modCommandHandler(deps),
		"roster":      rosterCommandHandler(deps),
	}

	return func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		switch i.Type {
		case discordgo.InteractionApplicationCommand:
			if commandHandler, ok := commandHandlers[i.ApplicationCommandData().Name]; ok {
				commandHandler(s, i)
			} else {
				respond(s, i, responses.GenericErrorResponse, deps.Log)
			}
		case discordgo.InteractionMessageComponent:
			componentHandler(deps, s, i)
		}
	}
}

func componentHandler(deps *Deps, s *discordgo.Session, i *discordgo.InteractionCreate) {
	customId := i.MessageComponentData().CustomID
	switch {
	case customId == "lb:prev" || customId == "lb:next":
		leaderboardNavHandler(deps, s, i, customId == "lb:next")
	case customId == "rl:prev" || customId == "rl:next":
		rosterListNavHandler(deps, s, i, customId == "rl:next")
	case strings.HasPrefix(customId, "confirm:") || strings.HasPrefix(customId, "cancel:"):
		confirmHandler(deps, s, i, customId)
	}
}

// optionMap indexes interaction options by name, including the options
// of nested subcommands.
func optionMap(options []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(options))
	for _, opt := range options {
		m[opt.Name] = opt
	}
	return m
}

func respond(s *discordgo.Session, i *discordgo.InteractionCreate, r *discordgo.InteractionResponse, log *zap.Logger) {
	if err := s.InteractionRespond(i.Interaction, r); err != nil {
		log.Warn("interaction respond failed", zap.Error(err))
	}
}

func (d *Deps) putPaginator(messageId string, session *paginatorSession) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.paginators == nil {
		d.paginators = make(map[string]*paginatorSession)
	}
	d.paginators[messageId] = session
}

// getPaginator returns a copy of a live session. Handlers run on their
// own goroutines, so the shared entry is only ever touched under the
// lock; mutations go through updatePaginator.
func (d *Deps) getPaginator(messageId string) (paginatorSession, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	session, ok := d.paginators[messageId]
	if !ok {
		return paginatorSession{}, false
	}
	if time.Now().After(session.Expires) {
		delete(d.paginators, messageId)
		return paginatorSession{}, false
	}
	return *session, true
}

// updatePaginator advances a session to a new offset and renews its
// expiry. A session that expired in the meantime stays gone.
func (d *Deps) updatePaginator(messageId string, offset int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	session, ok := d.paginators[messageId]
	if !ok || time.Now().After(session.Expires) {
		return
	}
	session.Offset = offset
	session.Expires = time.Now().Add(paginatorTimeout)
}

func (d *Deps) putConfirm(token string, pending *pendingConfirm) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.confirms == nil {
		d.confirms = make(map[string]*pendingConfirm)
	}
	d.confirms[token] = pending
}
