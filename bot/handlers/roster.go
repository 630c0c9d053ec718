package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/Wandervogel-001/The-System/bot/models"
	"github.com/Wandervogel-001/The-System/bot/responses"
	"github.com/Wandervogel-001/The-System/bot/roster"
	"github.com/Wandervogel-001/The-System/bot/store"
	"github.com/Wandervogel-001/The-System/utils"
)

const colorBlue = 0x3498DB

func rosterCommandHandler(deps *Deps) CommandHandler {
	return func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		if deps.OwnerId != "" && i.Member.User.ID != deps.OwnerId {
			respond(s, i, responses.Ephemeral("❌ This command is restricted to the bot owner."), deps.Log)
			return
		}

		options := i.ApplicationCommandData().Options
		switch options[0].Name {
		case "analyze":
			analyzeHandler(deps, s, i)
		case "list":
			listHandler(deps, s, i, optionMap(options[0].Options))
		case "sync":
			syncHandler(deps, s, i)
		case "rebuild":
			rebuildHandler(deps, s, i)
		case "info":
			infoHandler(deps, s, i, optionMap(options[0].Options))
		}
	}
}

// analyzeHandler reports drift between live membership and stored
// records, and repairs it on the spot when any is found.
func analyzeHandler(deps *Deps, s *discordgo.Session, i *discordgo.InteractionCreate) {
	deferResponse(deps, s, i)
	ctx := context.Background()

	live, err := utils.LiveMembers(s, i.GuildID)
	if err != nil {
		deps.Log.Error("analyze: member fetch failed", zap.Error(err))
		editWithContent(deps, s, i, "❌ Could not fetch live membership.")
		return
	}
	stored, err := deps.Store.ListMembers(ctx, i.GuildID)
	if err != nil {
		deps.Log.Error("analyze: list failed", zap.Error(err))
		editWithContent(deps, s, i, "❌ Record store is temporarily unavailable.")
		return
	}

	liveHumans, liveBots := 0, 0
	for _, m := range live {
		if m.Bot {
			liveBots++
		} else {
			liveHumans++
		}
	}
	storedHumans, storedBots := 0, 0
	for _, m := range stored {
		if m.IsBot {
			storedBots++
		} else {
			storedHumans++
		}
	}

	drift := roster.Diff(live, stored)
	embed := &discordgo.MessageEmbed{
		Title: "👥 Member Analysis",
		Color: colorBlue,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:   "Discord Totals",
				Value:  fmt.Sprintf("Total: %d\nHumans: %d\nBots: %d", len(live), liveHumans, liveBots),
				Inline: true,
			},
			{
				Name:   "Database Totals",
				Value:  fmt.Sprintf("Total: %d\nHumans: %d\nBots: %d", len(stored), storedHumans, storedBots),
				Inline: true,
			},
			{
				Name:   "Discrepancies",
				Value:  fmt.Sprintf("Missing Humans: %d\nMissing Bots: %d", len(drift.MissingHumans), len(drift.MissingBots)),
				Inline: true,
			},
		},
	}

	if drift.Empty() {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "✅ No Missing Members",
			Value: "Database is up to date. Use /roster sync to refresh anyway.",
		})
	} else {
		result, err := deps.Roster.Reconcile(ctx, i.GuildID, live)
		value := fmt.Sprintf("Missing members detected. Synced: added %d, updated %d.", result.Added, result.Updated)
		if err != nil {
			deps.Log.Error("analyze: auto-sync failed", zap.Error(err))
			value = "Missing members detected, but the auto-sync failed; rerun /roster sync."
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "🔄 Auto-Sync",
			Value: value,
		})
	}

	editWithEmbed(deps, s, i, embed)
}

const rosterPageSize = 10

// listHandler shows one page of stored records, join position first.
// The jump-to-page option plus the nav buttons cover the whole roster.
func listHandler(deps *Deps, s *discordgo.Session, i *discordgo.InteractionCreate, subOptions map[string]*discordgo.ApplicationCommandInteractionDataOption) {
	page := 1
	if opt, ok := subOptions["page"]; ok {
		page = int(opt.IntValue())
		if page < 1 {
			respond(s, i, responses.Ephemeral("Page must be 1 or higher."), deps.Log)
			return
		}
	}
	offset := (page - 1) * rosterPageSize

	members, err := deps.Store.ListMembers(context.Background(), i.GuildID)
	if err != nil {
		deps.Log.Error("roster list failed", zap.Error(err))
		respond(s, i, responses.UnavailableResponse, deps.Log)
		return
	}
	if len(members) == 0 {
		respond(s, i, responses.Ephemeral("No member records yet. Run /roster sync first."), deps.Log)
		return
	}
	if offset >= len(members) {
		respond(s, i, responses.Ephemeral(fmt.Sprintf("That page is out of range; there are %d pages.",
			(len(members)-1)/rosterPageSize+1)), deps.Log)
		return
	}

	response := &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{rosterListEmbed(members, offset)},
		},
	}
	if len(members) > rosterPageSize {
		response.Data.Components = navButtons("rl")
	}
	respond(s, i, response, deps.Log)

	if len(members) <= rosterPageSize {
		return
	}
	message, err := s.InteractionResponse(i.Interaction)
	if err != nil {
		deps.Log.Warn("roster list: fetch response failed", zap.Error(err))
		return
	}
	deps.putPaginator(message.ID, &paginatorSession{
		GuildId: i.GuildID,
		UserId:  i.Member.User.ID,
		Offset:  offset,
		Expires: time.Now().Add(paginatorTimeout),
	})
}

func rosterListNavHandler(deps *Deps, s *discordgo.Session, i *discordgo.InteractionCreate, next bool) {
	session, ok := deps.getPaginator(i.Message.ID)
	if !ok {
		respond(s, i, responses.Ephemeral("This view has expired. Run /roster list again."), deps.Log)
		return
	}
	if i.Member.User.ID != session.UserId {
		respond(s, i, responses.Ephemeral("Only the command user can navigate."), deps.Log)
		return
	}

	offset := session.Offset
	if next {
		offset += rosterPageSize
	} else {
		offset -= rosterPageSize
	}

	members, err := deps.Store.ListMembers(context.Background(), session.GuildId)
	if err != nil {
		deps.Log.Error("roster list nav failed", zap.Error(err))
		respond(s, i, responses.UnavailableResponse, deps.Log)
		return
	}
	if offset < 0 || offset >= len(members) {
		message := "Already on the first page."
		if next {
			message = "Already on the last page."
		}
		respond(s, i, responses.Ephemeral(message), deps.Log)
		return
	}

	deps.updatePaginator(i.Message.ID, offset)
	respond(s, i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{rosterListEmbed(members, offset)},
			Components: navButtons("rl"),
		},
	}, deps.Log)
}

func rosterListEmbed(members []models.Member, offset int) *discordgo.MessageEmbed {
	total := len(members)
	end := offset + rosterPageSize
	if end > total {
		end = total
	}

	var b strings.Builder
	for _, m := range members[offset:end] {
		marker := ""
		if m.IsBot {
			marker = " 🤖"
		}
		fmt.Fprintf(&b, "`#%d` %s%s (Lv %d)\n", m.JoinPosition, m.DisplayName, marker, m.HabitCount)
	}

	return &discordgo.MessageEmbed{
		Title:       "📋 Member Records",
		Description: b.String(),
		Color:       colorBlue,
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Page %d/%d • %d records",
				offset/rosterPageSize+1, (total-1)/rosterPageSize+1, total),
		},
	}
}

func syncHandler(deps *Deps, s *discordgo.Session, i *discordgo.InteractionCreate) {
	deferResponse(deps, s, i)

	live, err := utils.LiveMembers(s, i.GuildID)
	if err != nil {
		deps.Log.Error("sync: member fetch failed", zap.Error(err))
		editWithContent(deps, s, i, "❌ Could not fetch live membership.")
		return
	}

	result, err := deps.Roster.Reconcile(context.Background(), i.GuildID, live)
	if err != nil {
		deps.Log.Error("sync failed", zap.Error(err))
		editWithContent(deps, s, i, "❌ Sync failed partway; rerunning /roster sync is safe and will finish the job.")
		return
	}
	editWithContent(deps, s, i, fmt.Sprintf("✅ Sync complete! Added: %d, Updated: %d", result.Added, result.Updated))
}

func rebuildHandler(deps *Deps, s *discordgo.Session, i *discordgo.InteractionCreate) {
	token := i.ID
	deps.putConfirm(token, &pendingConfirm{
		Kind:    "rebuild",
		GuildId: i.GuildID,
		UserId:  i.Member.User.ID,
		Expires: time.Now().Add(confirmTimeout),
	})

	respond(s, i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{
				{
					Title:       "⚠️ Confirmation Required",
					Description: "This will DELETE all member records for this guild and rebuild them from live membership. Habit counters are kept for members still present.",
					Color:       colorOrange,
				},
			},
			Components: confirmButtons(token),
		},
	}, deps.Log)

	expireConfirmLater(deps, s, i.Interaction, token, "Rebuild cancelled (confirmation timed out).")
}

func infoHandler(deps *Deps, s *discordgo.Session, i *discordgo.InteractionCreate, subOptions map[string]*discordgo.ApplicationCommandInteractionDataOption) {
	target := subOptions["user"].UserValue(nil)

	record, err := deps.Store.GetMember(context.Background(), target.ID, i.GuildID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		respond(s, i, responses.Ephemeral("❌ No data found for this member."), deps.Log)
		return
	case err != nil:
		deps.Log.Error("info failed", zap.Error(err))
		respond(s, i, responses.UnavailableResponse, deps.Log)
		return
	}

	lastIncrement := "never"
	if record.LastIncrement != nil {
		lastIncrement = fmt.Sprintf("<t:%d:R>", record.LastIncrement.Unix())
	}
	isBot := "No"
	if record.IsBot {
		isBot = "Yes"
	}

	respond(s, i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{
				{
					Title: fmt.Sprintf("📊 Member Details: %s", record.DisplayName),
					Color: colorGreen,
					Fields: []*discordgo.MessageEmbedField{
						{Name: "User ID", Value: record.UserId, Inline: true},
						{Name: "Username", Value: record.Username, Inline: true},
						{Name: "Display Name", Value: record.DisplayName, Inline: true},
						{Name: "Joined At", Value: record.JoinedAt.UTC().Format("2006-01-02 15:04:05"), Inline: true},
						{Name: "Join Position", Value: fmt.Sprintf("#%d", record.JoinPosition), Inline: true},
						{Name: "Is Bot", Value: isBot, Inline: true},
						{Name: "Habit Level", Value: fmt.Sprintf("%d", record.HabitCount), Inline: true},
						{Name: "Last Increment", Value: lastIncrement, Inline: true},
					},
				},
			},
			Flags: discordgo.MessageFlagsEphemeral,
		},
	}, deps.Log)
}

func deferResponse(deps *Deps, s *discordgo.Session, i *discordgo.InteractionCreate) {
	respond(s, i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}, deps.Log)
}

func editWithContent(deps *Deps, s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &content}); err != nil {
		deps.Log.Warn("interaction edit failed", zap.Error(err))
	}
}

func editWithEmbed(deps *Deps, s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	embeds := []*discordgo.MessageEmbed{embed}
	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Embeds: &embeds}); err != nil {
		deps.Log.Warn("interaction edit failed", zap.Error(err))
	}
}
