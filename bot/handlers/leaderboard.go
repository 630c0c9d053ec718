package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/Wandervogel-001/The-System/bot/ranking"
	"github.com/Wandervogel-001/The-System/bot/responses"
	"github.com/Wandervogel-001/The-System/utils"
)

const (
	colorGold  = 0xF1C40F
	colorGreen = 0x2ECC71
	colorRed   = 0xE74C3C
)

const leaderboardFooter = "You can increment once per day (UTC)"

func habitCommandHandler(deps *Deps) CommandHandler {
	return func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		ctx := context.Background()
		userId := i.Member.User.ID

		// Make sure a record exists before the gated increment.
		if _, err := deps.Roster.TrackJoin(ctx, i.GuildID, utils.ToLiveMember(i.Member)); err != nil {
			deps.Log.Error("habit: track join failed", zap.Error(err))
			respond(s, i, responses.UnavailableResponse, deps.Log)
			return
		}

		count, err := deps.Ranking.Increment(ctx, userId, i.GuildID, time.Now().UTC())
		var cooldown *ranking.CooldownError
		switch {
		case errors.As(err, &cooldown):
			respond(s, i, responses.Ephemeral(fmt.Sprintf(
				"⏳ You already incremented today. You can go again <t:%d:R>.",
				cooldown.NextEligible.Unix())), deps.Log)
		case err != nil:
			deps.Log.Error("habit: increment failed", zap.Error(err))
			respond(s, i, responses.UnavailableResponse, deps.Log)
		default:
			respond(s, i, responses.Message(fmt.Sprintf(
				"🔥 <@%s> kept the habit going! Level is now **%d**.", userId, count)), deps.Log)
		}
	}
}

func myrankCommandHandler(deps *Deps) CommandHandler {
	return func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		userId := i.Member.User.ID
		if opt, ok := optionMap(i.ApplicationCommandData().Options)["user"]; ok {
			userId = opt.UserValue(nil).ID
		}

		entry, found, err := deps.Ranking.FindRank(context.Background(), i.GuildID, userId)
		switch {
		case err != nil:
			deps.Log.Error("myrank failed", zap.Error(err))
			respond(s, i, responses.UnavailableResponse, deps.Log)
		case !found:
			respond(s, i, responses.Ephemeral(fmt.Sprintf(
				"<@%s> is not on the leaderboard yet. Use /habit to get started!", userId)), deps.Log)
		default:
			respond(s, i, responses.Message(fmt.Sprintf(
				"🏆 <@%s> is rank **#%d** with level **%d**.",
				userId, entry.Rank, entry.Member.HabitCount)), deps.Log)
		}
	}
}

func leaderboardCommandHandler(deps *Deps) CommandHandler {
	return func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		page := 1
		if opt, ok := optionMap(i.ApplicationCommandData().Options)["page"]; ok {
			page = int(opt.IntValue())
			if page < 1 {
				respond(s, i, responses.Ephemeral("Page must be 1 or higher."), deps.Log)
				return
			}
		}
		offset := (page - 1) * ranking.DefaultPageSize

		entries, total, err := deps.Ranking.Page(context.Background(), i.GuildID, offset, ranking.DefaultPageSize)
		if err != nil {
			deps.Log.Error("leaderboard failed", zap.Error(err))
			respond(s, i, responses.UnavailableResponse, deps.Log)
			return
		}

		embed := leaderboardEmbed(entries, total, offset)
		response := &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Embeds: []*discordgo.MessageEmbed{embed},
			},
		}
		if total > ranking.DefaultPageSize {
			response.Data.Components = navButtons("lb")
		}
		respond(s, i, response, deps.Log)

		if total <= ranking.DefaultPageSize {
			return
		}
		message, err := s.InteractionResponse(i.Interaction)
		if err != nil {
			deps.Log.Warn("leaderboard: fetch response failed", zap.Error(err))
			return
		}
		deps.putPaginator(message.ID, &paginatorSession{
			GuildId: i.GuildID,
			UserId:  i.Member.User.ID,
			Offset:  offset,
			Expires: time.Now().Add(paginatorTimeout),
		})
	}
}

func leaderboardNavHandler(deps *Deps, s *discordgo.Session, i *discordgo.InteractionCreate, next bool) {
	session, ok := deps.getPaginator(i.Message.ID)
	if !ok {
		respond(s, i, responses.Ephemeral("This leaderboard view has expired. Run /leaderboard again."), deps.Log)
		return
	}
	if i.Member.User.ID != session.UserId {
		respond(s, i, responses.Ephemeral("Only the command user can navigate."), deps.Log)
		return
	}

	offset := session.Offset
	if next {
		offset += ranking.DefaultPageSize
	} else {
		offset -= ranking.DefaultPageSize
	}

	entries, total, err := deps.Ranking.Page(context.Background(), session.GuildId, offset, ranking.DefaultPageSize)
	if err != nil {
		deps.Log.Error("leaderboard nav failed", zap.Error(err))
		respond(s, i, responses.UnavailableResponse, deps.Log)
		return
	}
	if offset < 0 || len(entries) == 0 {
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
			Embeds:     []*discordgo.MessageEmbed{leaderboardEmbed(entries, total, offset)},
			Components: navButtons("lb"),
		},
	}, deps.Log)
}

func leaderboardEmbed(entries []ranking.Entry, total, offset int) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: "🏆 Guild Ranking",
		Color: colorGold,
		Footer: &discordgo.MessageEmbedFooter{
			Text: leaderboardFooter,
		},
	}

	switch {
	case total == 0:
		embed.Description = "No members with levels found. Start leveling up!"
	case len(entries) == 0:
		embed.Description = "No members found on this page."
	default:
		embed.Description = ranking.RenderTable(entries)
		if total > ranking.DefaultPageSize {
			pageNum := offset/ranking.DefaultPageSize + 1
			totalPages := (total-1)/ranking.DefaultPageSize + 1
			embed.Footer.Text = fmt.Sprintf("Page %d/%d • %s", pageNum, totalPages, leaderboardFooter)
		}
	}
	return embed
}

// navButtons builds the previous/next row for a paginated view; prefix
// routes the presses back to the right nav handler.
func navButtons(prefix string) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Previous",
					Style:    discordgo.SecondaryButton,
					CustomID: prefix + ":prev",
					Emoji:    &discordgo.ComponentEmoji{Name: "⬅️"},
				},
				discordgo.Button{
					Label:    "Next",
					Style:    discordgo.SecondaryButton,
					CustomID: prefix + ":next",
					Emoji:    &discordgo.ComponentEmoji{Name: "➡️"},
				},
			},
		},
	}
}
