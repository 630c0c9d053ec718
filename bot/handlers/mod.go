package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/Wandervogel-001/The-System/bot/models"
	"github.com/Wandervogel-001/The-System/bot/responses"
	"github.com/Wandervogel-001/The-System/utils"
)

const (
	colorOrange = 0xE67E22
	colorGrey   = 0x95A5A6
	colorPurple = 0x9B59B6
)

func modCommandHandler(deps *Deps) CommandHandler {
	return func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		options := i.ApplicationCommandData().Options
		subOptions := optionMap(options[0].Options)

		reason := "No reason provided"
		if opt, ok := subOptions["reason"]; ok {
			reason = opt.StringValue()
		}

		switch options[0].Name {
		case "ban":
			banHandler(deps, s, i, subOptions["user"].UserValue(s), reason)
		case "kick":
			kickHandler(deps, s, i, subOptions["user"].UserValue(s), reason)
		case "mute":
			timeoutHandler(deps, s, i, subOptions["user"].UserValue(s), time.Hour, reason, "mute")
		case "timeout":
			duration, err := utils.ParseTimeout(subOptions["duration"].StringValue())
			if err != nil {
				respond(s, i, responses.Ephemeral("❌ "+err.Error()), deps.Log)
				return
			}
			timeoutHandler(deps, s, i, subOptions["user"].UserValue(s), duration, reason, "timeout")
		case "purge":
			purgeHandler(deps, s, i, subOptions)
		case "history":
			historyHandler(deps, s, i, subOptions)
		}
	}
}

// banHandler parks the ban behind a confirmation button; nothing
// happens until the invoker confirms within the timeout.
func banHandler(deps *Deps, s *discordgo.Session, i *discordgo.InteractionCreate, target *discordgo.User, reason string) {
	token := i.ID
	deps.putConfirm(token, &pendingConfirm{
		Kind:       "ban",
		GuildId:    i.GuildID,
		UserId:     i.Member.User.ID,
		TargetId:   target.ID,
		TargetName: target.Username,
		Reason:     reason,
		Expires:    time.Now().Add(confirmTimeout),
	})

	respond(s, i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{
				{
					Title:       "⚠️ Confirmation Required",
					Description: fmt.Sprintf("Are you sure you want to ban <@%s>?", target.ID),
					Color:       colorOrange,
				},
			},
			Components: confirmButtons(token),
		},
	}, deps.Log)

	expireConfirmLater(deps, s, i.Interaction, token, "Ban cancelled (confirmation timed out).")
}

func kickHandler(deps *Deps, s *discordgo.Session, i *discordgo.InteractionCreate, target *discordgo.User, reason string) {
	err := s.GuildMemberDeleteWithReason(i.GuildID, target.ID, fmt.Sprintf("By %s: %s", i.Member.User.Username, reason))
	if err != nil {
		respond(s, i, responses.Ephemeral(moderationFailure("kick", err)), deps.Log)
		return
	}

	logModerationAction(deps, i.GuildID, target.ID, i.Member.User.ID, "kick", reason, 0)
	respond(s, i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{
				moderationEmbed("👢 User Kicked",
					fmt.Sprintf("<@%s> was kicked by <@%s>", target.ID, i.Member.User.ID),
					reason, colorOrange),
			},
		},
	}, deps.Log)
}

func timeoutHandler(deps *Deps, s *discordgo.Session, i *discordgo.InteractionCreate, target *discordgo.User, duration time.Duration, reason, action string) {
	until := time.Now().Add(duration)
	err := s.GuildMemberTimeout(i.GuildID, target.ID, &until)
	if err != nil {
		respond(s, i, responses.Ephemeral(moderationFailure(action, err)), deps.Log)
		return
	}

	logModerationAction(deps, i.GuildID, target.ID, i.Member.User.ID, action, reason, int64(duration.Seconds()))

	title, color := "🔇 User Muted", colorGrey
	if action == "timeout" {
		title, color = "⏳ User Timed Out", colorPurple
	}
	respond(s, i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{
				moderationEmbed(title,
					fmt.Sprintf("<@%s> timed out by <@%s> until <t:%d:f>", target.ID, i.Member.User.ID, until.Unix()),
					reason, color),
			},
		},
	}, deps.Log)
}

func purgeHandler(deps *Deps, s *discordgo.Session, i *discordgo.InteractionCreate, subOptions map[string]*discordgo.ApplicationCommandInteractionDataOption) {
	amount := int(subOptions["amount"].IntValue())
	if amount < 1 || amount > 100 {
		respond(s, i, responses.Ephemeral("❌ Amount must be between 1 and 100."), deps.Log)
		return
	}

	channelId := i.ChannelID
	if opt, ok := subOptions["channel"]; ok {
		channelId = opt.ChannelValue(s).ID
	}

	messages, err := s.ChannelMessages(channelId, amount, "", "", "")
	if err != nil {
		respond(s, i, responses.Ephemeral(moderationFailure("purge", err)), deps.Log)
		return
	}
	ids := make([]string, len(messages))
	for idx, message := range messages {
		ids[idx] = message.ID
	}
	if err := s.ChannelMessagesBulkDelete(channelId, ids); err != nil {
		respond(s, i, responses.Ephemeral(moderationFailure("purge", err)), deps.Log)
		return
	}

	respond(s, i, responses.Ephemeral(fmt.Sprintf("✅ Cleared %d messages in <#%s>.", len(ids), channelId)), deps.Log)
}

func historyHandler(deps *Deps, s *discordgo.Session, i *discordgo.InteractionCreate, subOptions map[string]*discordgo.ApplicationCommandInteractionDataOption) {
	userId := ""
	if opt, ok := subOptions["user"]; ok {
		userId = opt.UserValue(nil).ID
	}

	logs, err := deps.Store.ListModerationLogs(context.Background(), i.GuildID, userId, 10)
	if err != nil {
		deps.Log.Error("mod history failed", zap.Error(err))
		respond(s, i, responses.UnavailableResponse, deps.Log)
		return
	}
	if len(logs) == 0 {
		respond(s, i, responses.Ephemeral("No moderation actions recorded."), deps.Log)
		return
	}

	fields := make([]*discordgo.MessageEmbedField, 0, len(logs))
	for _, entry := range logs {
		value := fmt.Sprintf("Target <@%s> • by <@%s> • <t:%d:R>\nReason: %s",
			entry.UserId, entry.ModeratorId, entry.CreatedAt.Unix(), entry.Reason)
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:  entry.Action,
			Value: value,
		})
	}
	respond(s, i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{
				{
					Title:  "📋 Moderation History",
					Color:  colorGrey,
					Fields: fields,
				},
			},
			Flags: discordgo.MessageFlagsEphemeral,
		},
	}, deps.Log)
}

func logModerationAction(deps *Deps, guildId, userId, moderatorId, action, reason string, durationSeconds int64) {
	err := deps.Store.AddModerationLog(context.Background(), &models.ModerationLog{
		GuildId:         guildId,
		UserId:          userId,
		ModeratorId:     moderatorId,
		Action:          action,
		Reason:          reason,
		DurationSeconds: durationSeconds,
	})
	if err != nil {
		// The action already happened; a lost audit row must not fail it.
		deps.Log.Warn("moderation log write failed",
			zap.String("action", action),
			zap.String("guild_id", guildId),
			zap.Error(err))
	}
}

func moderationEmbed(title, description, reason string, color int) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Reason", Value: reason},
		},
	}
}

func moderationFailure(action string, err error) string {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusForbidden {
		return fmt.Sprintf("❌ I don't have permission to %s that user!", action)
	}
	return fmt.Sprintf("❌ Failed to %s: %v", action, err)
}
