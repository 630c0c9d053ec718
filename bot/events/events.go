// Package events handles gateway events: member joins and leaves keep
// the record store current, and joins trigger the welcome flow.
package events

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/Wandervogel-001/The-System/bot/models"
	"github.com/Wandervogel-001/The-System/bot/roster"
	"github.com/Wandervogel-001/The-System/bot/store"
	"github.com/Wandervogel-001/The-System/packages/welcomecard"
	"github.com/Wandervogel-001/The-System/utils"
)

func MemberAddHandler(st *store.Store, rec *roster.Reconciler, log *zap.Logger) func(s *discordgo.Session, e *discordgo.GuildMemberAdd) {
	log = log.Named("events")
	return func(s *discordgo.Session, e *discordgo.GuildMemberAdd) {
		ctx := context.Background()

		position, err := rec.TrackJoin(ctx, e.GuildID, utils.ToLiveMember(e.Member))
		if err != nil {
			log.Error("member join: track failed",
				zap.String("guild_id", e.GuildID),
				zap.String("user_id", e.User.ID),
				zap.Error(err))
			return
		}
		log.Info("member joined",
			zap.String("guild_id", e.GuildID),
			zap.String("user_id", e.User.ID),
			zap.Int("join_position", position))

		settings, err := st.GetOrCreateSettings(ctx, e.GuildID)
		if err != nil {
			log.Error("member join: settings failed", zap.String("guild_id", e.GuildID), zap.Error(err))
			return
		}
		if settings.WelcomeEnabled {
			SendWelcome(s, st, log, e.GuildID, e.Member, settings)
		}
		AssignWelcomeRole(s, log, e.GuildID, e.User.ID, settings)
	}
}

func MemberRemoveHandler(st *store.Store, log *zap.Logger) func(s *discordgo.Session, e *discordgo.GuildMemberRemove) {
	log = log.Named("events")
	return func(s *discordgo.Session, e *discordgo.GuildMemberRemove) {
		deleted, err := st.DeleteMember(context.Background(), e.User.ID, e.GuildID)
		switch {
		case err != nil:
			log.Error("member leave: delete failed",
				zap.String("guild_id", e.GuildID),
				zap.String("user_id", e.User.ID),
				zap.Error(err))
		case !deleted:
			log.Warn("member leave: no stored record",
				zap.String("guild_id", e.GuildID),
				zap.String("user_id", e.User.ID))
		default:
			log.Info("member left",
				zap.String("guild_id", e.GuildID),
				zap.String("user_id", e.User.ID))
		}
	}
}

// GuildCreateHandler makes sure every connected guild has a settings
// row, so single-column updates always have something to hit.
func GuildCreateHandler(st *store.Store, log *zap.Logger) func(s *discordgo.Session, e *discordgo.GuildCreate) {
	log = log.Named("events")
	return func(s *discordgo.Session, e *discordgo.GuildCreate) {
		if _, err := st.GetOrCreateSettings(context.Background(), e.ID); err != nil {
			log.Error("guild create: settings failed", zap.String("guild_id", e.ID), zap.Error(err))
		}
	}
}

// SendWelcome posts the welcome embed (with the rendered card) to the
// configured channel, falling back to the guild's system channel.
// Returns the URL of the posted message, or "" when nothing was sent.
func SendWelcome(s *discordgo.Session, st *store.Store, log *zap.Logger, guildId string, member *discordgo.Member, settings *models.ServerSettings) string {
	channelId := settings.WelcomeChannelId
	if channelId == "" {
		guild, err := s.State.Guild(guildId)
		if err != nil || guild.SystemChannelID == "" {
			log.Warn("welcome: no usable channel", zap.String("guild_id", guildId))
			return ""
		}
		channelId = guild.SystemChannelID
	}

	ctx := context.Background()
	position := 1
	if record, err := st.GetMember(ctx, member.User.ID, guildId); err == nil {
		position = record.JoinPosition
	} else if !errors.Is(err, store.ErrNotFound) {
		log.Error("welcome: member lookup failed", zap.Error(err))
	}

	guildName := guildId
	memberCount := 0
	if guild, err := s.State.Guild(guildId); err == nil {
		guildName = guild.Name
	}
	if humans, err := st.CountHumans(ctx, guildId); err == nil {
		memberCount = int(humans)
	}

	displayName := utils.DisplayName(member)
	text := formatWelcome(settings.WelcomeMessage, member.User.ID, displayName, guildName, memberCount, position)

	embed := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("✨ Welcome %s!", displayName),
		Description: text,
		Color:       0x5865F2,
		Thumbnail:   &discordgo.MessageEmbedThumbnail{URL: member.AvatarURL("256")},
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:  "Join Position",
				Value: fmt.Sprintf("<@%s> is the %s member!", member.User.ID, utils.Ordinal(position)),
			},
		},
	}

	message := &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{embed}}
	if card, err := welcomecard.Render(displayName, position); err != nil {
		log.Warn("welcome: card render failed", zap.Error(err))
	} else {
		embed.Image = &discordgo.MessageEmbedImage{URL: "attachment://welcome.png"}
		message.Files = []*discordgo.File{
			{
				Name:        "welcome.png",
				ContentType: "image/png",
				Reader:      bytes.NewReader(card),
			},
		}
	}

	sent, err := s.ChannelMessageSendComplex(channelId, message)
	if err != nil {
		log.Error("welcome: send failed",
			zap.String("guild_id", guildId),
			zap.String("channel_id", channelId),
			zap.Error(err))
		return ""
	}
	return utils.MessageURL(guildId, channelId, sent.ID)
}

// AssignWelcomeRole gives a new member the configured auto-role.
// Permission failures are logged and reported nowhere else; they are
// never retried.
func AssignWelcomeRole(s *discordgo.Session, log *zap.Logger, guildId, userId string, settings *models.ServerSettings) {
	if !settings.AutoRoleEnabled || settings.WelcomeRoleId == "" {
		return
	}
	if err := s.GuildMemberRoleAdd(guildId, userId, settings.WelcomeRoleId); err != nil {
		log.Error("welcome: role assign failed",
			zap.String("guild_id", guildId),
			zap.String("user_id", userId),
			zap.String("role_id", settings.WelcomeRoleId),
			zap.Error(err))
	}
}

func formatWelcome(template, userId, displayName, guildName string, memberCount, joinPosition int) string {
	replacer := strings.NewReplacer(
		"{user_mention}", fmt.Sprintf("<@%s>", userId),
		"{user_name}", displayName,
		"{guild_name}", guildName,
		"{member_count}", strconv.Itoa(memberCount),
		"{join_position}", strconv.Itoa(joinPosition),
	)
	return replacer.Replace(template)
}
