package handlers

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/Wandervogel-001/The-System/bot/events"
	"github.com/Wandervogel-001/The-System/bot/models"
	"github.com/Wandervogel-001/The-System/bot/responses"
)

func welcomeCommandHandler(deps *Deps) CommandHandler {
	return func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		ctx := context.Background()
		settings, err := deps.Store.GetOrCreateSettings(ctx, i.GuildID)
		if err != nil {
			deps.Log.Error("welcome: load settings failed", zap.Error(err))
			respond(s, i, responses.UnavailableResponse, deps.Log)
			return
		}

		options := i.ApplicationCommandData().Options
		switch options[0].Name {
		case "test":
			if !settings.WelcomeEnabled {
				respond(s, i, responses.Ephemeral("❌ Welcome system is disabled. Use /welcome toggle to enable it."), deps.Log)
				return
			}

			userId := i.Member.User.ID
			if opt, ok := optionMap(options[0].Options)["user"]; ok {
				userId = opt.UserValue(nil).ID
			}
			member, err := s.GuildMember(i.GuildID, userId)
			if err != nil {
				respond(s, i, responses.Ephemeral("❌ Could not resolve that member."), deps.Log)
				return
			}

			url := events.SendWelcome(s, deps.Store, deps.Log, i.GuildID, member, settings)
			events.AssignWelcomeRole(s, deps.Log, i.GuildID, userId, settings)
			if url == "" {
				respond(s, i, responses.Ephemeral("❌ Welcome message could not be sent; check the welcome channel."), deps.Log)
				return
			}
			respond(s, i, responses.Ephemeral(fmt.Sprintf("✅ Welcome sent for <@%s>! %s", userId, url)), deps.Log)

		case "toggle":
			if err := deps.Store.UpdateSetting(ctx, i.GuildID, "welcome_enabled", !settings.WelcomeEnabled); err != nil {
				deps.Log.Error("welcome: toggle failed", zap.Error(err))
				respond(s, i, responses.UnavailableResponse, deps.Log)
				return
			}
			status := "enabled"
			if settings.WelcomeEnabled {
				status = "disabled"
			}
			respond(s, i, responses.Message(fmt.Sprintf("✅ Welcome system is now **%s**.", status)), deps.Log)

		case "settings":
			respond(s, i, &discordgo.InteractionResponse{
				Type: discordgo.InteractionResponseChannelMessageWithSource,
				Data: &discordgo.InteractionResponseData{
					Embeds: []*discordgo.MessageEmbed{settingsEmbed(settings)},
				},
			}, deps.Log)
		}
	}
}

func configCommandHandler(deps *Deps) CommandHandler {
	return func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		ctx := context.Background()
		options := i.ApplicationCommandData().Options

		switch options[0].Name {
		case "list":
			settings, err := deps.Store.GetOrCreateSettings(ctx, i.GuildID)
			if err != nil {
				deps.Log.Error("config: load settings failed", zap.Error(err))
				respond(s, i, responses.UnavailableResponse, deps.Log)
				return
			}
			respond(s, i, &discordgo.InteractionResponse{
				Type: discordgo.InteractionResponseChannelMessageWithSource,
				Data: &discordgo.InteractionResponseData{
					Embeds: []*discordgo.MessageEmbed{settingsEmbed(settings)},
				},
			}, deps.Log)

		case "set":
			// Row must exist before the single-column update.
			if _, err := deps.Store.GetOrCreateSettings(ctx, i.GuildID); err != nil {
				deps.Log.Error("config: load settings failed", zap.Error(err))
				respond(s, i, responses.UnavailableResponse, deps.Log)
				return
			}

			subCommand := options[0].Options[0]
			subOptions := optionMap(subCommand.Options)

			var column string
			var value interface{}
			switch subCommand.Name {
			case "welcome_channel":
				column, value = "welcome_channel_id", subOptions["channel"].ChannelValue(s).ID
			case "welcome_role":
				role := subOptions["role"].RoleValue(s, i.GuildID)
				column, value = "welcome_role_id", role.ID
			case "welcome_message":
				message := subOptions["message"].StringValue()
				if len(message) > 500 {
					respond(s, i, responses.Ephemeral("❌ Welcome message must be 500 characters or less."), deps.Log)
					return
				}
				column, value = "welcome_message", message
			}

			if err := deps.Store.UpdateSetting(ctx, i.GuildID, column, value); err != nil {
				deps.Log.Error("config: update failed", zap.String("column", column), zap.Error(err))
				respond(s, i, responses.UnavailableResponse, deps.Log)
				return
			}
			respond(s, i, responses.Message("✅ Successfully updated config!"), deps.Log)
		}
	}
}

func settingsEmbed(settings *models.ServerSettings) *discordgo.MessageEmbed {
	status := "❌ Disabled"
	if settings.WelcomeEnabled {
		status = "✅ Enabled"
	}
	autoRole := "❌ Disabled"
	if settings.AutoRoleEnabled {
		autoRole = "✅ Enabled"
	}
	channel := "❌ Not set"
	if settings.WelcomeChannelId != "" {
		channel = fmt.Sprintf("<#%s>", settings.WelcomeChannelId)
	}
	role := "❌ Not set"
	if settings.WelcomeRoleId != "" {
		role = fmt.Sprintf("<@&%s>", settings.WelcomeRoleId)
	}

	return &discordgo.MessageEmbed{
		Title: "🛠️ Welcome System Settings",
		Color: colorGreen,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Status", Value: status, Inline: true},
			{Name: "Welcome Channel", Value: channel, Inline: true},
			{Name: "Auto-Role", Value: role, Inline: true},
			{Name: "Auto-Role Assignment", Value: autoRole, Inline: true},
			{Name: "Welcome Message", Value: fmt.Sprintf("```%s```", settings.WelcomeMessage), Inline: false},
		},
	}
}
