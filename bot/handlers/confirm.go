package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/Wandervogel-001/The-System/bot/responses"
	"github.com/Wandervogel-001/The-System/bot/roster"
	"github.com/Wandervogel-001/The-System/utils"
)

func confirmButtons(token string) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Confirm",
					Style:    discordgo.DangerButton,
					CustomID: "confirm:" + token,
				},
				discordgo.Button{
					Label:    "Cancel",
					Style:    discordgo.SecondaryButton,
					CustomID: "cancel:" + token,
				},
			},
		},
	}
}

type confirmStatus int

const (
	confirmMissing confirmStatus = iota
	confirmWrongUser
	confirmOK
)

// resolveConfirm consumes a pending confirmation, but only for the
// invoker: anyone else's press leaves it pending, so a bystander can
// neither trigger nor dismiss someone's prompt. Expired entries count
// as missing.
func (d *Deps) resolveConfirm(token, userId string) (*pendingConfirm, confirmStatus) {
	d.mu.Lock()
	defer d.mu.Unlock()
	pending, ok := d.confirms[token]
	if !ok || time.Now().After(pending.Expires) {
		delete(d.confirms, token)
		return nil, confirmMissing
	}
	if pending.UserId != userId {
		return nil, confirmWrongUser
	}
	delete(d.confirms, token)
	return pending, confirmOK
}

// expireConfirm drops a pending confirmation and reports whether it was
// still there. Used by the timeout path so a late button press and the
// timer cannot both win.
func (d *Deps) expireConfirm(token string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.confirms[token]; !ok {
		return false
	}
	delete(d.confirms, token)
	return true
}

// expireConfirmLater arms the confirmation timeout: if nobody pressed a
// button in time, the prompt is replaced with a cancelled notice.
func expireConfirmLater(deps *Deps, s *discordgo.Session, interaction *discordgo.Interaction, token, notice string) {
	time.AfterFunc(confirmTimeout, func() {
		if !deps.expireConfirm(token) {
			return
		}
		empty := []discordgo.MessageComponent{}
		noEmbeds := []*discordgo.MessageEmbed{}
		_, err := s.InteractionResponseEdit(interaction, &discordgo.WebhookEdit{
			Content:    &notice,
			Components: &empty,
			Embeds:     &noEmbeds,
		})
		if err != nil {
			deps.Log.Warn("confirmation timeout edit failed", zap.Error(err))
		}
	})
}

func confirmHandler(deps *Deps, s *discordgo.Session, i *discordgo.InteractionCreate, customId string) {
	parts := strings.SplitN(customId, ":", 2)
	if len(parts) != 2 {
		return
	}
	action, token := parts[0], parts[1]

	pending, status := deps.resolveConfirm(token, i.Member.User.ID)
	switch status {
	case confirmMissing:
		respond(s, i, responses.Ephemeral("This confirmation has expired."), deps.Log)
		return
	case confirmWrongUser:
		respond(s, i, responses.Ephemeral("Only the command user can respond to this prompt."), deps.Log)
		return
	}

	if action == "cancel" {
		updateWithContent(deps, s, i, "❌ Cancelled. No action was taken.")
		return
	}

	switch pending.Kind {
	case "ban":
		executeBan(deps, s, i, pending)
	case "rebuild":
		executeRebuild(deps, s, i, pending)
	}
}

func executeBan(deps *Deps, s *discordgo.Session, i *discordgo.InteractionCreate, pending *pendingConfirm) {
	auditReason := fmt.Sprintf("By %s: %s", i.Member.User.Username, pending.Reason)
	if err := s.GuildBanCreateWithReason(pending.GuildId, pending.TargetId, auditReason, 0); err != nil {
		updateWithContent(deps, s, i, moderationFailure("ban", err))
		return
	}

	logModerationAction(deps, pending.GuildId, pending.TargetId, pending.UserId, "ban", pending.Reason, 0)
	deps.Log.Info("member banned",
		zap.String("guild_id", pending.GuildId),
		zap.String("user_id", pending.TargetId),
		zap.String("moderator_id", pending.UserId))

	respond(s, i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{
				moderationEmbed("🔨 User Banned",
					fmt.Sprintf("<@%s> was banned by <@%s>", pending.TargetId, pending.UserId),
					pending.Reason, colorRed),
			},
			Components: []discordgo.MessageComponent{},
		},
	}, deps.Log)
}

func executeRebuild(deps *Deps, s *discordgo.Session, i *discordgo.InteractionCreate, pending *pendingConfirm) {
	ctx := context.Background()
	live, err := utils.LiveMembers(s, pending.GuildId)
	if err != nil {
		deps.Log.Error("rebuild: member fetch failed", zap.Error(err))
		updateWithContent(deps, s, i, "❌ Rebuild failed: could not fetch live membership.")
		return
	}

	inserted, err := deps.Roster.Rebuild(ctx, pending.GuildId, live, []roster.Field{
		roster.FieldHabitCount,
		roster.FieldLastIncrement,
	})
	if err != nil {
		deps.Log.Error("rebuild failed", zap.Error(err))
		updateWithContent(deps, s, i, "❌ Rebuild failed; rerun /roster rebuild to retry.")
		return
	}

	updateWithContent(deps, s, i, fmt.Sprintf("✅ Rebuilt member records: %d members, habit data preserved.", inserted))
}

func updateWithContent(deps *Deps, s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	respond(s, i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content:    content,
			Embeds:     []*discordgo.MessageEmbed{},
			Components: []discordgo.MessageComponent{},
		},
	}, deps.Log)
}
