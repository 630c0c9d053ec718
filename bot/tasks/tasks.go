package tasks

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/Wandervogel-001/The-System/bot/roster"
	"github.com/Wandervogel-001/The-System/bot/store"
	"github.com/Wandervogel-001/The-System/utils"
)

// ReconcileSweep walks every connected guild and repairs member-record
// drift. Scheduled nightly; a failed guild is logged and skipped, the
// next sweep (or a manual /roster sync) picks it up again.
func ReconcileSweep(s *discordgo.Session, st *store.Store, rec *roster.Reconciler, log *zap.Logger) func() {
	log = log.Named("sweep")
	return func() {
		ctx := context.Background()

		for _, guild := range s.State.Guilds {
			live, err := utils.LiveMembers(s, guild.ID)
			if err != nil {
				log.Warn("sweep: member fetch failed", zap.String("guild_id", guild.ID), zap.Error(err))
				continue
			}
			stored, err := st.ListMembers(ctx, guild.ID)
			if err != nil {
				log.Warn("sweep: list failed", zap.String("guild_id", guild.ID), zap.Error(err))
				continue
			}

			drift := roster.Diff(live, stored)
			if drift.Empty() {
				log.Debug("sweep: no drift", zap.String("guild_id", guild.ID))
				continue
			}

			result, err := rec.Reconcile(ctx, guild.ID, live)
			if err != nil {
				log.Warn("sweep: reconcile failed", zap.String("guild_id", guild.ID), zap.Error(err))
				continue
			}
			log.Info("sweep: drift repaired",
				zap.String("guild_id", guild.ID),
				zap.Int("missing_humans", len(drift.MissingHumans)),
				zap.Int("missing_bots", len(drift.MissingBots)),
				zap.Int("added", result.Added),
				zap.Int("updated", result.Updated))
		}
	}
}
