// Package console is the operator side-channel: a line-oriented REPL on
// stdin for shutdown, restart and status inspection.
package console

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/Wandervogel-001/The-System/bot/store"
)

const helpText = `
=== Console Commands ===
shutdown - Gracefully shutdown the bot
restart  - Restart bot presence
status   - Show bot status
stats    - Show database statistics
help     - Show this help message
==========================
`

// Listen reads operator commands from stdin until EOF. The shutdown
// callback is invoked at most once, after an explicit y/n confirm.
func Listen(s *discordgo.Session, st *store.Store, log *zap.Logger, shutdown func()) {
	log = log.Named("console")
	fmt.Print(helpText)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "":
			continue

		case "shutdown":
			fmt.Print("Confirm shutdown? (y/n): ")
			if !scanner.Scan() {
				return
			}
			if strings.ToLower(strings.TrimSpace(scanner.Text())) == "y" {
				fmt.Println("Initiating shutdown sequence...")
				shutdown()
				return
			}
			fmt.Println("Shutdown cancelled")

		case "restart":
			fmt.Println("Restarting bot presence...")
			if err := s.UpdateStatusComplex(discordgo.UpdateStatusData{Status: "idle"}); err != nil {
				log.Warn("presence update failed", zap.Error(err))
			}
			if err := s.UpdateStatusComplex(discordgo.UpdateStatusData{Status: "online"}); err != nil {
				log.Warn("presence update failed", zap.Error(err))
			}
			fmt.Println("Bot restart complete!")

		case "status":
			printStatus(s, st)

		case "stats":
			printStats(s, st)

		case "help":
			fmt.Print(helpText)

		default:
			fmt.Printf("Unknown command: %q. Type 'help' for available commands.\n", scanner.Text())
		}
	}
	fmt.Println("Console input ended. Bot continues running...")
}

func printStatus(s *discordgo.Session, st *store.Store) {
	fmt.Println("\n=== Bot Status ===")
	if s.State.User != nil {
		fmt.Printf("Bot Name: %s\n", s.State.User.Username)
		fmt.Printf("Bot ID: %s\n", s.State.User.ID)
	}
	fmt.Printf("Connected Guilds: %d\n", len(s.State.Guilds))
	fmt.Printf("Latency: %dms\n", s.HeartbeatLatency().Milliseconds())

	if stats, err := st.Stats(context.Background()); err == nil {
		fmt.Printf("Database - Servers: %d\n", stats.Guilds)
		fmt.Printf("Database - Members: %d\n", stats.Members)
		fmt.Printf("Database - Mod Logs: %d\n", stats.ModLogs)
	} else {
		fmt.Println("Database: unavailable")
	}
	fmt.Println("==================")
}

func printStats(s *discordgo.Session, st *store.Store) {
	ctx := context.Background()
	stats, err := st.Stats(ctx)
	if err != nil {
		fmt.Println("Database not available")
		return
	}

	fmt.Println("\n=== Database Statistics ===")
	fmt.Printf("Total Servers: %d\n", stats.Guilds)
	fmt.Printf("Total Members: %d\n", stats.Members)
	fmt.Printf("Moderation Logs: %d\n", stats.ModLogs)

	fmt.Println("\n=== Per-Guild Breakdown ===")
	for _, guild := range s.State.Guilds {
		members, err := st.ListMembers(ctx, guild.ID)
		if err != nil {
			fmt.Printf("%s: unavailable\n", guild.Name)
			continue
		}
		fmt.Printf("%s: %d tracked members\n", guild.Name, len(members))
	}
	fmt.Println("===========================")
}
