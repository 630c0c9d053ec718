package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/go-co-op/gocron"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Wandervogel-001/The-System/bot/commands"
	"github.com/Wandervogel-001/The-System/bot/console"
	"github.com/Wandervogel-001/The-System/bot/events"
	"github.com/Wandervogel-001/The-System/bot/handlers"
	"github.com/Wandervogel-001/The-System/bot/ranking"
	"github.com/Wandervogel-001/The-System/bot/roster"
	"github.com/Wandervogel-001/The-System/bot/store"
	"github.com/Wandervogel-001/The-System/bot/tasks"
	"github.com/Wandervogel-001/The-System/web"
)

var (
	REGISTER_COMMANDS = flag.Bool("register-commands", true, "True by default (useful in development)")
	TESTING           = flag.Bool("testing", false, "")
)

func main() {
	flag.Parse()

	// Load .env only if --testing=true
	if *TESTING {
		if err := godotenv.Load(); err != nil {
			fmt.Fprintln(os.Stderr, "Error loading .env file")
			os.Exit(1)
		}
	}

	logger, err := newLogger(*TESTING)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Could not create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	db, err := gorm.Open(postgres.Open(os.Getenv("POSTGRES_DSN")), &gorm.Config{})
	if err != nil {
		logger.Fatal("Could not connect to database", zap.Error(err))
	}

	st := store.New(db, logger)
	if err := st.Migrate(); err != nil {
		logger.Fatal("Could not migrate database", zap.Error(err))
	}

	rec := roster.New(st, logger)
	engine := ranking.New(st, logger)

	s, err := discordgo.New("Bot " + os.Getenv("BOT_TOKEN"))
	if err != nil {
		logger.Fatal("Invalid bot parameters", zap.Error(err))
	}
	s.Identify.Intents |= discordgo.IntentGuilds | discordgo.IntentGuildMembers

	deps := &handlers.Deps{
		Store:   st,
		Roster:  rec,
		Ranking: engine,
		Log:     logger,
		OwnerId: os.Getenv("OWNER_ID"),
	}

	s.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		logger.Info("Logged in",
			zap.String("username", s.State.User.Username),
			zap.Int("guilds", len(s.State.Guilds)))
	})
	s.AddHandler(handlers.InteractionCreateHandler(deps))
	s.AddHandler(events.MemberAddHandler(st, rec, logger))
	s.AddHandler(events.MemberRemoveHandler(st, logger))
	s.AddHandler(events.GuildCreateHandler(st, logger))

	if err := s.Open(); err != nil {
		logger.Fatal("Cannot open the session", zap.Error(err))
	}
	defer s.Close()

	registeredCommands := make([]*discordgo.ApplicationCommand, len(commands.Commands))
	guildId := "" // Empty to register global commands
	if *REGISTER_COMMANDS {
		logger.Info("Adding commands...")

		for i, command := range commands.Commands {
			cmd, err := s.ApplicationCommandCreate(s.State.User.ID, guildId, command)
			if err != nil {
				logger.Fatal("Cannot create command", zap.String("name", command.Name), zap.Error(err))
			}
			registeredCommands[i] = cmd
		}
	}

	scheduler := gocron.NewScheduler(time.UTC)
	if _, err := scheduler.Every(1).Day().At("04:00").Do(tasks.ReconcileSweep(s, st, rec, logger)); err != nil {
		logger.Fatal("Cannot schedule reconcile sweep", zap.Error(err))
	}
	scheduler.StartAsync()
	defer scheduler.Stop()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	server := web.NewServer(":"+port, st, logger)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Keep-alive server stopped", zap.Error(err))
		}
	}()
	defer server.Close()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go console.Listen(s, st, logger, func() { stop <- os.Interrupt })

	logger.Info("Press Ctrl+C to exit")
	<-stop

	if os.Getenv("CLEAN_COMMANDS_AFTER_SHUTDOWN") == "true" {
		logger.Info("Removing commands...")

		for _, command := range registeredCommands {
			if command == nil {
				continue
			}
			if err := s.ApplicationCommandDelete(s.State.User.ID, guildId, command.ID); err != nil {
				logger.Error("Cannot delete command", zap.String("name", command.Name), zap.Error(err))
			}
		}
	}

	logger.Info("Gracefully shutting down.")
}

func newLogger(testing bool) (*zap.Logger, error) {
	if testing {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
