package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/stake-plus/catchfleet/src/actions"
	"github.com/stake-plus/catchfleet/src/config"
	"github.com/stake-plus/catchfleet/src/data"
	"github.com/stake-plus/catchfleet/src/discord"
	"github.com/stake-plus/catchfleet/src/fleet"
	"github.com/stake-plus/catchfleet/src/rarity"
	"github.com/stake-plus/catchfleet/src/store"
	"github.com/stake-plus/catchfleet/src/unit"
	"github.com/stake-plus/catchfleet/src/webserver"
)

const shutdownGrace = 30 * time.Second

var (
	configPath string
	noRestore  bool
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the fleet and the control API",
		RunE:  func(cmd *cobra.Command, _ []string) error { return runServe(cmd.Context()) },
	}
	serve.Flags().BoolVar(&noRestore, "no-restore", false, "Do not restart accounts that were live at last shutdown")

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(*cobra.Command, []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			log.Printf("migrate: schema is up to date")
			return closeDB(db)
		},
	}

	root := &cobra.Command{
		Use:               "catchfleet",
		Short:             "Catchfleet runs a fleet of chat-game automation accounts",
		SilenceUsage:      true,
		RunE:              serve.RunE,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to a config file (default ./catchfleet.yaml)")
	root.Flags().AddFlagSet(serve.Flags())
	root.AddCommand(serve, migrate)
	return root
}

func openDB(cfg *config.Config) (*gorm.DB, error) {
	db, err := data.Connect(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	if err := store.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func closeDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer closeDB(db)

	rt := config.LoadRuntime(db)

	storeOpts := []store.Option{store.WithSealer(data.NewSealer(cfg.Security.CredentialKey))}
	if cfg.Redis.URL != "" {
		pub := data.NewRedisPublisher(data.MustRedis(cfg.Redis.URL))
		defer pub.Close()
		storeOpts = append(storeOpts, store.WithPublisher(pub))
		log.Printf("events: publishing to redis stream %s", data.EventStream)
	}
	st := store.New(db, storeOpts...)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	table, err := rarity.Load(ctx, cfg.Rarity.LegendarySource, cfg.Rarity.MythicalSource)
	if err != nil {
		log.Printf("rarity: %v; using built-in lists", err)
		table = rarity.Default()
	}

	factory := discord.NewFactory(discord.Config{
		SendEvery: cfg.Discord.SendEvery,
		SendBurst: cfg.Discord.SendBurst,
	})
	sup := fleet.New(st, factory, unit.Options{
		Timing:     rt.Timing,
		Identities: rt.Identities,
		Rarity:     table,
	}, fleet.Config{RestoreCaptchaAsStopped: rt.RestoreCaptchaAsStopped})

	engine := webserver.New(webserver.Config{
		AllowOrigins:      cfg.HTTP.AllowOrigins,
		RequestsPerSecond: cfg.HTTP.RequestsPerSecond,
		Burst:             cfg.HTTP.Burst,
	}, st, sup)

	manager, err := actions.StartAll(ctx, actions.Deps{
		Supervisor: sup,
		Handler:    engine,
		Addr:       cfg.HTTP.Addr,
		Restore:    !noRestore,
	})
	if err != nil {
		return fmt.Errorf("actions start: %w", err)
	}

	<-ctx.Done()
	log.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	manager.Stop(shutdownCtx)
	return nil
}
