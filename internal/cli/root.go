package cli

import (
	"context"
	"fmt"

	"letterbox/internal/core"
	"letterbox/internal/server"

	"github.com/spf13/cobra"
)

// options holds the persistent flags shared by every command
type options struct {
	dbPath   string
	logLevel string
}

// app is what the database-backed commands work with
type app struct {
	config *core.Config
	logger *core.Logger
	db     *core.Database
	server *server.Server
}

func (a *app) Close() {
	a.db.Close()
}

// NewRootCmd builds the letterbox command tree
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "letterbox",
		Short:         "Newsletters as feeds",
		Long:          "letterbox subscribes to newsletter feeds, syncs their issues into sqlite and serves them as clean, responsive HTML.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVar(&opts.dbPath, "db", "", "sqlite database path (overrides LETTERBOX_DB_PATH)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides LETTERBOX_LOG_LEVEL)")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newSyncCmd(opts))
	root.AddCommand(newSubscriptionsCmd(opts))
	root.AddCommand(newRenderCmd())
	root.AddCommand(newTokenCmd())
	root.AddCommand(newVersionCmd())

	return root
}

// loadConfig reads the environment and applies flag overrides
func loadConfig(opts *options) (*core.Config, error) {
	config, err := core.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if opts.dbPath != "" {
		config.Database.Path = opts.dbPath
	}
	if opts.logLevel != "" {
		config.Log.Level = opts.logLevel
	}
	return config, config.Validate()
}

// openApp loads config, opens the database and initializes every enabled
// feature. Background work is not started.
func openApp(ctx context.Context, opts *options) (*app, error) {
	config, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	level, err := core.ParseLevel(config.Log.Level)
	if err != nil {
		return nil, err
	}
	logger := core.NewLogger(level)

	db, err := core.OpenDatabase(config.Database.Path, logger)
	if err != nil {
		return nil, err
	}

	srv, err := server.New(config, logger, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := srv.Init(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return &app{config: config, logger: logger, db: db, server: srv}, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "letterbox %s\n", server.Version)
		},
	}
}
