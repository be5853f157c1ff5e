// Package cli implements jobboardctl, the operator command line for the
// authentication backend.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jobboard/backend/internal/config"
	"github.com/jobboard/backend/internal/database"
	"github.com/jobboard/backend/internal/services"
	"github.com/jobboard/backend/pkg/logger"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// Version is injected at build time:
//
//	go build -ldflags "-X github.com/jobboard/backend/internal/cli.Version=1.2.3"
var Version = "dev"

// App holds what the commands share. Load and Auth can be replaced in tests.
type App struct {
	Load func() (*config.Config, *gorm.DB, error)
	Auth *services.AuthService

	cfg      *config.Config
	db       *gorm.DB
	flagJSON bool
}

func NewApp() *App {
	return &App{Load: loadFromEnv}
}

func loadFromEnv() (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	logger.Init(cfg.LogLevel)

	db, err := database.Open(cfg.DB)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	return cfg, db, nil
}

func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "jobboardctl",
		Short: "Operate the job board authentication backend",
		Long: `jobboardctl manages accounts and the database of a job board
authentication server.

Get started:
  jobboardctl migrate                          Create or update tables
  jobboardctl createsuperuser --email a@b.com  Create a verified superuser
  jobboardctl resend-verification a@b.com      Email a fresh verification link
  jobboardctl user show a@b.com                Show verification and 2FA state`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch cmd.Name() {
			case "version", "help", "completion":
				return nil
			}
			return app.open()
		},
	}

	root.PersistentFlags().BoolVar(&app.flagJSON, "json", false, "Output as JSON")

	root.AddCommand(
		newMigrateCommand(app),
		newCreateSuperuserCommand(app),
		newCreateUserCommand(app),
		newResendVerificationCommand(app),
		newUserCommand(app),
		newVersionCommand(),
	)
	return root
}

func (a *App) open() error {
	if a.db != nil {
		return nil
	}
	cfg, db, err := a.Load()
	if err != nil {
		return err
	}
	a.cfg, a.db = cfg, db

	if a.Auth == nil {
		auth, err := services.NewAuthServiceFromConfig(cfg, db)
		if err != nil {
			return err
		}
		a.Auth = auth
	}
	return nil
}

func (a *App) printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the jobboardctl version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "jobboardctl %s\n", Version)
		},
	}
}
