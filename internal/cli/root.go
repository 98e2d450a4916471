package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/openclaw/attendance-server-go/internal/database"
	"github.com/openclaw/attendance-server-go/internal/model"
	"github.com/openclaw/attendance-server-go/internal/repository"
	"github.com/openclaw/attendance-server-go/internal/service"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	DatabaseURL string
}

// OwnerCreator provisions owner accounts. *service.AuthService satisfies it.
type OwnerCreator interface {
	CreateOwner(ctx context.Context, email, name, password string) (*model.Owner, error)
}

// Backend opens the stores the commands operate on. Tests swap it out.
type Backend struct {
	Migrate    func(dsn, direction string) error
	OpenOwners func(dsn string) (OwnerCreator, io.Closer, error)
}

// DefaultBackend talks to the real database.
func DefaultBackend() Backend {
	return Backend{
		Migrate: database.Migrate,
		OpenOwners: func(dsn string) (OwnerCreator, io.Closer, error) {
			db, err := database.Connect(dsn)
			if err != nil {
				return nil, nil, err
			}
			// Token signing is never exercised when provisioning owners.
			auth := service.NewAuthService(repository.NewOwnerRepository(db.DB), nil, 0)
			return auth, db, nil
		},
	}
}

// NewRootCommand creates the root command for attendctl.
func NewRootCommand(backend Backend) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "attendctl",
		Short: "Operator tooling for the attendance server",
		Long:  "Apply schema migrations, hash passwords and provision session owners.",

		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.DatabaseURL, "database-url", os.Getenv("DATABASE_URL"),
		"Postgres connection string (defaults to $DATABASE_URL)")

	cmd.AddCommand(NewMigrateCommand(opts, backend))
	cmd.AddCommand(NewHashPasswordCommand())
	cmd.AddCommand(NewOwnerCommand(opts, backend))

	return cmd
}
