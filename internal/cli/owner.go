package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

type ownerAddOptions struct {
	email    string
	name     string
	password string
}

// NewOwnerCommand creates the owner command group.
func NewOwnerCommand(rootOpts *RootOptions, backend Backend) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "owner",
		Short: "Manage session owners",
	}
	cmd.AddCommand(newOwnerAddCommand(rootOpts, backend))
	return cmd
}

func newOwnerAddCommand(rootOpts *RootOptions, backend Backend) *cobra.Command {
	opts := &ownerAddOptions{}

	cmd := &cobra.Command{
		Use:          "add",
		Short:        "Create a session owner account",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if rootOpts.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is not set")
			}

			owners, closer, err := backend.OpenOwners(rootOpts.DatabaseURL)
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer closer.Close()

			owner, err := owners.CreateOwner(cmd.Context(), opts.email, opts.name, opts.password)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "created owner %s <%s> id=%s\n", owner.Name, owner.Email, owner.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.email, "email", "", "owner email (login name)")
	cmd.Flags().StringVar(&opts.name, "name", "", "display name shown on exports")
	cmd.Flags().StringVar(&opts.password, "password", "", "initial password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}
