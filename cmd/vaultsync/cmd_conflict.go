package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MKhiriev/go-vault-sync/models"
)

var errConflictNotFound = errors.New("no open conflict with this id in the vault")

func (c *cli) conflictsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "conflicts [VAULT_ID]",
		Short: "List conflicts waiting for a decision",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vault, err := c.vault(cmd.Context(), firstArg(args))
			if err != nil {
				return err
			}

			conflicts, err := c.services().Conflicts.ListUnresolved(cmd.Context(), vault.ID)
			if err != nil {
				return err
			}
			if len(conflicts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No open conflicts")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTYPE\tENTRY\tDETECTED")
			for _, cf := range conflicts {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", cf.ID, cf.Type, cf.EntryID, formatTime(&cf.CreatedAt))
			}
			return w.Flush()
		},
	}
}

func (c *cli) describeCmd() *cobra.Command {
	var vaultID string

	cmd := &cobra.Command{
		Use:     "describe CONFLICT_ID",
		Aliases: []string{"diff"},
		Short:   "Show how the local entry differs from the server copy",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.unlockConflictVault(cmd.Context(), vaultID, args[0]); err != nil {
				return err
			}

			diff, err := c.services().Conflicts.Describe(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), diff)
			return nil
		},
	}
	cmd.Flags().StringVar(&vaultID, "vault", "", "Vault id, defaults to the active vault")

	return cmd
}

func (c *cli) resolveCmd() *cobra.Command {
	var (
		vaultID string
		keep    string
	)

	cmd := &cobra.Command{
		Use:   "resolve CONFLICT_ID --keep local|server",
		Short: "Settle a conflict by keeping the local or the server copy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			resolver := c.services().Conflicts

			var resolve func(context.Context, string) bool
			switch keep {
			case "local":
				resolve = resolver.ResolveWithLocal
			case "server":
				resolve = resolver.ResolveWithServer
			default:
				return fmt.Errorf("--keep must be local or server, got %q", keep)
			}

			if err := c.unlockConflictVault(ctx, vaultID, args[0]); err != nil {
				return err
			}
			if !resolve(ctx, args[0]) {
				return errConflictNotFound
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Conflict %s resolved, kept %s copy\n", args[0], keep)
			return nil
		},
	}
	cmd.Flags().StringVar(&vaultID, "vault", "", "Vault id, defaults to the active vault")
	cmd.Flags().StringVar(&keep, "keep", "", "Which copy to keep: local or server")
	_ = cmd.MarkFlagRequired("keep")

	return cmd
}

// unlockConflictVault checks that conflictID is open in the vault and
// unlocks the vault.
func (c *cli) unlockConflictVault(ctx context.Context, vaultID, conflictID string) error {
	vault, err := c.vault(ctx, vaultID)
	if err != nil {
		return err
	}

	open, err := c.services().Conflicts.ListUnresolved(ctx, vault.ID)
	if err != nil {
		return err
	}
	if !containsConflict(open, conflictID) {
		return errConflictNotFound
	}

	return c.unlock(ctx, vault)
}

func containsConflict(conflicts []models.ConflictRecord, id string) bool {
	for _, cf := range conflicts {
		if cf.ID == id {
			return true
		}
	}
	return false
}

func (c *cli) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print build information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipAppAnnotation: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), c.build.String())
			return nil
		},
	}
}
