package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/MKhiriev/go-vault-sync/models"
)

func (c *cli) syncCmd() *cobra.Command {
	var confirmClear bool

	cmd := &cobra.Command{
		Use:   "sync [VAULT_ID]",
		Short: "Pull the server vault into local storage",
		Long: "Pull the server vault into local storage.\n\n" +
			"A snapshot that would remove every local item is refused unless\n" +
			"--confirm-clear is given or the prompt is answered with yes.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runSync(cmd, firstArg(args), confirmClear)
		},
	}
	cmd.Flags().BoolVar(&confirmClear, "confirm-clear", false, "Apply a snapshot even if it removes every local item")

	return cmd
}

func (c *cli) runSync(cmd *cobra.Command, vaultID string, confirmClear bool) error {
	ctx := cmd.Context()

	vault, err := c.vault(ctx, vaultID)
	if err != nil {
		return err
	}
	if err = c.unlock(ctx, vault); err != nil {
		return err
	}

	engine := c.services().Sync
	if confirmClear {
		engine.ConfirmClear(vault.ID)
	}

	out := engine.Sync(ctx, vault.ID)
	printOutcome(cmd.OutOrStdout(), vault.Email, out)

	if out.Kind == models.SyncBlocked && !confirmClear &&
		c.prompt.Confirm("Apply the empty server vault and delete local items") {
		engine.ConfirmClear(vault.ID)
		out = engine.Sync(ctx, vault.ID)
		printOutcome(cmd.OutOrStdout(), vault.Email, out)
	}

	if out.Kind == models.SyncError {
		return out.Err
	}
	return nil
}

func (c *cli) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch [VAULT_ID...]",
		Short: "Unlock vaults and keep them in sync until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if len(args) == 0 {
				args = []string{""}
			}
			for _, id := range args {
				vault, err := c.vault(ctx, id)
				if err != nil {
					return err
				}
				if err = c.unlock(ctx, vault); err != nil {
					return err
				}
			}

			printOutcomes(cmd.OutOrStdout(), c.services().SyncJob.RunOnce(ctx))
			fmt.Fprintf(cmd.OutOrStdout(), "Syncing every %s, press Ctrl-C to stop\n", c.app.Config().Workers.SyncInterval)

			return c.app.Run(ctx)
		},
	}
}

func printOutcomes(w io.Writer, outcomes map[string]models.SyncOutcome) {
	ids := make([]string, 0, len(outcomes))
	for id := range outcomes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		printOutcome(w, id, outcomes[id])
	}
}

func printOutcome(w io.Writer, label string, out models.SyncOutcome) {
	switch out.Kind {
	case models.SyncSuccess:
		fmt.Fprintf(w, "%s: %d added, %d updated, %d deleted, %d conflicts, %d skipped",
			label, out.Added, out.Updated, out.Deleted, out.Conflicts, out.Skipped)
		if out.Uploaded > 0 {
			fmt.Fprintf(w, ", %d uploaded", out.Uploaded)
		}
		fmt.Fprintln(w)
	case models.SyncBlocked:
		fmt.Fprintf(w, "%s: blocked: %s\n", label, out.Message)
	default:
		fmt.Fprintf(w, "%s: failed: %s\n", label, out.Message)
	}
	if out.Warning != "" {
		fmt.Fprintf(w, "%s: warning: %s\n", label, out.Warning)
	}
}
