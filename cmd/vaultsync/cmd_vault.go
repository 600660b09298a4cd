package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/MKhiriev/go-vault-sync/internal/crypto"
	"github.com/MKhiriev/go-vault-sync/internal/service"
	"github.com/MKhiriev/go-vault-sync/models"
)

var errNoVault = errors.New("no vault on this device, run vaultsync login first")

func (c *cli) vaultsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vaults",
		Short: "List the vaults stored on this device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sessions := c.services().Sessions

			vaults, err := sessions.ListVaults(cmd.Context())
			if err != nil {
				return err
			}
			if len(vaults) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No vaults")
				return nil
			}

			active, err := sessions.GetActiveVault(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "\tID\tEMAIL\tSERVER\tLAST SYNC")
			for _, v := range vaults {
				mark := ""
				if active != nil && active.ID == v.ID {
					mark = "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", mark, v.ID, v.Email, v.URLs.Vault, formatTime(v.LastSyncAt))
			}
			return w.Flush()
		},
	}
}

func (c *cli) useCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use VAULT_ID",
		Short: "Select the vault other commands act on",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.services().Sessions.SetActiveVault(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Active vault is now %s\n", args[0])
			return nil
		},
	}
}

// vault returns the vault with id, or the active one when id is empty.
func (c *cli) vault(ctx context.Context, id string) (models.Vault, error) {
	sessions := c.services().Sessions

	if id == "" {
		active, err := sessions.GetActiveVault(ctx)
		if err != nil {
			return models.Vault{}, err
		}
		if active == nil {
			return models.Vault{}, errNoVault
		}
		return *active, nil
	}

	vaults, err := sessions.ListVaults(ctx)
	if err != nil {
		return models.Vault{}, err
	}
	for _, v := range vaults {
		if v.ID == id {
			return v, nil
		}
	}
	return models.Vault{}, service.ErrVaultNotFound
}

// unlock asks for the master password unless the vault is already unlocked
// in this process.
func (c *cli) unlock(ctx context.Context, vault models.Vault) error {
	sessions := c.services().Sessions
	if sessions.IsUnlocked(vault.ID) {
		return nil
	}

	password, err := c.prompt.Secret("Master password for " + vault.Email)
	if err != nil {
		return err
	}
	defer crypto.Wipe(password)

	return sessions.Unlock(ctx, vault.ID, password)
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Local().Format(time.DateTime)
}
