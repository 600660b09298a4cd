package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MKhiriev/go-vault-sync/internal/crypto"
	"github.com/MKhiriev/go-vault-sync/internal/service"
	"github.com/MKhiriev/go-vault-sync/models"
)

// maxCodeAttempts bounds how many rejected verification codes are retried
// before the login is abandoned.
const maxCodeAttempts = 3

func (c *cli) loginCmd() *cobra.Command {
	var (
		remember  bool
		syncAfter bool
	)

	cmd := &cobra.Command{
		Use:   "login EMAIL",
		Short: "Log in to an account and store its vault on this device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			password, err := c.prompt.Secret("Master password")
			if err != nil {
				return err
			}
			defer crypto.Wipe(password)

			out := c.services().Auth.Login(ctx, args[0], password, c.app.Config().Adapter.ServerURL)
			success, err := c.completeLogin(ctx, cmd, out, remember)
			if err != nil {
				return err
			}

			vault, err := c.services().Sessions.SaveLogin(ctx, success)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s, vault %s\n", vault.Email, vault.ID)

			if syncAfter {
				return c.runSync(cmd, vault.ID, false)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&remember, "remember", false, "Ask the server to trust this device for two-step login")
	cmd.Flags().BoolVar(&syncAfter, "sync", false, "Sync the vault right after login")

	return cmd
}

// completeLogin drives the two-factor and new-device challenges until the
// login either succeeds or fails for good.
func (c *cli) completeLogin(ctx context.Context, cmd *cobra.Command, out service.AuthOutcome, remember bool) (*service.AuthSuccess, error) {
	var state *service.TwoFactorState
	defer func() { state.Discard() }()

	for attempt := 0; ; attempt++ {
		switch out.Kind {
		case service.AuthSucceeded:
			return out.Success, nil
		case service.AuthTwoFactorRequired:
			state = out.TwoFactor
		default:
			if state == nil || !service.IsCredential(out.Err) || attempt > maxCodeAttempts {
				return nil, out.Err
			}
			cmd.PrintErrln(userMessage(out.Err))
		}

		out = c.answerChallenge(ctx, state, remember)
	}
}

func (c *cli) answerChallenge(ctx context.Context, state *service.TwoFactorState, remember bool) service.AuthOutcome {
	auth := c.services().Auth

	if state.NewDevice() {
		otp, err := c.prompt.Line("New device verification code (sent by email)")
		if err != nil {
			return service.AuthOutcome{Kind: service.AuthFailed, Err: err}
		}
		return auth.SubmitNewDeviceOTP(ctx, state, otp)
	}

	provider, ok := pickProvider(state.Providers)
	if !ok {
		return service.AuthOutcome{Kind: service.AuthFailed, Err: fmt.Errorf("no supported two-step login method among %v", state.Providers)}
	}
	code, err := c.prompt.Line(fmt.Sprintf("Two-step login code (%s)", provider))
	if err != nil {
		return service.AuthOutcome{Kind: service.AuthFailed, Err: err}
	}
	return auth.SubmitCode(ctx, state, code, provider, remember)
}

// pickProvider prefers a code the user can type: an authenticator app, then
// email.
func pickProvider(providers []models.TwoFactorProvider) (models.TwoFactorProvider, bool) {
	for _, want := range []models.TwoFactorProvider{models.ProviderAuthenticator, models.ProviderEmail, models.ProviderYubiKey} {
		for _, p := range providers {
			if p == want {
				return p, true
			}
		}
	}
	return 0, false
}

func (c *cli) unlockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlock [VAULT_ID]",
		Short: "Check the master password of a vault and mark it unlocked",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vault, err := c.vault(cmd.Context(), firstArg(args))
			if err != nil {
				return err
			}
			if err = c.unlock(cmd.Context(), vault); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Vault %s (%s) unlocked\n", vault.ID, vault.Email)
			return nil
		},
	}
}

func (c *cli) lockCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "lock [VAULT_ID]",
		Short: "Lock a vault, or every vault with --all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessions := c.services().Sessions
			if all {
				if err := sessions.LockAll(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "All vaults locked")
				return nil
			}

			vault, err := c.vault(cmd.Context(), firstArg(args))
			if err != nil {
				return err
			}
			if err = sessions.Lock(cmd.Context(), vault.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Vault %s locked\n", vault.ID)
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Lock every vault")

	return cmd
}

func (c *cli) logoutCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "logout [VAULT_ID]",
		Short: "Forget a vault and delete its local data",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vault, err := c.vault(cmd.Context(), firstArg(args))
			if err != nil {
				return err
			}
			if !yes && !c.prompt.Confirm(fmt.Sprintf("Delete local data of %s", vault.Email)) {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted")
				return nil
			}
			if !c.services().Sessions.Logout(cmd.Context(), vault.ID) {
				return service.ErrVaultNotFound
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged out of %s\n", vault.Email)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")

	return cmd
}
