package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MKhiriev/go-vault-sync/internal/client"
	"github.com/MKhiriev/go-vault-sync/internal/config"
	"github.com/MKhiriev/go-vault-sync/internal/logger"
	"github.com/MKhiriev/go-vault-sync/internal/service"
	"github.com/MKhiriev/go-vault-sync/models"
)

// skipAppAnnotation marks commands that run without opening local storage.
const skipAppAnnotation = "vaultsync/no-app"

// cli is the state shared by every command of one invocation.
type cli struct {
	build  models.AppBuildInfo
	flags  *config.Flags
	prompt *prompter

	app *client.App
	log *logger.Logger
}

func newRootCmd(build models.AppBuildInfo) *cobra.Command {
	c := &cli{build: build}

	root := &cobra.Command{
		Use:           "vaultsync",
		Short:         "Sync Bitwarden-compatible vaults into a local encrypted store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			c.prompt = newPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
			// help and completion have no RunE and need no storage
			if cmd.Annotations[skipAppAnnotation] != "" || cmd.RunE == nil {
				return nil
			}
			return c.open(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return c.close()
		},
	}
	c.flags = config.BindFlags(root.PersistentFlags())

	root.AddCommand(
		c.loginCmd(),
		c.unlockCmd(),
		c.vaultsCmd(),
		c.useCmd(),
		c.syncCmd(),
		c.watchCmd(),
		c.conflictsCmd(),
		c.describeCmd(),
		c.resolveCmd(),
		c.lockCmd(),
		c.logoutCmd(),
		c.versionCmd(),
	)

	return wrapErrors(root, c)
}

func (c *cli) open(cmd *cobra.Command) error {
	cfg, err := config.GetClientConfig(c.flags)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	c.log = logger.NewClientLogger("vaultsync", cfg.App.LogDir, cfg.App.LogLevel)
	c.log.Debug().Str("command", cmd.CommandPath()).Str("build", c.build.Version()).Msg("starting")

	app, err := client.NewApp(cmd.Context(), cfg, c.log)
	if err != nil {
		c.log.Err(err).Msg("init client app")
		return err
	}
	c.app = app
	return nil
}

func (c *cli) close() error {
	if c.app == nil {
		return nil
	}
	err := c.app.Close()
	c.app = nil
	return err
}

func (c *cli) services() *service.ClientServices {
	return c.app.Services()
}

// wrapErrors logs every failing command and closes storage, since cobra
// skips PersistentPostRunE after a RunE error.
func wrapErrors(root *cobra.Command, c *cli) *cobra.Command {
	var walk func(cmd *cobra.Command)
	walk = func(cmd *cobra.Command) {
		if run := cmd.RunE; run != nil {
			cmd.RunE = func(cmd *cobra.Command, args []string) error {
				err := run(cmd, args)
				if err != nil {
					if c.log != nil {
						c.log.Err(err).Str("command", cmd.CommandPath()).Msg("command failed")
					}
					_ = c.close()
				}
				return err
			}
		}
		for _, sub := range cmd.Commands() {
			walk(sub)
		}
	}
	walk(root)
	return root
}

// userMessage prefers the message attached to a service error and falls
// back to the error text for configuration and usage errors.
func userMessage(err error) string {
	if service.KindOf(err) != 0 {
		return service.UserMessage(err)
	}
	return err.Error()
}
