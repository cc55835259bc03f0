package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/klabast/wb-services/signup-calendar/internal/app"
)

// skipStorageCheck marks commands that never open the ledger backend.
const skipStorageCheck = "skip-storage-check"

// rootOptions carries the global flags and what PersistentPreRunE builds
// from them.
type rootOptions struct {
	configPath string
	port       int

	cfg app.Config
	log *zap.Logger
}

// NewRootCmd builds the signup-calendar command tree. Running it without a
// subcommand serves the API.
func NewRootCmd() *cobra.Command {
	o := &rootOptions{}

	root := &cobra.Command{
		Use:   "signup-calendar",
		Short: "Weekly signup calendar service",
		Long: `signup-calendar keeps a ledger of weekly signups (name, phone, slot
preference per date) and serves it over HTTP, with CSV and JSON exports in a
full and a contact-free public variant.

Configuration is read from defaults, the optional --config YAML file and the
environment, in that order.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.ReadConfig(o.configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = o.port
			}
			validate := cfg.Validate
			if cmd.Annotations[skipStorageCheck] != "" {
				validate = cfg.ValidateGeneral
			}
			if err := validate(); err != nil {
				return err
			}
			o.cfg = cfg

			o.log, err = app.NewLogger(cfg.Log)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if o.log != nil {
				_ = o.log.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, o)
		},
	}

	root.PersistentFlags().StringVar(&o.configPath, "config", os.Getenv("CONFIG_FILE"), "path to a YAML config file")
	root.PersistentFlags().IntVar(&o.port, "port", app.DefaultPort, "port to listen on (overrides PORT)")

	root.AddCommand(
		newServeCmd(o),
		newHashPasswordCmd(o),
		newExportCmd(o),
		newSlotsCmd(o),
	)
	return root
}

// Execute runs the command tree and returns the process exit code.
func Execute() int {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
