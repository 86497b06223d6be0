// Package cli provides the cobra command surface that turns an entrypoint
// function into a runnable voice agent worker binary.
package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mindbots/voicemesh/config"
	"github.com/mindbots/voicemesh/worker"
)

// Version of the voicemesh toolkit.
const Version = "0.1.0"

// RunApp executes the worker CLI with the given base options. Persona
// binaries call this from main with at least an EntrypointFunc set; room
// connection settings come from config, environment or flags.
func RunApp(optFns ...func(o *worker.Options)) {
	if err := newRootCmd(optFns...).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(optFns ...func(o *worker.Options)) *cobra.Command {
	root := &cobra.Command{
		Use:          "voicemesh",
		Short:        "Run a voice agent against a room server",
		SilenceUsage: true,
	}

	root.AddCommand(newStartCmd(optFns...), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "voicemesh %s\n", Version)
		},
	}
}

func newStartCmd(optFns ...func(o *worker.Options)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the agent worker and join the configured room",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}

			logger := config.SetupLogging(cfg.Logging)

			opts := buildWorkerOptions(cmd, cfg, optFns...)
			opts.Logger = logger

			if opts.EntrypointFunc == nil {
				return fmt.Errorf("no entrypoint configured")
			}

			if dryRun {
				logger.Info("dry run, configuration validated",
					"agent", opts.AgentName, "url", opts.URL, "room", opts.RoomName)
				return nil
			}

			if opts.RoomName == "" {
				return fmt.Errorf("--room is required (or room.name in config)")
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			w := worker.New(func(o *worker.Options) { *o = opts })

			logger.Info("starting worker", "agent", opts.AgentName, "room", opts.RoomName, "version", Version)

			if err := w.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}

	cmd.Flags().String("config", "", "path to the voicemesh config file")
	cmd.Flags().String("url", "", "room server websocket URL (overrides config)")
	cmd.Flags().String("token", "", "room access token (overrides config)")
	cmd.Flags().String("room", "", "room name to join (overrides config)")
	cmd.Flags().Bool("dry-run", false, "validate configuration and exit")

	return cmd
}

// buildWorkerOptions layers settings: config file first, then the caller's
// option functions, then explicit flags.
func buildWorkerOptions(cmd *cobra.Command, cfg *config.Config, optFns ...func(o *worker.Options)) worker.Options {
	opts := worker.Options{
		AgentName:       cfg.Agent.Name,
		URL:             cfg.Room.URL,
		Token:           cfg.Room.Token,
		RoomName:        cfg.Room.Name,
		SampleRate:      cfg.Room.SampleRate,
		Channels:        cfg.Room.Channels,
		ShutdownTimeout: cfg.Agent.ShutdownTimeout,
		AgentDefaults: worker.AgentDefaults{
			ToolTimeout: cfg.Agent.ToolTimeout,
			MaxHistory:  cfg.Agent.MaxHistory,
		},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if v, _ := cmd.Flags().GetString("url"); v != "" {
		opts.URL = v
	}
	if v, _ := cmd.Flags().GetString("token"); v != "" {
		opts.Token = v
	}
	if v, _ := cmd.Flags().GetString("room"); v != "" {
		opts.RoomName = v
	}

	return opts
}
