// Package cli implements the ftthconsole command line: the interactive
// console plus scriptable list, bulk, stats and login commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/simp-lee/logger"
	"github.com/spf13/cobra"

	"github.com/simp-lee/ftthadmin/internal/client"
	"github.com/simp-lee/ftthadmin/internal/config"
	"github.com/simp-lee/ftthadmin/internal/datatable"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	token      string
	verbose    bool
}

// session is what a command needs after flags are parsed.
type session struct {
	cfg    *config.Config
	client *client.Client
	logger *slog.Logger
	vocab  datatable.SortVocabulary
	close  func()
}

// Execute runs the root command. Cancelling ctx stops a running command.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	cmd := &cobra.Command{
		Use:   "ftthconsole",
		Short: "Operator console for the FTTH inventory",
		Long: `ftthconsole manages FTTH inventory records (locations, ODC, ODP,
joint boxes and clients) through the inventory API.

Run "ftthconsole tui" for the interactive console, or use list, bulk and
stats from scripts.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "configs/config.yaml", "path to configuration file")
	cmd.PersistentFlags().StringVar(&opts.token, "token", "", "bearer token, overrides console.token")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log requests to stderr")

	cmd.AddCommand(newTUICmd(opts))
	cmd.AddCommand(newListCmd(opts))
	cmd.AddCommand(newBulkCmd(opts))
	cmd.AddCommand(newStatsCmd(opts))
	cmd.AddCommand(newLoginCmd(opts))
	return cmd
}

// open loads the console configuration and builds the API client. Log
// records go to the configured console log file; logConsole receives console
// output, io.Discard keeps it off the terminal.
func (o *globalOptions) open(logConsole io.Writer) (*session, error) {
	cfg, err := config.LoadConsole(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logCfg := cfg.Log
	if cfg.Console.LogFile != "" {
		logCfg.FilePath = cfg.Console.LogFile
	}
	if !o.verbose {
		logConsole = io.Discard
	}
	log, err := config.SetupLogger(&logCfg, logger.WithConsoleWriter(logConsole))
	if err != nil {
		return nil, fmt.Errorf("setup logger: %w", err)
	}

	token := cfg.Console.Token
	if o.token != "" {
		token = o.token
	}
	timeout, _ := cfg.Console.Durations()
	c := client.New(cfg.Console.APIBaseURL,
		client.WithTimeout(timeout),
		client.WithToken(token),
		client.WithLogger(log.Logger),
	)

	return &session{
		cfg:    cfg,
		client: c,
		logger: log.Logger,
		vocab:  datatable.SortVocabulary{Asc: cfg.Console.SortAsc, Desc: cfg.Console.SortDesc},
		close: func() {
			if err := log.Close(); err != nil {
				slog.Warn("close logger", slog.Any("error", err))
			}
		},
	}, nil
}
