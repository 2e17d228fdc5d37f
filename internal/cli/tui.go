package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/simp-lee/ftthadmin/internal/console"
	"github.com/simp-lee/ftthadmin/internal/datatable"
	"github.com/simp-lee/ftthadmin/internal/eventbus"
)

func newTUICmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive inventory console",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// The terminal belongs to the console; logs go to the log file only.
			sess, err := opts.open(io.Discard)
			if err != nil {
				return err
			}
			defer sess.close()

			timeout, debounce := sess.cfg.Console.Durations()
			fetcher, err := datatable.NewFetcher(sess.client, sess.cfg.Console.CacheSize, timeout, sess.logger)
			if err != nil {
				return fmt.Errorf("create fetcher: %w", err)
			}
			return console.Run(cmd.Context(), console.Deps{
				Fetcher:         fetcher,
				Poster:          sess.client,
				Preferences:     sess.client,
				Bus:             eventbus.New(sess.logger),
				Stats:           sess.client,
				Vocab:           sess.vocab,
				PageSize:        sess.cfg.Console.DefaultPageSize,
				PersistDebounce: debounce,
				FilterDelay:     console.DefaultFilterDelay,
				Logger:          sess.logger,
			})
		},
	}
}
