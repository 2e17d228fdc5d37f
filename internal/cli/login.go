package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newLoginCmd(opts *globalOptions) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Exchange credentials for an API token",
		Long: `Exchange credentials for an API token and print it.

The password is read from stdin when --password is not given. Store the token
in console.token or APP__CONSOLE__TOKEN for later commands.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if password == "" {
				return errors.New("password is required")
			}

			sess, err := opts.open(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer sess.close()

			tok, err := sess.client.Login(cmd.Context(), email, password)
			if err != nil {
				return fmt.Errorf("login: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, tok.Token)
			if tok.ExpiresAt > 0 {
				fmt.Fprintf(out, "expires %s\n", time.Unix(tok.ExpiresAt, 0).UTC().Format(time.RFC3339))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
