package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/go-authgate/exchauth/internal/bootstrap"
	"github.com/go-authgate/exchauth/internal/cli/output"
	"github.com/go-authgate/exchauth/internal/cli/prompt"
	"github.com/go-authgate/exchauth/internal/services"
)

// ErrAccessDenied is reported when the directory or policy rejects a login.
var ErrAccessDenied = errors.New("access denied")

func newVerifyCmd(opts *options) *cobra.Command {
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "verify <username>",
		Short: "Authenticate a user and print the reconciled local account",
		Long: `Authenticate a user against the directory. On success the local account
is created or updated according to the policy and printed.

The username may be written as DOMAIN\user, user@domain or a bare user name.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd.InOrStdin(), passwordStdin)
			if err != nil {
				return err
			}

			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.Application, p *output.Printer) error {
				user, err := app.UserService.Authenticate(ctx, args[0], password)
				if errors.Is(err, services.ErrAuthenticationDenied) {
					return ErrAccessDenied
				}
				if err != nil {
					return err
				}
				return printUser(p, user)
			})
		},
	}
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin instead of prompting")
	return cmd
}

func readPassword(in io.Reader, fromStdin bool) (string, error) {
	if !fromStdin {
		return prompt.Password("Password")
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
