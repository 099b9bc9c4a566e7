package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/go-authgate/exchauth/internal/bootstrap"
	"github.com/go-authgate/exchauth/internal/cli/output"
	"github.com/go-authgate/exchauth/internal/store"
)

func newOrgCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "org",
		Short: "Inspect per-domain organizations",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "members <domain>",
		Short: "List the users associated with a domain's organization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			domain := strings.ToLower(args[0])
			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.Application, p *output.Printer) error {
				org, err := app.DB.GetOrganizationByDomain(ctx, domain)
				if errors.Is(err, store.ErrRecordNotFound) {
					return fmt.Errorf("no organization for domain %s", domain)
				}
				if err != nil {
					return err
				}
				users, err := app.DB.ListOrganizationMembers(ctx, org.ID)
				if err != nil {
					return err
				}
				if p.Format() != output.FormatTable {
					return p.Print(users)
				}
				return p.Print(userTable(users))
			})
		},
	})
	return cmd
}
