package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/go-authgate/exchauth/internal/bootstrap"
	"github.com/go-authgate/exchauth/internal/cli/output"
	"github.com/go-authgate/exchauth/internal/models"
	"github.com/go-authgate/exchauth/internal/services"
	"github.com/go-authgate/exchauth/internal/store"
)

func newUserCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Inspect local user accounts",
	}
	cmd.AddCommand(newUserGetCmd(opts), newUserListCmd(opts), newUserCountCmd(opts))
	return cmd
}

func newUserGetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one user by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.Application, p *output.Printer) error {
				user, err := app.UserService.GetUserByID(ctx, args[0])
				if errors.Is(err, services.ErrUserNotFound) {
					return fmt.Errorf("user %s not found", args[0])
				}
				if err != nil {
					return err
				}
				return printUser(p, user)
			})
		},
	}
}

func newUserListCmd(opts *options) *cobra.Command {
	var page, pageSize int
	var search string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users ordered by username",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.Application, p *output.Printer) error {
				users, pagination, err := app.DB.ListUsers(ctx, store.NewPaginationParams(page, pageSize, search))
				if err != nil {
					return err
				}
				if p.Format() != output.FormatTable {
					return p.Print(userPage{Users: users, Pagination: pagination})
				}
				if err := p.Print(userTable(users)); err != nil {
					return err
				}
				printPageFooter(p, pagination)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 10, "users per page (max 50)")
	cmd.Flags().StringVar(&search, "search", "", "match username or email")
	return cmd
}

func newUserCountCmd(opts *options) *cobra.Command {
	var domain string

	cmd := &cobra.Command{
		Use:   "count",
		Short: "Count local users, optionally for one domain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.Application, p *output.Printer) error {
				var n int64
				var err error
				if domain != "" {
					n, err = app.UserCounts.GetDomainUserCount(ctx, domain, app.Config.UserCountTTL)
				} else {
					n, err = app.UserCounts.GetUserCount(ctx, app.Config.UserCountTTL)
				}
				if err != nil {
					return err
				}
				if p.Format() == output.FormatTable {
					p.Printf("%d\n", n)
					return nil
				}
				return p.Print(map[string]any{"domain": domain, "count": n})
			})
		},
	}
	cmd.Flags().StringVar(&domain, "domain", "", "only count users of this domain")
	return cmd
}

type userPage struct {
	Users      []models.User          `json:"users"      yaml:"users"`
	Pagination store.PaginationResult `json:"pagination" yaml:"pagination"`
}

type userTable []models.User

func (t userTable) Headers() []string {
	return []string{"ID", "Username", "Email", "Domain", "Role", "Active", "Staff", "Last Login"}
}

func (t userTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, u := range t {
		rows = append(rows, []string{
			u.ID, u.Username, u.Email, u.Domain, u.Role,
			strconv.FormatBool(u.IsActive), strconv.FormatBool(u.IsStaff),
			formatTime(u.LastLoginAt),
		})
	}
	return rows
}

func printUser(p *output.Printer, u *models.User) error {
	if p.Format() != output.FormatTable {
		return p.Print(u)
	}
	return p.Print(output.KeyValue{
		{"ID", u.ID},
		{"Username", u.Username},
		{"Email", u.Email},
		{"Name", u.FullName()},
		{"Domain", u.Domain},
		{"Role", u.Role},
		{"Active", strconv.FormatBool(u.IsActive)},
		{"Staff", strconv.FormatBool(u.IsStaff)},
		{"Superuser", strconv.FormatBool(u.IsSuperuser)},
		{"Admin", strconv.FormatBool(u.IsAdmin())},
		{"Last Login", formatTime(u.LastLoginAt)},
	})
}

func printPageFooter(p *output.Printer, r store.PaginationResult) {
	p.Printf("\npage %d of %d (%d total)\n", r.CurrentPage, max(r.TotalPages, 1), r.Total)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}
