package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/go-authgate/exchauth/internal/auth"
	"github.com/go-authgate/exchauth/internal/bootstrap"
	"github.com/go-authgate/exchauth/internal/cli/output"
	"github.com/go-authgate/exchauth/internal/config"
)

func newCheckConfigCmd(opts *options) *cobra.Command {
	var connect bool

	cmd := &cobra.Command{
		Use:   "check-config",
		Short: "Validate the settings and the directory policy",
		Long: `Validate the process settings and the directory policy file.

With --connect the database and caches are also opened and pinged.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := opts.printer(cmd)
			if err != nil {
				return err
			}
			policy, err := bootstrap.CheckConfig(opts.config())
			if err != nil {
				return err
			}

			var health output.KeyValue
			var healthErr error
			if connect {
				err := opts.withApp(cmd, func(ctx context.Context, app *bootstrap.Application, _ *output.Printer) error {
					health, healthErr = checkConnections(ctx, app)
					return nil
				})
				if err != nil {
					return err
				}
			}

			if p.Format() != output.FormatTable {
				if !connect {
					return p.Print(policy)
				}
				status := make(map[string]string, len(health))
				for _, kv := range health {
					status[kv[0]] = kv[1]
				}
				if err := p.Print(checkConfigResult{Policy: policy, Connections: status}); err != nil {
					return err
				}
				return healthErr
			}

			p.Printf("create_unknown_user: %s\n", strconv.FormatBool(policy.CreateUnknownUser))
			p.Printf("allowed_formats:     %s\n", strings.Join(policy.AllowedFormats, ", "))
			p.Printf("default_domain:      %s\n\n", policy.DefaultDomain)
			if err := p.Print(domainTable(policy)); err != nil {
				return err
			}
			if connect {
				p.Printf("\n")
				if err := p.Print(health); err != nil {
					return err
				}
			}
			return healthErr
		},
	}
	cmd.Flags().BoolVar(&connect, "connect", false, "also ping the database and caches")
	return cmd
}

type checkConfigResult struct {
	Policy      *config.Policy    `json:"policy"      yaml:"policy"`
	Connections map[string]string `json:"connections" yaml:"connections"`
}

// checkConnections pings every backing service and reports "ok" or the
// failure for each. The error joins all failures.
func checkConnections(ctx context.Context, app *bootstrap.Application) (output.KeyValue, error) {
	checks := []struct {
		name  string
		check func(context.Context) error
	}{
		{"database", app.DB.Health},
		{"user cache", app.UserCache.Health},
		{"count cache", app.CountCache.Health},
	}

	var status output.KeyValue
	var errs []error
	for _, c := range checks {
		if err := c.check(ctx); err != nil {
			status = append(status, [2]string{c.name, err.Error()})
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
			continue
		}
		status = append(status, [2]string{c.name, "ok"})
	}
	return status, errors.Join(errs...)
}

func domainTable(p *config.Policy) *output.TableData {
	aliases := make(map[string][]string)
	for alias, dom := range p.NetbiosToDomainMap {
		aliases[dom] = append(aliases[dom], alias)
	}

	domains := make([]string, 0, len(p.DomainServers))
	for dom := range p.DomainServers {
		domains = append(domains, dom)
	}
	sort.Strings(domains)

	t := output.NewTableData("Domain", "Strategy", "Endpoint", "Aliases", "Policy")
	for _, dom := range domains {
		endpoint := p.DomainServers[dom]
		strategy := auth.StrategyFor(endpoint)
		if strategy == auth.StrategyAutodiscover {
			endpoint = "-"
		}
		sort.Strings(aliases[dom])
		policy := "-"
		if !p.UserPolicy(dom).IsEmpty() {
			policy = "yes"
		}
		t.AddRow(dom, string(strategy), endpoint, strings.Join(aliases[dom], ","), policy)
	}
	return t
}
