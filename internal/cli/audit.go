package cli

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/go-authgate/exchauth/internal/bootstrap"
	"github.com/go-authgate/exchauth/internal/cli/output"
	"github.com/go-authgate/exchauth/internal/models"
	"github.com/go-authgate/exchauth/internal/store"
)

// auditFlags are the filters shared by the audit subcommands.
type auditFlags struct {
	eventType string
	username  string
	domain    string
	failed    bool
	since     time.Duration
}

func (f *auditFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.eventType, "event-type", "", "event type, e.g. AUTHENTICATION_FAILURE")
	cmd.Flags().StringVar(&f.username, "username", "", "actor username (canonical login)")
	cmd.Flags().StringVar(&f.domain, "domain", "", "domain")
	cmd.Flags().BoolVar(&f.failed, "failed", false, "only unsuccessful events")
	cmd.Flags().DurationVar(&f.since, "since", 0, "only events newer than this, e.g. 24h")
}

func (f *auditFlags) filters(now time.Time) store.AuditLogFilters {
	filters := store.AuditLogFilters{
		EventType:     models.EventType(strings.ToUpper(f.eventType)),
		ActorUsername: strings.ToLower(f.username),
		Domain:        strings.ToLower(f.domain),
	}
	if f.failed {
		success := false
		filters.Success = &success
	}
	if f.since > 0 {
		filters.StartTime = now.Add(-f.since)
	}
	return filters
}

func newAuditCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the authentication audit trail",
	}
	cmd.AddCommand(newAuditListCmd(opts), newAuditStatsCmd(opts))
	return cmd
}

func newAuditListCmd(opts *options) *cobra.Command {
	var flags auditFlags
	var page, pageSize int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List audit events, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.Application, p *output.Printer) error {
				logs, pagination, err := app.AuditService.GetAuditLogs(
					ctx,
					store.NewPaginationParams(page, pageSize, ""),
					flags.filters(time.Now()),
				)
				if err != nil {
					return err
				}
				if p.Format() != output.FormatTable {
					return p.Print(auditPage{Events: logs, Pagination: pagination})
				}
				if err := p.Print(auditTable(logs)); err != nil {
					return err
				}
				printPageFooter(p, pagination)
				return nil
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 20, "events per page (max 50)")
	return cmd
}

func newAuditStatsCmd(opts *options) *cobra.Command {
	var flags auditFlags

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize audit events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.Application, p *output.Printer) error {
				stats, err := app.AuditService.GetAuditLogStats(ctx, flags.filters(time.Now()))
				if err != nil {
					return err
				}
				if p.Format() != output.FormatTable {
					return p.Print(stats)
				}
				return p.Print(statsTable(stats))
			})
		},
	}
	flags.register(cmd)
	return cmd
}

type auditPage struct {
	Events     []models.AuditLog      `json:"events"     yaml:"events"`
	Pagination store.PaginationResult `json:"pagination" yaml:"pagination"`
}

type auditTable []models.AuditLog

func (t auditTable) Headers() []string {
	return []string{"Time", "Event", "Severity", "Username", "Domain", "Success", "Reason"}
}

func (t auditTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, l := range t {
		rows = append(rows, []string{
			l.EventTime.Local().Format(time.DateTime),
			string(l.EventType),
			string(l.Severity),
			l.ActorUsername,
			l.Domain,
			strconv.FormatBool(l.Success),
			l.Reason,
		})
	}
	return rows
}

func statsTable(s store.AuditLogStats) output.KeyValue {
	kv := output.KeyValue{
		{"Total", strconv.FormatInt(s.TotalEvents, 10)},
		{"Succeeded", strconv.FormatInt(s.SuccessCount, 10)},
		{"Failed", strconv.FormatInt(s.FailureCount, 10)},
	}
	types := make([]string, 0, len(s.EventsByType))
	for et := range s.EventsByType {
		types = append(types, string(et))
	}
	sort.Strings(types)
	for _, et := range types {
		kv = append(kv, [2]string{et, strconv.FormatInt(s.EventsByType[models.EventType(et)], 10)})
	}
	return kv
}
