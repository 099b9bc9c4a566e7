// Package cli implements the exchauth command line.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/go-authgate/exchauth/internal/bootstrap"
	"github.com/go-authgate/exchauth/internal/cli/output"
	"github.com/go-authgate/exchauth/internal/config"
)

// options holds the global flags.
type options struct {
	policyFile string
	logLevel   string
	output     string
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "exchauth",
		Short: "Authenticate users against Exchange and keep local accounts in sync",
		Long: `exchauth verifies usernames and passwords against a Microsoft Exchange
directory (autodiscover or a static EWS endpoint) and provisions or updates
the matching local user record.

Process settings are read from the environment and an optional .env file;
the directory policy is read from the YAML file named by --policy or POLICY_FILE.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.policyFile, "policy", "", "directory policy file (default $POLICY_FILE or exchauth.yaml)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error (default $LOG_LEVEL or info)")
	flags.StringVarP(&opts.output, "output", "o", "table", "output format: table, json, yaml")

	cmd.AddCommand(
		newVerifyCmd(opts),
		newUserCmd(opts),
		newAuditCmd(opts),
		newOrgCmd(opts),
		newCheckConfigCmd(opts),
		newVersionCmd(),
	)
	cmd.CompletionOptions.DisableDefaultCmd = true
	return cmd
}

// Execute runs the command line with ctx.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

func (o *options) config() *config.Config {
	cfg := config.Load()
	if o.policyFile != "" {
		cfg.PolicyFile = o.policyFile
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	return cfg
}

func (o *options) printer(cmd *cobra.Command) (*output.Printer, error) {
	format, err := output.ParseFormat(o.output)
	if err != nil {
		return nil, err
	}
	return output.NewPrinter(cmd.OutOrStdout(), format), nil
}

// withApp runs fn against a fully initialized application and closes it
// afterwards, flushing the audit trail.
func (o *options) withApp(
	cmd *cobra.Command,
	fn func(ctx context.Context, app *bootstrap.Application, p *output.Printer) error,
) error {
	p, err := o.printer(cmd)
	if err != nil {
		return err
	}

	cfg := o.config()
	logger := bootstrap.NewLogger(cfg.LogLevel)
	logger.SetOutput(cmd.ErrOrStderr())

	ctx := cmd.Context()
	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := app.Close(context.WithoutCancel(ctx)); cerr != nil {
			logger.WithError(cerr).Warn("shutdown incomplete")
		}
	}()

	return fn(ctx, app, p)
}
