package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/UniversaBlockchain/utnp/internal/config"
	"github.com/UniversaBlockchain/utnp/internal/domain"
	"github.com/UniversaBlockchain/utnp/internal/logging"
)

var configFile string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := rootCmd()
	cmd, err := root.ExecuteContextC(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		var cfgErr *domain.ConfigurationError
		if errors.As(err, &cfgErr) && cmd != nil {
			fmt.Fprintln(os.Stderr)
			fmt.Fprint(os.Stderr, cmd.UsageString())
		}
		stop()
		os.Exit(domain.ExitCode(err))
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "bulksend",
		Short: "Bulk ERC20 token transfers through a BulkSender contract",
		Long: `Send ERC20 token transfers listed in a JSON or YAML orders file, in batches,
through a BulkSender contract. Every order of a run is journaled before the
first batch is sent, and the next --skip value is logged at start.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			v, err := config.New(cmd.Flags(), configFile)
			if err != nil {
				return err
			}
			if _, err := logging.Setup(v.GetString(config.FlagLogLevel), v.GetString(config.FlagLogFormat)); err != nil {
				return &domain.ConfigurationError{Key: config.FlagLogLevel, Reason: "invalid logging setup", Err: err}
			}
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&configFile, config.FlagConfig, "", "Config file (yaml, json, toml), flags and BULKSEND_* variables override it")
	pf.String(config.FlagLogLevel, logging.DefaultLevel, "Log level: trace, debug, info, warn, error, crit")
	pf.String(config.FlagLogFormat, string(logging.DefaultFormat), "Log format: terminal, logfmt, json")

	root.AddCommand(
		sendCmd(),
		burnCmd(),
		auditCmd(),
	)
	return root
}
