package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/UniversaBlockchain/utnp/internal/audit"
	"github.com/UniversaBlockchain/utnp/internal/config"
	"github.com/UniversaBlockchain/utnp/internal/domain"
	"github.com/UniversaBlockchain/utnp/internal/order"
)

func auditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Summarize an audit journal and check it against the orders file",
		Long: `Print the runs and the next --skip value recorded in an audit journal. With
--input, every journaled order is compared with the order at the same position
of the input file and the command fails when any of them differ.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := config.New(cmd.Flags(), configFile)
			if err != nil {
				return err
			}
			journal, err := config.ExpandHome(strings.TrimSpace(v.GetString(config.FlagJournal)))
			if err != nil || journal == "" {
				return &domain.ConfigurationError{Key: config.FlagJournal, Reason: "must be set", Err: err}
			}
			input, err := config.ExpandHome(strings.TrimSpace(v.GetString(config.FlagInput)))
			if err != nil {
				return &domain.ConfigurationError{Key: config.FlagInput, Reason: "cannot resolve path", Err: err}
			}
			return runAudit(cmd.OutOrStdout(), journal, input)
		},
	}
	cmd.Flags().String(config.FlagJournal, "", "Path of the audit journal to read")
	cmd.Flags().StringP(config.FlagInput, "i", "", "Orders file to cross-check the journal against")
	return cmd
}

func runAudit(out io.Writer, journalPath, inputPath string) error {
	entries, err := audit.ReadFile(journalPath)
	if err != nil {
		return err
	}
	summary := audit.Summarize(entries)
	fmt.Fprintf(out, "journal %s: %d entries in %d run(s)\n", journalPath, summary.Entries, len(summary.Runs))
	for _, run := range summary.Runs {
		fmt.Fprintf(out, "  run %s\n", run)
	}
	fmt.Fprintf(out, "next launch: --skip %d\n", summary.NextSkip)

	if inputPath == "" {
		return nil
	}
	records, err := order.LoadFile(inputPath)
	if err != nil {
		return err
	}
	mismatches := audit.CrossCheck(entries, records)
	for _, m := range mismatches {
		fmt.Fprintf(out, "mismatch: %s\n", m)
	}
	if len(mismatches) > 0 {
		return fmt.Errorf("%d journal entries disagree with %s", len(mismatches), inputPath)
	}
	fmt.Fprintf(out, "all %d entries match %s\n", len(entries), inputPath)
	return nil
}
