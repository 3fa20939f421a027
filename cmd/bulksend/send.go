package main

import (
	"context"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	ethcmn "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/UniversaBlockchain/utnp/internal/audit"
	"github.com/UniversaBlockchain/utnp/internal/chain"
	"github.com/UniversaBlockchain/utnp/internal/config"
	"github.com/UniversaBlockchain/utnp/internal/order"
	"github.com/UniversaBlockchain/utnp/internal/sender"
	"github.com/UniversaBlockchain/utnp/internal/units"
	"github.com/UniversaBlockchain/utnp/internal/window"
)

func sendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send the token transfers of an orders file",
		Long: `Send the orders records[skip:skip+number] of the input file in batches of
--batch-size transfers through the BulkSender contract.

A failed batch is logged with every transfer it carried and is not retried;
the remaining batches are still sent. Amounts are normalized with --decimals
and rounded toward zero.`,
		Example: `  bulksend send -i orders.json --rpc http://127.0.0.1:8545 --private-key ~/.bulksend/key \
    --bulk-sender 0x... --token 0x... --skip 200 --number 100`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := config.New(cmd.Flags(), configFile)
			if err != nil {
				return err
			}
			cfg, err := config.LoadSend(v)
			if err != nil {
				return err
			}
			return runSend(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}
	config.AddSendFlags(cmd.Flags())
	return cmd
}

func runSend(ctx context.Context, cfg *config.Send, out io.Writer) error {
	logger := log.Root()

	records, err := order.LoadFile(cfg.Input)
	if err != nil {
		return err
	}
	w, err := window.Parse(cfg.Skip, cfg.Number, len(records))
	if err != nil {
		return err
	}
	plan, err := sender.NewPlan(records, w, cfg.Decimals, cfg.BatchSize)
	if err != nil {
		return err
	}
	runID := uuid.NewString()
	logger.Info("Loaded orders", "input", cfg.Input, "orders", len(records), "window", w.String(), "run", runID)

	senderCfg := sender.Config{
		Token:     ethcmn.HexToAddress(cfg.Token),
		Decimals:  cfg.Decimals,
		BatchSize: cfg.BatchSize,
		RunID:     runID,
		Interval:  cfg.BatchInterval,
	}

	// Dry runs never touch the journal, so they do not move the resume point.
	if cfg.DryRun {
		return runBatches(ctx, senderCfg, &dryRun{out: out}, &audit.Memory{}, logger.With("dryRun", true), plan, out)
	}

	key, err := chain.LoadKey(cfg.PrivateKey)
	if err != nil {
		return err
	}
	gas, err := cfg.GasPolicy()
	if err != nil {
		return err
	}

	client, err := chain.Dial(ctx, cfg.RPC)
	if err != nil {
		return err
	}
	defer client.Close()

	opts, err := chain.NewTransactor(key, client.CachedChainID(), gas)
	if err != nil {
		return err
	}
	confirmer := &chain.Confirmer{
		Backend:        client,
		Confirmations:  cfg.Confirmations,
		PollInterval:   chain.DefaultPollInterval,
		ReceiptTimeout: cfg.ReceiptTimeout,
		Log:            logger,
	}

	bulkAddr := ethcmn.HexToAddress(cfg.BulkSender)
	bound, err := chain.Bind(bulkAddr, chain.BulkSenderABI, client)
	if err != nil {
		return err
	}
	bulk := chain.NewBulkSender(bulkAddr, bound, opts, confirmer, logger)

	checkToken(ctx, client, senderCfg.Token, opts, cfg.Decimals, logger)

	journal, err := audit.OpenJournal(cfg.Journal)
	if err != nil {
		return err
	}
	defer journal.Close()

	return runBatches(ctx, senderCfg, bulk, journal, logger, plan, out)
}

func runBatches(ctx context.Context, cfg sender.Config, submitter sender.Submitter, recorder audit.Recorder, logger log.Logger,
	plan *sender.Plan, out io.Writer) error {
	controller, err := sender.NewController(cfg, submitter, recorder, logger)
	if err != nil {
		return err
	}
	report, err := controller.Execute(ctx, plan)
	if report != nil {
		fmt.Fprintf(out, "run %s: %d batch(es), %d submitted, %d failed, %d skipped; next launch: --skip %d\n",
			report.Run, report.Batches, len(report.Submitted), len(report.Failed), report.Skipped, report.NextSkip)
	}
	return err
}

// checkToken warns about a decimals mismatch and logs the sender balance. It
// never fails the run.
func checkToken(ctx context.Context, client *chain.Client, address ethcmn.Address, opts *bind.TransactOpts, decimals uint8, logger log.Logger) {
	bound, err := chain.Bind(address, chain.TokenABI, client)
	if err != nil {
		logger.Warn("Cannot bind token", "err", err)
		return
	}
	token := chain.NewToken(address, bound, opts, nil, logger)
	onChain, err := token.Decimals(ctx)
	if err != nil {
		logger.Warn("Cannot read token decimals", "token", address, "err", err)
	} else if onChain != decimals {
		logger.Warn("Token decimals differ from --decimals", "token", onChain, "configured", decimals)
	}
	owner := opts.From
	balance, err := token.BalanceOf(ctx, owner)
	if err != nil {
		logger.Warn("Cannot read token balance", "owner", owner, "err", err)
		return
	}
	logger.Info("Sender balance", "owner", owner, "balance", units.FromBaseUnits(balance, decimals).String())
}
