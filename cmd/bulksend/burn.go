package main

import (
	"context"
	"fmt"
	"io"

	ethcmn "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/spf13/cobra"

	"github.com/UniversaBlockchain/utnp/internal/chain"
	"github.com/UniversaBlockchain/utnp/internal/config"
	"github.com/UniversaBlockchain/utnp/internal/units"
)

func burnCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "burn",
		Short: "Burn tokens from the account of --private-key",
		Example: `  bulksend burn --rpc http://127.0.0.1:8545 --private-key ~/.bulksend/key \
    --token 0x... --amount 1000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := config.New(cmd.Flags(), configFile)
			if err != nil {
				return err
			}
			cfg, err := config.LoadBurn(v)
			if err != nil {
				return err
			}
			return runBurn(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}
	config.AddBurnFlags(cmd.Flags())
	return cmd
}

func runBurn(ctx context.Context, cfg *config.Burn, out io.Writer) error {
	logger := log.Root()

	amount, err := cfg.BurnAmount()
	if err != nil {
		return err
	}
	value, err := units.Normalize(amount, cfg.Decimals)
	if err != nil {
		return err
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
	tokenAddr := ethcmn.HexToAddress(cfg.Token)
	bound, err := chain.Bind(tokenAddr, chain.TokenABI, client)
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
	token := chain.NewToken(tokenAddr, bound, opts, confirmer, logger)

	logger.Info("Burning tokens", "amount", amount.String(), "value", value, "from", opts.From)
	hash, err := token.Burn(ctx, value)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "burned %s tokens in %s\n", amount.String(), hash.Hex())
	return nil
}
