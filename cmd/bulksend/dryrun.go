package main

import (
	"context"
	"fmt"
	"io"

	ethcmn "github.com/ethereum/go-ethereum/common"

	"github.com/UniversaBlockchain/utnp/internal/domain"
)

// dryRun prints each batch instead of sending it.
type dryRun struct {
	out   io.Writer
	calls int
}

func (d *dryRun) BatchTransfer(_ context.Context, token ethcmn.Address, transfers []domain.Transfer) (ethcmn.Hash, error) {
	if len(transfers) == 0 {
		return ethcmn.Hash{}, domain.ErrEmptyBatch
	}
	fmt.Fprintf(d.out, "batch %d: bulkTransfer(%s, %d transfers)\n", d.calls, token.Hex(), len(transfers))
	for _, t := range transfers {
		fmt.Fprintf(d.out, "  %s %s\n", t.To.Hex(), t.Value.String())
	}
	d.calls++
	return ethcmn.Hash{}, nil
}
