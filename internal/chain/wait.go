package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcmn "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
)

const (
	// DefaultPollInterval is the receipt polling interval.
	DefaultPollInterval = 2 * time.Second
	// DefaultReceiptTimeout bounds the wait for a receipt and its confirmations.
	DefaultReceiptTimeout = 5 * time.Minute
)

var (
	// ErrTimeoutReached is returned when the confirmation deadline passes.
	ErrTimeoutReached = errors.New("timeout has been reached")
)

// ConditionFunc is polled until it reports done or fails.
type ConditionFunc func(ctx context.Context) (done bool, err error)

// Poll retries the given condition with the given interval until it succeeds,
// the deadline expires or ctx is cancelled.
func Poll(ctx context.Context, interval, deadline time.Duration, condition ConditionFunc) error {
	timeout := time.NewTimer(deadline)
	defer timeout.Stop()
	tick := time.NewTicker(interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout.C:
			return ErrTimeoutReached
		case <-tick.C:
			ok, err := condition(ctx)
			if err != nil {
				return err
			}
			if ok {
				return nil
			}
		}
	}
}

// ReceiptBackend is the part of the node API the confirmer needs.
type ReceiptBackend interface {
	TransactionReceipt(ctx context.Context, txHash ethcmn.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// RevertError is returned for a mined transaction whose receipt status is failed.
type RevertError struct {
	TxHash ethcmn.Hash
	Block  uint64
	Reason string
}

func (e *RevertError) Error() string {
	return fmt.Sprintf("transaction %s failed in block %d, reason: %s", e.TxHash.Hex(), e.Block, e.Reason)
}

// Confirmer applies the confirmation policy to sent transactions.
//
// Confirmations == 0 is fire and forget: a transaction counts as submitted
// once the node accepts it. Otherwise the receipt must exist and the chain
// head must be Confirmations-1 blocks past the receipt block.
type Confirmer struct {
	Backend        ReceiptBackend
	Confirmations  uint64
	PollInterval   time.Duration
	ReceiptTimeout time.Duration
	Log            log.Logger
}

// Await blocks until tx satisfies the policy.
func (c *Confirmer) Await(ctx context.Context, tx *types.Transaction, from ethcmn.Address) (*types.Receipt, error) {
	if c.Confirmations == 0 {
		return nil, nil
	}
	interval, deadline := c.PollInterval, c.ReceiptTimeout
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if deadline <= 0 {
		deadline = DefaultReceiptTimeout
	}
	logger := c.Log
	if logger == nil {
		logger = log.Root()
	}

	var receipt *types.Receipt
	err := Poll(ctx, interval, deadline, func(ctx context.Context) (bool, error) {
		if receipt == nil {
			r, err := c.Backend.TransactionReceipt(ctx, tx.Hash())
			if errors.Is(err, ethereum.NotFound) {
				return false, nil
			}
			if err != nil {
				return false, err
			}
			receipt = r
			logger.Debug("Transaction mined", "tx", tx.Hash(), "block", receipt.BlockNumber, "status", receipt.Status)
			if receipt.Status == types.ReceiptStatusFailed {
				return true, nil
			}
		}
		head, err := c.Backend.BlockNumber(ctx)
		if err != nil {
			return false, err
		}
		return head+1 >= receipt.BlockNumber.Uint64()+c.Confirmations, nil
	})
	if err != nil {
		if errors.Is(err, ErrTimeoutReached) {
			return receipt, fmt.Errorf("waiting for %d confirmation(s) of %s: %w", c.Confirmations, tx.Hash().Hex(), err)
		}
		return receipt, err
	}

	if receipt.Status == types.ReceiptStatusFailed {
		reason, reasonErr := RevertReason(ctx, c.Backend, tx, from, receipt.BlockNumber)
		if reasonErr != nil {
			reason = reasonErr.Error()
		}
		return receipt, &RevertError{TxHash: tx.Hash(), Block: receipt.BlockNumber.Uint64(), Reason: reason}
	}
	return receipt, nil
}

// RevertReason replays tx as a call at blockNumber and decodes the revert message.
func RevertReason(ctx context.Context, c ReceiptBackend, tx *types.Transaction, from ethcmn.Address, blockNumber *big.Int) (string, error) {
	if tx == nil {
		return "", nil
	}
	msg := ethereum.CallMsg{
		From:     from,
		To:       tx.To(),
		Gas:      tx.Gas(),
		GasPrice: tx.GasPrice(),
		Value:    tx.Value(),
		Data:     tx.Data(),
	}
	hex, err := c.CallContract(ctx, msg, blockNumber)
	if err != nil {
		return "", err
	}
	unpacked, err := abi.UnpackRevert(hex)
	if err != nil {
		return "", errors.New("execution reverted")
	}
	return unpacked, nil
}
