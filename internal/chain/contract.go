package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	ethcmn "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/UniversaBlockchain/utnp/internal/domain"
)

// BoundContract is the part of bind.BoundContract the connectors use.
type BoundContract interface {
	Call(opts *bind.CallOpts, results *[]interface{}, method string, params ...interface{}) error
	Transact(opts *bind.TransactOpts, method string, params ...interface{}) (*types.Transaction, error)
}

var _ BoundContract = (*bind.BoundContract)(nil)

// Bind parses abiJSON and binds it at address on backend.
func Bind(address ethcmn.Address, abiJSON string, backend bind.ContractBackend) (*bind.BoundContract, error) {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse contract ABI: %w", err)
	}
	return bind.NewBoundContract(address, parsed, backend, backend, backend), nil
}

// connector signs, sends and confirms calls to one contract.
type connector struct {
	name      string
	address   ethcmn.Address
	contract  BoundContract
	opts      *bind.TransactOpts
	confirmer *Confirmer
	log       log.Logger
}

func newConnector(name string, address ethcmn.Address, contract BoundContract, opts *bind.TransactOpts, confirmer *Confirmer, logger log.Logger) connector {
	if logger == nil {
		logger = log.Root()
	}
	if confirmer == nil {
		confirmer = &Confirmer{}
	}
	logger = logger.With("contract", name, "address", address)
	logger.Debug("Operating from", "from", opts.From)
	return connector{
		name:      name,
		address:   address,
		contract:  contract,
		opts:      opts,
		confirmer: confirmer,
		log:       logger,
	}
}

// Address returns the contract address.
func (c *connector) Address() ethcmn.Address {
	return c.address
}

// transact sends method and waits for the confirmation policy. The hash is
// returned whenever the node accepted the transaction, even if waiting failed.
func (c *connector) transact(ctx context.Context, method string, params ...interface{}) (ethcmn.Hash, error) {
	opts := *c.opts
	opts.Context = ctx

	tx, err := c.contract.Transact(&opts, method, params...)
	if err != nil {
		return ethcmn.Hash{}, fmt.Errorf("%s.%s: %w", c.name, method, err)
	}
	c.log.Info("Transaction sent", "method", method, "tx", tx.Hash(), "nonce", tx.Nonce(), "gasPrice", tx.GasPrice(), "gas", tx.Gas())

	receipt, err := c.confirmer.Await(ctx, tx, c.opts.From)
	if err != nil {
		return tx.Hash(), fmt.Errorf("%s.%s: %w", c.name, method, err)
	}
	if receipt != nil {
		c.log.Info("Transaction confirmed", "method", method, "tx", tx.Hash(), "block", receipt.BlockNumber, "gasUsed", receipt.GasUsed)
	}
	return tx.Hash(), nil
}

// BulkSender is the connector to the BulkSender contract.
type BulkSender struct {
	connector
}

// NewBulkSender binds the BulkSender contract at address.
func NewBulkSender(address ethcmn.Address, contract BoundContract, opts *bind.TransactOpts, confirmer *Confirmer, logger log.Logger) *BulkSender {
	return &BulkSender{newConnector("BulkSender", address, contract, opts, confirmer, logger)}
}

// BatchTransfer moves every transfer of token in a single bulkTransfer call.
func (b *BulkSender) BatchTransfer(ctx context.Context, token ethcmn.Address, transfers []domain.Transfer) (ethcmn.Hash, error) {
	if len(transfers) == 0 {
		return ethcmn.Hash{}, domain.ErrEmptyBatch
	}
	addresses := make([]ethcmn.Address, len(transfers))
	values := make([]*big.Int, len(transfers))
	for i, t := range transfers {
		if t.Value == nil || t.Value.Sign() <= 0 {
			return ethcmn.Hash{}, fmt.Errorf("transfer %d to %s has non-positive value", i, t.To.Hex())
		}
		addresses[i] = t.To
		values[i] = t.Value
	}
	return b.transact(ctx, "bulkTransfer", token, addresses, values)
}

// Token is the connector to the ERC20 token contract.
type Token struct {
	connector
}

// NewToken binds the token contract at address.
func NewToken(address ethcmn.Address, contract BoundContract, opts *bind.TransactOpts, confirmer *Confirmer, logger log.Logger) *Token {
	return &Token{newConnector("Token", address, contract, opts, confirmer, logger)}
}

// Burn destroys value base units from the sender's balance.
func (t *Token) Burn(ctx context.Context, value *big.Int) (ethcmn.Hash, error) {
	if value == nil || value.Sign() <= 0 {
		return ethcmn.Hash{}, fmt.Errorf("burn amount must be positive")
	}
	return t.transact(ctx, "burn", value)
}

// Decimals reads the token's decimals exponent.
func (t *Token) Decimals(ctx context.Context) (uint8, error) {
	var out []interface{}
	if err := t.contract.Call(&bind.CallOpts{Context: ctx}, &out, "decimals"); err != nil {
		return 0, fmt.Errorf("Token.decimals: %w", err)
	}
	if len(out) != 1 {
		return 0, fmt.Errorf("Token.decimals: unexpected %d results", len(out))
	}
	return *abi.ConvertType(out[0], new(uint8)).(*uint8), nil
}

// BalanceOf reads the token balance of owner in base units.
func (t *Token) BalanceOf(ctx context.Context, owner ethcmn.Address) (*big.Int, error) {
	var out []interface{}
	if err := t.contract.Call(&bind.CallOpts{Context: ctx}, &out, "balanceOf", owner); err != nil {
		return nil, fmt.Errorf("Token.balanceOf: %w", err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("Token.balanceOf: unexpected %d results", len(out))
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}
