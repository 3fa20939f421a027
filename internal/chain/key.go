package chain

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	ethcmn "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/UniversaBlockchain/utnp/internal/domain"
)

// PrivateKeySize is the size of a secp256k1 private key in bytes.
const PrivateKeySize = 32

// LoadKey reads a hex encoded private key file. Surrounding whitespace and a
// 0x prefix are ignored.
func LoadKey(path string) (*ecdsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.KeyError{Path: path, Reason: "failed to read the private key file", Err: err}
	}
	return ParseKey(path, string(data))
}

// ParseKey decodes a hex private key; source names it in errors.
func ParseKey(source, text string) (*ecdsa.PrivateKey, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(strings.TrimPrefix(text, "0x"), "0X")
	raw, err := hexutil.Decode("0x" + text)
	if err != nil {
		return nil, &domain.KeyError{Path: source, Reason: "not hex encoded", Err: err}
	}
	if len(raw) != PrivateKeySize {
		return nil, &domain.KeyError{Path: source, Reason: fmt.Sprintf("expected %d bytes, got %d", PrivateKeySize, len(raw))}
	}
	key, err := crypto.ToECDSA(raw)
	if err != nil {
		return nil, &domain.KeyError{Path: source, Reason: "not a valid secp256k1 key", Err: err}
	}
	return key, nil
}

// GetEthAddressFromPK converts an ECDSA private key to an Ethereum address.
func GetEthAddressFromPK(privateKey *ecdsa.PrivateKey) ethcmn.Address {
	return crypto.PubkeyToAddress(privateKey.PublicKey)
}

// NewTransactor builds signing options with a fixed gas price and limit, so
// every transaction of the run is a legacy transaction priced by the policy.
func NewTransactor(key *ecdsa.PrivateKey, chainID *big.Int, gas domain.GasPolicy) (*bind.TransactOpts, error) {
	if err := gas.Validate(); err != nil {
		return nil, err
	}
	opts, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	opts.GasPrice = new(big.Int).Set(gas.Price)
	opts.GasLimit = gas.Limit
	return opts, nil
}
