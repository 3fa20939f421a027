// Package config resolves the bulksend settings from flags, BULKSEND_*
// environment variables and an optional config file, in that precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/UniversaBlockchain/utnp/internal/batch"
	"github.com/UniversaBlockchain/utnp/internal/chain"
	"github.com/UniversaBlockchain/utnp/internal/domain"
	"github.com/UniversaBlockchain/utnp/internal/units"
)

// EnvPrefix prefixes every environment variable, e.g. BULKSEND_GAS_PRICE.
const EnvPrefix = "BULKSEND"

const (
	FlagConfig         = "config"
	FlagInput          = "input"
	FlagSkip           = "skip"
	FlagNumber         = "number"
	FlagRPC            = "rpc"
	FlagPrivateKey     = "private-key"
	FlagBulkSender     = "bulk-sender"
	FlagToken          = "token"
	FlagGasPrice       = "gas-price"
	FlagGasLimit       = "gas-limit"
	FlagDecimals       = "decimals"
	FlagBatchSize      = "batch-size"
	FlagJournal        = "journal"
	FlagConfirmations  = "confirmations"
	FlagReceiptTimeout = "receipt-timeout"
	FlagBatchInterval  = "batch-interval"
	FlagDryRun         = "dry-run"
	FlagAmount         = "amount"
	FlagLogLevel       = "log.level"
	FlagLogFormat      = "log.format"
)

const (
	DefaultGasPriceGwei  = "21"
	DefaultGasLimit      = 5_000_000
	DefaultJournal       = "./bulksend-audit.jsonl"
	DefaultConfirmations = 1
)

// Common holds the settings shared by every command that signs transactions.
type Common struct {
	RPC            string
	PrivateKey     string
	Token          string
	GasPriceGwei   decimal.Decimal
	GasLimit       uint64
	Decimals       uint8
	Confirmations  uint64
	ReceiptTimeout time.Duration
}

// GasPolicy converts the gwei price to wei.
func (c Common) GasPolicy() (domain.GasPolicy, error) {
	price, err := units.GweiToWei(c.GasPriceGwei)
	if err != nil {
		return domain.GasPolicy{}, err
	}
	g := domain.GasPolicy{Price: price, Limit: c.GasLimit}
	return g, g.Validate()
}

// Send is the configuration of the send command.
type Send struct {
	Common
	Input         string
	Skip          string
	Number        string
	BulkSender    string
	Journal       string
	BatchSize     int
	BatchInterval time.Duration
	DryRun        bool
}

// Burn is the configuration of the burn command.
type Burn struct {
	Common
	Amount string
}

// AddCommonFlags registers the chain and gas flags.
func AddCommonFlags(fs *pflag.FlagSet) {
	fs.String(FlagRPC, "", "Node endpoint: http(s)://, ws(s):// or an IPC socket path")
	fs.String(FlagPrivateKey, "", "Path to a file holding the hex private key of the sender")
	fs.String(FlagToken, "", "Address of the ERC20 token contract")
	fs.String(FlagGasPrice, DefaultGasPriceGwei, "Gas price in gwei")
	fs.Uint64(FlagGasLimit, DefaultGasLimit, "Gas limit of each transaction")
	fs.Uint8(FlagDecimals, units.TokenDecimals, "Decimals exponent of the token")
	fs.Uint64(FlagConfirmations, DefaultConfirmations, "Blocks to wait for after inclusion, 0 to not wait for a receipt")
	fs.Duration(FlagReceiptTimeout, chain.DefaultReceiptTimeout, "Maximum time to wait for a receipt and its confirmations")
}

// AddSendFlags registers the send command flags.
func AddSendFlags(fs *pflag.FlagSet) {
	AddCommonFlags(fs)
	fs.StringP(FlagInput, "i", "", "Path to the JSON or YAML orders file")
	fs.String(FlagSkip, "", "Number of leading orders to skip (default 0)")
	fs.StringP(FlagNumber, "n", "", "Number of orders to process (default all after skip)")
	fs.String(FlagBulkSender, "", "Address of the BulkSender contract")
	fs.String(FlagJournal, DefaultJournal, "Path of the append-only audit journal")
	fs.Int(FlagBatchSize, batch.DefaultSize, "Transfers per bulkTransfer call")
	fs.Duration(FlagBatchInterval, 0, "Minimum delay between two batches")
	fs.Bool(FlagDryRun, false, "Print the batches without journaling or sending them")
}

// AddBurnFlags registers the burn command flags.
func AddBurnFlags(fs *pflag.FlagSet) {
	AddCommonFlags(fs)
	fs.String(FlagAmount, "", "Token amount to burn")
}

// New binds fs and the environment into a fresh viper instance and reads
// configFile when given.
func New(fs *pflag.FlagSet, configFile string) (*viper.Viper, error) {
	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		path, err := ExpandHome(configFile)
		if err != nil {
			return nil, &domain.ConfigurationError{Key: FlagConfig, Reason: "cannot resolve path", Err: err}
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, &domain.ConfigurationError{Key: FlagConfig, Reason: "cannot read " + path, Err: err}
		}
	}
	return v, nil
}

func loadCommon(v *viper.Viper, missing *[]string) (Common, error) {
	c := Common{
		RPC:            strings.TrimSpace(v.GetString(FlagRPC)),
		PrivateKey:     strings.TrimSpace(v.GetString(FlagPrivateKey)),
		Token:          strings.TrimSpace(v.GetString(FlagToken)),
		GasLimit:       v.GetUint64(FlagGasLimit),
		Confirmations:  v.GetUint64(FlagConfirmations),
		ReceiptTimeout: v.GetDuration(FlagReceiptTimeout),
	}
	requireSet(missing, FlagRPC, c.RPC)
	requireSet(missing, FlagPrivateKey, c.PrivateKey)
	requireSet(missing, FlagToken, c.Token)

	price, err := decimal.NewFromString(strings.TrimSpace(v.GetString(FlagGasPrice)))
	if err != nil {
		return c, &domain.ConfigurationError{Key: FlagGasPrice, Reason: "must be a decimal gwei amount", Err: err}
	}
	c.GasPriceGwei = price

	decimals := v.GetInt(FlagDecimals)
	if decimals < 0 || decimals > 255 {
		return c, &domain.ConfigurationError{Key: FlagDecimals, Reason: fmt.Sprintf("must be between 0 and 255, got %d", decimals)}
	}
	c.Decimals = uint8(decimals)

	if c.ReceiptTimeout <= 0 {
		return c, &domain.ConfigurationError{Key: FlagReceiptTimeout, Reason: "must be positive"}
	}
	return c, nil
}

// LoadSend reads and validates the send configuration. In dry-run mode only
// the input is mandatory.
func LoadSend(v *viper.Viper) (*Send, error) {
	var missing []string
	common, err := loadCommon(v, &missing)
	if err != nil {
		return nil, err
	}
	s := &Send{
		Common:        common,
		Input:         strings.TrimSpace(v.GetString(FlagInput)),
		Skip:          v.GetString(FlagSkip),
		Number:        v.GetString(FlagNumber),
		BulkSender:    strings.TrimSpace(v.GetString(FlagBulkSender)),
		Journal:       strings.TrimSpace(v.GetString(FlagJournal)),
		BatchSize:     v.GetInt(FlagBatchSize),
		BatchInterval: v.GetDuration(FlagBatchInterval),
		DryRun:        v.GetBool(FlagDryRun),
	}
	requireSet(&missing, FlagBulkSender, s.BulkSender)
	if s.DryRun {
		missing = nil
	}
	requireSet(&missing, FlagInput, s.Input)
	requireSet(&missing, FlagJournal, s.Journal)
	if len(missing) > 0 {
		return nil, missingError(missing)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	if s.Input, err = ExpandHome(s.Input); err != nil {
		return nil, &domain.ConfigurationError{Key: FlagInput, Reason: "cannot resolve path", Err: err}
	}
	if s.Journal, err = ExpandHome(s.Journal); err != nil {
		return nil, &domain.ConfigurationError{Key: FlagJournal, Reason: "cannot resolve path", Err: err}
	}
	if s.PrivateKey, err = ExpandHome(s.PrivateKey); err != nil {
		return nil, &domain.ConfigurationError{Key: FlagPrivateKey, Reason: "cannot resolve path", Err: err}
	}
	return s, nil
}

// Validate checks the values that do not depend on the input document.
func (s *Send) Validate() error {
	if s.BatchSize <= 0 {
		return &domain.ConfigurationError{Key: FlagBatchSize, Reason: fmt.Sprintf("must be positive, got %d", s.BatchSize)}
	}
	if s.BatchInterval < 0 {
		return &domain.ConfigurationError{Key: FlagBatchInterval, Reason: "must not be negative"}
	}
	if err := checkAddress(FlagBulkSender, s.BulkSender); err != nil {
		return err
	}
	if err := checkAddress(FlagToken, s.Token); err != nil {
		return err
	}
	if s.DryRun {
		return nil
	}
	_, err := s.GasPolicy()
	return err
}

// LoadBurn reads and validates the burn configuration.
func LoadBurn(v *viper.Viper) (*Burn, error) {
	var missing []string
	common, err := loadCommon(v, &missing)
	if err != nil {
		return nil, err
	}
	b := &Burn{Common: common, Amount: strings.TrimSpace(v.GetString(FlagAmount))}
	requireSet(&missing, FlagAmount, b.Amount)
	if len(missing) > 0 {
		return nil, missingError(missing)
	}
	if err := checkAddress(FlagToken, b.Token); err != nil {
		return nil, err
	}
	if _, err := b.GasPolicy(); err != nil {
		return nil, err
	}
	if b.PrivateKey, err = ExpandHome(b.PrivateKey); err != nil {
		return nil, &domain.ConfigurationError{Key: FlagPrivateKey, Reason: "cannot resolve path", Err: err}
	}
	return b, nil
}

// BurnAmount parses the amount to burn in tokens.
func (b *Burn) BurnAmount() (decimal.Decimal, error) {
	a, err := decimal.NewFromString(b.Amount)
	if err != nil {
		return decimal.Zero, &domain.InvalidAmountError{Position: -1, Amount: b.Amount, Reason: "not a decimal number"}
	}
	return a, nil
}

// ExpandHome replaces a leading ~ with the current user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

func requireSet(missing *[]string, key, value string) {
	if value == "" {
		*missing = append(*missing, key)
	}
}

func missingError(missing []string) error {
	return &domain.ConfigurationError{Key: strings.Join(missing, ", "), Reason: "must be set"}
}

func checkAddress(key, value string) error {
	if value == "" || domain.ValidAddress(value) {
		return nil
	}
	return &domain.ConfigurationError{Key: key, Reason: fmt.Sprintf("%q is not a hex address", value)}
}
