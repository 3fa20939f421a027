package domain

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	ethcmn "github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// AddressLength is the length of a 0x-prefixed hex address string.
const AddressLength = 2 + 2*ethcmn.AddressLength

// OrderRecord is a single transfer order read from the input document.
type OrderRecord struct {
	ID      string
	Address string
	Amount  decimal.Decimal
}

// Request projects the order to the unit that is sent on-chain.
func (o OrderRecord) Request() TransferRequest {
	return TransferRequest{To: o.Address, Amount: o.Amount}
}

// TransferRequest is an order stripped of its identifier.
type TransferRequest struct {
	To     string
	Amount decimal.Decimal
}

// Recipient returns the parsed recipient address.
func (r TransferRequest) Recipient() ethcmn.Address {
	return ethcmn.HexToAddress(r.To)
}

func (r TransferRequest) String() string {
	return fmt.Sprintf("TransferRequest(to=%s, amount=%s)", r.To, r.Amount.String())
}

// Transfer is a transfer in token base units.
type Transfer struct {
	To    ethcmn.Address
	Value *big.Int
}

// Batch is a non-empty group of transfers submitted in one contract call.
// Requests and Transfers are index aligned.
type Batch struct {
	// Index is the zero-based batch number within the run.
	Index int
	// Start is the absolute input position of the first transfer.
	Start     int
	Requests  []TransferRequest
	Transfers []Transfer
}

// Size returns the number of transfers in the batch.
func (b Batch) Size() int {
	return len(b.Transfers)
}

// End returns the absolute position one past the last transfer.
func (b Batch) End() int {
	return b.Start + len(b.Transfers)
}

// AuditEntry journals one order before any submission is attempted.
type AuditEntry struct {
	Run        string    `json:"run"`
	Position   int       `json:"skip"`
	ID         string    `json:"uuid"`
	Address    string    `json:"utnp_address"`
	Amount     string    `json:"utnp_amount"`
	RecordedAt time.Time `json:"recorded_at"`
}

// GasPolicy is constant for an entire run.
type GasPolicy struct {
	// Price is the gas price in wei.
	Price *big.Int
	Limit uint64
}

// Validate checks that both price and limit are positive.
func (g GasPolicy) Validate() error {
	if g.Price == nil || g.Price.Sign() <= 0 {
		return &ConfigurationError{Key: "gas-price", Reason: "must be positive"}
	}
	if g.Limit == 0 {
		return &ConfigurationError{Key: "gas-limit", Reason: "must be positive"}
	}
	return nil
}

// ValidAddress reports whether s is a 0x-prefixed 20 byte hex address.
func ValidAddress(s string) bool {
	return len(s) == AddressLength && strings.HasPrefix(strings.ToLower(s), "0x") && ethcmn.IsHexAddress(s)
}
