// Package order reads transfer orders from JSON or YAML documents.
package order

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"

	"github.com/UniversaBlockchain/utnp/internal/domain"
)

// Format is the encoding of an input document.
type Format int

const (
	JSON Format = iota
	YAML
)

func (f Format) String() string {
	if f == YAML {
		return "yaml"
	}
	return "json"
}

// FormatFromPath picks the document format from the file extension.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML
	default:
		return JSON
	}
}

// document mirrors the input file: {"orders": [{"uuid", "utnp_address", "utnp_amount"}]}.
type document struct {
	Orders *[]rawOrder `json:"orders" yaml:"orders"`
}

type rawOrder struct {
	UUID    string `json:"uuid" yaml:"uuid"`
	Address string `json:"utnp_address" yaml:"utnp_address"`
	Amount  amount `json:"utnp_amount" yaml:"utnp_amount"`
}

// amount keeps the literal text of a string or number so that it is parsed
// as a decimal and never goes through float64.
type amount string

func (a *amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = amount(s)
		return nil
	}
	if bytes.Equal(b, []byte("null")) {
		*a = ""
		return nil
	}
	*a = amount(b)
	return nil
}

// Parse decodes and validates every order in the document.
func Parse(r io.Reader, format Format) ([]domain.OrderRecord, error) {
	return parse("", r, format)
}

// LoadFile reads the input document at path.
func LoadFile(path string) ([]domain.OrderRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &domain.ParseError{Source: path, Position: -1, Reason: "cannot read file", Err: err}
	}
	defer f.Close()
	return parse(path, f, FormatFromPath(path))
}

func parse(source string, r io.Reader, format Format) ([]domain.OrderRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &domain.ParseError{Source: source, Position: -1, Reason: "cannot read document", Err: err}
	}

	var doc document
	switch format {
	case YAML:
		err = yaml.Unmarshal(data, &doc)
	default:
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, &domain.ParseError{Source: source, Position: -1, Reason: "malformed " + format.String() + " document", Err: err}
	}
	if doc.Orders == nil {
		return nil, &domain.ParseError{Source: source, Position: -1, Field: "orders", Reason: "missing orders array"}
	}

	records := make([]domain.OrderRecord, 0, len(*doc.Orders))
	for i, raw := range *doc.Orders {
		rec, err := raw.validate(i)
		if err != nil {
			var pe *domain.ParseError
			if errors.As(err, &pe) {
				pe.Source = source
			}
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (o rawOrder) validate(position int) (domain.OrderRecord, error) {
	id := strings.TrimSpace(o.UUID)
	if id == "" {
		return domain.OrderRecord{}, &domain.ParseError{Position: position, Field: "uuid", Reason: "must not be empty"}
	}
	address := strings.TrimSpace(o.Address)
	if !domain.ValidAddress(address) {
		return domain.OrderRecord{}, &domain.ParseError{
			Position: position,
			Field:    "utnp_address",
			Reason:   fmt.Sprintf("%q is not a %d character hex address", address, domain.AddressLength),
		}
	}
	raw := strings.TrimSpace(string(o.Amount))
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return domain.OrderRecord{}, &domain.InvalidAmountError{Position: position, Amount: raw, Reason: "not a decimal number"}
	}
	if value.Sign() <= 0 {
		return domain.OrderRecord{}, &domain.InvalidAmountError{Position: position, Amount: raw, Reason: "must be positive"}
	}
	return domain.OrderRecord{ID: id, Address: address, Amount: value}, nil
}
