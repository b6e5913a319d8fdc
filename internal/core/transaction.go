// Package core holds the transaction domain: records as delivered by the remote
// finance API, the totals derived from them, and their display helpers.
package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

type (
	// Kind classifies a record by the sign of its amount.
	Kind string

	// TransactionRecord is a single income or expense entry. It is read-only
	// here: records are fetched fresh from the remote store on every visit.
	TransactionRecord struct {
		ID          string    `json:"id"`
		Description string    `json:"description"`
		Amount      float64   `json:"amount"`
		Category    string    `json:"category"`
		Date        Timestamp `json:"date"`

		// AmountInvalid is set when the wire amount was neither a number nor a
		// numeric string. Amount is then 0.
		AmountInvalid bool `json:"-"`

		// Malformed is set when the list element was not an object at all. Every
		// other field is then zero.
		Malformed bool `json:"-"`
	}
)

var (
	ErrInvalidDataFormat = errors.New("Invalid data format")
	ErrInvalidAmount     = errors.New("Enter a valid amount")
	ErrEmptyDescription  = errors.New("Enter a description")
)

// IsExpense reports whether the record is an expense. The sign of the amount
// is the only thing consulted.
func (t TransactionRecord) IsExpense() bool {
	return t.Amount < 0
}

// IsIncome reports whether the record counts as income (amount >= 0).
func (t TransactionRecord) IsIncome() bool {
	return !t.IsExpense()
}

// Kind returns the record classification derived from the amount sign.
func (t TransactionRecord) Kind() Kind {
	if t.IsExpense() {
		return KindExpense
	}
	return KindIncome
}

// DecimalAmount returns the amount as a decimal for exact accumulation.
func (t TransactionRecord) DecimalAmount() decimal.Decimal {
	return decimal.NewFromFloat(t.Amount)
}

// UnmarshalJSON accepts amounts as JSON numbers or numeric strings. An
// unusable amount does not fail the decode; it is flagged instead so that one
// bad row cannot turn a valid list into an error.
func (t *TransactionRecord) UnmarshalJSON(data []byte) error {
	type plain TransactionRecord
	var wire struct {
		plain
		Amount json.RawMessage `json:"amount"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*t = TransactionRecord(wire.plain)
	t.Amount, t.AmountInvalid = 0, false

	raw := bytes.TrimSpace(wire.Amount)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		t.AmountInvalid = true
		return nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			t.AmountInvalid = true
			return nil
		}
		d, err := decimal.NewFromString(strings.TrimSpace(s))
		if err != nil {
			t.AmountInvalid = true
			return nil
		}
		t.Amount = d.InexactFloat64()
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		t.AmountInvalid = true
		return nil
	}
	t.Amount = f
	return nil
}

// DecodeRecords decodes a transaction list payload. Anything other than a JSON
// array, null included, is ErrInvalidDataFormat. Elements are decoded one by
// one; an element that is not an object is kept as a Malformed record with an
// invalid amount.
func DecodeRecords(raw []byte) ([]TransactionRecord, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, ErrInvalidDataFormat
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(trimmed, &elems); err != nil {
		return nil, errors.Join(ErrInvalidDataFormat, err)
	}
	records := make([]TransactionRecord, 0, len(elems))
	for _, elem := range elems {
		var rec TransactionRecord
		if err := json.Unmarshal(elem, &rec); err != nil {
			rec = TransactionRecord{AmountInvalid: true, Malformed: true}
		}
		records = append(records, rec)
	}
	return records, nil
}
