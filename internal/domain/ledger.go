package domain

import (
	"encoding/json"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Sentinel mapping values assigned when no mapping entry matches an account.
const (
	UnmappedCategory   = "Unmapped"
	UnknownSubcategory = "Unknown"
)

// BalanceType records which side a row's balance sits on.
type BalanceType string

const (
	BalanceDebit  BalanceType = "Debit"
	BalanceCredit BalanceType = "Credit"
	BalanceZero   BalanceType = "Zero"
	BalanceMixed  BalanceType = "Mixed"
)

// Status is the outcome of comparing a row's balance side to the side its
// category expects. Values other than PASS and MISMATCH can arrive from the
// model (for example "N/A" for P&L accounts) and are kept verbatim.
type Status string

const (
	StatusPass     Status = "PASS"
	StatusMismatch Status = "MISMATCH"
)

// LedgerRow is one trial-balance line.
type LedgerRow struct {
	Account     string          `json:"account"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Category    string          `json:"category,omitempty"`
	Subcategory string          `json:"subcategory,omitempty"`
}

// MappingEntry associates a normalized account key with a category and subcategory.
type MappingEntry struct {
	AccountKey  string `json:"account_key"`
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
}

// GLEntry is one general-ledger transaction. Date is invalid when the source
// cell could not be parsed.
type GLEntry struct {
	Account     string          `json:"account"`
	Date        civil.Date      `json:"date"`
	Description string          `json:"description"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
}

// SignedAmount returns the debit when positive, otherwise the negated credit.
func (e GLEntry) SignedAmount() decimal.Decimal {
	if e.Debit.IsPositive() {
		return e.Debit
	}
	return e.Credit.Neg()
}

// MarshalJSON writes the date as YYYY-MM-DD and omits it when invalid.
func (e GLEntry) MarshalJSON() ([]byte, error) {
	type alias GLEntry
	aux := struct {
		alias
		Date string `json:"date,omitempty"`
	}{alias: alias(e)}
	if e.Date.IsValid() {
		aux.Date = e.Date.String()
	}
	return json.Marshal(aux)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (e *GLEntry) UnmarshalJSON(data []byte) error {
	type alias GLEntry
	aux := struct {
		*alias
		Date string `json:"date,omitempty"`
	}{alias: (*alias)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	e.Date = civil.Date{}
	if aux.Date != "" {
		d, err := civil.ParseDate(aux.Date)
		if err != nil {
			return fmt.Errorf("GLEntry: parsing date %q: %w", aux.Date, err)
		}
		e.Date = d
	}
	return nil
}

// ClassificationRecord is a ledger row merged with its classification outcome.
type ClassificationRecord struct {
	LedgerRow
	BalanceType BalanceType     `json:"balance_type"`
	Amount      decimal.Decimal `json:"amount"`
	Status      Status          `json:"status"`
	Commentary  string          `json:"commentary"`
}
