package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TxnType is the direction of a transaction.
type TxnType string

const (
	TxnCredit TxnType = "credit"
	TxnDebit  TxnType = "debit"
)

// PaymentMode is the settlement channel of a transaction.
type PaymentMode string

const (
	ModeUPI          PaymentMode = "UPI"
	ModeNEFT         PaymentMode = "NEFT"
	ModeIMPS         PaymentMode = "IMPS"
	ModeRTGS         PaymentMode = "RTGS"
	ModeCash         PaymentMode = "CASH"
	ModeBankTransfer PaymentMode = "BANK_TRANSFER"
	ModeCard         PaymentMode = "CARD"
	ModeCheque       PaymentMode = "CHEQUE"
)

// SupportedModes lists every recognized payment mode, in match order.
func SupportedModes() []PaymentMode {
	return []PaymentMode{ModeUPI, ModeNEFT, ModeIMPS, ModeRTGS, ModeCash, ModeBankTransfer, ModeCard, ModeCheque}
}

// GSTInfo carries the GST details attached to a transaction. Any of the
// three components may be absent.
type GSTInfo struct {
	Rate   *int             `json:"rate,omitempty"`
	Amount *decimal.Decimal `json:"amount,omitempty"`
	GSTIN  string           `json:"gstin,omitempty"`
}

// Transaction is the canonical record produced by the normalizer and
// consumed, never mutated, by every downstream agent. The six required
// fields (ID, Vendor, Amount, Date, Mode, Type) are always populated after
// normalization.
type Transaction struct {
	ID       string          `json:"id"`
	Vendor   string          `json:"vendor"`
	Amount   decimal.Decimal `json:"amount"`
	UTR      string          `json:"utr,omitempty"`
	Date     string          `json:"date"` // ISO 8601
	Mode     PaymentMode     `json:"mode"`
	Type     TxnType         `json:"type"`
	GST      *GSTInfo        `json:"gst,omitempty"`
	Category string          `json:"category,omitempty"`
}

// VendorProfile is read-only vendor context supplied by the caller, keyed
// by vendor name. A missing entry signals a first-time vendor.
type VendorProfile struct {
	AvgAmount           decimal.Decimal `json:"avg_amount"`
	Frequency           int             `json:"frequency"`
	TrustScore          int             `json:"trust_score"`
	IsMSME              bool            `json:"is_msme,omitempty"`
	MSMENumber          string          `json:"msme_number,omitempty"`
	AnnualPurchaseValue decimal.Decimal `json:"annual_purchase_value,omitempty"`
}

// HistoryEntry is one prior transaction as supplied at the pipeline
// boundary, used for velocity checks and cashflow forecasting.
type HistoryEntry struct {
	Date   string          `json:"date"`
	Amount decimal.Decimal `json:"amount"`
	Type   TxnType         `json:"type"`
	Vendor string          `json:"vendor"`
}

// RiskLevel is the fraud risk band.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Stress is the cashflow stress band.
type Stress string

const (
	StressLow    Stress = "low"
	StressMedium Stress = "medium"
	StressHigh   Stress = "high"
)

// Severity is the compliance severity band.
type Severity string

const (
	SeverityNone   Severity = "none"
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Action is the executive payment decision.
type Action string

const (
	ActionPayFull      Action = "PAY_FULL"
	ActionPayPartially Action = "PAY_PARTIALLY"
	ActionAvoid        Action = "AVOID"
)

// isoLayouts are the timestamp shapes accepted for normalized dates and
// history entries, tried in order.
var isoLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTime parses an ISO 8601 timestamp as produced by the normalizer or
// supplied in history entries. Callers decide how to degrade on error; the
// fraud and compliance agents silently skip time-based checks on failure.
func ParseTime(s string) (time.Time, error) {
	var firstErr error
	for _, layout := range isoLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}
