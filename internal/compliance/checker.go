package compliance

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dhruvbajaj/finsentry/internal/config"
	"github.com/dhruvbajaj/finsentry/internal/domain"
)

// Flag is a stable wire-level compliance violation code. TDS flags carry
// the section code as a suffix (TDS_REQUIRED_194C).
type Flag string

const (
	FlagMissingGST      Flag = "MISSING_GST"
	FlagInvalidGSTIN    Flag = "INVALID_GSTIN"
	FlagFakeGSTIN       Flag = "FAKE_GSTIN"
	FlagGSTMismatch     Flag = "GST_MISMATCH"
	FlagGSTCalcError    Flag = "GST_CALCULATION_ERROR"
	FlagMSMEViolation   Flag = "MSME_45DAY_VIOLATION"
	tdsRequiredPrefix        = "TDS_REQUIRED_"
)

// TDSFlag builds the flag for a TDS section code.
func TDSFlag(section string) Flag {
	return Flag(tdsRequiredPrefix + section)
}

// IsTDS reports whether the flag is a TDS requirement.
func (f Flag) IsTDS() bool {
	return strings.HasPrefix(string(f), tdsRequiredPrefix)
}

// Result is one compliance check, scoped to a single transaction.
type Result struct {
	TransactionID string          `json:"transaction_id"`
	Vendor        string          `json:"vendor"`
	Amount        decimal.Decimal `json:"amount"`
	Flags         []Flag          `json:"compliance_flags"`
	Warnings      []string        `json:"warnings"`
	Details       []string        `json:"details"`
	Severity      domain.Severity `json:"severity"`
}

// HasFlag reports whether the result carries the given flag.
func (r Result) HasFlag(flag Flag) bool {
	for _, f := range r.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// HasTDSFlag reports whether any TDS requirement flag is present.
func (r Result) HasTDSFlag() bool {
	for _, f := range r.Flags {
		if f.IsTDS() {
			return true
		}
	}
	return false
}

// gstinShape validates the 15-character GSTIN format from the start of the
// string.
var gstinShape = regexp.MustCompile(`^\d{2}[A-Z]{5}\d{4}[A-Z][A-Z0-9]Z[A-Z0-9]`)

// Known dummy/test GSTIN shapes.
var fakeGSTINPatterns = []*regexp.Regexp{
	regexp.MustCompile(`00AAAAA0000A`),
	regexp.MustCompile(`99[A-Z]{5}9999`),
	regexp.MustCompile(`12345`),
	regexp.MustCompile(`ABCDE`),
}

// Checker validates transactions against the configured tax regime. It is
// stateless; Check is a pure function of its inputs.
type Checker struct {
	regime config.Regime
}

// NewChecker creates a Checker for the given regime.
func NewChecker(regime config.Regime) *Checker {
	return &Checker{regime: regime}
}

// Check runs every compliance sub-check (GST, TDS, MSME, ITC, payroll) and
// derives the overall severity.
func (c *Checker) Check(txn domain.Transaction, vendors map[string]domain.VendorProfile) Result {
	result := Result{
		TransactionID: txn.ID,
		Vendor:        txn.Vendor,
		Amount:        txn.Amount,
	}

	profile := vendors[txn.Vendor]

	c.checkGST(txn, &result)
	c.checkTDS(txn, profile, &result)
	c.checkMSME(txn, profile, &result)
	c.checkITC(txn, &result)
	if strings.Contains(strings.ToLower(txn.Category), "salary") {
		c.checkPayroll(txn, &result)
	}

	result.Severity = severity(result.Flags, result.Warnings)
	return result
}

func (c *Checker) checkGST(txn domain.Transaction, result *Result) {
	if !txn.Amount.GreaterThan(c.regime.GSTThreshold) {
		return
	}

	if txn.GST == nil {
		result.Flags = append(result.Flags, FlagMissingGST)
		result.Warnings = append(result.Warnings, fmt.Sprintf("GST missing for transaction of ₹%s", txn.Amount))
		result.Details = append(result.Details, fmt.Sprintf("GST should be collected for B2B transactions above ₹%s", c.regime.GSTThreshold))
		return
	}

	if gstin := txn.GST.GSTIN; gstin != "" {
		if !gstinShape.MatchString(gstin) {
			result.Flags = append(result.Flags, FlagInvalidGSTIN)
			result.Warnings = append(result.Warnings, fmt.Sprintf("Invalid GSTIN format: %s", gstin))
			result.Details = append(result.Details, "GSTIN must be in format: 22AAAAA0000A1Z5")
		} else if isFakeGSTIN(gstin) {
			result.Flags = append(result.Flags, FlagFakeGSTIN)
			result.Warnings = append(result.Warnings, fmt.Sprintf("Suspected fake GSTIN: %s", gstin))
			result.Details = append(result.Details, "GSTIN appears to be dummy/test number")
		}
	}

	// A zero rate carries no information; skip the rate-derived checks.
	if txn.GST.Rate != nil && *txn.GST.Rate != 0 {
		rate := *txn.GST.Rate
		expected := c.expectedGSTRate(txn.Category)
		if rate != expected {
			result.Flags = append(result.Flags, FlagGSTMismatch)
			result.Warnings = append(result.Warnings, fmt.Sprintf("GST rate %d%% doesn't match expected %d%% for %s", rate, expected, txn.Category))
			result.Details = append(result.Details, fmt.Sprintf("Standard GST for %s is %d%%", txn.Category, expected))
		}

		if txn.GST.Amount != nil {
			// Re-derive the GST amount assuming the total is inclusive.
			rateD := decimal.NewFromInt(int64(rate))
			base := txn.Amount.Div(decimal.NewFromInt(1).Add(rateD.Div(decimal.NewFromInt(100))))
			expectedGST := base.Mul(rateD).Div(decimal.NewFromInt(100))
			if txn.GST.Amount.Sub(expectedGST).Abs().GreaterThan(c.regime.GSTAmountTolerance) {
				result.Flags = append(result.Flags, FlagGSTCalcError)
				result.Warnings = append(result.Warnings, fmt.Sprintf("GST amount mismatch: ₹%s vs expected ₹%s", txn.GST.Amount, expectedGST.Round(2)))
				result.Details = append(result.Details, "GST calculation appears incorrect")
			}
		}
	}
}

func (c *Checker) checkTDS(txn domain.Transaction, profile domain.VendorProfile, result *Result) {
	if txn.Type != domain.TxnDebit {
		return
	}

	section := c.tdsSection(txn.Category, profile)
	if section == nil || txn.Amount.LessThan(section.Threshold) {
		return
	}

	expectedTDS := txn.Amount.Mul(decimal.NewFromFloat(section.Rate)).Div(decimal.NewFromInt(100))
	result.Flags = append(result.Flags, TDSFlag(section.Code))
	result.Warnings = append(result.Warnings, fmt.Sprintf("TDS deduction required under section %s", section.Code))
	result.Details = append(result.Details,
		fmt.Sprintf("Amount ₹%s exceeds threshold ₹%s", txn.Amount, section.Threshold),
		fmt.Sprintf("Expected TDS @ %g%%: ₹%s", section.Rate, expectedTDS.Round(2)),
		fmt.Sprintf("Category: %s", section.Description),
	)
}

// tdsSection maps the transaction category to a withholding section. The
// first section with a keyword match wins; sections gated on annual
// purchase volume require the vendor to exceed the gate.
func (c *Checker) tdsSection(category string, profile domain.VendorProfile) *config.TDSSection {
	if category == "" {
		return nil
	}
	lower := strings.ToLower(category)

	for i := range c.regime.TDSSections {
		section := &c.regime.TDSSections[i]
		matched := false
		for _, kw := range section.Keywords {
			if strings.Contains(lower, kw) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		if section.MinAnnualPurchase.IsPositive() && profile.AnnualPurchaseValue.LessThan(section.MinAnnualPurchase) {
			continue
		}
		return section
	}
	return nil
}

func (c *Checker) checkMSME(txn domain.Transaction, profile domain.VendorProfile, result *Result) {
	if !profile.IsMSME && profile.MSMENumber == "" {
		return
	}

	when, err := domain.ParseTime(txn.Date)
	if err != nil {
		return // unparseable dates skip the check silently
	}
	daysPassed := int(time.Since(when).Hours() / 24)

	if daysPassed > c.regime.MSMEDueDays {
		result.Flags = append(result.Flags, FlagMSMEViolation)
		result.Warnings = append(result.Warnings, fmt.Sprintf("MSME payment overdue by %d days", daysPassed-c.regime.MSMEDueDays))
		result.Details = append(result.Details,
			fmt.Sprintf("MSME Act requires payment within %d days", c.regime.MSMEDueDays),
			"Interest @ 3x bank rate applicable after due date",
		)
	} else if daysPassed > c.regime.MSMEWarnDays {
		result.Warnings = append(result.Warnings, fmt.Sprintf("MSME payment approaching deadline (%d days)", daysPassed))
		result.Details = append(result.Details, fmt.Sprintf("%d days remaining to avoid penalty interest", c.regime.MSMEDueDays-daysPassed))
	}
}

func (c *Checker) checkITC(txn domain.Transaction, result *Result) {
	if txn.GST == nil {
		return
	}

	category := strings.ToLower(txn.Category)
	for _, blocked := range c.regime.ITCBlockedCategories {
		if strings.Contains(category, blocked) {
			result.Warnings = append(result.Warnings, fmt.Sprintf("ITC may not be available for %s", category))
			result.Details = append(result.Details, fmt.Sprintf("ITC blocked under Section 17(5) for %s", category))
			break
		}
	}

	if txn.GST.GSTIN == "" {
		result.Warnings = append(result.Warnings, "GSTIN required for ITC claim")
		result.Details = append(result.Details, "Ensure valid tax invoice with supplier GSTIN")
	}
}

// checkPayroll applies the PF floor and ESI ceiling. Salaries between the
// two trigger both warnings; the overlap band is intentional.
func (c *Checker) checkPayroll(txn domain.Transaction, result *Result) {
	if txn.Amount.GreaterThanOrEqual(c.regime.PFFloor) {
		result.Warnings = append(result.Warnings, "PF deduction required (12% employer + 12% employee)")
		result.Details = append(result.Details, fmt.Sprintf("Salary ₹%s exceeds PF threshold ₹%s", txn.Amount, c.regime.PFFloor))
	}
	if txn.Amount.LessThanOrEqual(c.regime.ESICeiling) {
		result.Warnings = append(result.Warnings, "ESI applicable (3.25% employer + 0.75% employee)")
		result.Details = append(result.Details, fmt.Sprintf("Salary ₹%s falls under ESI limit ₹%s", txn.Amount, c.regime.ESICeiling))
	}
}

func (c *Checker) expectedGSTRate(category string) int {
	if category == "" {
		return c.regime.DefaultGSTRate
	}
	lower := strings.ToLower(category)
	for _, entry := range c.regime.GSTRates {
		if strings.Contains(lower, entry.Keyword) {
			return entry.Rate
		}
	}
	return c.regime.DefaultGSTRate
}

// isFakeGSTIN detects dummy/test GSTINs: known placeholder shapes plus
// long runs of one repeated digit.
func isFakeGSTIN(gstin string) bool {
	for _, pat := range fakeGSTINPatterns {
		if pat.MatchString(gstin) {
			return true
		}
	}
	run := 1
	for i := 1; i < len(gstin); i++ {
		if gstin[i] == gstin[i-1] && gstin[i] >= '0' && gstin[i] <= '9' {
			run++
			if run >= 11 {
				return true
			}
		} else {
			run = 1
		}
	}
	return false
}

// severity bands the overall result: fake GSTINs, TDS requirements, and
// MSME violations are high; two or more flags are medium; any warning is
// low.
func severity(flags []Flag, warnings []string) domain.Severity {
	for _, f := range flags {
		if f == FlagFakeGSTIN || f == FlagMSMEViolation || f.IsTDS() {
			return domain.SeverityHigh
		}
	}
	if len(flags) >= 2 {
		return domain.SeverityMedium
	}
	if len(warnings) > 0 {
		return domain.SeverityLow
	}
	return domain.SeverityNone
}
