package fraud

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"

	"github.com/dhruvbajaj/finsentry/internal/domain"
)

// Flag is a stable wire-level fraud indicator code.
type Flag string

const (
	FlagNewVendor        Flag = "NEW_VENDOR"
	FlagUnusualAmount    Flag = "UNUSUAL_AMOUNT"
	FlagElevatedAmount   Flag = "ELEVATED_AMOUNT"
	FlagDuplicateUTR     Flag = "DUPLICATE_UTR"
	FlagHighVelocity     Flag = "HIGH_VELOCITY"
	FlagElevatedVelocity Flag = "ELEVATED_VELOCITY"
	FlagRoundAmount      Flag = "ROUND_AMOUNT"
	FlagWeekend          Flag = "WEEKEND_TRANSACTION"
	FlagLateNight        Flag = "LATE_NIGHT_TRANSACTION"
	FlagHighValue        Flag = "HIGH_VALUE"
)

// Result is one fraud analysis, scoped to a single transaction.
type Result struct {
	TransactionID  string           `json:"transaction_id"`
	Vendor         string           `json:"vendor"`
	Amount         decimal.Decimal  `json:"amount"`
	Score          int              `json:"fraud_score"`
	RiskLevel      domain.RiskLevel `json:"risk_level"`
	Flags          []Flag           `json:"flags"`
	Reasoning      []string         `json:"reasoning"`
	Recommendation string           `json:"recommendation"`
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

// Summary aggregates a batch of fraud results.
type Summary struct {
	TotalAnalyzed      int     `json:"total_analyzed"`
	HighRiskCount      int     `json:"high_risk_count"`
	MediumRiskCount    int     `json:"medium_risk_count"`
	LowRiskCount       int     `json:"low_risk_count"`
	AverageScore       float64 `json:"average_fraud_score"`
	HighRiskPercentage float64 `json:"high_risk_percentage"`
}

// Scorer computes fraud scores. It keeps an instance-scoped set of UTRs
// seen in prior calls, which makes duplicate detection dependent on call
// order and instance lifetime: a fresh Scorer has no memory. Single writer
// per instance; callers sharing a Scorer across goroutines must serialize.
type Scorer struct {
	seenUTRs map[string]struct{}
}

// NewScorer creates a Scorer with empty UTR memory.
func NewScorer() *Scorer {
	return &Scorer{seenUTRs: make(map[string]struct{})}
}

// Reset clears the instance UTR memory.
func (s *Scorer) Reset() {
	s.seenUTRs = make(map[string]struct{})
}

var (
	highValueFloor   = decimal.NewFromInt(100000)
	roundAmountFloor = decimal.NewFromInt(50000)
	roundAmountUnit  = decimal.NewFromInt(10000)
)

// Analyze scores one transaction against vendor history and, when supplied,
// the full transaction list used for velocity checks. Checks contribute
// additively in a fixed order; the total is capped at 100.
func (s *Scorer) Analyze(txn domain.Transaction, vendors map[string]domain.VendorProfile, all []domain.HistoryEntry) Result {
	var (
		flags   []Flag
		reasons []string
		score   int
	)

	profile, known := vendors[txn.Vendor]

	if !known || profile.Frequency == 0 {
		flags = append(flags, FlagNewVendor)
		reasons = append(reasons, fmt.Sprintf("First time transacting with %s", txn.Vendor))
		score += 25
	}

	if known && profile.AvgAmount.IsPositive() {
		ratio, _ := txn.Amount.Div(profile.AvgAmount).Float64()
		if ratio > 3 {
			flags = append(flags, FlagUnusualAmount)
			reasons = append(reasons, fmt.Sprintf("Amount ₹%s is %.1fx higher than average ₹%s", txn.Amount, ratio, profile.AvgAmount))
			score += 30
		} else if ratio > 2 {
			flags = append(flags, FlagElevatedAmount)
			reasons = append(reasons, fmt.Sprintf("Amount is %.1fx higher than usual", ratio))
			score += 15
		}
	}

	if txn.UTR != "" {
		if _, seen := s.seenUTRs[txn.UTR]; seen {
			flags = append(flags, FlagDuplicateUTR)
			reasons = append(reasons, fmt.Sprintf("UTR %s has been used before - possible duplicate payment", txn.UTR))
			score += 40
		} else {
			s.seenUTRs[txn.UTR] = struct{}{}
		}
	}

	if len(all) > 0 {
		recent := countRecent(txn.Vendor, txn.Date, all)
		if recent > 5 {
			flags = append(flags, FlagHighVelocity)
			reasons = append(reasons, fmt.Sprintf("%d transactions to %s in last hour - possible attack", recent, txn.Vendor))
			score += 25
		} else if recent > 3 {
			flags = append(flags, FlagElevatedVelocity)
			reasons = append(reasons, fmt.Sprintf("%d transactions in short time period", recent))
			score += 10
		}
	}

	if txn.Amount.Mod(roundAmountUnit).IsZero() && txn.Amount.GreaterThanOrEqual(roundAmountFloor) {
		flags = append(flags, FlagRoundAmount)
		reasons = append(reasons, fmt.Sprintf("Suspiciously round amount: ₹%s", txn.Amount))
		score += 10
	}

	// Timing checks are skipped entirely when the date does not parse.
	if when, err := domain.ParseTime(txn.Date); err == nil {
		if wd := when.Weekday(); wd == time.Saturday || wd == time.Sunday {
			flags = append(flags, FlagWeekend)
			reasons = append(reasons, "Transaction on weekend - unusual for B2B")
			score += 5
		}
		if hour := when.Hour(); hour >= 23 || hour <= 5 {
			flags = append(flags, FlagLateNight)
			reasons = append(reasons, fmt.Sprintf("Transaction at %d:00 - unusual timing", hour))
			score += 10
		}
	}

	if txn.Amount.GreaterThanOrEqual(highValueFloor) {
		flags = append(flags, FlagHighValue)
		reasons = append(reasons, fmt.Sprintf("High value transaction: ₹%s", txn.Amount))
		score += 15
	}

	if score > 100 {
		score = 100
	}
	level := riskLevel(score)

	return Result{
		TransactionID:  txn.ID,
		Vendor:         txn.Vendor,
		Amount:         txn.Amount,
		Score:          score,
		RiskLevel:      level,
		Flags:          flags,
		Reasoning:      reasons,
		Recommendation: recommendation(level),
	}
}

// AnalyzeBatch scores each transaction with the whole batch as velocity
// context and returns per-transaction results plus summary statistics.
func (s *Scorer) AnalyzeBatch(txns []domain.Transaction, vendors map[string]domain.VendorProfile) ([]Result, Summary) {
	all := make([]domain.HistoryEntry, len(txns))
	for i, t := range txns {
		all[i] = domain.HistoryEntry{Date: t.Date, Amount: t.Amount, Type: t.Type, Vendor: t.Vendor}
	}

	results := make([]Result, len(txns))
	for i, t := range txns {
		results[i] = s.Analyze(t, vendors, all)
	}
	return results, Summarize(results)
}

// Summarize computes count and mean statistics over a set of results.
func Summarize(results []Result) Summary {
	summary := Summary{TotalAnalyzed: len(results)}
	if len(results) == 0 {
		return summary
	}

	scores := make([]float64, len(results))
	for i, r := range results {
		scores[i] = float64(r.Score)
		switch r.RiskLevel {
		case domain.RiskHigh:
			summary.HighRiskCount++
		case domain.RiskMedium:
			summary.MediumRiskCount++
		default:
			summary.LowRiskCount++
		}
	}
	summary.AverageScore = stat.Mean(scores, nil)
	summary.HighRiskPercentage = float64(summary.HighRiskCount) / float64(len(results)) * 100
	return summary
}

// countRecent counts transactions to the same vendor within the trailing
// one hour window ending at the transaction's timestamp, inclusive.
func countRecent(vendor, date string, all []domain.HistoryEntry) int {
	current, err := domain.ParseTime(date)
	if err != nil {
		return 0
	}
	cutoff := current.Add(-time.Hour)

	count := 0
	for _, entry := range all {
		if entry.Vendor != vendor {
			continue
		}
		when, err := domain.ParseTime(entry.Date)
		if err != nil {
			continue
		}
		if !when.Before(cutoff) && !when.After(current) {
			count++
		}
	}
	return count
}

func riskLevel(score int) domain.RiskLevel {
	switch {
	case score >= 70:
		return domain.RiskHigh
	case score >= 40:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}

func recommendation(level domain.RiskLevel) string {
	switch level {
	case domain.RiskHigh:
		return "BLOCK - Verify vendor identity and transaction legitimacy before proceeding"
	case domain.RiskMedium:
		return "REVIEW - Additional verification recommended before payment"
	default:
		return "APPROVE - Transaction appears normal"
	}
}
