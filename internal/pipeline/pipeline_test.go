package pipeline

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhruvbajaj/finsentry/internal/cashflow"
	"github.com/dhruvbajaj/finsentry/internal/compliance"
	"github.com/dhruvbajaj/finsentry/internal/config"
	"github.com/dhruvbajaj/finsentry/internal/domain"
	"github.com/dhruvbajaj/finsentry/internal/fraud"
	"github.com/dhruvbajaj/finsentry/internal/normalize"
)

func testPipeline() *Pipeline {
	return New(zerolog.Nop(), config.DefaultRegime())
}

func entry(date, vendor, txnType string, amount int64) domain.HistoryEntry {
	return domain.HistoryEntry{
		Date:   date,
		Amount: decimal.NewFromInt(amount),
		Type:   domain.TxnType(txnType),
		Vendor: vendor,
	}
}

func TestAnalyze_TrustedVendorClean(t *testing.T) {
	p := testPipeline()
	raw := normalize.Structured(map[string]any{
		"id":         "TXN_OK_001",
		"vendor":     "ABC Traders",
		"amount":     "45,000",
		"utr":        "UTR11112222",
		"date":       "2025-03-11T14:00:00",
		"mode":       "NEFT",
		"type":       "debit",
		"gst_rate":   "18",
		"gst_amount": "6864.41",
		"gstin":      "27AAPFU0939F1ZV",
		"category":   "supplies",
	})
	history := []domain.HistoryEntry{
		entry("2025-03-03T10:00:00", "Client A", "credit", 70000),
		entry("2025-03-04T10:00:00", "Client B", "credit", 70000),
		entry("2025-03-05T10:00:00", "Client C", "credit", 70000),
		entry("2025-03-06T10:00:00", "Client D", "credit", 70000),
		entry("2025-03-03T16:00:00", "Supplier A", "debit", 20000),
		entry("2025-03-04T16:00:00", "Supplier B", "debit", 20000),
		entry("2025-03-05T16:00:00", "Supplier C", "debit", 20000),
		entry("2025-03-06T16:00:00", "Supplier D", "debit", 20000),
	}
	vendors := map[string]domain.VendorProfile{
		"ABC Traders": {AvgAmount: decimal.NewFromInt(40000), Frequency: 20, TrustScore: 90},
	}

	report := p.Analyze(context.Background(), raw, normalize.SourceJSON, history, vendors, 300000)

	require.Equal(t, "TXN_OK_001", report.Transaction.ID)
	assert.Equal(t, 0, report.Fraud.Score)
	assert.Equal(t, domain.RiskLow, report.Fraud.RiskLevel)
	assert.Empty(t, report.Fraud.Flags)

	assert.Equal(t, domain.StressLow, report.Cashflow.Stress)
	assert.Positive(t, report.Cashflow.NetWeeklyChange)
	assert.Empty(t, report.Cashflow.Risks)

	assert.Equal(t, domain.SeverityNone, report.Compliance.Severity)
	assert.Empty(t, report.Compliance.Flags)

	assert.Equal(t, domain.ActionPayFull, report.Payment.Recommendation)
	assert.Equal(t, 100, report.Payment.PayPercentage)
	assert.Equal(t, 100, report.Payment.SafetyScore)

	assert.Equal(t, domain.ActionPayFull, report.Insight.FinalAction)
	assert.Equal(t, 6, report.Insight.FinalRiskScore)
	assert.Regexp(t, "^APPROVED: Low risk", report.Insight.ExecutiveSummary)
	assert.Empty(t, report.Insight.PriorityAlerts)
}

func TestAnalyze_SuspiciousNewVendor(t *testing.T) {
	p := testPipeline()
	raw := normalize.Structured(map[string]any{
		"id":     "TXN_SUS_001",
		"vendor": "Suspicious New Corp",
		"amount": "150000",
		"utr":    "UTRSUS999999",
		"date":   "2025-03-08T23:30:00", // Saturday, late night
		"mode":   "UPI",
		"type":   "debit",
	})
	// Six prior payments to the same vendor inside the trailing hour.
	history := []domain.HistoryEntry{
		entry("2025-03-08T22:35:00", "Suspicious New Corp", "debit", 25000),
		entry("2025-03-08T22:45:00", "Suspicious New Corp", "debit", 25000),
		entry("2025-03-08T22:55:00", "Suspicious New Corp", "debit", 25000),
		entry("2025-03-08T23:05:00", "Suspicious New Corp", "debit", 25000),
		entry("2025-03-08T23:15:00", "Suspicious New Corp", "debit", 25000),
		entry("2025-03-08T23:25:00", "Suspicious New Corp", "debit", 25000),
	}

	report := p.Analyze(context.Background(), raw, normalize.SourceJSON, history, nil, 500000)

	require.Equal(t, 90, report.Fraud.Score)
	assert.Equal(t, domain.RiskHigh, report.Fraud.RiskLevel)
	for _, flag := range []fraud.Flag{
		fraud.FlagNewVendor,
		fraud.FlagHighVelocity,
		fraud.FlagRoundAmount,
		fraud.FlagWeekend,
		fraud.FlagLateNight,
		fraud.FlagHighValue,
	} {
		assert.True(t, report.Fraud.HasFlag(flag), "missing flag %s", flag)
	}

	assert.Equal(t, domain.StressHigh, report.Cashflow.Stress)
	assert.True(t, report.Cashflow.HasRisk(cashflow.RiskNegativeBalance))

	assert.True(t, report.Compliance.HasFlag(compliance.FlagMissingGST))
	assert.Equal(t, domain.SeverityLow, report.Compliance.Severity)

	assert.Equal(t, domain.ActionAvoid, report.Payment.Recommendation)
	assert.Equal(t, 0, report.Payment.PayPercentage)
	assert.Equal(t, 15, report.Payment.SafetyScore)

	assert.Equal(t, domain.ActionAvoid, report.Insight.FinalAction)
	assert.Equal(t, 79, report.Insight.FinalRiskScore)
	assert.Regexp(t, "^DO NOT PAY:", report.Insight.ExecutiveSummary)

	require.Len(t, report.Insight.PriorityAlerts, 4)
	for _, alert := range report.Insight.PriorityAlerts[:3] {
		assert.Equal(t, "HIGH", alert.Priority)
	}
	assert.Equal(t, "MEDIUM", report.Insight.PriorityAlerts[3].Priority)
}

func TestAnalyzeBatch_DuplicateUTRAcrossBatch(t *testing.T) {
	p := testPipeline()
	mk := func(id, date string) normalize.Raw {
		return normalize.Structured(map[string]any{
			"id":     id,
			"vendor": "ABC Traders",
			"amount": "30000",
			"utr":    "UTRDUP123456",
			"date":   date,
			"mode":   "NEFT",
			"type":   "debit",
		})
	}
	vendors := map[string]domain.VendorProfile{
		"ABC Traders": {AvgAmount: decimal.NewFromInt(40000), Frequency: 20, TrustScore: 90},
	}

	result, err := p.AnalyzeBatch(
		context.Background(),
		[]normalize.Raw{mk("TXN_B1", "2025-03-11T10:00:00"), mk("TXN_B2", "2025-03-11T10:30:00")},
		normalize.SourceJSON,
		nil,
		vendors,
		200000,
	)
	require.NoError(t, err)
	require.Len(t, result.Reports, 2)

	first, second := result.Reports[0], result.Reports[1]
	assert.False(t, first.Fraud.HasFlag(fraud.FlagDuplicateUTR))
	assert.Equal(t, 0, first.Fraud.Score)
	assert.Equal(t, domain.ActionPayFull, first.Payment.Recommendation)

	assert.True(t, second.Fraud.HasFlag(fraud.FlagDuplicateUTR))
	assert.Equal(t, 40, second.Fraud.Score)
	assert.Equal(t, domain.RiskMedium, second.Fraud.RiskLevel)
	assert.Equal(t, domain.ActionAvoid, second.Payment.Recommendation)

	assert.Equal(t, 2, result.FraudSummary.TotalAnalyzed)
	assert.Equal(t, 1, result.FraudSummary.MediumRiskCount)
	assert.Equal(t, 1, result.FraudSummary.LowRiskCount)

	assert.Equal(t, 2, result.PaymentSummary.TotalDecisions)
	assert.Equal(t, 1, result.PaymentSummary.PayFullCount)
	assert.Equal(t, 1, result.PaymentSummary.AvoidCount)
	assert.InDelta(t, 50, result.PaymentSummary.RiskPreventionRate, 0.001)
}

func TestAnalyzeBatch_CancelledContext(t *testing.T) {
	p := testPipeline()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.AnalyzeBatch(ctx, []normalize.Raw{normalize.Structured(map[string]any{"id": "TXN_X"})}, normalize.SourceJSON, nil, nil, 0)
	require.ErrorIs(t, err, context.Canceled)
}
