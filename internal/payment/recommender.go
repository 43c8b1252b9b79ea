package payment

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"

	"github.com/dhruvbajaj/finsentry/internal/cashflow"
	"github.com/dhruvbajaj/finsentry/internal/compliance"
	"github.com/dhruvbajaj/finsentry/internal/domain"
	"github.com/dhruvbajaj/finsentry/internal/fraud"
)

// Decision is the payment recommendation for a single transaction.
type Decision struct {
	TransactionID   string          `json:"transaction_id"`
	Vendor          string          `json:"vendor"`
	Amount          decimal.Decimal `json:"amount"`
	Recommendation  domain.Action   `json:"recommendation"`
	PayPercentage   int             `json:"pay_percentage"`
	SafetyScore     int             `json:"safety_score"`
	Reasons         []string        `json:"reasons"`
	PositiveFactors []string        `json:"positive_factors"`
	Alternatives    []string        `json:"alternatives"`
	Confidence      string          `json:"confidence"`
	DecidedAt       time.Time       `json:"decided_at"`
}

// Summary aggregates the decisions made so far by one Recommender.
type Summary struct {
	TotalDecisions     int     `json:"total_decisions"`
	PayFullCount       int     `json:"pay_full_count"`
	PayPartialCount    int     `json:"pay_partial_count"`
	AvoidCount         int     `json:"avoid_count"`
	AverageSafetyScore float64 `json:"average_safety_score"`
	RiskPreventionRate float64 `json:"risk_prevention_rate"`
}

// Recommender weighs fraud, cashflow, compliance and vendor trust into a
// pay / pay-partially / avoid decision. It remembers its decisions, so a
// single instance must not be shared across goroutines without external
// synchronization.
type Recommender struct {
	history []Decision
	now     func() time.Time
}

func NewRecommender() *Recommender {
	return &Recommender{now: time.Now}
}

// Recommend produces a decision for one transaction and records it.
func (r *Recommender) Recommend(
	txn domain.Transaction,
	fraudRes fraud.Result,
	flow cashflow.Forecast,
	comp compliance.Result,
	vendors map[string]domain.VendorProfile,
) Decision {
	score := 100
	var reasons, positives []string

	trust := 50.0
	freq := 0
	if profile, ok := vendors[txn.Vendor]; ok {
		trust = float64(profile.TrustScore)
		freq = profile.Frequency
	}

	// Fraud penalties.
	switch {
	case fraudRes.Score >= 70:
		score -= 40
		reasons = append(reasons, fmt.Sprintf("High fraud risk detected (score: %d)", fraudRes.Score))
	case fraudRes.Score >= 40:
		score -= 20
		reasons = append(reasons, fmt.Sprintf("Moderate fraud risk (score: %d)", fraudRes.Score))
	case fraudRes.Score >= 20:
		score -= 10
		reasons = append(reasons, fmt.Sprintf("Minor fraud indicators (score: %d)", fraudRes.Score))
	}
	if fraudRes.HasFlag(fraud.FlagDuplicateUTR) {
		score -= 50
		reasons = append(reasons, "Duplicate payment reference detected")
	}

	// Cashflow penalties.
	switch flow.Stress {
	case domain.StressHigh:
		score -= 30
		reasons = append(reasons, "High cashflow stress - low runway")
	case domain.StressMedium:
		score -= 15
		reasons = append(reasons, "Moderate cashflow pressure")
	}
	if flow.NetWeeklyChange < 0 {
		score -= 10
		reasons = append(reasons, "Negative weekly cashflow trend")
	}

	// Vendor trust.
	switch {
	case trust < 30:
		score -= 20
		reasons = append(reasons, fmt.Sprintf("Low vendor trust score (%.0f)", trust))
	case trust < 50:
		score -= 10
		reasons = append(reasons, fmt.Sprintf("Below average vendor trust (%.0f)", trust))
	}
	if freq == 0 {
		score -= 5
		reasons = append(reasons, "First transaction with this vendor")
	}

	// Amount relative to current balance.
	amount, _ := txn.Amount.Float64()
	if flow.CurrentBalance > 0 {
		pct := amount / flow.CurrentBalance * 100
		switch {
		case pct > 80:
			score -= 25
			reasons = append(reasons, fmt.Sprintf("Payment is %.0f%% of current balance", pct))
		case pct > 50:
			score -= 15
			reasons = append(reasons, fmt.Sprintf("Payment is %.0f%% of current balance", pct))
		case pct > 30:
			score -= 5
			reasons = append(reasons, fmt.Sprintf("Significant payment (%.0f%% of balance)", pct))
		}
	}

	// Post-payment runway over the next week.
	if len(flow.Forecast7d) > 0 {
		after := flow.MinBalance(flow.Forecast7d) - amount
		switch {
		case after < 0:
			score -= 15
			reasons = append(reasons, "Payment would cause negative balance within 7 days")
		case after < 10000:
			score -= 10
			reasons = append(reasons, "Payment leaves very thin balance cushion")
		}
	}

	if score < 0 {
		score = 0
	}

	if fraudRes.Score < 20 {
		positives = append(positives, "Low fraud risk")
	}
	if trust >= 80 {
		positives = append(positives, fmt.Sprintf("Trusted vendor (score: %.0f)", trust))
	}
	if freq >= 5 {
		positives = append(positives, fmt.Sprintf("Established relationship (%d transactions)", freq))
	}
	if flow.Stress == domain.StressLow {
		positives = append(positives, "Healthy cashflow position")
	}
	if comp.Severity == domain.SeverityNone {
		positives = append(positives, "No compliance issues")
	}
	if len(positives) == 0 {
		positives = append(positives, "Proceed with caution")
	}

	action, payPct := r.ladder(score, fraudRes, flow, txn)

	decision := Decision{
		TransactionID:   txn.ID,
		Vendor:          txn.Vendor,
		Amount:          txn.Amount,
		Recommendation:  action,
		PayPercentage:   payPct,
		SafetyScore:     score,
		Reasons:         reasons,
		PositiveFactors: positives,
		Alternatives:    r.alternatives(action, fraudRes, flow),
		Confidence:      confidence(score),
		DecidedAt:       r.now().UTC(),
	}
	r.history = append(r.history, decision)
	return decision
}

// ladder maps the safety score to an action, with hard overrides for high
// fraud risk and stressed cashflow on large amounts.
func (r *Recommender) ladder(score int, fraudRes fraud.Result, flow cashflow.Forecast, txn domain.Transaction) (domain.Action, int) {
	if fraudRes.RiskLevel == domain.RiskHigh {
		return domain.ActionAvoid, 0
	}
	if flow.Stress == domain.StressHigh && txn.Amount.GreaterThan(decimal.NewFromInt(50000)) {
		return domain.ActionAvoid, 0
	}

	switch {
	case score >= 70:
		return domain.ActionPayFull, 100
	case score >= 45:
		// Scale 50-100% linearly across the 45-69 band.
		return domain.ActionPayPartially, 50 + int(float64(score-45)/25*50)
	case score >= 25:
		return domain.ActionPayPartially, 30
	default:
		return domain.ActionAvoid, 0
	}
}

func (r *Recommender) alternatives(action domain.Action, fraudRes fraud.Result, flow cashflow.Forecast) []string {
	var alts []string
	switch action {
	case domain.ActionAvoid:
		if fraudRes.RiskLevel == domain.RiskHigh {
			alts = append(alts,
				"Verify vendor identity and invoice authenticity before any payment",
				"Request fresh invoice with valid payment reference",
			)
		}
		if flow.Stress == domain.StressHigh {
			alts = append(alts,
				"Negotiate extended payment terms with vendor",
				"Defer payment until receivables are collected",
			)
		}
		if len(alts) == 0 {
			alts = append(alts, "Hold payment pending manual review")
		}
	case domain.ActionPayPartially:
		alts = append(alts,
			"Pay in installments with written vendor agreement",
			"Request early payment discount for the partial amount",
		)
	}
	return alts
}

// Reset clears the decision history.
func (r *Recommender) Reset() {
	r.history = nil
}

// Summarize reports aggregate statistics over the recorded decisions.
func (r *Recommender) Summarize() Summary {
	s := Summary{TotalDecisions: len(r.history)}
	if len(r.history) == 0 {
		return s
	}

	scores := make([]float64, 0, len(r.history))
	for _, d := range r.history {
		scores = append(scores, float64(d.SafetyScore))
		switch d.Recommendation {
		case domain.ActionPayFull:
			s.PayFullCount++
		case domain.ActionPayPartially:
			s.PayPartialCount++
		case domain.ActionAvoid:
			s.AvoidCount++
		}
	}
	s.AverageSafetyScore = stat.Mean(scores, nil)
	s.RiskPreventionRate = float64(s.AvoidCount) / float64(s.TotalDecisions) * 100
	return s
}

func confidence(score int) string {
	if score >= 70 || score <= 25 {
		return "high"
	}
	return "medium"
}
