package insight

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dhruvbajaj/finsentry/internal/cashflow"
	"github.com/dhruvbajaj/finsentry/internal/compliance"
	"github.com/dhruvbajaj/finsentry/internal/domain"
	"github.com/dhruvbajaj/finsentry/internal/fraud"
	"github.com/dhruvbajaj/finsentry/internal/payment"
)

// Alert priorities, most urgent first.
const (
	PriorityCritical = "CRITICAL"
	PriorityHigh     = "HIGH"
	PriorityMedium   = "MEDIUM"
	PriorityLow      = "LOW"
)

var priorityRank = map[string]int{
	PriorityCritical: 0,
	PriorityHigh:     1,
	PriorityMedium:   2,
	PriorityLow:      3,
}

// Alert categories.
const (
	CategoryFraud      = "FRAUD"
	CategoryCashflow   = "CASHFLOW"
	CategoryCompliance = "COMPLIANCE"
)

// Alert is a single prioritized finding surfaced to the business owner.
type Alert struct {
	Priority string `json:"priority"`
	Category string `json:"category"`
	Message  string `json:"message"`
	Action   string `json:"action"`
}

// Breakdown exposes the per-agent inputs behind the final risk score.
type Breakdown struct {
	FraudScore         int              `json:"fraud_score"`
	FraudRisk          domain.RiskLevel `json:"fraud_risk"`
	CashflowStress     domain.Stress    `json:"cashflow_stress"`
	ComplianceSeverity domain.Severity  `json:"compliance_severity"`
	PaymentSafetyScore int              `json:"payment_safety_score"`
}

// Insight is the final synthesized verdict for one transaction.
type Insight struct {
	TransactionID    string          `json:"transaction_id"`
	Vendor           string          `json:"vendor"`
	Amount           decimal.Decimal `json:"amount"`
	FinalRiskScore   int             `json:"final_risk_score"`
	FinalAction      domain.Action   `json:"final_action"`
	ExecutiveSummary string          `json:"executive_summary"`
	PriorityAlerts   []Alert         `json:"priority_alerts"`
	Insights         []string        `json:"insights"`
	ActionPlan       []string        `json:"action_plan"`
	Breakdown        Breakdown       `json:"analysis_breakdown"`
	Timestamp        time.Time       `json:"timestamp"`
}

// Aggregator blends the four agent outputs into one verdict. It is
// stateless and safe for concurrent use.
type Aggregator struct {
	now func() time.Time
}

func NewAggregator() *Aggregator {
	return &Aggregator{now: time.Now}
}

// Aggregate computes the weighted final risk score, applies the action
// override ladder, and builds the alert list and action plan.
func (a *Aggregator) Aggregate(
	txn domain.Transaction,
	fraudRes fraud.Result,
	flow cashflow.Forecast,
	comp compliance.Result,
	decision payment.Decision,
) Insight {
	finalRisk := finalRiskScore(fraudRes.Score, flow.Stress, decision.SafetyScore, comp.Severity)
	finalAction := finalAction(fraudRes.RiskLevel, flow.Stress, comp.Severity, decision.Recommendation, finalRisk)

	return Insight{
		TransactionID:    txn.ID,
		Vendor:           txn.Vendor,
		Amount:           txn.Amount,
		FinalRiskScore:   finalRisk,
		FinalAction:      finalAction,
		ExecutiveSummary: executiveSummary(finalRisk, finalAction, txn),
		PriorityAlerts:   priorityAlerts(fraudRes, flow, comp),
		Insights:         keyInsights(txn, fraudRes, flow, comp, decision),
		ActionPlan:       actionPlan(fraudRes, flow, comp, decision),
		Breakdown: Breakdown{
			FraudScore:         fraudRes.Score,
			FraudRisk:          fraudRes.RiskLevel,
			CashflowStress:     flow.Stress,
			ComplianceSeverity: comp.Severity,
			PaymentSafetyScore: decision.SafetyScore,
		},
		Timestamp: a.now().UTC(),
	}
}

// finalRiskScore blends the agent signals: fraud 40%, cashflow 30%,
// payment risk 20%, compliance 10%.
func finalRiskScore(fraudScore int, stress domain.Stress, safetyScore int, severity domain.Severity) int {
	stressMap := map[domain.Stress]float64{
		domain.StressLow:    20,
		domain.StressMedium: 50,
		domain.StressHigh:   80,
	}
	stressScore, ok := stressMap[stress]
	if !ok {
		stressScore = 50
	}

	severityMap := map[domain.Severity]float64{
		domain.SeverityNone:   0,
		domain.SeverityLow:    25,
		domain.SeverityMedium: 50,
		domain.SeverityHigh:   80,
	}
	severityScore, ok := severityMap[severity]
	if !ok {
		severityScore = 25
	}

	paymentRisk := float64(100 - safetyScore)

	final := float64(fraudScore)*0.40 + stressScore*0.30 + paymentRisk*0.20 + severityScore*0.10
	return int(final)
}

// finalAction applies the override ladder on top of the payment agent's
// recommendation. High fraud or compliance severity always blocks.
func finalAction(fraudRisk domain.RiskLevel, stress domain.Stress, severity domain.Severity, rec domain.Action, finalRisk int) domain.Action {
	if fraudRisk == domain.RiskHigh {
		return domain.ActionAvoid
	}
	if severity == domain.SeverityHigh {
		return domain.ActionAvoid
	}
	if stress == domain.StressHigh && finalRisk >= 70 {
		return domain.ActionAvoid
	}

	mediums := 0
	if fraudRisk == domain.RiskMedium {
		mediums++
	}
	if stress == domain.StressMedium {
		mediums++
	}
	if severity == domain.SeverityMedium {
		mediums++
	}
	if mediums >= 2 && finalRisk >= 60 {
		return domain.ActionPayPartially
	}

	return rec
}

func priorityAlerts(fraudRes fraud.Result, flow cashflow.Forecast, comp compliance.Result) []Alert {
	var alerts []Alert

	if fraudRes.HasFlag(fraud.FlagDuplicateUTR) {
		alerts = append(alerts, Alert{
			Priority: PriorityCritical,
			Category: CategoryFraud,
			Message:  "DUPLICATE PAYMENT DETECTED - Same UTR already used",
			Action:   "BLOCK PAYMENT IMMEDIATELY",
		})
	}

	if comp.HasFlag(compliance.FlagFakeGSTIN) {
		alerts = append(alerts, Alert{
			Priority: PriorityCritical,
			Category: CategoryCompliance,
			Message:  "FAKE GSTIN DETECTED - Vendor using dummy GST number",
			Action:   "Verify vendor credentials before payment",
		})
	}

	if flow.HasRisk(cashflow.RiskNegativeBalance) {
		alerts = append(alerts, Alert{
			Priority: PriorityHigh,
			Category: CategoryCashflow,
			Message:  "NEGATIVE BALANCE PREDICTED - Account will overdraft within 30 days",
			Action:   "Defer non-essential payments immediately",
		})
	}

	if fraudRes.Score >= 70 {
		alerts = append(alerts, Alert{
			Priority: PriorityHigh,
			Category: CategoryFraud,
			Message:  fmt.Sprintf("HIGH FRAUD RISK - Score: %d/100", fraudRes.Score),
			Action:   "Conduct additional verification checks",
		})
	}

	if flow.Stress == domain.StressHigh {
		alerts = append(alerts, Alert{
			Priority: PriorityHigh,
			Category: CategoryCashflow,
			Message:  "CRITICAL CASHFLOW STRESS - Operating funds dangerously low",
			Action:   "Prioritize only essential payments",
		})
	}

	if comp.HasFlag(compliance.FlagMSMEViolation) {
		alerts = append(alerts, Alert{
			Priority: PriorityMedium,
			Category: CategoryCompliance,
			Message:  "MSME PAYMENT OVERDUE - Interest penalty applicable",
			Action:   "Process payment urgently to avoid legal issues",
		})
	}

	for _, f := range comp.Flags {
		if f.IsTDS() {
			alerts = append(alerts, Alert{
				Priority: PriorityMedium,
				Category: CategoryCompliance,
				Message:  fmt.Sprintf("TDS DEDUCTION REQUIRED - %s", f),
				Action:   "Deduct TDS before payment",
			})
			break
		}
	}

	if fraudRes.HasFlag(fraud.FlagNewVendor) && fraudRes.Score >= 40 {
		alerts = append(alerts, Alert{
			Priority: PriorityMedium,
			Category: CategoryFraud,
			Message:  "NEW VENDOR with ELEVATED AMOUNT",
			Action:   "Verify vendor identity and credentials",
		})
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		return priorityRank[alerts[i].Priority] < priorityRank[alerts[j].Priority]
	})
	if len(alerts) > 5 {
		alerts = alerts[:5]
	}
	return alerts
}

func keyInsights(
	txn domain.Transaction,
	fraudRes fraud.Result,
	flow cashflow.Forecast,
	comp compliance.Result,
	decision payment.Decision,
) []string {
	var insights []string

	if fraudRes.Score > 0 {
		insights = append(insights, fmt.Sprintf("Fraud Analysis: Score %d/100 (%s risk)", fraudRes.Score, fraudRes.RiskLevel))
		if len(fraudRes.Flags) > 0 {
			desc := ""
			for i, f := range fraudRes.Flags {
				if i > 0 {
					desc += ", "
				}
				desc += string(f)
			}
			insights = append(insights, fmt.Sprintf("Detected: %s", desc))
		}
	}

	if flow.NetWeeklyChange < 0 {
		insights = append(insights, fmt.Sprintf("Cashflow Trend: Negative ₹%.0f/week", -flow.NetWeeklyChange))
	} else {
		insights = append(insights, fmt.Sprintf("Cashflow Trend: Positive ₹%.0f/week surplus", flow.NetWeeklyChange))
	}
	insights = append(insights, fmt.Sprintf("Stress Level: %s", flow.Stress))

	if len(comp.Flags) > 0 {
		insights = append(insights, fmt.Sprintf("Compliance Issues: %d flag(s)", len(comp.Flags)))
		for i, f := range comp.Flags {
			if i == 3 {
				break
			}
			insights = append(insights, fmt.Sprintf("  %s", f))
		}
	}

	switch decision.Recommendation {
	case domain.ActionPayFull:
		insights = append(insights, fmt.Sprintf("Payment Recommendation: SAFE TO PAY (Score: %d/100)", decision.SafetyScore))
	case domain.ActionPayPartially:
		insights = append(insights, fmt.Sprintf("Payment Recommendation: PAY %d%% ONLY (Score: %d/100)", decision.PayPercentage, decision.SafetyScore))
	default:
		insights = append(insights, fmt.Sprintf("Payment Recommendation: AVOID (Score: %d/100)", decision.SafetyScore))
	}

	amount, _ := txn.Amount.Float64()
	if flow.CurrentBalance > 0 && amount > flow.CurrentBalance*0.5 {
		pct := amount / flow.CurrentBalance * 100
		insights = append(insights, fmt.Sprintf("Transaction Impact: %.0f%% of available balance", pct))
	}

	return insights
}

func executiveSummary(finalRisk int, action domain.Action, txn domain.Transaction) string {
	vendor := txn.Vendor
	amount := txn.Amount.Round(0)

	switch action {
	case domain.ActionAvoid:
		if finalRisk >= 80 {
			return fmt.Sprintf("BLOCK PAYMENT: Critical risk detected for %s (₹%s). Risk score: %d/100.", vendor, amount, finalRisk)
		}
		return fmt.Sprintf("DO NOT PAY: Multiple concerns identified for %s (₹%s). Review required.", vendor, amount)
	case domain.ActionPayPartially:
		return fmt.Sprintf("PARTIAL PAYMENT ADVISED: Moderate risk for %s (₹%s). Risk score: %d/100.", vendor, amount, finalRisk)
	default:
		if finalRisk <= 30 {
			return fmt.Sprintf("APPROVED: Low risk transaction to %s (₹%s). Safe to proceed.", vendor, amount)
		}
		return fmt.Sprintf("APPROVED: Transaction to %s (₹%s) cleared with minor notes. Risk score: %d/100.", vendor, amount, finalRisk)
	}
}

func actionPlan(fraudRes fraud.Result, flow cashflow.Forecast, comp compliance.Result, decision payment.Decision) []string {
	var actions []string

	if fraudRes.HasFlag(fraud.FlagDuplicateUTR) {
		actions = append(actions,
			"URGENT: Verify if previous payment with same UTR was processed",
			"Contact vendor to clarify duplicate reference number",
		)
	}
	if fraudRes.HasFlag(fraud.FlagNewVendor) {
		actions = append(actions,
			"Verify vendor identity through independent channels",
			"Request additional documentation (GST cert, PAN, bank details)",
		)
	}
	if comp.HasTDSFlag() {
		actions = append(actions,
			"Calculate and deduct applicable TDS before payment",
			"Generate TDS certificate and submit quarterly return",
		)
	}
	if comp.HasFlag(compliance.FlagMSMEViolation) {
		actions = append(actions,
			"Process MSME payment immediately to avoid further penalties",
			"Calculate and pay interest for delayed payment",
		)
	}
	if flow.Stress == domain.StressHigh {
		actions = append(actions,
			"Review all upcoming payments and defer non-essential items",
			"Consider short-term financing or payment terms negotiation",
		)
	}
	if decision.Recommendation == domain.ActionPayPartially {
		actions = append(actions,
			fmt.Sprintf("Negotiate partial payment of %d%% with vendor", decision.PayPercentage),
			"Schedule remaining payment based on cashflow improvement",
		)
	}

	if len(actions) == 0 {
		actions = append(actions,
			"Proceed with payment as per normal process",
			"Maintain proper documentation for audit trail",
		)
	}
	if len(actions) > 5 {
		actions = actions[:5]
	}
	return actions
}
