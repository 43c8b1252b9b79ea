package cashflow

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/dhruvbajaj/finsentry/internal/domain"
)

// Day is one forecasted day.
type Day struct {
	Day              int     `json:"day"`
	Date             string  `json:"date"`
	PredictedBalance float64 `json:"predicted_balance"`
	Confidence       string  `json:"confidence"`
}

// Risk marks a forecast day whose predicted balance breaches a safety
// threshold.
type Risk struct {
	Day         int    `json:"day"`
	Date        string `json:"date"`
	RiskType    string `json:"risk_type"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
}

const (
	RiskLowBalance      = "LOW_BALANCE"
	RiskNegativeBalance = "NEGATIVE_BALANCE"
)

// Forecast is the full cashflow prediction for one pipeline run.
type Forecast struct {
	CurrentBalance   float64       `json:"current_balance"`
	Forecast7d       []Day         `json:"7_day_forecast"`
	Forecast30d      []Day         `json:"30_day_forecast"`
	Stress           domain.Stress `json:"cashflow_stress"`
	AvgWeeklyIncome  float64       `json:"avg_weekly_income"`
	AvgWeeklyExpense float64       `json:"avg_weekly_expense"`
	NetWeeklyChange  float64       `json:"net_weekly_change"`
	Insights         []string      `json:"insights"`
	Risks            []Risk        `json:"risks"`
}

// MinBalance returns the minimum predicted balance over the given forecast
// days, or the current balance when the forecast is empty.
func (f Forecast) MinBalance(days []Day) float64 {
	min := f.CurrentBalance
	for i, d := range days {
		if i == 0 || d.PredictedBalance < min {
			min = d.PredictedBalance
		}
	}
	return min
}

// Forecaster projects day-by-day balances from recent transaction history.
// It holds no cross-call state; Predict is a pure function of its inputs
// (plus the clock used to date forecast days).
type Forecaster struct {
	now func() time.Time
}

// NewForecaster creates a Forecaster using the wall clock.
func NewForecaster() *Forecaster {
	return &Forecaster{now: time.Now}
}

// Predict produces 7 and 30 day balance forecasts, a stress level, insight
// strings, and identified risk windows.
func (f *Forecaster) Predict(history []domain.HistoryEntry, currentBalance float64) Forecast {
	var credits, debits []domain.HistoryEntry
	for _, t := range history {
		if t.Type == domain.TxnCredit || t.Amount.IsPositive() {
			credits = append(credits, t)
		}
		if t.Type == domain.TxnDebit || t.Amount.IsNegative() {
			debits = append(debits, t)
		}
	}

	avgWeeklyIncome := weeklyAverage(credits)
	avgWeeklyExpense := weeklyAverage(debits)
	netWeekly := avgWeeklyIncome - avgWeeklyExpense

	forecast7 := f.project(currentBalance, netWeekly, 7)
	forecast30 := f.project(currentBalance, netWeekly, 30)

	fc := Forecast{
		CurrentBalance:   currentBalance,
		Forecast7d:       forecast7,
		Forecast30d:      forecast30,
		AvgWeeklyIncome:  round2(avgWeeklyIncome),
		AvgWeeklyExpense: round2(avgWeeklyExpense),
		NetWeeklyChange:  round2(netWeekly),
	}

	min7 := fc.MinBalance(forecast7)
	min30 := fc.MinBalance(forecast30)

	fc.Stress = stressLevel(min30, avgWeeklyExpense)
	fc.Insights = insights(currentBalance, netWeekly, min7, min30, avgWeeklyIncome, avgWeeklyExpense, fc.Stress)
	fc.Risks = identifyRisks(forecast30, avgWeeklyExpense)
	return fc
}

// weeklyAverage sums the absolute amounts of the most recent 28
// transactions and divides by the number of weeks they span (count/7).
func weeklyAverage(entries []domain.HistoryEntry) float64 {
	if len(entries) == 0 {
		return 0
	}

	recent := make([]domain.HistoryEntry, len(entries))
	copy(recent, entries)
	sort.SliceStable(recent, func(i, j int) bool { return recent[i].Date > recent[j].Date })
	if len(recent) > 28 {
		recent = recent[:28]
	}

	total := 0.0
	for _, t := range recent {
		amt, _ := t.Amount.Abs().Float64()
		total += amt
	}
	weeks := float64(len(recent)) / 7
	return total / weeks
}

// project accumulates the daily share of the net weekly change, applying a
// deterministic alternating ±5%-of-delta perturbation: every third day
// positive, all others negative. The alternation is a fixed function of
// the day index, not randomness, so repeated calls are identical.
func (f *Forecaster) project(currentBalance, netWeekly float64, days int) []Day {
	forecast := make([]Day, 0, days)
	balance := currentBalance
	daily := netWeekly / 7
	variance := daily * 0.05
	today := f.now()

	for day := 1; day <= days; day++ {
		balance += daily
		predicted := balance - variance
		if day%3 == 0 {
			predicted = balance + variance
		}
		forecast = append(forecast, Day{
			Day:              day,
			Date:             today.AddDate(0, 0, day).Format("2006-01-02"),
			PredictedBalance: round2(predicted),
			Confidence:       confidence(day),
		})
	}
	return forecast
}

func confidence(daysAhead int) string {
	switch {
	case daysAhead <= 7:
		return "high"
	case daysAhead <= 14:
		return "medium"
	default:
		return "low"
	}
}

// stressLevel bands the minimum predicted 30-day balance against the
// average weekly expense.
func stressLevel(minPredicted, avgWeeklyExpense float64) domain.Stress {
	critical := avgWeeklyExpense * 0.5
	warning := avgWeeklyExpense * 2
	switch {
	case minPredicted < critical:
		return domain.StressHigh
	case minPredicted < warning:
		return domain.StressMedium
	default:
		return domain.StressLow
	}
}

func insights(currentBalance, netWeekly, min7, min30, income, expense float64, stress domain.Stress) []string {
	var out []string

	switch {
	case netWeekly < 0:
		out = append(out, fmt.Sprintf("Negative cashflow trend: spending ₹%.0f more than earning per week", math.Abs(netWeekly)))
	case netWeekly > 0:
		out = append(out, fmt.Sprintf("Positive cashflow: surplus of ₹%.0f per week", netWeekly))
	default:
		out = append(out, "Breaking even: income matches expenses")
	}

	if min7 < currentBalance*0.5 {
		out = append(out, fmt.Sprintf("Balance may drop 50%% in next 7 days (to ₹%.0f)", min7))
	}
	if min30 < 0 {
		out = append(out, fmt.Sprintf("CRITICAL: predicted negative balance in 30 days (₹%.0f)", min30))
	}

	switch stress {
	case domain.StressHigh:
		out = append(out, "HIGH STRESS: delay non-essential payments immediately")
		out = append(out, fmt.Sprintf("Need to reduce weekly expenses by at least ₹%.0f", math.Abs(netWeekly)))
	case domain.StressMedium:
		out = append(out, "MODERATE STRESS: monitor large payments carefully")
	default:
		out = append(out, "Healthy cashflow: safe to make planned payments")
	}

	if income > 0 {
		ratio := expense / income * 100
		if ratio > 90 {
			out = append(out, fmt.Sprintf("High burn rate: spending %.0f%% of income", ratio))
		}
	}
	return out
}

// identifyRisks scans the 30-day forecast for days below the safety
// threshold. A day below zero yields both a LOW_BALANCE and a
// NEGATIVE_BALANCE entry.
func identifyRisks(forecast []Day, avgWeeklyExpense float64) []Risk {
	var risks []Risk
	for _, day := range forecast {
		if day.PredictedBalance < avgWeeklyExpense {
			severity := "medium"
			if day.PredictedBalance < avgWeeklyExpense*0.5 {
				severity = "high"
			}
			risks = append(risks, Risk{
				Day:         day.Day,
				Date:        day.Date,
				RiskType:    RiskLowBalance,
				Severity:    severity,
				Description: fmt.Sprintf("Balance drops to ₹%.0f - below safety threshold", day.PredictedBalance),
			})
		}
		if day.PredictedBalance < 0 {
			risks = append(risks, Risk{
				Day:         day.Day,
				Date:        day.Date,
				RiskType:    RiskNegativeBalance,
				Severity:    "critical",
				Description: fmt.Sprintf("Predicted overdraft: ₹%.0f", day.PredictedBalance),
			})
		}
	}
	return risks
}

// HasRisk reports whether any identified risk has the given type.
func (f Forecast) HasRisk(riskType string) bool {
	for _, r := range f.Risks {
		if r.RiskType == riskType {
			return true
		}
	}
	return false
}

// Recommendation summarizes the forecast as one payment-posture message.
func (f Forecast) Recommendation() string {
	switch f.Stress {
	case domain.StressHigh:
		return "CRITICAL: Freeze all non-essential payments. Seek immediate funding or negotiate payment terms."
	case domain.StressMedium:
		return "CAUTION: Prioritize essential payments only. Consider deferring large expenses."
	default:
		if f.NetWeeklyChange > 0 {
			return "HEALTHY: Safe to proceed with planned payments and investments."
		}
		return "STABLE: Monitor expenses but no immediate concerns."
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
