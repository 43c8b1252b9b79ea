package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dhruvbajaj/finsentry/internal/cashflow"
	"github.com/dhruvbajaj/finsentry/internal/compliance"
	"github.com/dhruvbajaj/finsentry/internal/config"
	"github.com/dhruvbajaj/finsentry/internal/domain"
	"github.com/dhruvbajaj/finsentry/internal/fraud"
	"github.com/dhruvbajaj/finsentry/internal/insight"
	"github.com/dhruvbajaj/finsentry/internal/normalize"
	"github.com/dhruvbajaj/finsentry/internal/payment"
)

// Report is the full output of one pipeline run for a single transaction.
type Report struct {
	AnalysisTimestamp      time.Time          `json:"analysis_timestamp"`
	Transaction            domain.Transaction `json:"normalized_transaction"`
	Fraud                  fraud.Result       `json:"fraud_analysis"`
	Cashflow               cashflow.Forecast  `json:"cashflow_analysis"`
	CashflowRecommendation string             `json:"cashflow_recommendation"`
	Compliance             compliance.Result  `json:"compliance_analysis"`
	Payment                payment.Decision   `json:"payment_recommendation"`
	Insight                insight.Insight    `json:"final_insight"`
}

// Pipeline wires the agents together: normalize, then fraud / cashflow /
// compliance in parallel, then payment, then the final insight.
//
// The fraud scorer and payment recommender carry per-instance state
// (seen UTRs, decision history), so a Pipeline must not run Analyze
// concurrently with itself. Create one Pipeline per worker.
type Pipeline struct {
	log        zerolog.Logger
	normalizer *normalize.Normalizer
	fraud      *fraud.Scorer
	cashflow   *cashflow.Forecaster
	compliance *compliance.Checker
	payment    *payment.Recommender
	insight    *insight.Aggregator
	now        func() time.Time
}

// New builds a pipeline with fresh agent instances for the given tax
// regime.
func New(log zerolog.Logger, regime config.Regime) *Pipeline {
	return &Pipeline{
		log:        log,
		normalizer: normalize.New(log),
		fraud:      fraud.NewScorer(),
		cashflow:   cashflow.NewForecaster(),
		compliance: compliance.NewChecker(regime),
		payment:    payment.NewRecommender(),
		insight:    insight.NewAggregator(),
		now:        time.Now,
	}
}

// Analyze runs the full agent chain over one raw input. The three
// independent analyses fan out concurrently; each writes only its own
// result slot before the WaitGroup join.
func (p *Pipeline) Analyze(
	ctx context.Context,
	raw normalize.Raw,
	hint normalize.Source,
	history []domain.HistoryEntry,
	vendors map[string]domain.VendorProfile,
	currentBalance float64,
) Report {
	start := p.now()

	txn := p.normalizer.Normalize(raw, hint)
	p.log.Debug().
		Str("transaction_id", txn.ID).
		Str("vendor", txn.Vendor).
		Msg("pipeline: normalized transaction")

	var (
		fraudRes fraud.Result
		flow     cashflow.Forecast
		comp     compliance.Result
	)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		fraudRes = p.fraud.Analyze(txn, vendors, history)
	}()
	go func() {
		defer wg.Done()
		flow = p.cashflow.Predict(history, currentBalance)
	}()
	go func() {
		defer wg.Done()
		comp = p.compliance.Check(txn, vendors)
	}()
	wg.Wait()

	if err := ctx.Err(); err != nil {
		p.log.Warn().Err(err).Str("transaction_id", txn.ID).Msg("pipeline: context cancelled after analysis fan-out")
	}

	decision := p.payment.Recommend(txn, fraudRes, flow, comp, vendors)
	final := p.insight.Aggregate(txn, fraudRes, flow, comp, decision)

	p.log.Info().
		Str("transaction_id", txn.ID).
		Str("vendor", txn.Vendor).
		Int("fraud_score", fraudRes.Score).
		Str("final_action", string(final.FinalAction)).
		Int("final_risk_score", final.FinalRiskScore).
		Dur("elapsed", p.now().Sub(start)).
		Msg("pipeline: analysis complete")

	return Report{
		AnalysisTimestamp:      start.UTC(),
		Transaction:            txn,
		Fraud:                  fraudRes,
		Cashflow:               flow,
		CashflowRecommendation: flow.Recommendation(),
		Compliance:             comp,
		Payment:                decision,
		Insight:                final,
	}
}

// BatchResult is the output of a batch run: per-transaction reports plus
// cross-transaction summaries.
type BatchResult struct {
	Reports        []Report        `json:"reports"`
	FraudSummary   fraud.Summary   `json:"fraud_summary"`
	PaymentSummary payment.Summary `json:"payment_summary"`
}

// AnalyzeBatch runs each raw input through the full chain sequentially.
// Earlier transactions in the batch feed the velocity and duplicate-UTR
// context of later ones through the scorer's internal state.
func (p *Pipeline) AnalyzeBatch(
	ctx context.Context,
	raws []normalize.Raw,
	hint normalize.Source,
	history []domain.HistoryEntry,
	vendors map[string]domain.VendorProfile,
	currentBalance float64,
) (BatchResult, error) {
	var result BatchResult
	fraudResults := make([]fraud.Result, 0, len(raws))

	for _, raw := range raws {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		report := p.Analyze(ctx, raw, hint, history, vendors, currentBalance)
		result.Reports = append(result.Reports, report)
		fraudResults = append(fraudResults, report.Fraud)

		history = append(history, domain.HistoryEntry{
			Date:   report.Transaction.Date,
			Amount: report.Transaction.Amount,
			Type:   report.Transaction.Type,
			Vendor: report.Transaction.Vendor,
		})
	}

	result.FraudSummary = fraud.Summarize(fraudResults)
	result.PaymentSummary = p.payment.Summarize()
	return result, nil
}
