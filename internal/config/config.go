package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/shopspring/decimal"
)

// TDSSection describes one TDS withholding section: which category keywords
// it applies to, the payment threshold above which deduction is mandatory,
// and the deduction rate in percent.
type TDSSection struct {
	Code        string          `json:"code"`
	Description string          `json:"description"`
	Threshold   decimal.Decimal `json:"threshold"`
	Rate        float64         `json:"rate"`
	Keywords    []string        `json:"keywords"`

	// MinAnnualPurchase gates sections that only apply above an aggregate
	// annual purchase value with the vendor (194Q). Zero means no gate.
	MinAnnualPurchase decimal.Decimal `json:"min_annual_purchase,omitempty"`
}

// GSTRate binds one category keyword to its expected GST rate in percent.
type GSTRate struct {
	Keyword string `json:"keyword"`
	Rate    int    `json:"rate"`
}

// Regime holds the tax and regulatory constants the compliance checker
// applies. The statutory values change over time, so they live here rather
// than inline in the checker; DefaultRegime reproduces the current Indian
// regime.
type Regime struct {
	// GSTThreshold is the B2B amount above which GST details are expected.
	GSTThreshold decimal.Decimal `json:"gst_threshold"`
	// GSTRates lists category keywords with their expected GST rates.
	// Matched in order; the first keyword contained in the category wins.
	GSTRates []GSTRate `json:"gst_rates"`
	// DefaultGSTRate applies when no category keyword matches.
	DefaultGSTRate int `json:"default_gst_rate"`
	// GSTAmountTolerance is the rupee tolerance when re-deriving the GST
	// amount from the rate.
	GSTAmountTolerance decimal.Decimal `json:"gst_amount_tolerance"`

	TDSSections []TDSSection `json:"tds_sections"`

	// MSMEDueDays is the statutory MSME payment window; MSMEWarnDays is
	// where the approaching-deadline warning starts.
	MSMEDueDays  int `json:"msme_due_days"`
	MSMEWarnDays int `json:"msme_warn_days"`

	// PFFloor and ESICeiling bound the payroll checks. Salaries between
	// them trigger both warnings.
	PFFloor    decimal.Decimal `json:"pf_floor"`
	ESICeiling decimal.Decimal `json:"esi_ceiling"`

	// ITCBlockedCategories are category substrings for which input tax
	// credit is blocked under Section 17(5).
	ITCBlockedCategories []string `json:"itc_blocked_categories"`
}

// DefaultRegime returns the built-in Indian tax regime constants.
func DefaultRegime() Regime {
	return Regime{
		GSTThreshold:       decimal.NewFromInt(200),
		DefaultGSTRate:     18,
		GSTAmountTolerance: decimal.NewFromInt(10),
		GSTRates: []GSTRate{
			{Keyword: "supplies", Rate: 18},
			{Keyword: "services", Rate: 18},
			{Keyword: "equipment", Rate: 18},
			{Keyword: "construction", Rate: 18},
			{Keyword: "food", Rate: 5},
			{Keyword: "medicines", Rate: 12},
		},
		TDSSections: []TDSSection{
			{
				Code:        "194C",
				Description: "Contractors",
				Threshold:   decimal.NewFromInt(30000),
				Rate:        1,
				Keywords:    []string{"contract", "construction"},
			},
			{
				Code:        "194J",
				Description: "Professional/Technical Services",
				Threshold:   decimal.NewFromInt(30000),
				Rate:        10,
				Keywords:    []string{"professional", "consultant", "service"},
			},
			{
				Code:        "194I",
				Description: "Rent",
				Threshold:   decimal.NewFromInt(240000),
				Rate:        10,
				Keywords:    []string{"rent", "lease"},
			},
			{
				Code:        "194H",
				Description: "Commission",
				Threshold:   decimal.NewFromInt(15000),
				Rate:        5,
				Keywords:    []string{"commission", "brokerage"},
			},
			{
				Code:              "194Q",
				Description:       "Purchase of Goods",
				Threshold:         decimal.NewFromInt(5000000),
				Rate:              0.1,
				Keywords:          []string{"goods", "purchase"},
				MinAnnualPurchase: decimal.NewFromInt(5000000),
			},
		},
		MSMEDueDays:          45,
		MSMEWarnDays:         30,
		PFFloor:              decimal.NewFromInt(15000),
		ESICeiling:           decimal.NewFromInt(21000),
		ITCBlockedCategories: []string{"food", "entertainment", "personal", "club", "health"},
	}
}

// LoadRegime overlays a JSON regime file onto the defaults. Absent fields
// keep their default values.
func LoadRegime(path string) (Regime, error) {
	regime := DefaultRegime()
	data, err := os.ReadFile(path)
	if err != nil {
		return Regime{}, fmt.Errorf("LoadRegime: reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &regime); err != nil {
		return Regime{}, fmt.Errorf("LoadRegime: parsing %s: %w", path, err)
	}
	return regime, nil
}

// RegimeFromEnv loads the regime file named by FINSENTRY_TAX_CONFIG, or the
// defaults when the variable is unset.
func RegimeFromEnv() (Regime, error) {
	path := os.Getenv("FINSENTRY_TAX_CONFIG")
	if path == "" {
		return DefaultRegime(), nil
	}
	return LoadRegime(path)
}

// Worker holds queue sizing for the batch analysis worker.
type Worker struct {
	QueueBuffer int
	Workers     int
}

// WorkerFromEnv reads worker settings from the environment with sane
// defaults.
func WorkerFromEnv() Worker {
	return Worker{
		QueueBuffer: envInt("FINSENTRY_QUEUE_BUFFER", 100),
		Workers:     envInt("FINSENTRY_WORKERS", 5),
	}
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
