package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
)

func TestDefaultRegime(t *testing.T) {
	regime := DefaultRegime()

	if !regime.GSTThreshold.Equal(decimal.NewFromInt(200)) {
		t.Errorf("GSTThreshold = %s, want 200", regime.GSTThreshold)
	}
	rates := make(map[string]int, len(regime.GSTRates))
	order := make([]string, 0, len(regime.GSTRates))
	for _, r := range regime.GSTRates {
		rates[r.Keyword] = r.Rate
		order = append(order, r.Keyword)
	}
	if rates["food"] != 5 {
		t.Errorf("food GST rate = %d, want 5", rates["food"])
	}
	// The general keywords precede the reduced-rate ones, so a category like
	// "food supplies" resolves to the supplies rate.
	if order[0] != "supplies" || order[4] != "food" {
		t.Errorf("GST keyword order = %v", order)
	}
	if regime.MSMEDueDays != 45 || regime.MSMEWarnDays != 30 {
		t.Errorf("MSME window = %d/%d, want 45/30", regime.MSMEDueDays, regime.MSMEWarnDays)
	}

	codes := make(map[string]TDSSection, len(regime.TDSSections))
	for _, s := range regime.TDSSections {
		codes[s.Code] = s
	}
	for _, code := range []string{"194C", "194J", "194I", "194H", "194Q"} {
		if _, ok := codes[code]; !ok {
			t.Errorf("TDS section %s missing", code)
		}
	}
	if !codes["194Q"].MinAnnualPurchase.Equal(decimal.NewFromInt(5000000)) {
		t.Errorf("194Q MinAnnualPurchase = %s, want 5000000", codes["194Q"].MinAnnualPurchase)
	}
}

func TestLoadRegime_Overlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regime.json")
	payload := `{"gst_threshold": "500", "msme_due_days": 60}`
	if err := os.WriteFile(path, []byte(payload), 0o600); err != nil {
		t.Fatal(err)
	}

	regime, err := LoadRegime(path)
	if err != nil {
		t.Fatalf("LoadRegime: %v", err)
	}
	if !regime.GSTThreshold.Equal(decimal.NewFromInt(500)) {
		t.Errorf("GSTThreshold = %s, want overlaid 500", regime.GSTThreshold)
	}
	if regime.MSMEDueDays != 60 {
		t.Errorf("MSMEDueDays = %d, want overlaid 60", regime.MSMEDueDays)
	}
	// Untouched fields keep their defaults.
	if regime.MSMEWarnDays != 30 {
		t.Errorf("MSMEWarnDays = %d, want default 30", regime.MSMEWarnDays)
	}
	if len(regime.TDSSections) != 5 {
		t.Errorf("TDSSections = %d, want default 5", len(regime.TDSSections))
	}
}

func TestLoadRegime_Errors(t *testing.T) {
	if _, err := LoadRegime(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("missing file accepted")
	}

	path := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(path, []byte("{nope"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadRegime(path); err == nil {
		t.Error("malformed file accepted")
	}
}

func TestRegimeFromEnv(t *testing.T) {
	t.Setenv("FINSENTRY_TAX_CONFIG", "")
	regime, err := RegimeFromEnv()
	if err != nil {
		t.Fatalf("RegimeFromEnv: %v", err)
	}
	if !regime.GSTThreshold.Equal(decimal.NewFromInt(200)) {
		t.Errorf("GSTThreshold = %s, want default 200", regime.GSTThreshold)
	}

	path := filepath.Join(t.TempDir(), "regime.json")
	if err := os.WriteFile(path, []byte(`{"default_gst_rate": 12}`), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FINSENTRY_TAX_CONFIG", path)
	regime, err = RegimeFromEnv()
	if err != nil {
		t.Fatalf("RegimeFromEnv: %v", err)
	}
	if regime.DefaultGSTRate != 12 {
		t.Errorf("DefaultGSTRate = %d, want 12", regime.DefaultGSTRate)
	}
}

func TestWorkerFromEnv(t *testing.T) {
	t.Setenv("FINSENTRY_QUEUE_BUFFER", "")
	t.Setenv("FINSENTRY_WORKERS", "")
	w := WorkerFromEnv()
	if w.QueueBuffer != 100 || w.Workers != 5 {
		t.Errorf("defaults = %+v, want 100/5", w)
	}

	t.Setenv("FINSENTRY_QUEUE_BUFFER", "8")
	t.Setenv("FINSENTRY_WORKERS", "junk")
	w = WorkerFromEnv()
	if w.QueueBuffer != 8 {
		t.Errorf("QueueBuffer = %d, want 8", w.QueueBuffer)
	}
	if w.Workers != 5 {
		t.Errorf("Workers = %d, want fallback 5", w.Workers)
	}
}
