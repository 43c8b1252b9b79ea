package normalize

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dhruvbajaj/finsentry/internal/domain"
)

func testNormalizer() *Normalizer {
	n := New(zerolog.Nop())
	n.now = func() time.Time {
		return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	}
	return n
}

// requiredFieldsSet checks the normalizer contract: ID, Vendor, Date, Mode
// and Type are always populated and the amount is never negative.
func requiredFieldsSet(t *testing.T, txn domain.Transaction) {
	t.Helper()
	if txn.ID == "" {
		t.Error("ID is empty")
	}
	if txn.Vendor == "" {
		t.Error("Vendor is empty")
	}
	if txn.Date == "" {
		t.Error("Date is empty")
	}
	if _, err := domain.ParseTime(txn.Date); err != nil {
		t.Errorf("Date %q is not ISO 8601: %v", txn.Date, err)
	}
	if txn.Mode == "" {
		t.Error("Mode is empty")
	}
	if txn.Type != domain.TxnCredit && txn.Type != domain.TxnDebit {
		t.Errorf("Type = %q", txn.Type)
	}
	if txn.Amount.IsNegative() {
		t.Errorf("Amount %s is negative", txn.Amount)
	}
}

func TestNormalize_StructuredFull(t *testing.T) {
	n := testNormalizer()
	raw := Structured(map[string]any{
		"id":         "TXN_001",
		"vendor":     "ABC Traders",
		"amount":     "₹50,000.00",
		"utr":        "UTR12345678",
		"date":       "2025-03-08",
		"mode":       "UPI",
		"type":       "debit",
		"gst_rate":   "18%",
		"gst_amount": "9,000",
		"gstin":      "27AAPFU0939F1ZV",
		"category":   "supplies",
	})

	got := n.Normalize(raw, SourceJSON)
	requiredFieldsSet(t, got)

	if got.ID != "TXN_001" {
		t.Errorf("ID = %s", got.ID)
	}
	if got.Vendor != "ABC Traders" {
		t.Errorf("Vendor = %s", got.Vendor)
	}
	if !got.Amount.Equal(decimal.NewFromInt(50000)) {
		t.Errorf("Amount = %s, want 50000", got.Amount)
	}
	if got.UTR != "UTR12345678" {
		t.Errorf("UTR = %s", got.UTR)
	}
	if got.Date != "2025-03-08T00:00:00" {
		t.Errorf("Date = %s", got.Date)
	}
	if got.Mode != domain.ModeUPI {
		t.Errorf("Mode = %s", got.Mode)
	}
	if got.Type != domain.TxnDebit {
		t.Errorf("Type = %s", got.Type)
	}
	if got.GST == nil || got.GST.Rate == nil || *got.GST.Rate != 18 {
		t.Errorf("GST = %+v", got.GST)
	}
	if got.GST.Amount == nil || !got.GST.Amount.Equal(decimal.NewFromInt(9000)) {
		t.Errorf("GST amount = %v", got.GST.Amount)
	}
	if got.GST.GSTIN != "27AAPFU0939F1ZV" {
		t.Errorf("GSTIN = %s", got.GST.GSTIN)
	}
	if got.Category != "supplies" {
		t.Errorf("Category = %s", got.Category)
	}
}

func TestNormalize_StructuredDegraded(t *testing.T) {
	n := testNormalizer()

	tests := []struct {
		name   string
		fields map[string]any
	}{
		{"empty record", map[string]any{}},
		{"junk values", map[string]any{"amount": "not-a-number", "date": "??", "vendor": ""}},
		{"negative amount flips positive", map[string]any{"amount": "-2500"}},
		{"nil values", map[string]any{"vendor": nil, "amount": nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := n.Normalize(Structured(tt.fields), SourceJSON)
			requiredFieldsSet(t, got)
		})
	}
}

func TestNormalize_GeneratedIDShape(t *testing.T) {
	n := testNormalizer()
	got := n.Normalize(Structured(map[string]any{}), SourceJSON)

	if !strings.HasPrefix(got.ID, "TXN_") || len(got.ID) != 12 {
		t.Errorf("generated ID = %q, want TXN_ plus 8 hex chars", got.ID)
	}
	if got.ID != strings.ToUpper(got.ID) {
		t.Errorf("generated ID %q is not upper case", got.ID)
	}
}

func TestNormalize_AliasKeys(t *testing.T) {
	n := testNormalizer()
	raw := Structured(map[string]any{
		"txn_id":   "TXN_ALIAS",
		"party":    "Alias Vendor",
		"value":    42000.0,
		"txn_date": "15/03/2025",
		"cr_dr":    "CR",
	})

	got := n.Normalize(raw, SourceJSON)
	if got.ID != "TXN_ALIAS" {
		t.Errorf("ID = %s", got.ID)
	}
	if got.Vendor != "Alias Vendor" {
		t.Errorf("Vendor = %s", got.Vendor)
	}
	if !got.Amount.Equal(decimal.NewFromInt(42000)) {
		t.Errorf("Amount = %s", got.Amount)
	}
	if got.Date != "2025-03-15T00:00:00" {
		t.Errorf("Date = %s", got.Date)
	}
	if got.Type != domain.TxnCredit {
		t.Errorf("Type = %s, want credit from cr_dr marker", got.Type)
	}
}

func TestNormalize_AmountSignFallback(t *testing.T) {
	n := testNormalizer()

	credit := n.Normalize(Structured(map[string]any{"amount": "1500"}), SourceJSON)
	if credit.Type != domain.TxnCredit {
		t.Errorf("positive amount → Type = %s, want credit", credit.Type)
	}

	debit := n.Normalize(Structured(map[string]any{"amount": "-1500"}), SourceJSON)
	if debit.Type != domain.TxnDebit {
		t.Errorf("negative amount → Type = %s, want debit", debit.Type)
	}
	if !debit.Amount.Equal(decimal.NewFromInt(1500)) {
		t.Errorf("Amount = %s, want absolute 1500", debit.Amount)
	}
}

func TestNormalize_OCRText(t *testing.T) {
	n := testNormalizer()
	text := `Invoice from M/s Sharma Suppliers, Mumbai
Amount: Rs. 45,000.00
Date: 08/03/2025
UTR123456789 via NEFT
GST @ 18% GST: Rs. 6,864
GSTIN 27AAPFU0939F1ZV
Being payment of office supplies`

	got := n.Normalize(Text(text), SourceOCR)
	requiredFieldsSet(t, got)

	if got.Vendor != "Sharma Suppliers" {
		t.Errorf("Vendor = %q", got.Vendor)
	}
	if !got.Amount.Equal(decimal.NewFromFloat(45000)) {
		t.Errorf("Amount = %s, want 45000", got.Amount)
	}
	if got.Date != "2025-03-08T00:00:00" {
		t.Errorf("Date = %s", got.Date)
	}
	if got.Mode != domain.ModeNEFT {
		t.Errorf("Mode = %s, want NEFT", got.Mode)
	}
	if got.Type != domain.TxnDebit {
		t.Errorf("Type = %s, want debit", got.Type)
	}
	if got.GST == nil || got.GST.Rate == nil || *got.GST.Rate != 18 {
		t.Errorf("GST = %+v", got.GST)
	}
	if got.GST.GSTIN != "27AAPFU0939F1ZV" {
		t.Errorf("GSTIN = %q", got.GST.GSTIN)
	}
	if got.Category != "supplies" {
		t.Errorf("Category = %q", got.Category)
	}
}

func TestNormalize_TextWithoutMarkers(t *testing.T) {
	n := testNormalizer()
	got := n.Normalize(Text("completely unintelligible scan output"), SourceOCR)
	requiredFieldsSet(t, got)

	if got.Vendor != "Unknown Vendor" {
		t.Errorf("Vendor = %q", got.Vendor)
	}
	if !got.Amount.IsZero() {
		t.Errorf("Amount = %s, want 0", got.Amount)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	n := testNormalizer()
	raw := Structured(map[string]any{
		"id":     "TXN_REPEAT",
		"vendor": "ABC Traders",
		"amount": "1000",
		"date":   "2025-03-08",
		"type":   "debit",
	})

	first := n.Normalize(raw, SourceJSON)
	second := n.Normalize(Structured(map[string]any{
		"id":     first.ID,
		"vendor": first.Vendor,
		"amount": first.Amount.String(),
		"utr":    first.UTR,
		"date":   first.Date,
		"mode":   string(first.Mode),
		"type":   string(first.Type),
	}), SourceJSON)

	if first.ID != second.ID || first.Vendor != second.Vendor || !first.Amount.Equal(second.Amount) ||
		first.Date != second.Date || first.Mode != second.Mode || first.Type != second.Type {
		t.Errorf("re-normalization changed the record:\nfirst  %+v\nsecond %+v", first, second)
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		raw  Raw
		want Source
	}{
		{"structured is json", Structured(map[string]any{"a": 1}), SourceJSON},
		{"row is csv", Row("a", "b"), SourceCSV},
		{"invoice text is pdf", Text("Tax Invoice No 42"), SourcePDF},
		{"address text is email", Text("from: accounts@vendor.in"), SourceEmail},
		{"other text is ocr", Text("scanned receipt fragment"), SourceOCR},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Detect(tt.raw); got != tt.want {
				t.Errorf("Detect = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFromJSON(t *testing.T) {
	obj, err := FromJSON(json.RawMessage(`{"vendor":"X","amount":100}`))
	if err != nil {
		t.Fatalf("object: %v", err)
	}
	if Detect(obj) != SourceJSON {
		t.Errorf("object detected as %s", Detect(obj))
	}

	row, err := FromJSON(json.RawMessage(`["TXN_1","X","100"]`))
	if err != nil {
		t.Fatalf("array: %v", err)
	}
	if Detect(row) != SourceCSV {
		t.Errorf("array detected as %s", Detect(row))
	}

	text, err := FromJSON(json.RawMessage(`"Paid Rs 500 to chai stall"`))
	if err != nil {
		t.Fatalf("string: %v", err)
	}
	if Detect(text) != SourceOCR {
		t.Errorf("string detected as %s", Detect(text))
	}

	if _, err := FromJSON(json.RawMessage(`42`)); err == nil {
		t.Error("numeric payload accepted")
	}
	if _, err := FromJSON(json.RawMessage(`{broken`)); err == nil {
		t.Error("malformed payload accepted")
	}
}

func TestNormalizeBatch_SkipsInvalid(t *testing.T) {
	n := testNormalizer()
	raws := []Raw{
		Structured(map[string]any{"id": "TXN_A", "amount": "100"}),
		{}, // zero value carries no variant
		Text("Paid Rs 200 to tea stall"),
	}

	got := n.NormalizeBatch(raws, SourceAuto)
	if len(got) != 2 {
		t.Fatalf("normalized %d records, want 2", len(got))
	}
	if got[0].ID != "TXN_A" {
		t.Errorf("first ID = %s", got[0].ID)
	}
	for _, txn := range got {
		requiredFieldsSet(t, txn)
	}
}
