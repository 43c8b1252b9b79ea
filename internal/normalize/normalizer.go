package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dhruvbajaj/finsentry/internal/domain"
)

// Normalizer converts heterogeneous raw input into the canonical
// transaction record. Normalize never fails outward: any internal parse
// error degrades to a safe-default record so the pipeline always has a
// transaction to work with.
type Normalizer struct {
	log zerolog.Logger
	now func() time.Time
}

// New creates a Normalizer logging through the given logger.
func New(log zerolog.Logger) *Normalizer {
	return &Normalizer{log: log, now: time.Now}
}

// Alias keys tried in order for each structured field; the first present
// non-empty value wins.
var (
	idKeys       = []string{"id", "transaction_id", "txn_id", "ref_no", "reference"}
	vendorKeys   = []string{"vendor", "party", "supplier", "merchant", "payee", "to", "beneficiary", "name"}
	amountKeys   = []string{"amount", "value", "total", "sum", "debit", "credit", "txn_amount"}
	utrKeys      = []string{"utr", "ref", "reference", "txn_ref", "transaction_ref", "ref_no"}
	dateKeys     = []string{"date", "txn_date", "transaction_date", "timestamp", "datetime"}
	modeKeys     = []string{"mode", "payment_mode", "method", "type", "channel"}
	typeKeys     = []string{"type", "txn_type", "transaction_type", "cr_dr"}
	gstRateKeys  = []string{"gst_rate", "gst", "tax_rate", "igst", "cgst", "sgst"}
	gstAmtKeys   = []string{"gst_amount", "tax_amount", "gst_value", "tax"}
	gstinKeys    = []string{"gstin", "gst_number", "gst_no"}
	categoryKeys = []string{"category", "type", "purpose", "description", "narration"}
)

// dateLayouts is the fixed ordered list of accepted date shapes.
var dateLayouts = []string{
	"2006-01-02",
	"02-01-2006",
	"02/01/2006",
	"2006/01/02",
	"02-01-06",
	"02 January 2006",
	"02 Jan 2006",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// Normalize converts one raw input into a canonical transaction. The hint
// selects the extraction strategy; SourceAuto detects it from the input
// shape.
func (n *Normalizer) Normalize(raw Raw, hint Source) domain.Transaction {
	if hint == SourceAuto || hint == "" {
		hint = Detect(raw)
	}

	switch {
	case hint == SourceJSON && raw.kind == kindStructured:
		return n.fromStructured(raw.fields)
	case hint == SourceCSV && (raw.kind == kindRow || raw.kind == kindText):
		return n.fromRow(raw)
	case (hint == SourceOCR || hint == SourcePDF || hint == SourceEmail) && raw.kind == kindText:
		return n.fromText(raw.text)
	case raw.kind == kindStructured:
		return n.fromStructured(raw.fields)
	case raw.kind == kindRow:
		return n.fromRow(raw)
	case raw.kind == kindText:
		return n.fromText(raw.text)
	default:
		return n.safeDefault()
	}
}

// NormalizeBatch normalizes each item independently. Items that cannot be
// interpreted at all are skipped with a log line rather than aborting the
// batch.
func (n *Normalizer) NormalizeBatch(raws []Raw, hint Source) []domain.Transaction {
	out := make([]domain.Transaction, 0, len(raws))
	for i, raw := range raws {
		if raw.kind == kindInvalid {
			n.log.Warn().Int("index", i).Msg("skipping invalid raw entry")
			continue
		}
		out = append(out, n.Normalize(raw, hint))
	}
	return out
}

// fromStructured extracts each canonical field by ordered alias lookup.
func (n *Normalizer) fromStructured(fields map[string]any) domain.Transaction {
	return domain.Transaction{
		ID:       n.extractID(fields),
		Vendor:   extractVendor(fields),
		Amount:   extractAmount(fields),
		UTR:      extractUTR(fields),
		Date:     n.extractDate(fields),
		Mode:     extractMode(fields),
		Type:     extractType(fields),
		GST:      extractGST(fields),
		Category: extractCategory(fields),
	}
}

// fromRow routes a delimited row through the structured path under
// positional col_N keys. Rows whose cells happen to carry labeled values
// normalize fully; purely positional rows fall back to the generic pattern
// matching inside each extractor. Best effort rather than schema driven.
func (n *Normalizer) fromRow(raw Raw) domain.Transaction {
	cells := raw.cells
	if raw.kind == kindText {
		for _, part := range strings.Split(raw.text, ",") {
			cells = append(cells, strings.TrimSpace(part))
		}
	}
	fields := make(map[string]any, len(cells))
	for i, cell := range cells {
		fields[fmt.Sprintf("col_%d", i)] = cell
	}
	return n.fromStructured(fields)
}

func (n *Normalizer) extractID(fields map[string]any) string {
	for _, key := range idKeys {
		if s := stringField(fields, key); s != "" {
			return s
		}
	}
	return generateID()
}

func generateID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "TXN_" + strings.ToUpper(hex[:8])
}

func extractVendor(fields map[string]any) string {
	for _, key := range vendorKeys {
		if s := stringField(fields, key); s != "" {
			return strings.TrimSpace(s)
		}
	}
	return "Unknown Vendor"
}

func extractAmount(fields map[string]any) decimal.Decimal {
	for _, key := range amountKeys {
		v, ok := fields[key]
		if !ok {
			continue
		}
		if d, err := parseAmount(stringify(v)); err == nil {
			return d.Abs()
		}
	}
	return decimal.Zero
}

// parseAmount parses a rupee amount, tolerating currency markers and
// thousands separators.
func parseAmount(s string) (decimal.Decimal, error) {
	cleaned := strings.NewReplacer(",", "", "₹", "", "Rs.", "", "Rs", "", "INR", "").Replace(s)
	return decimal.NewFromString(strings.TrimSpace(cleaned))
}

func extractUTR(fields map[string]any) string {
	for _, key := range utrKeys {
		if s := stringField(fields, key); s != "" {
			return s
		}
	}
	// Fall back to scanning every string value for a reference shape.
	for _, v := range fields {
		if s, ok := v.(string); ok {
			if m := utrPattern.FindString(s); m != "" {
				return m
			}
		}
	}
	return ""
}

func (n *Normalizer) extractDate(fields map[string]any) string {
	for _, key := range dateKeys {
		if s := stringField(fields, key); s != "" {
			return n.parseDate(s)
		}
	}
	return n.now().Format("2006-01-02T15:04:05")
}

// parseDate normalizes any known date shape to ISO 8601, falling back to
// "now" when nothing matches.
func (n *Normalizer) parseDate(s string) string {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02T15:04:05")
		}
	}
	return n.now().Format("2006-01-02T15:04:05")
}

func extractMode(fields map[string]any) domain.PaymentMode {
	for _, key := range modeKeys {
		s := stringField(fields, key)
		if s == "" {
			continue
		}
		upper := strings.ToUpper(s)
		for _, mode := range domain.SupportedModes() {
			if strings.Contains(upper, string(mode)) {
				return mode
			}
		}
	}
	return domain.ModeBankTransfer
}

func extractType(fields map[string]any) domain.TxnType {
	for _, key := range typeKeys {
		s := strings.ToLower(stringField(fields, key))
		if s == "" {
			continue
		}
		if strings.Contains(s, "credit") || strings.Contains(s, "cr") || strings.Contains(s, "received") {
			return domain.TxnCredit
		}
		if strings.Contains(s, "debit") || strings.Contains(s, "dr") || strings.Contains(s, "paid") || strings.Contains(s, "payment") {
			return domain.TxnDebit
		}
	}
	// Direction from the sign of the raw amount when no type key decides.
	for _, key := range []string{"amount", "value"} {
		if v, ok := fields[key]; ok {
			if d, err := parseAmount(stringify(v)); err == nil {
				if d.IsPositive() {
					return domain.TxnCredit
				}
				return domain.TxnDebit
			}
		}
	}
	return domain.TxnDebit
}

func extractGST(fields map[string]any) *domain.GSTInfo {
	info := &domain.GSTInfo{}

	for _, key := range gstRateKeys {
		s := stringField(fields, key)
		if s == "" {
			continue
		}
		if d, err := decimal.NewFromString(strings.TrimSuffix(strings.TrimSpace(s), "%")); err == nil {
			rate := int(d.IntPart())
			info.Rate = &rate
			break
		}
	}
	for _, key := range gstAmtKeys {
		s := stringField(fields, key)
		if s == "" {
			continue
		}
		if d, err := parseAmount(s); err == nil {
			info.Amount = &d
			break
		}
	}
	for _, key := range gstinKeys {
		s := stringField(fields, key)
		if s == "" {
			continue
		}
		if gstinAnchored.MatchString(s) {
			info.GSTIN = s
			break
		}
	}

	if info.Rate == nil && info.Amount == nil && info.GSTIN == "" {
		return nil
	}
	return info
}

func extractCategory(fields map[string]any) string {
	for _, key := range categoryKeys {
		if s := stringField(fields, key); s != "" {
			return s
		}
	}
	return ""
}

// safeDefault is the degraded record returned when parsing fails entirely:
// zero amount, unknown vendor, debit, current timestamp, bank transfer.
func (n *Normalizer) safeDefault() domain.Transaction {
	return domain.Transaction{
		ID:     generateID(),
		Vendor: "Unknown Vendor",
		Amount: decimal.Zero,
		Date:   n.now().Format("2006-01-02T15:04:05"),
		Mode:   domain.ModeBankTransfer,
		Type:   domain.TxnDebit,
	}
}

// stringField returns the value under key rendered as a trimmed string, or
// "" when absent or empty.
func stringField(fields map[string]any, key string) string {
	v, ok := fields[key]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(stringify(v))
}
