package normalize

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dhruvbajaj/finsentry/internal/domain"
)

// Patterns for unstructured text (OCR output, invoice bodies, emails).
var (
	utrPattern    = regexp.MustCompile(`UTR[A-Za-z0-9]{6,}|[A-Z0-9]{12,}`)
	gstinPattern  = regexp.MustCompile(`\d{2}[A-Z]{5}\d{4}[A-Z][A-Z0-9]Z[A-Z0-9]`)
	gstinAnchored = regexp.MustCompile(`^\d{2}[A-Z]{5}\d{4}[A-Z][A-Z0-9]Z[A-Z0-9]`)
	amountPattern = regexp.MustCompile(`(?:Rs\.?|₹|INR)?\s*(\d{1,3}(?:,\d{3})*(?:\.\d{2})?)`)

	vendorPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:to|payee|vendor|merchant)[:|\s]+([A-Za-z\s&.]+)`),
		regexp.MustCompile(`(?i)M/s\.?\s+([A-Za-z\s&.]+)`),
		regexp.MustCompile(`([A-Z][a-z]+(?:\s+[A-Z][a-z]+){1,3})\s+(?:Pvt|Ltd|LLP)`),
	}
	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\d{2}[-/]\d{2}[-/]\d{4}`),
		regexp.MustCompile(`\d{4}[-/]\d{2}[-/]\d{2}`),
		regexp.MustCompile(`(?i)\d{2}\s+(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+\d{4}`),
	}
	gstRatePattern = regexp.MustCompile(`(?i)GST\s*[@:]\s*(\d+)%`)
	gstAmtPattern  = regexp.MustCompile(`(?i)GST[:\s]*(?:Rs\.?|₹)?\s*(\d+(?:,\d{3})*(?:\.\d{2})?)`)
)

// Text category keywords, matched in order.
var textCategories = []struct {
	name     string
	keywords []string
}{
	{"supplies", []string{"supplies", "material", "goods", "inventory"}},
	{"salary", []string{"salary", "wages", "payroll", "compensation"}},
	{"rent", []string{"rent", "lease"}},
	{"utilities", []string{"electricity", "water", "internet", "telecom"}},
	{"services", []string{"service", "consulting", "professional"}},
	{"equipment", []string{"equipment", "machinery", "tools"}},
}

// fromText extracts every canonical field from unstructured text via
// pattern search.
func (n *Normalizer) fromText(text string) domain.Transaction {
	return domain.Transaction{
		ID:       generateID(),
		Vendor:   vendorFromText(text),
		Amount:   amountFromText(text),
		UTR:      utrPattern.FindString(text),
		Date:     n.dateFromText(text),
		Mode:     modeFromText(text),
		Type:     typeFromText(text),
		GST:      gstFromText(text),
		Category: categoryFromText(text),
	}
}

func vendorFromText(text string) string {
	for _, pat := range vendorPatterns {
		if m := pat.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return "Unknown Vendor"
}

// amountFromText takes the maximum currency-shaped number in the text. OCR
// often yields several numbers; the largest is assumed to be the total.
func amountFromText(text string) decimal.Decimal {
	max := decimal.Zero
	for _, m := range amountPattern.FindAllStringSubmatch(text, -1) {
		d, err := parseAmount(m[1])
		if err != nil {
			continue
		}
		if d.GreaterThan(max) {
			max = d
		}
	}
	return max
}

func (n *Normalizer) dateFromText(text string) string {
	for _, pat := range datePatterns {
		if m := pat.FindString(text); m != "" {
			return n.parseDate(m)
		}
	}
	return n.now().Format("2006-01-02T15:04:05")
}

func modeFromText(text string) domain.PaymentMode {
	upper := strings.ToUpper(text)
	for _, mode := range domain.SupportedModes() {
		if strings.Contains(upper, string(mode)) {
			return mode
		}
	}
	return domain.ModeBankTransfer
}

func typeFromText(text string) domain.TxnType {
	lower := strings.ToLower(text)
	for _, kw := range []string{"received", "credit", "deposited", "cr"} {
		if strings.Contains(lower, kw) {
			return domain.TxnCredit
		}
	}
	for _, kw := range []string{"paid", "debit", "withdrawn", "dr", "payment"} {
		if strings.Contains(lower, kw) {
			return domain.TxnDebit
		}
	}
	return domain.TxnDebit
}

func gstFromText(text string) *domain.GSTInfo {
	info := &domain.GSTInfo{}

	if m := gstinPattern.FindString(text); m != "" {
		info.GSTIN = m
	}
	if m := gstRatePattern.FindStringSubmatch(text); m != nil {
		if d, err := decimal.NewFromString(m[1]); err == nil {
			rate := int(d.IntPart())
			info.Rate = &rate
		}
	}
	if m := gstAmtPattern.FindStringSubmatch(text); m != nil {
		if d, err := parseAmount(m[1]); err == nil {
			info.Amount = &d
		}
	}

	if info.Rate == nil && info.Amount == nil && info.GSTIN == "" {
		return nil
	}
	return info
}

func categoryFromText(text string) string {
	lower := strings.ToLower(text)
	for _, cat := range textCategories {
		for _, kw := range cat.keywords {
			if strings.Contains(lower, kw) {
				return cat.name
			}
		}
	}
	return ""
}
