package normalize

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Source identifies where a raw record came from. It selects the extraction
// strategy; SourceAuto defers to Detect.
type Source string

const (
	SourceAuto  Source = "auto"
	SourceJSON  Source = "json"
	SourceCSV   Source = "csv"
	SourcePDF   Source = "pdf"
	SourceEmail Source = "email"
	SourceOCR   Source = "ocr"
)

type rawKind int

const (
	kindInvalid rawKind = iota
	kindStructured
	kindRow
	kindText
)

// Raw is a tagged-variant raw transaction input: a structured record, a
// delimited row, or free text. Construct with Structured, Row, or Text.
type Raw struct {
	kind   rawKind
	fields map[string]any
	cells  []string
	text   string
}

// Structured wraps an arbitrary-shaped record (decoded JSON object, API
// payload, and so on).
func Structured(fields map[string]any) Raw {
	return Raw{kind: kindStructured, fields: fields}
}

// Row wraps one delimited row as positional cells.
func Row(cells ...string) Raw {
	return Raw{kind: kindRow, cells: cells}
}

// Text wraps unstructured text: OCR output, an invoice body, an email.
func Text(text string) Raw {
	return Raw{kind: kindText, text: text}
}

// Detect implements source auto-detection: structured records are json,
// rows are csv, and text is classified by content (invoice/bill markers →
// pdf, address markers → email, anything else → ocr).
func Detect(raw Raw) Source {
	switch raw.kind {
	case kindStructured:
		return SourceJSON
	case kindRow:
		return SourceCSV
	case kindText:
		lower := strings.ToLower(raw.text)
		if strings.Contains(lower, "invoice") || strings.Contains(lower, "bill") {
			return SourcePDF
		}
		if strings.Contains(raw.text, "@") || strings.Contains(lower, "from:") {
			return SourceEmail
		}
		return SourceOCR
	}
	return SourceJSON
}

// FromJSON maps a JSON value onto the matching Raw variant: an object
// becomes Structured, an array becomes Row, a string becomes Text.
func FromJSON(data json.RawMessage) (Raw, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return Raw{}, fmt.Errorf("FromJSON: %w", err)
	}
	switch val := v.(type) {
	case map[string]any:
		return Structured(val), nil
	case []any:
		cells := make([]string, len(val))
		for i, c := range val {
			cells[i] = stringify(c)
		}
		return Row(cells...), nil
	case string:
		return Text(val), nil
	default:
		return Raw{}, fmt.Errorf("FromJSON: unsupported input type %T", v)
	}
}

func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return ""
	case float64:
		// Render integral JSON numbers without a trailing ".000000".
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", val), "0"), ".")
	default:
		return fmt.Sprintf("%v", val)
	}
}
