// Package extract locates and coerces typed fields from raw source rows
// whose column names drift between reporting periods.
package extract

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/gridhound/gridhound/internal/model"
)

// Logical field names recognized by the extractor.
const (
	FieldQueueID  = "queue_id"
	FieldName     = "project_name"
	FieldCustomer = "customer"
	FieldUtility  = "utility"
	FieldCounty   = "county"
	FieldState    = "state"
	FieldFuel     = "fuel_type"
	FieldStatus   = "status"
	FieldCapacity = "capacity"
)

// Extractor resolves logical fields against a raw record using ordered
// candidate column names. Extraction never fails hard: a field that cannot
// be resolved degrades to its zero value.
type Extractor struct {
	fields        FieldMap
	minCapacityMW float64
}

// New creates an Extractor. Capacity values below minCapacityMW are treated
// as absent; the threshold itself is inclusive.
func New(fields FieldMap, minCapacityMW float64) *Extractor {
	if fields == nil {
		fields = DefaultFieldMap()
	}
	return &Extractor{fields: fields, minCapacityMW: minCapacityMW}
}

// Text returns the first candidate column that yields a specified value.
// Placeholder values ("Unknown", "N/A", "-", "TBD") count as unspecified.
func (e *Extractor) Text(rec model.RawRecord, field string) string {
	for _, candidate := range e.fields[field] {
		if v := lookup(rec, candidate); v != "" {
			return v
		}
	}
	return ""
}

// Capacity returns the record's capacity in MW. ok is false when no
// candidate column parses, the value is non-finite or negative, or the
// value falls below the configured minimum. A below-threshold value is a
// deliberate load-shedding filter, not an error.
func (e *Extractor) Capacity(rec model.RawRecord) (float64, bool) {
	for _, candidate := range e.fields[FieldCapacity] {
		raw := lookup(rec, candidate)
		if raw == "" {
			continue
		}
		mw, ok := ParseMW(raw)
		if !ok {
			continue
		}
		if mw < e.minCapacityMW {
			return 0, false
		}
		return mw, true
	}
	return 0, false
}

var embeddedNumber = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// ParseMW coerces a raw cell into a megawatt value. Thousands separators
// and surrounding whitespace are stripped; if the cleaned string still
// fails a direct float parse, the first embedded numeric substring is
// used. Non-finite and negative results are rejected.
func ParseMW(raw string) (float64, bool) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if s == "" {
		return 0, false
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		m := embeddedNumber.FindString(s)
		if m == "" {
			return 0, false
		}
		v, err = strconv.ParseFloat(m, 64)
		if err != nil {
			return 0, false
		}
	}

	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, false
	}
	return v, true
}

// lookup finds a candidate column in the record under tolerant key
// normalization and returns its cleaned value.
func lookup(rec model.RawRecord, candidate string) string {
	want := normalizeKey(candidate)
	for k, v := range rec {
		if normalizeKey(k) == want {
			return cleanValue(v)
		}
	}
	return ""
}

// normalizeKey lowercases and strips punctuation so "Capacity (MW)" and
// "capacity mw" resolve to the same column.
func normalizeKey(s string) string {
	var b strings.Builder
	prevSpace := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			prevSpace = false
		case r == ' ' || r == '_' || r == '-' || r == '/':
			if !prevSpace && b.Len() > 0 {
				b.WriteByte(' ')
				prevSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

func cleanValue(v string) string {
	v = strings.TrimSpace(v)
	switch strings.ToLower(v) {
	case "", "unknown", "n/a", "na", "-", "--", "tbd", "null", "none":
		return ""
	}
	return v
}
