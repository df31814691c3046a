// Package filter turns loosely-typed search filters into a conjunctive
// predicate over the indexed catalog metadata.
//
// Every key is parsed independently. A malformed value drops only its own
// clause; it never fails the whole translation.
package filter

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Request keys accepted by Parse and Translate.
const (
	KeyMaxPrice           = "maxPrice"
	KeyCategoryName       = "categoryName"
	KeyMinRating          = "minRating"
	KeyMinPublicationDate = "minPublicationDate"
)

// Metadata fields the clauses apply to. Ingestion must write these keys.
const (
	FieldPrice    = "price"
	FieldCategory = "category"
	FieldRating   = "rating"
	FieldPubDate  = "pub_date"
)

// Op is a comparison operator, spelled the way Chroma-style where documents spell it.
type Op string

const (
	OpEq  Op = "$eq"
	OpLte Op = "$lte"
	OpGte Op = "$gte"
)

// Filters is the normalized form of a filter request. Zero values mean "absent".
type Filters struct {
	MaxPrice           int
	CategoryName       string
	MinRating          float64
	MinPublicationDate int // YYYYMMDD
}

// Empty reports whether no filter survived parsing.
func (f Filters) Empty() bool {
	return f == Filters{}
}

// Predicate is a conjunction of one or more clauses. A nil Predicate matches everything.
type Predicate interface {
	Clauses() []Clause
	// Where renders the predicate as a Chroma-style where document.
	Where() map[string]any
}

// Clause is a single field comparison.
type Clause struct {
	Field string
	Op    Op
	Value any // int for price/pub_date, float64 for rating, string for category
}

func (c Clause) Clauses() []Clause { return []Clause{c} }

func (c Clause) Where() map[string]any {
	return map[string]any{c.Field: map[string]any{string(c.Op): c.Value}}
}

// And requires every clause to hold.
type And []Clause

func (a And) Clauses() []Clause { return []Clause(a) }

func (a And) Where() map[string]any {
	parts := make([]map[string]any, 0, len(a))
	for _, c := range a {
		parts = append(parts, c.Where())
	}
	return map[string]any{"$and": parts}
}

// Parse normalizes a raw filter mapping, silently dropping malformed entries.
func Parse(raw map[string]any) Filters {
	var f Filters
	if raw == nil {
		return f
	}

	if n, ok := asInt(raw[KeyMaxPrice]); ok && n > 0 {
		f.MaxPrice = n
	}
	if s, ok := raw[KeyCategoryName].(string); ok {
		f.CategoryName = strings.TrimSpace(s)
	}
	if r, ok := asFloat(raw[KeyMinRating]); ok && r > 0 && r <= 10 {
		f.MinRating = r
	}
	if s, ok := raw[KeyMinPublicationDate].(string); ok {
		f.MinPublicationDate = parseDate(s)
	}

	return f
}

// Translate converts raw filters to a Predicate, or nil when no clause is valid.
func Translate(raw map[string]any) Predicate {
	return Parse(raw).Predicate()
}

// Predicate builds the conjunctive predicate for f: nil, a single Clause, or And.
func (f Filters) Predicate() Predicate {
	var clauses []Clause
	if f.MaxPrice > 0 {
		clauses = append(clauses, Clause{Field: FieldPrice, Op: OpLte, Value: f.MaxPrice})
	}
	if f.CategoryName != "" {
		clauses = append(clauses, Clause{Field: FieldCategory, Op: OpEq, Value: f.CategoryName})
	}
	if f.MinRating > 0 {
		clauses = append(clauses, Clause{Field: FieldRating, Op: OpGte, Value: f.MinRating})
	}
	if f.MinPublicationDate > 0 {
		clauses = append(clauses, Clause{Field: FieldPubDate, Op: OpGte, Value: f.MinPublicationDate})
	}

	switch len(clauses) {
	case 0:
		return nil
	case 1:
		return clauses[0]
	default:
		return And(clauses)
	}
}

// toMap renders f back into request form, omitting absent values.
func (f Filters) toMap() map[string]any {
	out := map[string]any{}
	if f.MaxPrice > 0 {
		out[KeyMaxPrice] = f.MaxPrice
	}
	if f.CategoryName != "" {
		out[KeyCategoryName] = f.CategoryName
	}
	if f.MinRating > 0 {
		out[KeyMinRating] = f.MinRating
	}
	if f.MinPublicationDate > 0 {
		d := strconv.Itoa(f.MinPublicationDate)
		out[KeyMinPublicationDate] = d[:4] + "-" + d[4:6] + "-" + d[6:]
	}
	return out
}

// parseDate strips separators from a YYYY-MM-DD style date and returns it as
// an 8-digit integer, or 0 if the result is not exactly 8 digits.
func parseDate(s string) int {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer("-", "", "/", "", ".", "", " ", "").Replace(s)
	if len(s) != 8 {
		return 0
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil && !math.IsNaN(f)
	}
	return 0, false
}
