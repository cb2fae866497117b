package example

import (
	"encoding/binary"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/mark3labs/swagger2har/internal/spec"
)

const (
	sampleDateValue     = "2000-01-02"
	sampleDateTimeValue = "2000-01-02T15:04:05Z"
	sampleUUIDValue     = "00000000-0000-4000-8000-000000000000"
	placeholderString   = "string"

	// seededSpan is the width of the range drawn from when a seeded
	// generator meets a number with at most one bound.
	seededSpan = 100
	// maxSeededIntSpan keeps integer draws exact in float64.
	maxSeededIntSpan = 1 << 52
)

var formatLiterals = map[string]string{
	"date":                  sampleDateValue,
	"date-time":             sampleDateTimeValue,
	"datetime":              sampleDateTimeValue,
	"time":                  "15:04:05Z",
	"duration":              "P1D",
	"email":                 "user@example.com",
	"idn-email":             "user@example.com",
	"uuid":                  sampleUUIDValue,
	"uri":                   "https://example.com/resource",
	"url":                   "https://example.com/resource",
	"iri":                   "https://example.com/resource",
	"uri-reference":         "/resource",
	"iri-reference":         "/resource",
	"uri-template":          "https://example.com/resource/{id}",
	"hostname":              "example.com",
	"idn-hostname":          "example.com",
	"ipv4":                  "127.0.0.1",
	"ipv6":                  "2001:db8::1",
	"byte":                  "c3RyaW5n",
	"binary":                "binary",
	"password":              "********",
	"regex":                 "^.*$",
	"json-pointer":          "/resource",
	"relative-json-pointer": "0/resource",
	"int32":                 "0",
	"int64":                 "0",
}

func (r *run) str(node *spec.Schema) string {
	format := strings.ToLower(node.Format)
	if format == "uuid" && r.rng != nil {
		if id, err := uuid.NewRandomFromReader(rngReader{r}); err == nil {
			return id.String()
		}
	}
	if lit, ok := formatLiterals[format]; ok {
		return lit
	}
	s := placeholderString
	if minLen := int(node.MinLength); minLen > len(s) {
		s = strings.Repeat(placeholderString, minLen/len(placeholderString)+1)[:minLen]
	}
	if node.MaxLength != nil && uint64(len(s)) > *node.MaxLength {
		s = s[:*node.MaxLength]
	}
	return s
}

// rngReader adapts the run's random source to io.Reader for uuid.
type rngReader struct{ r *run }

func (rr rngReader) Read(p []byte) (int, error) {
	var buf [8]byte
	for i := 0; i < len(p); i += 8 {
		binary.LittleEndian.PutUint64(buf[:], rr.r.rng.Uint64())
		copy(p[i:], buf[:])
	}
	return len(p), nil
}

// bounds returns the inclusive range of the node, tightened for exclusive
// bounds by step.
func bounds(node *spec.Schema, step float64) (lo, hi float64, hasLo, hasHi bool) {
	if node.Minimum != nil {
		lo, hasLo = *node.Minimum, true
		if node.ExclusiveMinimum {
			lo += step
		}
	}
	if node.Maximum != nil {
		hi, hasHi = *node.Maximum, true
		if node.ExclusiveMaximum {
			hi -= step
		}
	}
	return lo, hi, hasLo, hasHi
}

// integer picks default, then 0 when it is in range, then the bound
// nearest to 0 rounded onto multipleOf.
func (r *run) integer(node *spec.Schema) any {
	if node.HasDefault {
		return numberValue(node.Default, true)
	}
	lo, hi, hasLo, hasHi := bounds(node, 1)
	if hasLo {
		lo = math.Ceil(lo)
	}
	if hasHi {
		hi = math.Floor(hi)
	}
	step := 1.0
	if node.MultipleOf != nil && *node.MultipleOf > 0 {
		step = math.Max(1, math.Round(*node.MultipleOf))
	}

	var v float64
	if r.rng != nil {
		from, to := seededRange(lo, hi, hasLo, hasHi)
		span := to - from
		if span > maxSeededIntSpan {
			span = maxSeededIntSpan
		}
		v = math.Floor(from) + float64(r.rng.Int64N(int64(span)+1))
	} else {
		v = nearestToZero(lo, hi, hasLo, hasHi)
	}
	return integral(snap(v, step, lo, hi, hasLo, hasHi))
}

// integral returns f as an int64, or f itself when int64 cannot hold it.
func integral(f float64) any {
	if f >= -(1<<63) && f < 1<<63 {
		return int64(f)
	}
	return f
}

// number follows the integer rule over float64. Exclusive bounds move
// inward by multipleOf when set, otherwise to the midpoint of the range,
// otherwise by 1.
func (r *run) number(node *spec.Schema) any {
	if node.HasDefault {
		return numberValue(node.Default, false)
	}
	step := 1.0
	hasStep := node.MultipleOf != nil && *node.MultipleOf > 0
	if hasStep {
		step = *node.MultipleOf
	} else if node.Minimum != nil && node.Maximum != nil && (node.ExclusiveMinimum || node.ExclusiveMaximum) {
		step = (*node.Maximum - *node.Minimum) / 2
	}
	lo, hi, hasLo, hasHi := bounds(node, step)

	var v float64
	if r.rng != nil {
		from, to := seededRange(lo, hi, hasLo, hasHi)
		v = from + r.rng.Float64()*(to-from)
	} else {
		v = nearestToZero(lo, hi, hasLo, hasHi)
	}
	if hasStep {
		v = snap(v, step, lo, hi, hasLo, hasHi)
	}
	return v
}

func nearestToZero(lo, hi float64, hasLo, hasHi bool) float64 {
	switch {
	case hasLo && lo > 0:
		return lo
	case hasHi && hi < 0:
		return hi
	}
	return 0
}

func seededRange(lo, hi float64, hasLo, hasHi bool) (float64, float64) {
	switch {
	case hasLo && hasHi:
		if hi < lo {
			return lo, lo
		}
		return lo, hi
	case hasLo:
		return lo, lo + seededSpan
	case hasHi:
		return hi - seededSpan, hi
	}
	return 0, seededSpan
}

// snap moves v onto a multiple of step, staying inside the bounds when a
// multiple exists there.
func snap(v, step, lo, hi float64, hasLo, hasHi bool) float64 {
	if step <= 0 {
		return v
	}
	m := math.Round(v/step) * step
	if hasLo && m < lo {
		m = math.Ceil(lo/step) * step
	}
	if hasHi && m > hi {
		m = math.Floor(hi/step) * step
	}
	return m
}

// numberValue normalizes a declared default to int64 or float64.
func numberValue(v any, integer bool) any {
	var f float64
	switch t := v.(type) {
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case float64:
		f = t
	default:
		return v
	}
	if integer && f == math.Trunc(f) {
		return integral(f)
	}
	return f
}

// merge combines two generated values: mappings merge key-wise, sequences
// index-wise, nil never overwrites, anything else is replaced by src.
func merge(dst, src any) any {
	if src == nil {
		return dst
	}
	switch s := src.(type) {
	case map[string]any:
		d, ok := dst.(map[string]any)
		if !ok {
			return s
		}
		for k, v := range s {
			if cur, exists := d[k]; exists {
				d[k] = merge(cur, v)
			} else {
				d[k] = v
			}
		}
		return d
	case []any:
		d, ok := dst.([]any)
		if !ok {
			return s
		}
		for i, v := range s {
			if i < len(d) {
				d[i] = merge(d[i], v)
			} else {
				d = append(d, v)
			}
		}
		return d
	}
	return src
}
