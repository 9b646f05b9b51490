// ABOUTME: Filter specification types and fluent builder
// ABOUTME: Named inclusive numeric ranges, nil bound means unconstrained

package filter

import (
	"fmt"
	"math"
	"strings"
)

// Range is an inclusive numeric interval. A nil bound is absent.
type Range struct {
	Min *float64
	Max *float64
}

// Contains reports whether v satisfies both present bounds. An inverted
// range contains nothing.
func (r Range) Contains(v float64) bool {
	if r.Min != nil && !(v >= *r.Min) {
		return false
	}
	if r.Max != nil && !(v <= *r.Max) {
		return false
	}
	return true
}

// IsUnbounded reports whether neither bound is present.
func (r Range) IsUnbounded() bool {
	return r.Min == nil && r.Max == nil
}

// Spec maps a record field name to the range its value must fall in.
type Spec map[string]Range

// Clear returns a spec with the same fields and every bound absent.
func (s Spec) Clear() Spec {
	out := make(Spec, len(s))
	for field := range s {
		out[field] = Range{}
	}
	return out
}

// IsCleared reports whether no field carries a bound.
func (s Spec) IsCleared() bool {
	for _, r := range s {
		if !r.IsUnbounded() {
			return false
		}
	}
	return true
}

// Validate checks that every present bound is finite. Apply does not require
// it; input surfaces call it before handing a spec over.
func (s Spec) Validate() error {
	for field, r := range s {
		for _, b := range []*float64{r.Min, r.Max} {
			if b != nil && (math.IsNaN(*b) || math.IsInf(*b, 0)) {
				return fmt.Errorf("%w: field %q", ErrNonFinite, field)
			}
		}
	}
	return nil
}

// Bound returns a pointer to v for use as a Range bound.
func Bound(v float64) *float64 {
	return &v
}

// ParseBound converts the text of a min/max input box. Empty text is an
// absent bound; otherwise the leading integer is used, so "3.5" is 3.
func ParseBound(text string) (*float64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	n, ok := leadingInt(text)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBadBound, text)
	}
	return Bound(float64(n)), nil
}

// Builder provides a fluent interface for building specs
type Builder struct {
	spec Spec
}

// NewBuilder creates an empty builder
func NewBuilder() *Builder {
	return &Builder{spec: make(Spec)}
}

// Field registers field with no bounds, so that Clear keeps it.
func (b *Builder) Field(field string) *Builder {
	if _, ok := b.spec[field]; !ok {
		b.spec[field] = Range{}
	}
	return b
}

// Min sets the lower bound of field
func (b *Builder) Min(field string, v float64) *Builder {
	r := b.spec[field]
	r.Min = Bound(v)
	b.spec[field] = r
	return b
}

// Max sets the upper bound of field
func (b *Builder) Max(field string, v float64) *Builder {
	r := b.spec[field]
	r.Max = Bound(v)
	b.spec[field] = r
	return b
}

// Between sets both bounds of field
func (b *Builder) Between(field string, min, max float64) *Builder {
	return b.Min(field, min).Max(field, max)
}

// Build returns the constructed spec
func (b *Builder) Build() Spec {
	out := make(Spec, len(b.spec))
	for k, v := range b.spec {
		out[k] = v
	}
	return out
}
