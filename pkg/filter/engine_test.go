// ABOUTME: Tests for the range filter engine
// ABOUTME: Covers ordering, clearing, inverted ranges, idempotence and coercion

package filter

import (
	"encoding/json"
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savan1304/FindMyLeaseApp/pkg/record"
)

func houses() record.Snapshot {
	return record.NewSnapshot([]record.Record{
		record.New("1", map[string]any{"name": "House 1", "bedrooms": 3, "area": "120m²", "price": "$300,000"}),
		record.New("2", map[string]any{"name": "House 2", "bedrooms": 4, "area": "150m²", "price": "$450,000"}),
		record.New("3", map[string]any{"name": "House 3", "bedrooms": 2, "area": "100m²", "price": "$250,000"}),
	})
}

func homeSpec() Spec {
	return NewBuilder().Field("bedrooms").Field("area").Build()
}

func TestApplyMinBedrooms(t *testing.T) {
	spec := homeSpec()
	spec["bedrooms"] = Range{Min: Bound(3)}

	got := Apply(houses(), spec)
	if diff := cmp.Diff([]string{"1", "2"}, got.IDs()); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyAreaWindow(t *testing.T) {
	spec := homeSpec()
	spec["area"] = Range{Min: Bound(110), Max: Bound(140)}

	got := Apply(houses(), spec)
	if diff := cmp.Diff([]string{"1"}, got.IDs()); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyAllFieldsMustPass(t *testing.T) {
	spec := NewBuilder().Min("bedrooms", 3).Max("area", 130).Build()
	assert.Equal(t, []string{"1"}, Apply(houses(), spec).IDs())
}

func TestApplyClearedSpecReturnsInput(t *testing.T) {
	s := houses()
	spec := NewBuilder().Between("bedrooms", 3, 3).Min("area", 200).Build()
	require.Empty(t, Apply(s, spec).IDs())

	cleared := spec.Clear()
	assert.True(t, cleared.IsCleared())
	assert.Len(t, cleared, 2)
	assert.Equal(t, s, Apply(s, cleared))
	assert.Equal(t, s, Apply(s, nil))
}

func TestApplyInvertedRangeIsEmpty(t *testing.T) {
	spec := NewBuilder().Between("bedrooms", 4, 2).Build()
	got := Apply(houses(), spec)
	assert.Equal(t, 0, got.Len())
}

func TestApplyMissingOrMalformedFieldFails(t *testing.T) {
	s := record.NewSnapshot([]record.Record{
		record.New("ok", map[string]any{"area": "90 m²"}),
		record.New("missing", map[string]any{}),
		record.New("garbage", map[string]any{"area": "n/a"}),
		record.New("bool", map[string]any{"area": true}),
		record.New("nan", map[string]any{"area": math.NaN()}),
		record.New("float-text", map[string]any{"area": "90.5m²"}),
	})

	got := Apply(s, NewBuilder().Min("area", 0).Build())
	assert.Equal(t, []string{"ok", "float-text"}, got.IDs())
}

func TestApplyDecimalTextUsesLeadingInteger(t *testing.T) {
	s := record.NewSnapshot([]record.Record{
		record.New("a", map[string]any{"area": "120.5m²"}),
		record.New("b", map[string]any{"area": "120 m2"}),
		record.New("c", map[string]any{"area": "121.9m²"}),
	})

	got := Apply(s, NewBuilder().Between("area", 100, 120).Build())
	assert.Equal(t, []string{"a", "b"}, got.IDs())
}

func TestApplyUnmentionedFieldsIgnored(t *testing.T) {
	s := record.NewSnapshot([]record.Record{
		record.New("1", map[string]any{"bedrooms": 3, "area": "garbage"}),
	})
	got := Apply(s, NewBuilder().Min("bedrooms", 1).Build())
	assert.Equal(t, []string{"1"}, got.IDs())
}

func randomSnapshot(rng *rand.Rand) record.Snapshot {
	n := rng.Intn(20)
	recs := make([]record.Record, 0, n)
	for i := 0; i < n; i++ {
		fields := map[string]any{"bedrooms": rng.Intn(6)}
		switch rng.Intn(3) {
		case 0:
			fields["area"] = json.Number("1" + string(rune('0'+rng.Intn(10))) + "0")
		case 1:
			fields["area"] = float64(50 + rng.Intn(150))
		}
		recs = append(recs, record.New(string(rune('a'+i)), fields))
	}
	return record.NewSnapshot(recs)
}

func randomSpec(rng *rand.Rand) Spec {
	b := NewBuilder().Field("bedrooms").Field("area")
	if rng.Intn(2) == 0 {
		b.Min("bedrooms", float64(rng.Intn(6)))
	}
	if rng.Intn(2) == 0 {
		b.Max("bedrooms", float64(rng.Intn(6)))
	}
	if rng.Intn(2) == 0 {
		b.Between("area", float64(50+rng.Intn(100)), float64(100+rng.Intn(100)))
	}
	return b.Build()
}

func isSubsequence(sub, full []string) bool {
	i := 0
	for _, id := range full {
		if i < len(sub) && sub[i] == id {
			i++
		}
	}
	return i == len(sub)
}

func TestApplyProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		s := randomSnapshot(rng)
		spec := randomSpec(rng)

		once := Apply(s, spec)
		if !isSubsequence(once.IDs(), s.IDs()) {
			t.Fatalf("iteration %d: %v is not a subsequence of %v", i, once.IDs(), s.IDs())
		}

		twice := Apply(once, spec)
		if diff := cmp.Diff(once.IDs(), twice.IDs()); diff != "" {
			t.Fatalf("iteration %d: not idempotent (-once +twice):\n%s", i, diff)
		}

		for j := 0; j < once.Len(); j++ {
			if !Matches(once.At(j), spec) {
				t.Fatalf("iteration %d: kept record %s does not match", i, once.At(j).ID)
			}
		}

		if diff := cmp.Diff(s.IDs(), Apply(s, spec.Clear()).IDs()); diff != "" {
			t.Fatalf("iteration %d: cleared spec changed input:\n%s", i, diff)
		}
	}
}

func TestNumber(t *testing.T) {
	tests := []struct {
		in   any
		want float64
		ok   bool
	}{
		{3, 3, true},
		{int64(-2), -2, true},
		{uint8(7), 7, true},
		{float32(1.5), 1.5, true},
		{2.25, 2.25, true},
		{json.Number("42"), 42, true},
		{json.Number("x"), 0, false},
		{"120m²", 120, true},
		{" 150 m² ", 150, true},
		{"120 sq ft", 120, true},
		{"80 sq. ft.", 80, true},
		{"$450,000", 450000, true},
		{"€1,200", 1200, true},
		{"4", 4, true},
		{"-3", -3, true},
		{"1.5 baths", 1, true},
		{"120.5m²", 120, true},
		{"120 m2", 120, true},
		{"120m^2", 120, true},
		{"+7", 7, true},
		{"-", 0, false},
		{"ca. 120", 0, false},
		{"m²", 0, false},
		{"", 0, false},
		{"abc", 0, false},
		{nil, 0, false},
		{true, 0, false},
		{math.NaN(), 0, false},
		{[]int{1}, 0, false},
	}

	for _, tt := range tests {
		got, ok := Number(tt.in)
		assert.Equal(t, tt.ok, ok, "Number(%#v) ok", tt.in)
		if tt.ok {
			assert.Equal(t, tt.want, got, "Number(%#v)", tt.in)
		}
	}
}
