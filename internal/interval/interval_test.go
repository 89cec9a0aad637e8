package interval

import (
	"testing"
	"time"
)

func at(t *testing.T, hm string) time.Time {
	t.Helper()
	ts, err := time.Parse("2006-01-02 15:04", "2026-09-07 "+hm)
	if err != nil {
		t.Fatalf("parse time %q: %v", hm, err)
	}
	return ts
}

func TestOverlaps(t *testing.T) {
	cases := []struct {
		name                           string
		aStart, aEnd, bStart, bEnd     string
		want                           bool
	}{
		{"disjoint", "09:00", "09:30", "10:00", "10:30", false},
		{"touching endpoints", "09:00", "09:30", "09:30", "10:00", false},
		{"partial overlap", "09:00", "09:30", "09:15", "09:45", true},
		{"contained", "09:00", "10:00", "09:15", "09:45", true},
		{"identical", "09:00", "09:30", "09:00", "09:30", true},
		{"reversed order", "10:00", "10:30", "09:45", "10:15", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Overlaps(at(t, tc.aStart), at(t, tc.aEnd), at(t, tc.bStart), at(t, tc.bEnd))
			if got != tc.want {
				t.Fatalf("Overlaps(%s-%s, %s-%s) = %v, want %v",
					tc.aStart, tc.aEnd, tc.bStart, tc.bEnd, got, tc.want)
			}
		})
	}
}

func TestSpanContains(t *testing.T) {
	outer := Span{at(t, "09:00"), at(t, "12:00")}

	if !outer.Contains(Span{at(t, "09:00"), at(t, "09:30")}) {
		t.Fatal("expected span starting at outer start to be contained")
	}
	if !outer.Contains(Span{at(t, "11:30"), at(t, "12:00")}) {
		t.Fatal("expected span ending at outer end to be contained")
	}
	if outer.Contains(Span{at(t, "11:45"), at(t, "12:15")}) {
		t.Fatal("span crossing outer end must not be contained")
	}
}

func TestMerge(t *testing.T) {
	spans := []Span{
		{at(t, "14:00"), at(t, "16:00")},
		{at(t, "09:00"), at(t, "11:00")},
		{at(t, "10:30"), at(t, "12:00")},
		{at(t, "12:00"), at(t, "13:00")}, // adjacent, merges with previous
	}

	merged := Merge(spans)
	if len(merged) != 2 {
		t.Fatalf("expected 2 merged spans, got %d: %v", len(merged), merged)
	}
	if !merged[0].Start.Equal(at(t, "09:00")) || !merged[0].End.Equal(at(t, "13:00")) {
		t.Fatalf("first merged span wrong: %v", merged[0])
	}
	if !merged[1].Start.Equal(at(t, "14:00")) || !merged[1].End.Equal(at(t, "16:00")) {
		t.Fatalf("second merged span wrong: %v", merged[1])
	}
}

func TestMergeDoesNotModifyInput(t *testing.T) {
	spans := []Span{
		{at(t, "10:00"), at(t, "11:00")},
		{at(t, "09:00"), at(t, "10:30")},
	}
	Merge(spans)
	if !spans[0].Start.Equal(at(t, "10:00")) {
		t.Fatal("Merge reordered the caller's slice")
	}
}

func TestMergeRanges(t *testing.T) {
	cases := []struct {
		name string
		in   []Range
		want []Range
	}{
		{"empty", nil, nil},
		{"single", []Range{{540, 720}}, []Range{{540, 720}}},
		{
			"overlapping",
			[]Range{{540, 660}, {600, 720}},
			[]Range{{540, 720}},
		},
		{
			"adjacent",
			[]Range{{540, 600}, {600, 660}},
			[]Range{{540, 660}},
		},
		{
			"disjoint out of order",
			[]Range{{840, 1020}, {540, 720}},
			[]Range{{540, 720}, {840, 1020}},
		},
		{
			"duplicate windows",
			[]Range{{540, 720}, {540, 720}},
			[]Range{{540, 720}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := MergeRanges(tc.in)
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("range %d: got %v, want %v", i, got[i], tc.want[i])
				}
			}
		})
	}
}
