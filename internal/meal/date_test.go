package meal

import (
	"testing"
	"time"
)

func TestLocalDate_TimezoneBoundary(t *testing.T) {
	hcm := time.FixedZone("ICT", 7*3600)

	// 23:50 local on the 19th is 16:50 UTC the same day.
	if got := LocalDate(time.Date(2026, 10, 19, 16, 50, 0, 0, time.UTC), hcm); got != "2026-10-19" {
		t.Fatalf("23:50 local: got %s", got)
	}
	// 00:10 local on the 20th is still the 19th in UTC.
	if got := LocalDate(time.Date(2026, 10, 19, 17, 10, 0, 0, time.UTC), hcm); got != "2026-10-20" {
		t.Fatalf("00:10 local: got %s", got)
	}

	// West of UTC: 23:50 local on the 19th is already the 20th in UTC.
	ny := time.FixedZone("EDT", -4*3600)
	if got := LocalDate(time.Date(2026, 10, 20, 3, 50, 0, 0, time.UTC), ny); got != "2026-10-19" {
		t.Fatalf("UTC rolled over but local did not: got %s", got)
	}
}

func TestParseRange(t *testing.T) {
	r, err := ParseRange("2026-10-19", "", 0)
	if err != nil || !r.SingleDay() || r.To != "2026-10-19" {
		t.Fatalf("single day: %+v %v", r, err)
	}
	r, err = ParseRange("2026-10-01", "2026-10-19", 31)
	if err != nil || r.SingleDay() {
		t.Fatalf("range: %+v %v", r, err)
	}
	if !r.Contains("2026-10-10") || r.Contains("2026-10-20") || r.Contains("2026-09-30") {
		t.Fatalf("Contains wrong for %+v", r)
	}
	if _, err := ParseRange("2026-10-19", "2026-10-18", 0); err == nil {
		t.Fatalf("expected inverted range error")
	}
	if _, err := ParseRange("2026-10-01", "2026-12-31", 31); err == nil {
		t.Fatalf("expected span limit error")
	}
	if _, err := ParseRange("19/10/2026", "", 0); err == nil {
		t.Fatalf("expected format error")
	}
}

func TestParseType(t *testing.T) {
	if m, err := ParseType("dinner"); err != nil || m != Dinner || m.Label() != "Tối" {
		t.Fatalf("dinner: %v %v", m, err)
	}
	if Lunch.Label() != "Trưa" {
		t.Fatalf("lunch label = %s", Lunch.Label())
	}
	if _, err := ParseType("Lunch"); err == nil {
		t.Fatalf("meal types are case sensitive")
	}
}
