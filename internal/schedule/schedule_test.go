package schedule_test

import (
	"testing"
	"time"

	"tidy/internal/schedule"
)

func TestParseFixedMinuteHourAllDays(t *testing.T) {
	spec, err := schedule.Parse("30 4 * * *")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if spec == nil {
		t.Fatal("expected spec")
	}
	if spec.Minute != 30 || spec.Hour != 4 {
		t.Fatalf("unexpected spec %+v", spec)
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		if !spec.Days.Contains(d) {
			t.Fatalf("expected all weekdays selected, missing %v", d)
		}
	}
}

func TestParseWeekdayList(t *testing.T) {
	spec, err := schedule.Parse("0 22 * * 1,3,5")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	want := map[time.Weekday]bool{time.Monday: true, time.Wednesday: true, time.Friday: true}
	for d := time.Sunday; d <= time.Saturday; d++ {
		if spec.Days.Contains(d) != want[d] {
			t.Fatalf("weekday %v: got %v, want %v", d, spec.Days.Contains(d), want[d])
		}
	}
}

func TestParseSevenMeansSunday(t *testing.T) {
	spec, err := schedule.Parse("0 9 * * 7")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !spec.Days.Contains(time.Sunday) {
		t.Fatal("expected 7 to normalize to Sunday")
	}
}

func TestParseEmptyMeansDisabled(t *testing.T) {
	spec, err := schedule.Parse("   ")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if spec != nil {
		t.Fatalf("expected nil spec, got %+v", spec)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	cases := []string{
		"* 4 * * *",     // wildcard minute
		"30 * * * *",    // wildcard hour
		"60 4 * * *",    // minute out of range
		"30 24 * * *",   // hour out of range
		"30 4 1 * *",    // fixed day-of-month
		"30 4 * 6 *",    // fixed month
		"30 4 * * 8",    // weekday out of range
		"30 4 * * mon",  // symbolic weekday
		"30 4 * *",      // too few fields
		"30 4 * * * *",  // too many fields
		"*/5 4 * * *",   // step expression
		"30 4-5 * * *",  // range expression
	}
	for _, raw := range cases {
		if _, err := schedule.Parse(raw); err == nil {
			t.Fatalf("expected %q to be rejected", raw)
		}
	}
}

func TestNormalizeEmptyWeekdaySet(t *testing.T) {
	spec := &schedule.Spec{Minute: 5, Hour: 6}
	if spec.Normalize() != nil {
		t.Fatal("expected empty weekday set to normalize to nil")
	}
}

func TestMatches(t *testing.T) {
	spec, err := schedule.Parse("15 7 * * 2")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	// 2026-08-25 is a Tuesday.
	tuesday := time.Date(2026, 8, 25, 7, 15, 42, 0, time.Local)
	if !spec.Matches(tuesday) {
		t.Fatalf("expected match at %v", tuesday)
	}
	if spec.Matches(tuesday.Add(time.Minute)) {
		t.Fatal("expected no match one minute later")
	}
	if spec.Matches(tuesday.AddDate(0, 0, 1)) {
		t.Fatal("expected no match on Wednesday")
	}
	var nilSpec *schedule.Spec
	if nilSpec.Matches(tuesday) {
		t.Fatal("nil spec never matches")
	}
}

func TestStringRoundTrip(t *testing.T) {
	for _, raw := range []string{"30 4 * * *", "0 22 * * 1,3,5", "15 7 * * 0"} {
		spec, err := schedule.Parse(raw)
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", raw, err)
		}
		again, err := schedule.Parse(spec.String())
		if err != nil {
			t.Fatalf("Parse(String()) failed for %q: %v", raw, err)
		}
		if *again != *spec {
			t.Fatalf("round trip mismatch: %+v vs %+v", spec, again)
		}
	}
}
