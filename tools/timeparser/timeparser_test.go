package timeparser

import (
	"errors"
	"testing"
	"time"
)

func TestResolveZone_CaseInsensitive(t *testing.T) {
	canonical, loc, err := ResolveZone("europe/berlin")
	if err != nil {
		t.Fatalf("Failed to resolve zone: %v", err)
	}
	if canonical != "Europe/Berlin" {
		t.Errorf("Expected canonical name Europe/Berlin, got %s", canonical)
	}
	if loc == nil {
		t.Fatal("Expected a location")
	}
}

func TestResolveZone_Unknown(t *testing.T) {
	_, _, err := ResolveZone("Mars/Olympus_Mons")
	if err == nil {
		t.Fatal("Expected error for unknown zone")
	}
	var unknown ErrUnknownTimeZone
	if !errors.As(err, &unknown) {
		t.Errorf("Expected ErrUnknownTimeZone, got %T", err)
	}
}

func TestZoneNames_KeywordFilter(t *testing.T) {
	names := ZoneNames("kolkata")
	found := false
	for _, n := range names {
		if n == "Asia/Kolkata" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected Asia/Kolkata in filtered list, got %v", names)
	}
}

func TestNormalizeLocalTimestamp_ConvertsToUTC(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatalf("Failed to load zone: %v", err)
	}
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	instant, serialized, err := NormalizeLocalTimestamp("2023-06-15 10:30:00", loc, now)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	expected := time.Date(2023, 6, 15, 5, 0, 0, 0, time.UTC) // IST is UTC+05:30
	if !instant.Equal(expected) {
		t.Errorf("Expected %v, got %v", expected, instant)
	}
	if serialized != "2023-06-15T05:00:00.000Z" {
		t.Errorf("Expected serialized 2023-06-15T05:00:00.000Z, got %s", serialized)
	}
}

func TestNormalizeLocalTimestamp_PreservesMilliseconds(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	_, serialized, err := NormalizeLocalTimestamp("2023-06-15 10:30:00.2", time.UTC, now)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if serialized != "2023-06-15T10:30:00.2Z" {
		t.Errorf("Expected serialized 2023-06-15T10:30:00.2Z, got %s", serialized)
	}

	instant, _, err := NormalizeLocalTimestamp("2023-06-15 10:30:00.333", time.UTC, now)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if instant.Nanosecond() != 333_000_000 {
		t.Errorf("Expected 333ms, got %dns", instant.Nanosecond())
	}
}

func TestNormalizeLocalTimestamp_InvalidFormat(t *testing.T) {
	now := time.Now()
	for _, bad := range []string{
		"2023/06/15 10:30:00",
		"2023-06-15T10:30:00",
		"2023-06-15 10:30",
		"2023-02-30 10:30:00", // not a real date
		"garbage",
	} {
		_, _, err := NormalizeLocalTimestamp(bad, time.UTC, now)
		if err == nil {
			t.Errorf("Expected error for %q", bad)
			continue
		}
		var invalid ErrInvalidTimestampFormat
		if !errors.As(err, &invalid) {
			t.Errorf("Expected ErrInvalidTimestampFormat for %q, got %T", bad, err)
		}
	}
}

func TestNormalizeLocalTimestamp_Future(t *testing.T) {
	now := time.Date(2023, 6, 15, 10, 0, 0, 0, time.UTC)

	_, _, err := NormalizeLocalTimestamp("2023-06-15 10:00:01", time.UTC, now)
	if err == nil {
		t.Fatal("Expected error for future timestamp")
	}
	var future ErrFutureTimestamp
	if !errors.As(err, &future) {
		t.Errorf("Expected ErrFutureTimestamp, got %T", err)
	}

	// Equality with "now" is not in the future.
	if _, _, err := NormalizeLocalTimestamp("2023-06-15 10:00:00", time.UTC, now); err != nil {
		t.Errorf("Expected timestamp equal to now to pass, got %v", err)
	}
}

func TestNormalizeLocalTimestamp_RoundTrip(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("Failed to load zone: %v", err)
	}
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	instant, _, err := NormalizeLocalTimestamp("2023-03-20 08:15:30", loc, now)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	local := instant.In(loc)
	again, _, err := NormalizeLocalTimestamp(local.Format("2006-01-02 15:04:05"), loc, now)
	if err != nil {
		t.Fatalf("Re-normalize failed: %v", err)
	}
	if !again.Equal(instant) {
		t.Errorf("Round trip changed instant: %v vs %v", instant, again)
	}
}

func TestParseUTCTimestamp(t *testing.T) {
	got, err := ParseUTCTimestamp("2022-10-18T11:35:27.640Z")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	expected := time.Date(2022, 10, 18, 11, 35, 27, 640_000_000, time.UTC)
	if !got.Equal(expected) {
		t.Errorf("Expected %v, got %v", expected, got)
	}

	if _, err := ParseUTCTimestamp("2022-10-18 11:35:27"); err == nil {
		t.Error("Expected error for non-UTC wire format")
	}
}

func TestCanonicalZoneGuess(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"america/new_york", "America/New_York"},
		{"EUROPE/BERLIN", "Europe/Berlin"},
		{"asia/kolkata", "Asia/Kolkata"},
		{"utc", "UTC"},
	}
	for _, tc := range cases {
		if got := canonicalZoneGuess(tc.in); got != tc.want {
			t.Errorf("canonicalZoneGuess(%q): expected %q, got %q", tc.in, got, tc.want)
		}
	}
}
