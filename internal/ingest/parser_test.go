package ingest

import (
	"strings"
	"testing"
	"time"
)

func TestParseCSV(t *testing.T) {
	input := strings.Join([]string{
		"accountId,amount,description,category,location,ipAddress,timestamp",
		"ACC001,150.50,Grocery run,purchase,New York,192.168.1.1,2026-03-10 14:30:00",
		`ACC002,99.99,"Dinner, for two",dining,Boston,10.0.0.5,2026-03-10`,
	}, "\n")

	candidates, err := ParseFile(strings.NewReader(input), "upload.csv")
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}

	c := candidates[0]
	if c.AccountID != "ACC001" || c.Amount != 150.50 {
		t.Errorf("unexpected first row: %+v", c)
	}
	if c.Description != "Grocery run" || c.Location != "New York" {
		t.Errorf("unexpected first row fields: %+v", c)
	}
	want := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)
	if !c.Timestamp.Equal(want) {
		t.Errorf("expected timestamp %v, got %v", want, c.Timestamp)
	}

	if candidates[1].Description != "Dinner, for two" {
		t.Errorf("quoted comma not preserved: %q", candidates[1].Description)
	}
}

func TestParseHeaderAliases(t *testing.T) {
	input := strings.Join([]string{
		"account,amt,desc,cat,loc,ip,date",
		"ACC001,25.00,Coffee,dining,Seattle,172.16.0.1,2026-03-10",
	}, "\n")

	candidates, err := ParseFile(strings.NewReader(input), "upload.csv")
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	c := candidates[0]
	if c.AccountID != "ACC001" || c.Amount != 25 || c.Description != "Coffee" ||
		c.Category != "dining" || c.Location != "Seattle" || c.IPAddress != "172.16.0.1" {
		t.Errorf("aliases not applied: %+v", c)
	}
}

func TestParseDefaults(t *testing.T) {
	input := "accountId,amount\nACC001,75.00\n"

	candidates, err := ParseFile(strings.NewReader(input), "upload.csv")
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	c := candidates[0]
	if c.Description != DefaultDescription {
		t.Errorf("expected default description, got %q", c.Description)
	}
	if c.Category != DefaultCategory {
		t.Errorf("expected default category, got %q", c.Category)
	}
	if c.Location != DefaultLocation {
		t.Errorf("expected default location, got %q", c.Location)
	}
	if c.IPAddress != DefaultIPAddress {
		t.Errorf("expected default IP, got %q", c.IPAddress)
	}
	if c.Timestamp.IsZero() {
		t.Error("expected timestamp default to now")
	}
}

func TestParseSkipsBadRows(t *testing.T) {
	input := strings.Join([]string{
		"accountId,amount",
		"ACC001,100",
		",200",
		"ACC003,not-a-number",
		"ACC004,400",
	}, "\n")

	candidates, err := ParseFile(strings.NewReader(input), "upload.csv")
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}
	if candidates[0].AccountID != "ACC001" || candidates[1].AccountID != "ACC004" {
		t.Errorf("wrong rows kept: %+v", candidates)
	}
}

func TestParseTxtTabs(t *testing.T) {
	input := "accountId\tamount\tlocation\nACC001\t55.25\tChicago\n"

	candidates, err := ParseFile(strings.NewReader(input), "upload.txt")
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	if candidates[0].Amount != 55.25 || candidates[0].Location != "Chicago" {
		t.Errorf("unexpected row: %+v", candidates[0])
	}
}

func TestParseTxtSpaces(t *testing.T) {
	input := "accountId amount\nACC001 88.00\n"

	candidates, err := ParseFile(strings.NewReader(input), "upload.txt")
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	if candidates[0].AccountID != "ACC001" || candidates[0].Amount != 88 {
		t.Errorf("unexpected row: %+v", candidates[0])
	}
}

func TestParseEmptyFile(t *testing.T) {
	_, err := ParseFile(strings.NewReader(""), "upload.csv")
	if err == nil {
		t.Fatal("expected error for empty upload")
	}
}

func TestParseTimestampFormats(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2026-03-10", time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)},
		{"03/10/2026", time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)},
		{"2026-03-10 08:15:30", time.Date(2026, 3, 10, 8, 15, 30, 0, time.UTC)},
		{"03/10/2026 08:15:30", time.Date(2026, 3, 10, 8, 15, 30, 0, time.UTC)},
		{"10-03-2026", time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)},
		{"10-03-2026 08:15", time.Date(2026, 3, 10, 8, 15, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		got := parseTimestamp(tc.in)
		if !got.Equal(tc.want) {
			t.Errorf("parseTimestamp(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}

	if parseTimestamp("garbage").IsZero() {
		t.Error("unparsable timestamp should fall back to now")
	}
}
