// Package ingest accepts transactions one at a time and in bulk from
// uploaded files, scores them and persists the results.
package ingest

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// headerAliases normalizes the column names seen in uploaded files to
// canonical field names. Matching is case-insensitive.
var headerAliases = map[string]string{
	"accountid":  "accountId",
	"account_id": "accountId",
	"account":    "accountId",
	"amount":     "amount",
	"amt":        "amount",
	"value":      "amount",
	"description": "description",
	"desc":        "description",
	"descrip":     "description",
	"category":    "category",
	"cat":         "category",
	"type":        "category",
	"location":    "location",
	"loc":         "location",
	"place":       "location",
	"ipaddress":   "ipAddress",
	"ip":          "ipAddress",
	"ip_address":  "ipAddress",
	"timestamp":   "timestamp",
	"date":        "timestamp",
	"time":        "timestamp",
	"datetime":    "timestamp",
}

// timestampLayouts are tried in order when parsing file timestamps.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"01/02/2006 15:04:05",
	"02-01-2006 15:04",
	"2006-01-02",
	"01/02/2006",
	"02-01-2006",
	time.RFC3339,
}

// Defaults applied to rows that omit optional columns.
const (
	DefaultDescription = "Transaction from file upload"
	DefaultCategory    = "purchase"
	DefaultLocation    = "Unknown"
	DefaultIPAddress   = "127.0.0.1"
)

// ParseFile reads a delimited upload and returns the candidate rows.
// CSV files use commas with optional double quoting; TXT files are
// split on tabs when present, otherwise on runs of spaces. Rows
// missing an account or a parsable amount are skipped.
func ParseFile(r io.Reader, filename string) ([]*domain.Candidate, error) {
	isTxt := strings.HasSuffix(strings.ToLower(filename), ".txt")

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var header []string
	var candidates []*domain.Candidate
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		var fields []string
		if isTxt {
			fields = splitTxt(line)
		} else {
			fields = splitCSV(line)
		}

		if header == nil {
			header = make([]string, len(fields))
			for i, h := range fields {
				key := strings.ToLower(strings.TrimSpace(h))
				header[i] = headerAliases[key]
			}
			continue
		}

		if c := buildCandidate(header, fields); c != nil {
			candidates = append(candidates, c)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if header == nil {
		return nil, fmt.Errorf("upload is empty")
	}
	return candidates, nil
}

// buildCandidate maps one row onto a candidate. Returns nil when the
// row lacks an account or a usable amount.
func buildCandidate(header, fields []string) *domain.Candidate {
	row := make(map[string]string)
	for i, name := range header {
		if name == "" || i >= len(fields) {
			continue
		}
		row[name] = strings.TrimSpace(fields[i])
	}

	accountID := row["accountId"]
	amount, err := strconv.ParseFloat(row["amount"], 64)
	if accountID == "" || err != nil {
		return nil
	}

	c := &domain.Candidate{
		AccountID:   accountID,
		Amount:      amount,
		Description: row["description"],
		Category:    row["category"],
		Location:    row["location"],
		IPAddress:   row["ipAddress"],
		Timestamp:   parseTimestamp(row["timestamp"]),
	}
	if c.Description == "" {
		c.Description = DefaultDescription
	}
	if c.Category == "" {
		c.Category = DefaultCategory
	}
	if c.Location == "" {
		c.Location = DefaultLocation
	}
	if c.IPAddress == "" {
		c.IPAddress = DefaultIPAddress
	}
	return c
}

// parseTimestamp tries the known layouts and falls back to now.
func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Now().UTC()
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC()
		}
	}
	return time.Now().UTC()
}

// splitCSV splits a comma separated line honoring double quotes.
func splitCSV(line string) []string {
	var fields []string
	var b strings.Builder
	inQuotes := false
	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case ch == '"':
			if inQuotes && i+1 < len(line) && line[i+1] == '"' {
				b.WriteByte('"')
				i++
			} else {
				inQuotes = !inQuotes
			}
		case ch == ',' && !inQuotes:
			fields = append(fields, b.String())
			b.Reset()
		default:
			b.WriteByte(ch)
		}
	}
	fields = append(fields, b.String())
	return fields
}

// splitTxt splits on tabs when the line contains any, otherwise on
// runs of whitespace.
func splitTxt(line string) []string {
	if strings.Contains(line, "\t") {
		return strings.Split(line, "\t")
	}
	return strings.Fields(line)
}
