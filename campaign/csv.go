package campaign

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"unicode"
)

var phoneHeaders = []string{"phone", "phone_number", "phone number", "number"}

// NormalizePhone trims n and prefixes "+" when missing. Blank input stays
// blank.
func NormalizePhone(n string) string {
	n = strings.TrimSpace(n)
	if n == "" || strings.HasPrefix(n, "+") {
		return n
	}
	return "+" + n
}

// ExtractPhoneNumbers reads a CSV upload. A header named like a phone column
// selects that column; otherwise the first column is used and a first row
// containing letters is treated as a header. Numbers are normalized and
// de-duplicated in order of first appearance.
func ExtractPhoneNumbers(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	var rows [][]string
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv: %w", err)
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	numbers := fromHeaderColumn(rows)
	if len(numbers) == 0 {
		numbers = fromFirstColumn(rows)
	}
	return dedupe(numbers), nil
}

func fromHeaderColumn(rows [][]string) []string {
	col := slices.IndexFunc(rows[0], func(name string) bool {
		return slices.Contains(phoneHeaders, strings.ToLower(strings.TrimSpace(name)))
	})
	if col < 0 {
		return nil
	}
	var numbers []string
	for _, row := range rows[1:] {
		if col < len(row) && strings.TrimSpace(row[col]) != "" {
			numbers = append(numbers, NormalizePhone(row[col]))
		}
	}
	return numbers
}

func fromFirstColumn(rows [][]string) []string {
	var numbers []string
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		if i == 0 && strings.ContainsFunc(strings.Join(row, ","), unicode.IsLetter) {
			continue
		}
		numbers = append(numbers, NormalizePhone(row[0]))
	}
	return numbers
}

func dedupe(numbers []string) []string {
	seen := make(map[string]bool, len(numbers))
	out := make([]string, 0, len(numbers))
	for _, n := range numbers {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
