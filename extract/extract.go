package extract

import (
	"regexp"
	"strconv"
	"strings"
)

type Outcome int

const (
	// Found means the tag was present and its value parsed.
	Found Outcome = iota
	// Miss means the expected tag was absent.
	Miss
	// ParseError means the tag was present but its value did not parse.
	ParseError
)

func (o Outcome) String() string {
	switch o {
	case Found:
		return "found"
	case Miss:
		return "miss"
	case ParseError:
		return "parse_error"
	default:
		return "unknown"
	}
}

type Result[T any] struct {
	Value   T
	Outcome Outcome
	// Response is the RESPONSE segment, empty when absent.
	Response string
	// Passthrough is the candidate clarification text when the value is
	// missing.
	Passthrough string
}

func newResult[T any](doc Document) Result[T] {
	response, _ := doc.Lookup(TagResponse)
	return Result[T]{Response: response, Passthrough: doc.Passthrough()}
}

func (r Result[T]) Found() bool {
	return r.Outcome == Found
}

var (
	amountPattern  = regexp.MustCompile(`^\$?(\d{1,3}(?:,\d{3})+|\d+)(?:\.0+)?$`)
	currencyTokens = map[string]bool{"dollars": true, "dollar": true, "usd": true, "bucks": true}
)

// Int extracts a positive integer amount following tag. A leading "$",
// digit-group commas and a trailing currency word are accepted.
func Int(raw string, tag Tag) Result[int] {
	doc := Parse(raw)
	res := newResult[int](doc)
	value, ok := doc.Lookup(tag)
	if !ok {
		res.Outcome = Miss
		return res
	}
	n, ok := parseAmount(value)
	if !ok {
		res.Outcome = ParseError
		return res
	}
	res.Value = n
	res.Outcome = Found
	return res
}

func parseAmount(value string) (int, bool) {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return 0, false
	}
	for _, f := range fields[1:] {
		if !currencyTokens[strings.ToLower(strings.Trim(f, ".,"))] {
			return 0, false
		}
	}
	m := amountPattern.FindStringSubmatch(fields[0])
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// List extracts the comma separated items following tag. A present tag with
// no items yields an empty, found list.
func List(raw string, tag Tag) Result[[]string] {
	doc := Parse(raw)
	res := newResult[[]string](doc)
	value, ok := doc.Lookup(tag)
	if !ok {
		res.Outcome = Miss
		return res
	}
	items := []string{}
	for _, item := range strings.Split(value, ",") {
		item = cleanValue(item)
		if item != "" {
			items = append(items, item)
		}
	}
	res.Value = items
	res.Outcome = Found
	return res
}

// Category matches the value following tag against vocabulary by
// case-insensitive substring. It always yields a value: fallback is returned
// when the tag is absent or nothing matches.
func Category[T ~string](raw string, tag Tag, vocabulary []T, fallback T) T {
	value, ok := Parse(raw).Lookup(tag)
	if !ok {
		return fallback
	}
	value = strings.ToLower(value)
	for _, v := range vocabulary {
		if v != fallback && strings.Contains(value, strings.ToLower(string(v))) {
			return v
		}
	}
	return fallback
}
