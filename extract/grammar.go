package extract

import (
	"regexp"
	"strings"
)

// Tag is a literal marker the generation service is asked to prefix
// structured output with, written as `TAG: value`. A tag only counts at the
// start of the text, the start of a line or right after a "|" separator, and
// only in upper case, so prose such as "popular activities: hiking" inside a
// response is never read as a value.
type Tag string

const (
	TagBudget     Tag = "BUDGET"
	TagActivities Tag = "ACTIVITIES"
	TagPreference Tag = "PREFERENCE"
	TagResponse   Tag = "RESPONSE"
	TagAirlines   Tag = "AIRLINES"
)

// Vocabulary is the closed set of recognized tags. Text that looks like a tag
// but is not in the vocabulary is part of the surrounding value.
var Vocabulary = []Tag{TagBudget, TagActivities, TagPreference, TagResponse, TagAirlines}

var tagPattern = buildTagPattern(Vocabulary)

func buildTagPattern(tags []Tag) *regexp.Regexp {
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		names = append(names, regexp.QuoteMeta(string(t)))
	}
	return regexp.MustCompile(`(?m)(?:^|\|)[ \t]*(` + strings.Join(names, "|") + `)[ \t]*:`)
}

// Marker renders the tag as it must appear in generated text.
func (t Tag) Marker() string {
	return string(t) + ":"
}

type Segment struct {
	Tag   Tag
	Value string
}

// Document is a parsed generation response: the tagged segments in order of
// appearance plus the raw text they were cut from.
type Document struct {
	Raw      string
	Segments []Segment
}

// Parse splits raw into tagged segments. A segment value runs from its tag to
// the next recognized tag or the end of text; separators, brackets and quotes
// around the value are trimmed.
func Parse(raw string) Document {
	doc := Document{Raw: raw}
	matches := tagPattern.FindAllStringSubmatchIndex(raw, -1)
	for i, m := range matches {
		end := len(raw)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		doc.Segments = append(doc.Segments, Segment{
			Tag:   Tag(raw[m[2]:m[3]]),
			Value: cleanValue(raw[m[1]:end]),
		})
	}
	return doc
}

// Lookup returns the first segment value for tag.
func (d Document) Lookup(tag Tag) (string, bool) {
	for _, s := range d.Segments {
		if s.Tag == tag {
			return s.Value, true
		}
	}
	return "", false
}

// Passthrough is the text offered back to the user when the expected value
// is missing: the RESPONSE segment when present, otherwise the whole text.
func (d Document) Passthrough() string {
	if v, ok := d.Lookup(TagResponse); ok && v != "" {
		return v
	}
	return strings.TrimSpace(d.Raw)
}

func cleanValue(v string) string {
	v = strings.Trim(v, " \t\r\n|")
	for len(v) >= 2 {
		first, last := v[0], v[len(v)-1]
		if (first == '[' && last == ']') || (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			v = strings.TrimSpace(v[1 : len(v)-1])
			continue
		}
		break
	}
	return v
}
