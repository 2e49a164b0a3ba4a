package properties

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed is returned for text that cannot be read as a .properties
// document
var ErrMalformed = errors.New("malformed properties document")

// Element is one comment or property of a document
type Element struct {
	Comment bool

	Key       string // Unescaped key
	RawKey    string
	Separator string // Source text between key and value, e.g. " = "
	Value     string // Value with line continuations joined
	RawValue  string // Value source text, continuation lines included

	// Raw is the source text of the element without leading indentation.
	// A property continued over several lines keeps its newlines.
	Raw string

	BlankBefore int // Blank lines between this element and the previous one
	Line        int
}

// Delimiter returns the explicit '=' or ':' between key and value, or 0
// when the key is separated by whitespace only
func (e Element) Delimiter() byte {
	if i := strings.IndexAny(e.Separator, "=:"); i >= 0 {
		return e.Separator[i]
	}
	return 0
}

// Document is a parsed .properties file
type Document struct {
	Elements        []Element
	TrailingNewline bool
}

// Properties returns the property elements in document order
func (d *Document) Properties() []Element {
	props := make([]Element, 0, len(d.Elements))
	for _, el := range d.Elements {
		if !el.Comment {
			props = append(props, el)
		}
	}
	return props
}

// Parse reads text as a .properties document. CRLF line endings are
// normalized. A line continuation on the last line is malformed.
func Parse(text string) (*Document, error) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	doc := &Document{TrailingNewline: strings.HasSuffix(text, "\n")}

	lines := strings.Split(text, "\n")
	if doc.TrailingNewline {
		lines = lines[:len(lines)-1]
	}

	blank := 0
	for i := 0; i < len(lines); i++ {
		trimmed := strings.TrimLeft(lines[i], whitespace)
		switch {
		case trimmed == "":
			blank++
			continue

		case trimmed[0] == '#' || trimmed[0] == '!':
			doc.Elements = append(doc.Elements, Element{
				Comment:     true,
				Raw:         trimmed,
				BlankBefore: blank,
				Line:        i + 1,
			})

		default:
			start := i
			for continues(lines[i]) {
				if i+1 == len(lines) {
					return nil, fmt.Errorf("%w: line %d: continuation at end of document", ErrMalformed, start+1)
				}
				i++
			}
			source := append([]string{trimmed}, lines[start+1:i+1]...)
			el := parseProperty(source)
			el.BlankBefore = blank
			el.Line = start + 1
			doc.Elements = append(doc.Elements, el)
		}
		blank = 0
	}
	return doc, nil
}

const whitespace = " \t\f"

// continues reports whether line ends with an unescaped backslash
func continues(line string) bool {
	n := 0
	for i := len(line) - 1; i >= 0 && line[i] == '\\'; i-- {
		n++
	}
	return n%2 == 1
}

// parseProperty splits the source lines of one property into key,
// separator and value
func parseProperty(source []string) Element {
	first := source[0]
	keyEnd := scanKey(first)
	valueStart := keyEnd + len(first[keyEnd:]) - len(strings.TrimLeft(first[keyEnd:], whitespace))
	if valueStart < len(first) && (first[valueStart] == '=' || first[valueStart] == ':') {
		valueStart++
		valueStart += len(first[valueStart:]) - len(strings.TrimLeft(first[valueStart:], whitespace))
	}

	rawValue := strings.Join(append([]string{first[valueStart:]}, source[1:]...), "\n")

	value := first[valueStart:]
	for _, line := range source[1:] {
		value = strings.TrimSuffix(value, `\`) + strings.TrimLeft(line, whitespace)
	}

	return Element{
		Key:       unescape(first[:keyEnd]),
		RawKey:    first[:keyEnd],
		Separator: first[keyEnd:valueStart],
		Value:     value,
		RawValue:  rawValue,
		Raw:       strings.Join(source, "\n"),
	}
}

// scanKey returns the end of the key: the first unescaped '=', ':' or
// whitespace
func scanKey(line string) int {
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '\\':
			i++
		case '=', ':', ' ', '\t', '\f':
			return i
		}
	}
	return len(line)
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
