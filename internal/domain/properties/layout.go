package properties

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/cazayus/wshub/internal/infrastructure/config"
)

// Style controls how fixed documents are laid out
type Style struct {
	// Delimiter written between key and value by Sort: '=', ':' or ' '
	Delimiter             byte
	SpacesAroundDelimiter bool
	// AlignGroups pads keys so the delimiters of a group line up. Groups are
	// separated by blank lines.
	AlignGroups    bool
	KeepBlankLines bool
}

// DefaultStyle writes key=value and keeps blank lines
func DefaultStyle() Style {
	return Style{Delimiter: '=', KeepBlankLines: true}
}

// StyleFromConfig converts the environment configuration
func StyleFromConfig(cfg config.PropertiesConfig) (Style, error) {
	style := Style{
		SpacesAroundDelimiter: cfg.SpacesAroundDelimiter,
		AlignGroups:           cfg.AlignGroups,
		KeepBlankLines:        cfg.KeepBlankLines,
	}
	switch cfg.Delimiter {
	case "=", ":", " ":
		style.Delimiter = cfg.Delimiter[0]
	case "":
		style.Delimiter = '='
	default:
		return Style{}, fmt.Errorf("invalid properties delimiter %q", cfg.Delimiter)
	}
	return style, nil
}

// group returns the part of key before its first dot
func group(key string) (string, bool) {
	i := strings.IndexByte(key, '.')
	if i < 0 {
		return "", false
	}
	return key[:i], true
}

// grouped reports whether two dotted keys share their first part. Grouped
// keys sit on adjacent lines; every other pair is split by one blank line.
func grouped(a, b string) bool {
	ga, oka := group(a)
	gb, okb := group(b)
	return oka && okb && ga == gb
}

// ordered reports whether cur may follow prev. A dotted key is compared by
// its first part against a key without dots.
func ordered(prev, cur string) bool {
	gp, prevDotted := group(prev)
	gc, curDotted := group(cur)
	switch {
	case prevDotted && !curDotted:
		return gp <= cur
	case !prevDotted && curDotted:
		return prev <= gc
	default:
		return prev <= cur
	}
}

// IsSorted reports whether every property has a non-blank single-line
// value, follows its predecessor in key order and is separated from it the
// way grouped reports.
func (d *Document) IsSorted() bool {
	var prev *Element
	for i := range d.Elements {
		el := &d.Elements[i]
		if el.Comment {
			continue
		}
		if strings.TrimSpace(el.Value) == "" || strings.Contains(el.Raw, "\n") {
			return false
		}

		if prev != nil {
			if grouped(prev.Key, el.Key) {
				if !d.afterProperty(i) {
					return false
				}
			} else if !d.afterBlankLine(i) {
				return false
			}
			if !ordered(prev.Key, el.Key) {
				return false
			}
		}
		prev = el
	}
	return true
}

// afterBlankLine reports whether element i, together with the comments
// attached directly above it, follows exactly one blank line
func (d *Document) afterBlankLine(i int) bool {
	for i > 0 {
		prevComment := d.Elements[i-1].Comment
		switch d.Elements[i].BlankBefore {
		case 0:
			if !prevComment {
				return false
			}
			i--
		case 1:
			return !prevComment
		default:
			return false
		}
	}
	return false
}

// afterProperty reports whether element i, together with the comments
// attached directly above it, sits on the line after a property
func (d *Document) afterProperty(i int) bool {
	for i > 0 && d.Elements[i].BlankBefore == 0 {
		if !d.Elements[i-1].Comment {
			return true
		}
		i--
	}
	return false
}

type entry struct {
	Element
	comments []Element
}

// sortKey orders dotted keys by their group first so a group stays together
func sortKey(key string) string {
	if g, ok := group(key); ok {
		return g
	}
	return key
}

// Sort rewrites d with its properties ordered by key and separated as
// IsSorted expects. Comments above a property move with it. Comments before the
// first property that are not attached to it stay at the top; comments after
// the last property stay at the bottom. Values are written on one line.
func Sort(d *Document, style Style) string {
	var (
		header, pending []Element
		entries         []entry
	)
	for i, el := range d.Elements {
		if el.Comment {
			pending = append(pending, el)
			continue
		}
		if len(entries) == 0 {
			// Only the block directly above the first property is its own
			split := len(pending)
			for split > 0 && d.Elements[i-len(pending)+split].BlankBefore == 0 {
				split--
			}
			header, pending = pending[:split], pending[split:]
		}
		entries = append(entries, entry{Element: el, comments: pending})
		pending = nil
	}
	if len(entries) == 0 {
		return Format(d, style)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		ki, kj := sortKey(entries[i].Key), sortKey(entries[j].Key)
		if ki != kj {
			return ki < kj
		}
		return entries[i].Key < entries[j].Key
	})

	var b strings.Builder
	for _, c := range header {
		b.WriteString(c.Raw)
		b.WriteByte('\n')
	}
	if len(header) > 0 {
		b.WriteByte('\n')
	}

	for i, e := range entries {
		if i > 0 {
			b.WriteByte('\n')
			if !grouped(entries[i-1].Key, e.Key) {
				b.WriteByte('\n')
			}
		}
		for _, c := range e.comments {
			b.WriteString(c.Raw)
			b.WriteByte('\n')
		}
		b.WriteString(e.RawKey)
		b.WriteString(style.separator(style.Delimiter))
		b.WriteString(e.Value)
	}

	if len(pending) > 0 {
		b.WriteString("\n\n")
		for i, c := range pending {
			if i > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(c.Raw)
		}
	}
	if d.TrailingNewline {
		b.WriteByte('\n')
	}
	return b.String()
}

// separator returns the text written between key and value for delim
func (s Style) separator(delim byte) string {
	if delim == 0 || delim == ' ' {
		return " "
	}
	if s.SpacesAroundDelimiter {
		return " " + string(delim) + " "
	}
	return string(delim)
}

// Format normalizes the spacing of d. Each property keeps its own
// delimiter; whitespace around it is removed, or set to one space with
// SpacesAroundDelimiter. A key separated by whitespace only is followed by
// one space. With AlignGroups the delimiters of each group line up. Blank
// lines are kept, or all removed without KeepBlankLines.
func Format(d *Document, style Style) string {
	widths := make([]int, len(d.Elements))
	if style.AlignGroups {
		start := 0
		for i := 0; i <= len(d.Elements); i++ {
			if i < len(d.Elements) && (i == 0 || d.Elements[i].BlankBefore == 0) {
				continue
			}
			width := 0
			for k := start; k < i; k++ {
				if el := d.Elements[k]; !el.Comment && el.Delimiter() != 0 {
					width = max(width, utf8.RuneCountInString(el.RawKey))
				}
			}
			for k := start; k < i; k++ {
				widths[k] = width
			}
			start = i
		}
	}

	var b strings.Builder
	for i, el := range d.Elements {
		if i > 0 {
			b.WriteByte('\n')
			if style.KeepBlankLines {
				b.WriteString(strings.Repeat("\n", el.BlankBefore))
			}
		}
		if el.Comment {
			b.WriteString(el.Raw)
			continue
		}

		b.WriteString(el.RawKey)
		delim := el.Delimiter()
		if delim == 0 && el.RawValue == "" {
			continue
		}
		if delim != 0 {
			if pad := widths[i] - utf8.RuneCountInString(el.RawKey); pad > 0 {
				b.WriteString(strings.Repeat(" ", pad))
			}
		}
		b.WriteString(style.separator(delim))
		b.WriteString(el.RawValue)
	}
	if d.TrailingNewline {
		b.WriteByte('\n')
	}
	return b.String()
}

// Fix sorts text and formats the result
func Fix(text string, style Style) (string, error) {
	doc, err := Parse(text)
	if err != nil {
		return "", err
	}
	sorted, err := Parse(Sort(doc, style))
	if err != nil {
		return "", err
	}
	return Format(sorted, style), nil
}
