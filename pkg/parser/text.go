package parser

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	tagRegex        = regexp.MustCompile(`<[^>]*>`)
	spaceRunRegex   = regexp.MustCompile(`[ \f\r\v\x{00a0}]+`)
	trailingNumRe   = regexp.MustCompile(`[\s#]*\d+$`)
	trailingParenRe = regexp.MustCompile(`\s*\([^)]*\)$`)
	innerSpaceRegex = regexp.MustCompile(`\s+`)
)

// fold lowercases s and strips diacritics so "Huésped" and "huesped" compare equal.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// Fold lowercases s and strips diacritics, the normalization used to match
// labels and keywords.
func Fold(s string) string {
	return fold(s)
}

// htmlToText renders an HTML body as lines. Table cells are separated by
// tabs and block elements end a line, so "<td>Guest</td><td>Ana</td>"
// becomes "Guest\tAna".
func htmlToText(src string) string {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return cleanLines(tagRegex.ReplaceAllString(src, "\n"))
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(innerSpaceRegex.ReplaceAllString(n.Data, " "))
			return
		}
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Head, atom.Title:
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type != html.ElementNode {
			return
		}
		switch n.DataAtom {
		case atom.Td, atom.Th:
			b.WriteString("\t")
		case atom.Br, atom.P, atom.Div, atom.Tr, atom.Li, atom.Table, atom.Section,
			atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
			b.WriteString("\n")
		}
	}
	walk(doc)
	return cleanLines(b.String())
}

// cleanLines trims each line, collapses spaces and drops empty lines.
func cleanLines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = spaceRunRegex.ReplaceAllString(line, " ")
		line = strings.Trim(line, " \t")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// labelKey normalizes the left side of a "label: value" line.
func labelKey(s string) string {
	k := fold(strings.TrimSpace(s))
	k = trailingParenRe.ReplaceAllString(strings.Trim(k, " \t:*"), "")
	k = strings.Trim(k, " \t:.-*")
	k = trailingNumRe.ReplaceAllString(k, "")
	return innerSpaceRegex.ReplaceAllString(strings.TrimSpace(k), " ")
}

// fieldIndex maps normalized labels to their values in document order.
type fieldIndex map[string][]string

// indexFields collects "label: value" and "label<TAB>value" lines, plus
// labels alone on a line whose value is the next line.
func indexFields(body string, known map[string]bool) fieldIndex {
	idx := fieldIndex{}
	lines := strings.Split(body, "\n")
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if sep := strings.IndexAny(line, ":\t"); sep > 0 {
			key := labelKey(line[:sep])
			value := strings.Trim(line[sep+1:], " \t:")
			if known[key] {
				if value != "" {
					idx[key] = append(idx[key], value)
					continue
				}
				if i+1 < len(lines) {
					idx[key] = append(idx[key], strings.Trim(lines[i+1], " \t"))
					i++
				}
				continue
			}
		}
		key := labelKey(line)
		if known[key] && i+1 < len(lines) {
			next := strings.Trim(lines[i+1], " \t")
			if !known[labelKey(next)] {
				idx[key] = append(idx[key], next)
				i++
			}
		}
	}
	return idx
}

// first returns the first value found under any of labels, in label order.
func (idx fieldIndex) first(labels []string) string {
	for _, l := range labels {
		if vs := idx[l]; len(vs) > 0 {
			return vs[0]
		}
	}
	return ""
}

// all returns every value under any of labels, grouped by label order.
func (idx fieldIndex) all(labels []string) []string {
	var out []string
	for _, l := range labels {
		out = append(out, idx[l]...)
	}
	return out
}
