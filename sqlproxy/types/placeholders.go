package types

import "strings"

// Placeholders maps every parameter reference in a SQL text to the 1-based
// slot SQLite binds it to. Count is the number of slots, which is the
// largest index in use.
type Placeholders struct {
	Index map[string]int
	Count int
}

// ScanPlaceholders finds the parameter references in query, skipping string
// literals, quoted identifiers and comments. Slots are numbered the way
// SQLite numbers them: an anonymous "?" takes the next free slot, "?NNN"
// takes slot NNN, and a name takes the next free slot the first time it
// appears and reuses it afterwards.
func ScanPlaceholders(query string) Placeholders {
	p := Placeholders{Index: map[string]int{}}
	for i := 0; i < len(query); {
		c := query[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			i = skipQuoted(query, i, c)
		case c == '[':
			i = skipQuoted(query, i, ']')
		case c == '-' && i+1 < len(query) && query[i+1] == '-':
			for i < len(query) && query[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(query) && query[i+1] == '*':
			end := strings.Index(query[i+2:], "*/")
			if end < 0 {
				return p
			}
			i += end + 4
		case c == '?':
			j := i + 1
			for j < len(query) && isDigit(query[j]) {
				j++
			}
			if j == i+1 {
				p.Count++
				i = j
				continue
			}
			n := 0
			for _, d := range query[i+1 : j] {
				n = n*10 + int(d-'0')
			}
			p.Index[query[i:j]] = n
			if n > p.Count {
				p.Count = n
			}
			i = j
		case c == ':' || c == '@' || c == '$':
			j := i + 1
			for j < len(query) {
				if isIdentChar(query[j]) {
					j++
				} else if c == '$' && j+1 < len(query) && query[j] == ':' && query[j+1] == ':' {
					j += 2
				} else {
					break
				}
			}
			if j > i+1 {
				name := query[i:j]
				if _, ok := p.Index[name]; !ok {
					p.Count++
					p.Index[name] = p.Count
				}
			}
			i = j
		case isIdentChar(c):
			// Identifiers may contain '$'; consume them whole.
			for i < len(query) && (isIdentChar(query[i]) || query[i] == '$') {
				i++
			}
		default:
			i++
		}
	}
	return p
}

// skipQuoted returns the offset just past the literal opened at start. A
// doubled closing quote is an escaped quote.
func skipQuoted(query string, start int, closing byte) int {
	for i := start + 1; i < len(query); i++ {
		if query[i] != closing {
			continue
		}
		if closing != ']' && i+1 < len(query) && query[i+1] == closing {
			i++
			continue
		}
		return i + 1
	}
	return len(query)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentChar(c byte) bool {
	return c == '_' || isDigit(c) || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}
