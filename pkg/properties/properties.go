// Package properties parses header blocks written in the .properties line format.
//
// Each logical line holds one key/value pair separated by '=', ':' or whitespace.
// Blank lines and lines starting with '#' or '!' are ignored, a line ending in an
// odd number of backslashes continues on the next line, and keys and values may
// use the escapes \t \n \r \f \uXXXX. A key given twice keeps its last value.
package properties

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"
)

var ErrMalformed = errors.New("malformed property")

const whitespace = " \t\f"

// ToMap parses text strictly. An empty text yields a nil map.
func ToMap(text string) (map[string]string, error) {
	if text == "" {
		return nil, nil
	}
	return Parse(text)
}

// Parse parses text and fails on the first malformed escape sequence.
func Parse(text string) (map[string]string, error) {
	return parse(text, true)
}

// ParseLenient parses text, skipping entries that contain malformed escape sequences.
func ParseLenient(text string) map[string]string {
	m, _ := parse(text, false)
	return m
}

func parse(text string, strict bool) (map[string]string, error) {
	result := make(map[string]string)
	for i, line := range logicalLines(text) {
		key, value := splitPair(line)
		k, err := unescape(key)
		if err == nil {
			var v string
			v, err = unescape(value)
			if err == nil {
				result[k] = v
				continue
			}
		}
		if strict {
			return nil, fmt.Errorf("%w: entry %d: %w", ErrMalformed, i+1, err)
		}
	}
	return result, nil
}

// logicalLines joins continued lines and drops comments and blank lines.
func logicalLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	natural := strings.Split(text, "\n")

	var lines []string
	for i := 0; i < len(natural); i++ {
		line := strings.TrimLeft(natural[i], whitespace)
		if line == "" || line[0] == '#' || line[0] == '!' {
			continue
		}
		for continues(line) {
			line = line[:len(line)-1]
			if i+1 >= len(natural) {
				break
			}
			i++
			line += strings.TrimLeft(natural[i], whitespace)
		}
		lines = append(lines, line)
	}
	return lines
}

func continues(line string) bool {
	n := 0
	for i := len(line) - 1; i >= 0 && line[i] == '\\'; i-- {
		n++
	}
	return n%2 == 1
}

// splitPair splits a logical line at the first unescaped separator.
func splitPair(line string) (string, string) {
	keyEnd := len(line)
	valueStart := len(line)
	hasSep := false
	escaped := false
	for i := 0; i < len(line); i++ {
		c := line[i]
		if escaped {
			escaped = false
			continue
		}
		if c == '\\' {
			escaped = true
			continue
		}
		if c == '=' || c == ':' {
			keyEnd, valueStart, hasSep = i, i+1, true
			break
		}
		if strings.IndexByte(whitespace, c) >= 0 {
			keyEnd, valueStart = i, i+1
			break
		}
	}

	rest := strings.TrimLeft(line[valueStart:], whitespace)
	if !hasSep && rest != "" && (rest[0] == '=' || rest[0] == ':') {
		rest = strings.TrimLeft(rest[1:], whitespace)
	}
	return line[:keyEnd], rest
}

func unescape(s string) (string, error) {
	if !strings.Contains(s, `\`) {
		return s, nil
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			if c != '\\' {
				b.WriteByte(c)
			}
			continue
		}
		i++
		switch s[i] {
		case 't':
			b.WriteByte('\t')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 'f':
			b.WriteByte('\f')
		case 'u':
			if len(s)-(i+1) < 4 {
				return "", fmt.Errorf(`malformed \uxxxx encoding in %q`, s)
			}
			r, err := hexRune(s[i+1 : i+5])
			if err != nil {
				return "", fmt.Errorf(`malformed \uxxxx encoding in %q`, s)
			}
			i += 4
			// a high surrogate followed by an escaped low surrogate is one character
			if utf16.IsSurrogate(r) && i+6 < len(s) && s[i+1] == '\\' && s[i+2] == 'u' {
				if low, err := hexRune(s[i+3 : i+7]); err == nil {
					if pair := utf16.DecodeRune(r, low); pair != unicode.ReplacementChar {
						r = pair
						i += 6
					}
				}
			}
			b.WriteRune(r)
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String(), nil
}

func hexRune(s string) (rune, error) {
	code, err := strconv.ParseUint(s, 16, 16)
	return rune(code), err
}
