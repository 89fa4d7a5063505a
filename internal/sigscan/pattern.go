// Package sigscan locates code and data in an executable image by byte
// signature and resolves the position-relative references found there.
//
// A signature is a Pattern: a fixed-length run of exact bytes and wildcards,
// written the way disassembler listings show it ("48 8b 05 ?? ?? ?? ??").
// Matching is brute force, contiguous and exact-length; wildcards match any
// byte value. The first match in address order wins.
package sigscan

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Token is one position of a Pattern.
type Token struct {
	Value    byte
	Wildcard bool
}

// Exact returns a token matching only b.
func Exact(b byte) Token {
	return Token{Value: b}
}

// Any returns a wildcard token.
func Any() Token {
	return Token{Wildcard: true}
}

// Pattern is an immutable, non-empty byte signature.
type Pattern struct {
	tokens []Token
	// anchor is the index of the first exact token, or -1 when every token
	// is a wildcard.
	anchor int
}

var (
	// ErrEmptyPattern is returned when a pattern has no tokens.
	ErrEmptyPattern = errors.New("empty pattern")

	// ErrInvalidToken is returned for a token that is neither hex nor a wildcard.
	ErrInvalidToken = errors.New("invalid pattern token")
)

// NewPattern builds a pattern from tokens. The slice is copied.
func NewPattern(tokens ...Token) (Pattern, error) {
	if len(tokens) == 0 {
		return Pattern{}, ErrEmptyPattern
	}
	p := Pattern{tokens: append([]Token(nil), tokens...), anchor: -1}
	for i, t := range p.tokens {
		if !t.Wildcard {
			p.anchor = i
			break
		}
	}
	return p, nil
}

// ParsePattern parses whitespace-separated hex bytes. "?" and "??" are wildcards.
func ParsePattern(s string) (Pattern, error) {
	fields := strings.Fields(s)
	tokens := make([]Token, 0, len(fields))
	for i, f := range fields {
		if f == "?" || f == "??" {
			tokens = append(tokens, Any())
			continue
		}
		if len(f) > 2 {
			return Pattern{}, fmt.Errorf("token %d %q: %w", i, f, ErrInvalidToken)
		}
		v, err := strconv.ParseUint(f, 16, 8)
		if err != nil {
			return Pattern{}, fmt.Errorf("token %d %q: %w", i, f, ErrInvalidToken)
		}
		tokens = append(tokens, Exact(byte(v)))
	}
	return NewPattern(tokens...)
}

// MustParsePattern is like ParsePattern but panics on error.
// Intended for package-level signature tables.
func MustParsePattern(s string) Pattern {
	p, err := ParsePattern(s)
	if err != nil {
		panic(fmt.Sprintf("sigscan: %q: %v", s, err))
	}
	return p
}

// Len returns the number of tokens.
func (p Pattern) Len() int {
	return len(p.tokens)
}

// Tokens returns a copy of the tokens.
func (p Pattern) Tokens() []Token {
	return append([]Token(nil), p.tokens...)
}

// String renders the pattern in the form accepted by ParsePattern.
func (p Pattern) String() string {
	var sb strings.Builder
	for i, t := range p.tokens {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if t.Wildcard {
			sb.WriteString("??")
		} else {
			fmt.Fprintf(&sb, "%02X", t.Value)
		}
	}
	return sb.String()
}

// MatchAt reports whether data[i:] starts with the pattern.
func (p Pattern) MatchAt(data []byte, i int) bool {
	if i < 0 || len(p.tokens) == 0 || len(data)-i < len(p.tokens) {
		return false
	}
	for j, t := range p.tokens {
		if !t.Wildcard && data[i+j] != t.Value {
			return false
		}
	}
	return true
}

// Index returns the offset of the first match of p in data, or -1.
func Index(data []byte, p Pattern) int {
	return indexFrom(data, p, 0)
}

// IndexAll returns the offsets of up to limit matches (limit <= 0 means all).
// Overlapping matches are reported.
func IndexAll(data []byte, p Pattern, limit int) []int {
	var out []int
	for from := 0; ; {
		i := indexFrom(data, p, from)
		if i < 0 {
			return out
		}
		out = append(out, i)
		if limit > 0 && len(out) >= limit {
			return out
		}
		from = i + 1
	}
}

func indexFrom(data []byte, p Pattern, from int) int {
	n := len(p.tokens)
	if n == 0 {
		return -1
	}
	last := len(data) - n
	if p.anchor < 0 {
		if from <= last {
			return from
		}
		return -1
	}

	want := p.tokens[p.anchor].Value
	for i := from; i <= last; {
		// Skip ahead to the next candidate whose anchor byte matches.
		k := bytes.IndexByte(data[i+p.anchor:last+p.anchor+1], want)
		if k < 0 {
			return -1
		}
		i += k
		if p.MatchAt(data, i) {
			return i
		}
		i++
	}
	return -1
}

// MarshalText implements encoding.TextMarshaler.
func (p Pattern) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Pattern) UnmarshalText(b []byte) error {
	parsed, err := ParsePattern(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
