package expand

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/kodflow/gosh/syntax"
)

// ExpandBraces performs bash brace expansion on the textual shape of a
// word (spec §4.3 step 1: `a{b,c}d` -> `abd acd`, plus `{1..5}` and
// `{1..10..2}` numeric ranges). Brace expansion never crosses quotes, so
// only unquoted Literal parts are treated as brace syntax; other parts
// (expansions) are carried through as opaque placeholders so a pattern
// like `pre{a,b}$x` still expands correctly, sharing the $x part across
// both resulting words exactly as the teacher's implementation documents
// for its own Lit-sharing behavior.
func ExpandBraces(w syntax.Word) []syntax.Word {
	if !hasBraceSyntax(w) {
		return []syntax.Word{w}
	}
	var placeholders []syntax.WordPart
	var src strings.Builder
	for _, p := range w.Parts {
		if lit, ok := p.(*syntax.Literal); ok && lit.QuoteKind == syntax.NoQuote {
			src.WriteString(lit.Text)
			continue
		}
		idx := len(placeholders)
		placeholders = append(placeholders, p)
		fmt.Fprintf(&src, "\x00%d\x00", idx)
	}
	alts := expandBraceText(src.String())
	if len(alts) <= 1 {
		return []syntax.Word{w}
	}
	words := make([]syntax.Word, len(alts))
	for i, alt := range alts {
		words[i] = rebuildWord(alt, placeholders)
	}
	return words
}

func hasBraceSyntax(w syntax.Word) bool {
	for _, p := range w.Parts {
		lit, ok := p.(*syntax.Literal)
		if ok && lit.QuoteKind == syntax.NoQuote && strings.Contains(lit.Text, "{") {
			return true
		}
	}
	return false
}

var placeholderRe = regexp.MustCompile("\x00(\\d+)\x00")

func rebuildWord(alt string, placeholders []syntax.WordPart) syntax.Word {
	var parts []syntax.WordPart
	last := 0
	for _, loc := range placeholderRe.FindAllStringSubmatchIndex(alt, -1) {
		if loc[0] > last {
			parts = append(parts, &syntax.Literal{Text: alt[last:loc[0]]})
		}
		n, _ := strconv.Atoi(alt[loc[2]:loc[3]])
		parts = append(parts, placeholders[n])
		last = loc[1]
	}
	if last < len(alt) {
		parts = append(parts, &syntax.Literal{Text: alt[last:]})
	}
	return syntax.Word{Parts: parts}
}

// expandBraceText recursively expands the first top-level `{...}` group in
// s, malformed groups (no top-level comma and no valid `..` range) are
// left as literal text, matching bash's "skip and move on" behavior.
func expandBraceText(s string) []string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return []string{s}
	}
	depth := 0
	end := -1
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				end = i
			}
		}
		if end >= 0 {
			break
		}
	}
	if end < 0 {
		return []string{s}
	}
	prefix, body, suffix := s[:start], s[start+1:end], s[end+1:]
	suffixAlts := expandBraceText(suffix)

	items := splitTopLevel(body, ',')
	var mids []string
	if len(items) > 1 {
		for _, it := range items {
			mids = append(mids, expandBraceText(it)...)
		}
	} else if rng, ok := parseRange(body); ok {
		mids = rng
	} else {
		var out []string
		for _, suf := range suffixAlts {
			out = append(out, prefix+"{"+body+"}"+suf)
		}
		return out
	}

	var out []string
	for _, mid := range mids {
		for _, suf := range suffixAlts {
			out = append(out, prefix+mid+suf)
		}
	}
	return out
}

func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	last := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
		case sep:
			if depth == 0 {
				parts = append(parts, s[last:i])
				last = i + 1
			}
		}
	}
	parts = append(parts, s[last:])
	return parts
}

// parseRange handles `a..b` and `a..b..step`, either as zero-padded
// integers or single ASCII letters.
func parseRange(body string) ([]string, bool) {
	parts := strings.Split(body, "..")
	if len(parts) < 2 || len(parts) > 3 {
		return nil, false
	}
	step := 1
	if len(parts) == 3 {
		n, err := strconv.Atoi(parts[2])
		if err != nil || n == 0 {
			return nil, false
		}
		if n < 0 {
			n = -n
		}
		step = n
	}

	if isIntLiteral(parts[0]) && isIntLiteral(parts[1]) {
		a, _ := strconv.Atoi(parts[0])
		b, _ := strconv.Atoi(parts[1])
		width := 0
		if hasLeadingZero(parts[0]) || hasLeadingZero(parts[1]) {
			width = maxInt(len(strings.TrimPrefix(parts[0], "-")), len(strings.TrimPrefix(parts[1], "-")))
		}
		var out []string
		if a <= b {
			for v := a; v <= b; v += step {
				out = append(out, padInt(v, width))
			}
		} else {
			for v := a; v >= b; v -= step {
				out = append(out, padInt(v, width))
			}
		}
		return out, true
	}

	if len(parts[0]) == 1 && len(parts[1]) == 1 && isAlpha(parts[0][0]) && isAlpha(parts[1][0]) {
		a, b := parts[0][0], parts[1][0]
		var out []string
		if a <= b {
			for v := int(a); v <= int(b); v += step {
				out = append(out, string(rune(v)))
			}
		} else {
			for v := int(a); v >= int(b); v -= step {
				out = append(out, string(rune(v)))
			}
		}
		return out, true
	}
	return nil, false
}

func isIntLiteral(s string) bool {
	if s == "" {
		return false
	}
	i := 0
	if s[0] == '-' || s[0] == '+' {
		i++
	}
	if i == len(s) {
		return false
	}
	for ; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func hasLeadingZero(s string) bool {
	s = strings.TrimPrefix(s, "-")
	return len(s) > 1 && s[0] == '0'
}

func isAlpha(b byte) bool { return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') }

func padInt(v, width int) string {
	s := strconv.Itoa(v)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	for len(s) < width {
		s = "0" + s
	}
	if neg {
		s = "-" + s
	}
	return s
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
