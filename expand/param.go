package expand

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/kodflow/gosh/syntax"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// EvalParam evaluates a ${...} parameter expansion (spec §4.3's operator
// table) against cfg.Env, returning one value for scalar forms and
// multiple for the `@`-indexed array forms (so the caller can splice them
// into separate fields the way spec §4.3's "Array semantics" paragraph
// describes).
func EvalParam(cfg *Config, pe *syntax.ParameterExpansion) ([]string, error) {
	switch pe.Op {
	case syntax.ParamPrefixNames:
		return evalPrefixNames(cfg, pe)
	case syntax.ParamIndirect:
		ref := cfg.Env.Get(pe.Param).String()
		return EvalParam(cfg, &syntax.ParameterExpansion{Param: ref, Op: syntax.ParamPlain})
	case syntax.ParamKeys:
		return evalKeys(cfg, pe)
	case syntax.ParamLength:
		return evalLength(cfg, pe)
	}

	atAll, star, values, unset, err := resolveBase(cfg, pe)
	if err != nil {
		return nil, err
	}
	empty := len(values) == 0 || (len(values) == 1 && values[0] == "")

	switch pe.Op {
	case syntax.ParamDefault:
		if unset || (pe.Colon && empty) {
			v, err := Literal(cfg, derefWord(pe.Arg))
			return []string{v}, err
		}
	case syntax.ParamAssign:
		if unset || (pe.Colon && empty) {
			v, err := Literal(cfg, derefWord(pe.Arg))
			if err != nil {
				return nil, err
			}
			if err := cfg.Env.Set(pe.Param, Variable{Str: v}); err != nil {
				return nil, err
			}
			return []string{v}, nil
		}
	case syntax.ParamError:
		if unset || (pe.Colon && empty) {
			msg, _ := Literal(cfg, derefWord(pe.Arg))
			if msg == "" {
				msg = "parameter null or not set"
			}
			return nil, fmt.Errorf("%s: %s", pe.Param, msg)
		}
	case syntax.ParamAlt:
		if unset || (pe.Colon && empty) {
			return []string{""}, nil
		}
		v, err := Literal(cfg, derefWord(pe.Arg))
		return []string{v}, err
	}

	if unset && cfg.NoUnset && pe.Param != "@" && pe.Param != "*" {
		return nil, fmt.Errorf("%s: unbound variable", pe.Param)
	}

	switch pe.Op {
	case syntax.ParamPlain:
		return values, nil
	case syntax.ParamRemoveShortestPrefix, syntax.ParamRemoveLongestPrefix,
		syntax.ParamRemoveShortestSuffix, syntax.ParamRemoveLongestSuffix:
		pat, err := Pattern(cfg, derefWord(pe.Arg))
		if err != nil {
			return nil, err
		}
		return mapValues(values, func(s string) string { return trimByPattern(pe.Op, s, pat) }), nil
	case syntax.ParamReplace:
		pat, err := Pattern(cfg, derefWord(pe.Arg))
		if err != nil {
			return nil, err
		}
		repl, err := Literal(cfg, derefWord(pe.Repl))
		if err != nil {
			return nil, err
		}
		return mapValues(values, func(s string) string {
			return replaceByPattern(s, pat, repl, pe.Anchor, pe.All)
		}), nil
	case syntax.ParamSlice:
		return evalSlice(cfg, pe, values, atAll || star)
	case syntax.ParamCaseFirstUpper, syntax.ParamCaseAllUpper,
		syntax.ParamCaseFirstLower, syntax.ParamCaseAllLower:
		var argPat string
		if pe.Arg != nil {
			var err error
			argPat, err = Pattern(cfg, *pe.Arg)
			if err != nil {
				return nil, err
			}
		}
		return mapValues(values, func(s string) string { return foldCase(pe.Op, s, argPat) }), nil
	}
	return values, nil
}

func derefWord(w *syntax.Word) syntax.Word {
	if w == nil {
		return syntax.Word{}
	}
	return *w
}

func mapValues(values []string, f func(string) string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = f(v)
	}
	return out
}

// resolveBase fetches the parameter's current value(s), before any
// operator is applied. atAll/star report whether Index selected `@`/`*`
// on an array, in which case values holds one string per element.
func resolveBase(cfg *Config, pe *syntax.ParameterExpansion) (atAll, star bool, values []string, unset bool, err error) {
	v := cfg.Env.Get(pe.Param)
	unset = v.Unset

	if pe.Index == nil {
		if v.Attrs&AttrArray != 0 {
			if len(v.Array) == 0 {
				return false, false, nil, unset, nil
			}
			return false, false, []string{v.Array[0]}, unset, nil
		}
		return false, false, []string{v.String()}, unset, nil
	}

	if lit, ok := pe.Index.Lit(); ok && (lit == "@" || lit == "*") {
		if v.Attrs&AttrAssoc != 0 {
			keys := sortedKeys(v.Assoc)
			vals := make([]string, len(keys))
			for i, k := range keys {
				vals[i] = v.Assoc[k]
			}
			return lit == "@", lit == "*", vals, unset, nil
		}
		return lit == "@", lit == "*", append([]string(nil), v.Array...), unset, nil
	}

	idxText, err := Literal(cfg, *pe.Index)
	if err != nil {
		return false, false, nil, unset, err
	}
	if v.Attrs&AttrAssoc != 0 {
		s, ok := v.Assoc[idxText]
		return false, false, []string{s}, !ok, nil
	}
	n, err := EvalArith(cfg, idxText)
	if err != nil {
		return false, false, nil, unset, err
	}
	if n < 0 {
		n += int64(len(v.Array))
	}
	if n < 0 || n >= int64(len(v.Array)) {
		return false, false, []string{""}, true, nil
	}
	return false, false, []string{v.Array[n]}, false, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func evalLength(cfg *Config, pe *syntax.ParameterExpansion) ([]string, error) {
	v := cfg.Env.Get(pe.Param)
	if pe.Index != nil {
		if lit, ok := pe.Index.Lit(); ok && (lit == "@" || lit == "*") {
			if v.Attrs&AttrAssoc != 0 {
				return []string{strconv.Itoa(len(v.Assoc))}, nil
			}
			return []string{strconv.Itoa(len(v.Array))}, nil
		}
	}
	if v.Attrs&AttrArray != 0 {
		if len(v.Array) == 0 {
			return []string{"0"}, nil
		}
		return []string{strconv.Itoa(utf8.RuneCountInString(v.Array[0]))}, nil
	}
	return []string{strconv.Itoa(utf8.RuneCountInString(v.String()))}, nil
}

func evalPrefixNames(cfg *Config, pe *syntax.ParameterExpansion) ([]string, error) {
	prefix := strings.TrimPrefix(pe.Param, "!")
	var names []string
	cfg.Env.Each(func(name string, _ Variable) bool {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
		return true
	})
	sort.Strings(names)
	if pe.All {
		return names, nil
	}
	return []string{strings.Join(names, firstIFS(cfg))}, nil
}

func evalKeys(cfg *Config, pe *syntax.ParameterExpansion) ([]string, error) {
	v := cfg.Env.Get(pe.Param)
	if v.Attrs&AttrAssoc != 0 {
		return sortedKeys(v.Assoc), nil
	}
	keys := make([]string, len(v.Array))
	for i := range v.Array {
		keys[i] = strconv.Itoa(i)
	}
	return keys, nil
}

func firstIFS(cfg *Config) string {
	ifs := cfg.ifs()
	if ifs == "" {
		return ""
	}
	return ifs[:1]
}

func evalSlice(cfg *Config, pe *syntax.ParameterExpansion, values []string, isArray bool) ([]string, error) {
	offText, err := Literal(cfg, derefWord(pe.Offset))
	if err != nil {
		return nil, err
	}
	off, err := EvalArith(cfg, offText)
	if err != nil {
		return nil, err
	}
	if isArray {
		n := int64(len(values))
		if off < 0 {
			off += n
		}
		length := n - off
		if pe.Length != nil {
			lenText, err := Literal(cfg, *pe.Length)
			if err != nil {
				return nil, err
			}
			length, err = EvalArith(cfg, lenText)
			if err != nil {
				return nil, err
			}
		}
		return sliceBounds(values, off, length), nil
	}
	s := ""
	if len(values) > 0 {
		s = values[0]
	}
	runes := []rune(s)
	n := int64(len(runes))
	if off < 0 {
		off += n
	}
	length := n - off
	if pe.Length != nil {
		lenText, err := Literal(cfg, *pe.Length)
		if err != nil {
			return nil, err
		}
		length, err = EvalArith(cfg, lenText)
		if err != nil {
			return nil, err
		}
	}
	if off < 0 {
		off = 0
	}
	if off > n {
		off = n
	}
	end := off + length
	if length < 0 {
		end = n + length
	}
	if end > n {
		end = n
	}
	if end < off {
		end = off
	}
	return []string{string(runes[off:end])}, nil
}

func sliceBounds(values []string, off, length int64) []string {
	n := int64(len(values))
	if off < 0 {
		off = 0
	}
	if off > n {
		off = n
	}
	end := off + length
	if length < 0 {
		end = n + length
	}
	if end > n {
		end = n
	}
	if end < off {
		end = off
	}
	return append([]string(nil), values[off:end]...)
}

// trimByPattern implements `${var#pat}`/`##`/`%`/`%%`: strip the
// shortest/longest prefix or suffix of s that matches the glob pat.
func trimByPattern(op syntax.ParamOp, s, pat string) string {
	longest := op == syntax.ParamRemoveLongestPrefix || op == syntax.ParamRemoveLongestSuffix
	suffix := op == syntax.ParamRemoveShortestSuffix || op == syntax.ParamRemoveLongestSuffix
	runes := []rune(s)
	n := len(runes)
	if !suffix {
		best := -1
		for i := 0; i <= n; i++ {
			if matchGlob(pat, string(runes[:i])) {
				best = i
				if !longest {
					break
				}
			}
		}
		if best < 0 {
			return s
		}
		return string(runes[best:])
	}
	best := -1
	for i := n; i >= 0; i-- {
		if matchGlob(pat, string(runes[i:])) {
			best = i
			if !longest {
				break
			}
		}
	}
	if best < 0 {
		return s
	}
	return string(runes[:best])
}

// replaceByPattern implements `${var/pat/repl}` and its `//`, `/#`, `/%`
// variants. Matching uses the same glob dialect as pathname expansion,
// scanned left to right; this is a simplification of bash's fnmatch-based
// substring search, adequate for the literal and single-wildcard patterns
// spec §4.3 exercises.
func replaceByPattern(s, pat, repl string, anchor syntax.ParamAnchor, all bool) string {
	runes := []rune(s)
	n := len(runes)

	switch anchor {
	case syntax.AnchorBack:
		for i := 0; i <= n; i++ {
			if matchGlob(pat, string(runes[i:])) {
				return string(runes[:i]) + repl
			}
		}
		return s
	case syntax.AnchorFront:
		for j := n; j >= 0; j-- {
			if matchGlob(pat, string(runes[:j])) {
				return repl + string(runes[j:])
			}
		}
		return s
	}

	var b strings.Builder
	i := 0
	for i <= n {
		matchLen := -1
		for j := n; j >= i; j-- {
			if matchGlob(pat, string(runes[i:j])) {
				matchLen = j - i
				break
			}
		}
		if matchLen < 0 {
			if i < n {
				b.WriteRune(runes[i])
			}
			i++
			continue
		}
		b.WriteString(repl)
		i += matchLen
		if matchLen == 0 {
			if i < n {
				b.WriteRune(runes[i])
			}
			i++
		}
		if !all {
			if i < n {
				b.WriteString(string(runes[i:]))
			}
			return b.String()
		}
	}
	return b.String()
}

func foldCase(op syntax.ParamOp, s, argPat string) string {
	all := op == syntax.ParamCaseAllUpper || op == syntax.ParamCaseAllLower
	upper := op == syntax.ParamCaseFirstUpper || op == syntax.ParamCaseAllUpper
	caser := cases.Lower(language.Und)
	if upper {
		caser = cases.Upper(language.Und)
	}
	runes := []rune(s)
	for i, r := range runes {
		if !all && i > 0 {
			break
		}
		if argPat != "" && !matchGlob(argPat, string(r)) {
			continue
		}
		runes[i] = []rune(caser.String(string(r)))[0]
	}
	return string(runes)
}
