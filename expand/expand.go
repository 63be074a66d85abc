package expand

import (
	"os"
	"os/user"
	"strings"

	"github.com/kodflow/gosh/syntax"
)

// Config carries everything the expansion engine needs from the
// interpreter besides the word itself: variable lookup, the options that
// change expansion behavior, and callbacks for the two expansion forms
// that require running a nested command list (spec §4.3 step 3).
// Grounded on the teacher's expand.Context, split so that the parts
// needing a live process (command/process substitution) are passed in as
// closures rather than this package importing interp.
type Config struct {
	Env Environ

	NoGlob   bool // `noglob`: skip pathname expansion (step 5)
	GlobStar bool // `globstar`: `**` matches across directory boundaries
	NoUnset  bool // `nounset`: referencing an unset variable is an error

	Dir string // working directory pathname expansion is relative to

	// CmdSubst runs a parsed command-substitution body and returns its
	// captured stdout with trailing newlines stripped.
	CmdSubst func(stmts []*syntax.Stmt) (string, error)

	// ProcSubst runs a process-substitution body and returns the
	// /dev/fd (or fifo) path the caller should pass as an argument.
	ProcSubst func(dir syntax.ProcDirection, stmts []*syntax.Stmt) (string, error)
}

func (c *Config) ifs() string {
	v := c.Env.Get("IFS")
	if v.Unset {
		return " \t\n"
	}
	return v.Str
}

// fieldPart is one run of characters contributing to an expanding word,
// tagged with whether it originated inside quotes (spec §3.2 invariant
// (b)): quoted parts are exempt from field splitting and pathname
// expansion (step 4, step 5); unquoted parts are eligible for both.
type fieldPart struct {
	str    string
	quoted bool
}

// Fields expands a command's word list into its final argv (spec §4.3's
// full per-word algorithm, applied across the whole simple command in
// source order).
func Fields(cfg *Config, words ...syntax.Word) ([]string, error) {
	var out []string
	for _, w := range words {
		fs, err := expandWordToFields(cfg, w)
		if err != nil {
			return nil, err
		}
		out = append(out, fs...)
	}
	return out, nil
}

// Literal expands w the way a single-string context does (assignment
// right-hand sides, heredoc delimiters, case subjects, `[[` operands):
// tilde/parameter/command/arithmetic substitution and quote removal run,
// but there is no brace expansion, field splitting or pathname expansion.
func Literal(cfg *Config, w syntax.Word) (string, error) {
	fields, err := expandWordParts(cfg, applyTilde(w).Parts)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, seg := range fields {
		for _, p := range seg {
			b.WriteString(p.str)
		}
	}
	return b.String(), nil
}

// Pattern expands w for use as a glob/case pattern (spec §4.3's "Pattern
// arguments use shell glob syntax" note): substitutions run as usual, but
// characters that came from inside quotes are re-escaped so they match
// themselves literally instead of acting as wildcards.
func Pattern(cfg *Config, w syntax.Word) (string, error) {
	fields, err := expandWordParts(cfg, applyTilde(w).Parts)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, seg := range fields {
		for _, p := range seg {
			if p.quoted {
				b.WriteString(escapeLiteralRun(p.str))
			} else {
				b.WriteString(p.str)
			}
		}
	}
	return b.String(), nil
}

func expandWordToFields(cfg *Config, w syntax.Word) ([]string, error) {
	var out []string
	for _, bw := range ExpandBraces(w) {
		fields, err := expandWordParts(cfg, applyTilde(bw).Parts)
		if err != nil {
			return nil, err
		}
		for _, field := range fields {
			split := splitField(cfg, field)
			for _, ms := range split {
				results, err := globField(cfg, ms)
				if err != nil {
					return nil, err
				}
				out = append(out, results...)
			}
		}
	}
	return out, nil
}

// applyTilde resolves a leading, unquoted TildePrefix part (spec §4.3
// step 2). Assignment-context tilde expansion after an unquoted `:` is
// handled by the caller (interp's assignment evaluation), which splits
// the word on `:` before calling into Literal per segment.
func applyTilde(w syntax.Word) syntax.Word {
	if len(w.Parts) == 0 {
		return w
	}
	tp, ok := w.Parts[0].(*syntax.TildePrefix)
	if !ok {
		return w
	}
	home := tildeHome(tp.User)
	parts := make([]syntax.WordPart, len(w.Parts))
	parts[0] = &syntax.Literal{ValuePos: tp.TildePos, Text: home, QuoteKind: syntax.NoQuote}
	copy(parts[1:], w.Parts[1:])
	return syntax.Word{Parts: parts}
}

func tildeHome(name string) string {
	if name == "" {
		if h := os.Getenv("HOME"); h != "" {
			return h
		}
		if u, err := user.Current(); err == nil {
			return u.HomeDir
		}
		return "~"
	}
	if u, err := user.Lookup(name); err == nil {
		return u.HomeDir
	}
	return "~" + name
}

// expandWordParts resolves every part of a word into a list of fields,
// where a field is a run of fieldParts glued together. Most parts
// contribute exactly one value to the current field; an unquoted
// `${arr[@]}`/`"${arr[@]}"` contributes N values, which splits the word
// into N fields (bash's "a${arr[@]}b" -> a+first, middle elements alone,
// last+b behavior).
func expandWordParts(cfg *Config, parts []syntax.WordPart) ([][]fieldPart, error) {
	var fields [][]fieldPart
	var cur []fieldPart
	for _, wp := range parts {
		values, quoted, err := expandPart(cfg, wp)
		if err != nil {
			return nil, err
		}
		for i, v := range values {
			if i > 0 {
				fields = append(fields, cur)
				cur = nil
			}
			cur = append(cur, fieldPart{str: v, quoted: quoted})
		}
	}
	fields = append(fields, cur)
	if len(fields) == 1 && len(fields[0]) == 0 {
		return nil, nil
	}
	return fields, nil
}

func expandPart(cfg *Config, wp syntax.WordPart) (values []string, quoted bool, err error) {
	switch p := wp.(type) {
	case *syntax.Literal:
		return []string{p.Text}, p.QuoteKind != syntax.NoQuote, nil
	case *syntax.Glob:
		return []string{p.Pattern}, false, nil
	case *syntax.VariableRef:
		vs, err := expandVariableRef(cfg, p)
		return vs, p.QuoteKind != syntax.NoQuote, err
	case *syntax.ParameterExpansion:
		vs, err := EvalParam(cfg, p)
		return vs, p.QuoteKind != syntax.NoQuote, err
	case *syntax.CommandSubstitution:
		if cfg.CmdSubst == nil {
			return []string{""}, p.QuoteKind != syntax.NoQuote, nil
		}
		out, err := cfg.CmdSubst(p.Stmts)
		if err != nil {
			return nil, false, err
		}
		out = strings.TrimRight(out, "\n")
		return []string{out}, p.QuoteKind != syntax.NoQuote, nil
	case *syntax.ArithmeticExpansion:
		text, err := Literal(cfg, p.Expr)
		if err != nil {
			return nil, false, err
		}
		n, err := EvalArith(cfg, text)
		if err != nil {
			return nil, false, err
		}
		return []string{formatInt(n)}, p.QuoteKind != syntax.NoQuote, nil
	case *syntax.TildePrefix:
		return []string{tildeHome(p.User)}, false, nil
	case *syntax.ProcessSubstitution:
		if cfg.ProcSubst == nil {
			return []string{""}, true, nil
		}
		path, err := cfg.ProcSubst(p.Direction, p.Stmts)
		return []string{path}, true, err
	case *syntax.ArrayExpr:
		return nil, true, nil
	}
	return nil, false, nil
}

func expandVariableRef(cfg *Config, v *syntax.VariableRef) ([]string, error) {
	vr := cfg.Env.Get(v.Name)
	switch v.Name {
	case "@":
		if len(vr.Array) == 0 {
			return nil, nil
		}
		return append([]string(nil), vr.Array...), nil
	case "*":
		return []string{strings.Join(vr.Array, firstIFS(cfg))}, nil
	}
	if vr.Unset && cfg.NoUnset {
		return nil, &unboundVariableError{v.Name}
	}
	return []string{vr.String()}, nil
}

type unboundVariableError struct{ name string }

func (e *unboundVariableError) Error() string { return e.name + ": unbound variable" }

func formatInt(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// ExpandArrayLiteral expands `(a b "c d" ...)` assignment right-hand
// sides into the array's final elements; Key (when present) makes the
// element an explicit `arr[key]=value` slot instead of the next
// sequential index.
func ExpandArrayLiteral(cfg *Config, ae *syntax.ArrayExpr) (indexed []string, assoc map[string]string, err error) {
	next := 0
	for _, el := range ae.Elems {
		if el.Key != nil {
			key, kerr := Literal(cfg, *el.Key)
			if kerr != nil {
				return nil, nil, kerr
			}
			val, verr := Literal(cfg, el.Value)
			if verr != nil {
				return nil, nil, verr
			}
			if assoc == nil {
				assoc = map[string]string{}
			}
			assoc[key] = val
			continue
		}
		vals, verr := expandWordToFields(cfg, el.Value)
		if verr != nil {
			return nil, nil, verr
		}
		for _, val := range vals {
			for len(indexed) <= next {
				indexed = append(indexed, "")
			}
			indexed[next] = val
			next++
		}
	}
	return indexed, assoc, nil
}
