package expand

import (
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// globMetaChars are the pathname-expansion metacharacters spec §4.3 step 5
// recognizes. Extglob sigils (?( *( +( @( !( ) are deliberately excluded:
// the lexer cannot currently carve `(` out of a word at arbitrary nesting
// (see syntax package's documented extglob limitation), so `extglob` is
// accepted as a shell option but never actually changes matching here.
const globMetaChars = "*?["

// hasGlobMeta reports whether s contains an unescaped glob metacharacter.
func hasGlobMeta(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' {
			i++
			continue
		}
		if strings.IndexByte(globMetaChars, s[i]) >= 0 {
			return true
		}
	}
	return false
}

// expandGlob expands pattern (a shell glob, with `**` meaning globstar only
// when globstar is true) against the directory tree rooted at dir. A
// pattern with no matches yields no paths; the caller then keeps the
// original word, which is bash's default (non-nullglob) behavior.
func expandGlob(dir, pattern string, globstar bool) ([]string, error) {
	if dir == "" {
		dir = "."
	}
	if filepath.IsAbs(pattern) {
		dir, pattern = "/", strings.TrimPrefix(pattern, "/")
	}
	var matches []string
	var err error
	if globstar && strings.Contains(pattern, "**") {
		matches, err = doublestar.Glob(os.DirFS(dir), pattern)
		if dir == "/" {
			for i, m := range matches {
				matches[i] = "/" + m
			}
		}
	} else {
		matches, err = filepath.Glob(filepath.Join(dir, pattern))
		for i, m := range matches {
			rel, rerr := filepath.Rel(dir, m)
			if rerr == nil && dir != "/" {
				matches[i] = rel
			}
		}
	}
	if err != nil || len(matches) == 0 {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

// MatchPattern reports whether name matches a shell glob pattern already
// produced by Pattern (case-arm subjects and `[[ x == pattern ]]` both use
// this rather than expandGlob, since they match a string, not a directory).
func MatchPattern(pattern, name string) bool { return matchGlob(pattern, name) }

// matchGlob reports whether name matches the shell glob pattern, using the
// same pattern dialect as expandGlob (doublestar, a superset of
// path/filepath's that additionally supports `**`). Used by case arms and
// `[[ x == pattern ]]`, which match strings rather than walk a filesystem.
func matchGlob(pattern, name string) bool {
	ok, err := doublestar.Match(pattern, name)
	if err != nil {
		ok, _ = path.Match(pattern, name)
	}
	return ok
}

// escapeLiteralRun backslash-escapes any glob metacharacter in s, so that
// text which originated inside quotes is passed through pattern matching
// as a literal even when it sits next to unquoted metacharacters (spec
// §4.3 step 5's `"*".txt` vs `*".txt"` example).
func escapeLiteralRun(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(globMetaChars+`\`, s[i]) >= 0 {
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
