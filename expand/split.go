package expand

// maskedString pairs expanded text with a per-byte quoted mask, so field
// splitting and pathname expansion (spec §4.3 steps 4-5) can tell which
// bytes came from inside quotes without re-parsing the source word. The
// mask is byte- rather than rune-aligned: IFS characters and glob
// metacharacters are all ASCII, so this loses no precision for the
// decisions that consult it.
type maskedString struct {
	s      string
	quoted []bool
}

func buildMasked(parts []fieldPart) maskedString {
	var ms maskedString
	for _, p := range parts {
		ms.s += p.str
		for i := 0; i < len(p.str); i++ {
			ms.quoted = append(ms.quoted, p.quoted)
		}
	}
	return ms
}

func isIFSWhitespace(b byte) bool { return b == ' ' || b == '\t' || b == '\n' }

// splitField applies IFS word splitting to one field (spec §4.3 step 4):
// only unquoted runs are split; quoted runs pass through untouched and
// glue to their neighboring split pieces.
func splitField(cfg *Config, parts []fieldPart) []maskedString {
	ifs := cfg.ifs()
	ms := buildMasked(parts)
	if len(ms.s) == 0 {
		// An empty result stays one (empty) field only if part of the word
		// was quoted (`""`, `"$x"`); an empty unquoted expansion vanishes.
		for _, p := range parts {
			if p.quoted {
				return []maskedString{ms}
			}
		}
		return nil
	}
	if ifs == "" {
		return []maskedString{ms}
	}

	var out []maskedString
	var cur maskedString
	i := 0
	n := len(ms.s)
	// Leading unquoted IFS-whitespace is skipped entirely, matching
	// bash's "leading/trailing IFS whitespace is ignored" rule.
	for i < n && !ms.quoted[i] && isIFSWhitespace(ms.s[i]) && containsByte(ifs, ms.s[i]) {
		i++
	}
	flush := func() {
		if len(cur.s) > 0 || len(out) == 0 {
			out = append(out, cur)
		}
		cur = maskedString{}
	}
	for i < n {
		if !ms.quoted[i] && containsByte(ifs, ms.s[i]) {
			flush()
			b := ms.s[i]
			i++
			if isIFSWhitespace(b) {
				for i < n && !ms.quoted[i] && isIFSWhitespace(ms.s[i]) && containsByte(ifs, ms.s[i]) {
					i++
				}
			}
			continue
		}
		cur.s += string(ms.s[i])
		cur.quoted = append(cur.quoted, ms.quoted[i])
		i++
	}
	if len(cur.s) > 0 {
		out = append(out, cur)
	}
	if len(out) == 0 {
		out = append(out, maskedString{})
	}
	return out
}

func containsByte(s string, b byte) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return true
		}
	}
	return false
}

// globField applies pathname expansion (spec §4.3 step 5) to one
// already-split field, respecting per-byte quoting so only unquoted glob
// metacharacters trigger matching.
func globField(cfg *Config, ms maskedString) ([]string, error) {
	if cfg.NoGlob {
		return []string{ms.s}, nil
	}
	anyUnquotedMeta := false
	for i := 0; i < len(ms.s); i++ {
		if !ms.quoted[i] && isGlobMetaByte(ms.s[i]) {
			anyUnquotedMeta = true
			break
		}
	}
	if !anyUnquotedMeta {
		return []string{ms.s}, nil
	}
	pattern := patternFromMasked(ms)
	matches, err := expandGlob(cfg.Dir, pattern, cfg.GlobStar)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return []string{ms.s}, nil
	}
	return matches, nil
}

func isGlobMetaByte(b byte) bool {
	return b == '*' || b == '?' || b == '['
}

func patternFromMasked(ms maskedString) string {
	var b []byte
	for i := 0; i < len(ms.s); i++ {
		c := ms.s[i]
		if ms.quoted[i] && (isGlobMetaByte(c) || c == '\\') {
			b = append(b, '\\')
		}
		b = append(b, c)
	}
	return string(b)
}
