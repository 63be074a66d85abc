package interp

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kodflow/gosh/expand"
)

// runBuiltin dispatches a built-in command (spec §4.4/SPEC_FULL's
// supplemented-features note). The bool result reports whether name
// names a builtin at all, so the caller (invoke, which has already
// checked shell functions) falls through to $PATH resolution when it
// doesn't.
func (r *Runner) runBuiltin(name string, args []string) (int, bool) {
	fn, ok := builtins[name]
	if !ok {
		return 0, false
	}
	return fn(r, args), true
}

var builtins = map[string]func(*Runner, []string) int{
	":":        biTrue,
	"true":     biTrue,
	"false":    biFalse,
	"echo":     biEcho,
	"printf":   biPrintf,
	"cd":       biCd,
	"pwd":      biPwd,
	"exit":     biExit,
	"return":   biReturn,
	"break":    biBreak,
	"continue": biContinue,
	"export":   biExport,
	"readonly": biReadonly,
	"unset":    biUnset,
	"local":    biLocal,
	"declare":  biDeclare,
	"typeset":  biDeclare,
	"set":      biSet,
	"shift":    biShift,
	"eval":     biEval,
	"exec":     biExec,
	"source":   biSource,
	".":        biSource,
	"trap":     biTrap,
	"wait":     biWait,
	"jobs":     biJobs,
	"fg":       biFg,
	"bg":       biBg,
	"kill":     biKill,
	"read":     biRead,
	"hash":     biHash,
	"type":     biType,
	"getopts":  biGetopts,
	"shopt":    biShopt,
	"[":        biTest,
	"test":     biTest,
}

func biTrue(*Runner, []string) int  { return 0 }
func biFalse(*Runner, []string) int { return 1 }

func biEcho(r *Runner, args []string) int {
	a := args[1:]
	noNewline := false
	interpEsc := false
	for len(a) > 0 && strings.HasPrefix(a[0], "-") && len(a[0]) > 1 {
		opt := a[0]
		if strings.Trim(opt[1:], "ne") != "" {
			break
		}
		noNewline = noNewline || strings.ContainsRune(opt, 'n')
		interpEsc = interpEsc || strings.ContainsRune(opt, 'e')
		a = a[1:]
	}
	out := strings.Join(a, " ")
	if interpEsc {
		out = interpretBackslashEscapes(out)
	}
	r.out(out)
	if !noNewline {
		r.out("\n")
	}
	return 0
}

func interpretBackslashEscapes(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '\\':
			b.WriteByte('\\')
		case 'a':
			b.WriteByte(7)
		case 'c':
			return b.String()
		default:
			b.WriteByte('\\')
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func biPrintf(r *Runner, args []string) int {
	if len(args) < 2 {
		r.errf("printf: usage: printf format [arguments]\n")
		return 2
	}
	format := interpretBackslashEscapes(args[1])
	vals := args[2:]
	r.out(renderPrintf(format, vals))
	return 0
}

// renderPrintf is a reduced printf(1): %s %d %i %% and a literal
// passthrough for anything else, looping the format over extra arguments
// the way bash's printf builtin does when more values than conversions
// are given.
func renderPrintf(format string, vals []string) string {
	var out strings.Builder
	vi := 0
	next := func() string {
		if vi < len(vals) {
			v := vals[vi]
			vi++
			return v
		}
		return ""
	}
	apply := func() {
		i := 0
		for i < len(format) {
			if format[i] != '%' || i+1 >= len(format) {
				out.WriteByte(format[i])
				i++
				continue
			}
			j := i + 1
			for j < len(format) && strings.IndexByte("-+0123456789.", format[j]) >= 0 {
				j++
			}
			if j >= len(format) {
				out.WriteByte(format[i])
				i++
				continue
			}
			verb := format[j]
			switch verb {
			case 's':
				out.WriteString(next())
			case 'd', 'i':
				n, _ := strconv.ParseInt(next(), 10, 64)
				out.WriteString(strconv.FormatInt(n, 10))
			case '%':
				out.WriteByte('%')
			default:
				out.WriteString(format[i : j+1])
			}
			i = j + 1
		}
	}
	if len(vals) == 0 {
		apply()
		return out.String()
	}
	for vi < len(vals) {
		before := vi
		apply()
		if vi == before {
			break
		}
	}
	return out.String()
}

func biCd(r *Runner, args []string) int {
	target := ""
	if len(args) > 1 {
		target = args[1]
	} else {
		target = r.Env.Get("HOME").String()
	}
	if target == "-" {
		target = r.Env.Get("OLDPWD").String()
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(r.Dir, target)
	}
	info, err := os.Stat(target)
	if err != nil || !info.IsDir() {
		r.errf("cd: %s: No such file or directory\n", target)
		return 1
	}
	r.Env.Set("OLDPWD", expand.Variable{Str: r.Dir})
	r.Dir = target
	r.Env.Set("PWD", expand.Variable{Str: r.Dir})
	return 0
}

func biPwd(r *Runner, _ []string) int {
	r.out(r.Dir + "\n")
	return 0
}

func biExit(r *Runner, args []string) int {
	code := r.lastStatus
	if len(args) > 1 {
		n, _ := strconv.Atoi(args[1])
		code = n
	}
	r.lastStatus = code
	r.exiting = true
	return code
}

func biReturn(r *Runner, args []string) int {
	code := r.lastStatus
	if len(args) > 1 {
		n, _ := strconv.Atoi(args[1])
		code = n
	}
	r.lastStatus = code
	r.returning = true
	return code
}

func biBreak(r *Runner, args []string) int {
	n := 1
	if len(args) > 1 {
		n, _ = strconv.Atoi(args[1])
	}
	r.breakN += n
	return 0
}

func biContinue(r *Runner, args []string) int {
	n := 1
	if len(args) > 1 {
		n, _ = strconv.Atoi(args[1])
	}
	r.contN += n
	return 0
}

func biExport(r *Runner, args []string) int {
	if len(args) == 1 {
		for _, name := range sortedEnvNames(r.Env) {
			v := r.Env.Get(name)
			if v.Attrs&expand.AttrExported != 0 {
				r.out(fmt.Sprintf("export %s=%q\n", name, v.String()))
			}
		}
		return 0
	}
	for _, arg := range args[1:] {
		name, val, hasVal := strings.Cut(arg, "=")
		v := r.Env.Get(name)
		if hasVal {
			v.Str = val
		}
		v.Attrs |= expand.AttrExported
		v.Unset = false
		r.Env.Set(name, v)
	}
	return 0
}

func biReadonly(r *Runner, args []string) int {
	for _, arg := range args[1:] {
		name, val, hasVal := strings.Cut(arg, "=")
		v := r.Env.Get(name)
		if hasVal {
			v.Str = val
			v.Unset = false
		}
		v.Attrs |= expand.AttrReadonly
		r.Env.Set(name, v)
	}
	return 0
}

func biUnset(r *Runner, args []string) int {
	for _, name := range args[1:] {
		r.Env.Delete(name)
		delete(r.Funcs, name)
	}
	return 0
}

func biLocal(r *Runner, args []string) int {
	for _, arg := range args[1:] {
		name, val, hasVal := strings.Cut(arg, "=")
		v := expand.Variable{}
		if hasVal {
			v.Str = val
		} else {
			v.Unset = true
		}
		r.Env.SetLocal(name, v)
	}
	return 0
}

func biDeclare(r *Runner, args []string) int {
	a := args[1:]
	var attrs expand.VarAttr
	for len(a) > 0 && strings.HasPrefix(a[0], "-") {
		for _, c := range a[0][1:] {
			switch c {
			case 'x':
				attrs |= expand.AttrExported
			case 'r':
				attrs |= expand.AttrReadonly
			case 'i':
				attrs |= expand.AttrInteger
			case 'l':
				attrs |= expand.AttrLowercase
			case 'u':
				attrs |= expand.AttrUppercase
			case 'a':
				attrs |= expand.AttrArray
			case 'A':
				attrs |= expand.AttrAssoc
			}
		}
		a = a[1:]
	}
	for _, arg := range a {
		name, val, hasVal := strings.Cut(arg, "=")
		v := r.Env.Get(name)
		v.Attrs |= attrs
		if hasVal {
			v.Str = val
			v.Unset = false
		}
		r.Env.Set(name, v)
	}
	return 0
}

// longSetOpts maps `set -o name`/`set +o name` names to the ShellOptions
// field they toggle, alongside the short -e/-u/... equivalents below.
var longSetOpts = map[string]func(*Runner, bool){
	"errexit":  func(r *Runner, v bool) { r.Opts.ErrExit = v },
	"nounset":  func(r *Runner, v bool) { r.Opts.NoUnset = v },
	"xtrace":   func(r *Runner, v bool) { r.Opts.XTrace = v },
	"noglob":   func(r *Runner, v bool) { r.Opts.NoGlob = v },
	"verbose":  func(r *Runner, v bool) { r.Opts.Verbose = v },
	"pipefail": func(r *Runner, v bool) { r.Opts.PipeFail = v },
	"monitor":  func(r *Runner, v bool) { r.Opts.Monitor = v },
	"posix":    func(r *Runner, v bool) { r.Opts.Posix = v },
}

func biSet(r *Runner, args []string) int {
	rest := args[1:]
	for i := 0; i < len(rest); i++ {
		arg := rest[i]
		if arg == "--" {
			r.Env.Positional = append([]string{}, rest[i+1:]...)
			return 0
		}
		enable := strings.HasPrefix(arg, "-")
		if !enable && !strings.HasPrefix(arg, "+") {
			r.Env.Positional = append([]string{}, rest[i:]...)
			return 0
		}
		if arg == "-o" || arg == "+o" {
			if i+1 >= len(rest) {
				continue
			}
			i++
			if set, ok := longSetOpts[rest[i]]; ok {
				set(r, enable)
			}
			continue
		}
		for _, c := range arg[1:] {
			switch c {
			case 'e':
				r.Opts.ErrExit = enable
			case 'u':
				r.Opts.NoUnset = enable
			case 'x':
				r.Opts.XTrace = enable
			case 'f':
				r.Opts.NoGlob = enable
			case 'v':
				r.Opts.Verbose = enable
			}
		}
	}
	return 0
}

func biShopt(r *Runner, args []string) int {
	for _, arg := range args[1:] {
		switch arg {
		case "globstar":
			r.Opts.GlobStar = true
		case "-s", "-u":
		}
	}
	return 0
}

func biShift(r *Runner, args []string) int {
	n := 1
	if len(args) > 1 {
		n, _ = strconv.Atoi(args[1])
	}
	if n > len(r.Env.Positional) {
		return 1
	}
	r.Env.Positional = r.Env.Positional[n:]
	return 0
}

func biEval(r *Runner, args []string) int {
	src := strings.Join(args[1:], " ")
	prog, err := parseTrapBody(src)
	if err != nil {
		r.errf("eval: %v\n", err)
		return 2
	}
	r.runStmts(prog.Stmts)
	return r.lastStatus
}

func biSource(r *Runner, args []string) int {
	if len(args) < 2 {
		r.errf("source: filename argument required\n")
		return 2
	}
	data, err := os.ReadFile(args[1])
	if err != nil {
		r.errf("source: %v\n", err)
		return 1
	}
	prog, err := parseTrapBody(string(data))
	if err != nil {
		r.errf("source: %v\n", err)
		return 2
	}
	oldPositional := r.Env.Positional
	if len(args) > 2 {
		r.Env.Positional = args[2:]
	}
	r.runStmts(prog.Stmts)
	r.Env.Positional = oldPositional
	return r.lastStatus
}

func biExec(r *Runner, args []string) int {
	if len(args) < 2 {
		return 0
	}
	r.execExternal(args[1], args[1:])
	return r.lastStatus
}

func biTrap(r *Runner, args []string) int {
	if len(args) == 1 {
		for name, body := range r.Traps {
			r.out(fmt.Sprintf("trap -- %q %s\n", body, name))
		}
		return 0
	}
	action := args[1]
	for _, name := range args[2:] {
		if action == "-" {
			delete(r.Traps, strings.ToUpper(name))
		} else {
			r.Traps[strings.ToUpper(name)] = action
		}
	}
	return 0
}

func biWait(r *Runner, args []string) int {
	if len(args) == 1 {
		for _, j := range r.Jobs.List() {
			r.lastStatus = j.Wait()
		}
		return r.lastStatus
	}
	for _, a := range args[1:] {
		id, _ := strconv.Atoi(strings.TrimPrefix(a, "%"))
		if j, ok := r.Jobs.Get(id); ok {
			r.lastStatus = j.Wait()
		}
	}
	return r.lastStatus
}

func biJobs(r *Runner, _ []string) int {
	for _, j := range r.Jobs.List() {
		r.out(fmt.Sprintf("[%d]  %s\t%s\n", j.ID, j.State, j.Cmd))
	}
	return 0
}

func biFg(r *Runner, args []string) int {
	id := lastJobID(r, args)
	if j, ok := r.Jobs.Get(id); ok {
		r.Jobs.Continue(id)
		return j.Wait()
	}
	return 1
}

func biBg(r *Runner, args []string) int {
	id := lastJobID(r, args)
	r.Jobs.Continue(id)
	return 0
}

func lastJobID(r *Runner, args []string) int {
	if len(args) > 1 {
		n, _ := strconv.Atoi(strings.TrimPrefix(args[1], "%"))
		return n
	}
	jobs := r.Jobs.List()
	if len(jobs) == 0 {
		return 0
	}
	return jobs[len(jobs)-1].ID
}

func biKill(r *Runner, args []string) int {
	if len(args) < 2 {
		return 2
	}
	target := args[len(args)-1]
	id, _ := strconv.Atoi(strings.TrimPrefix(target, "%"))
	if strings.HasPrefix(target, "%") {
		if j, ok := r.Jobs.Get(id); ok && j.PGID != 0 {
			r.Jobs.MarkDone(id, 143)
		}
		return 0
	}
	return 0
}

func biRead(r *Runner, args []string) int {
	names := args[1:]
	if len(names) == 0 {
		names = []string{"REPLY"}
	}
	line, err := readLine(r.Stdin, nil)
	if err != nil {
		return 1
	}
	ifs := r.Env.Get("IFS").String()
	if ifs == "" {
		ifs = " \t\n"
	}
	fields := splitOnIFS(line, ifs, len(names))
	for i, name := range names {
		val := ""
		if i < len(fields) {
			val = fields[i]
		}
		r.Env.Set(name, expand.Variable{Str: val})
	}
	return 0
}

func splitOnIFS(s, ifs string, maxFields int) []string {
	var out []string
	cur := strings.Builder{}
	flush := func() {
		out = append(out, cur.String())
		cur.Reset()
	}
	for _, c := range s {
		if len(out) == maxFields-1 && maxFields > 0 {
			cur.WriteRune(c)
			continue
		}
		if strings.ContainsRune(ifs, c) {
			flush()
			continue
		}
		cur.WriteRune(c)
	}
	flush()
	return out
}

func biHash(*Runner, []string) int { return 0 }

func biType(r *Runner, args []string) int {
	if len(args) < 2 {
		return 0
	}
	name := args[1]
	switch {
	case builtins[name] != nil:
		r.out(name + " is a shell builtin\n")
	case r.Funcs[name] != nil:
		r.out(name + " is a function\n")
	default:
		path, err := r.lookPath(name)
		if err != nil {
			r.errf("%s: not found\n", name)
			return 1
		}
		r.out(name + " is " + path + "\n")
	}
	return 0
}

func biGetopts(r *Runner, args []string) int {
	if len(args) < 3 {
		return 2
	}
	optstring, varname := args[1], args[2]
	optindVar := r.Env.Get("OPTIND")
	optind := 1
	if optindVar.IsSet() {
		optind, _ = strconv.Atoi(optindVar.String())
	}
	if optind-1 >= len(r.Env.Positional) {
		return 1
	}
	arg := r.Env.Positional[optind-1]
	if !strings.HasPrefix(arg, "-") || arg == "-" {
		return 1
	}
	opt := rune(arg[1])
	idx := strings.IndexRune(optstring, opt)
	if idx < 0 {
		r.Env.Set(varname, expand.Variable{Str: "?"})
		r.Env.Set("OPTIND", expand.Variable{Str: strconv.Itoa(optind + 1)})
		return 0
	}
	r.Env.Set(varname, expand.Variable{Str: string(opt)})
	if idx+1 < len(optstring) && optstring[idx+1] == ':' {
		if len(arg) > 2 {
			r.Env.Set("OPTARG", expand.Variable{Str: arg[2:]})
		} else if optind < len(r.Env.Positional) {
			r.Env.Set("OPTARG", expand.Variable{Str: r.Env.Positional[optind]})
			optind++
		}
	}
	r.Env.Set("OPTIND", expand.Variable{Str: strconv.Itoa(optind + 1)})
	return 0
}

func biTest(r *Runner, args []string) int {
	a := args[1:]
	if len(a) > 0 && args[0] == "[" && a[len(a)-1] == "]" {
		a = a[:len(a)-1]
	}
	ok := evalTestArgs(a)
	return boolStatus(ok)
}

// evalTestArgs is a minimal classic `test`/`[` argument evaluator
// (distinct from `[[ ]]`'s TestExpr tree, since POSIX test's grammar is
// argv-shaped rather than parsed at the lexer level).
func evalTestArgs(a []string) bool {
	switch len(a) {
	case 0:
		return false
	case 1:
		return a[0] != ""
	case 2:
		if a[0] == "!" {
			return !evalTestArgs(a[1:])
		}
		return evalUnaryArg(a[0], a[1])
	case 3:
		return evalBinaryArg(a[0], a[1], a[2])
	}
	return false
}

func evalUnaryArg(op, operand string) bool {
	switch op {
	case "-z":
		return operand == ""
	case "-n":
		return operand != ""
	case "-e":
		_, err := os.Stat(operand)
		return err == nil
	case "-f":
		info, err := os.Stat(operand)
		return err == nil && info.Mode().IsRegular()
	case "-d":
		info, err := os.Stat(operand)
		return err == nil && info.IsDir()
	case "-r", "-w", "-x":
		_, err := os.Stat(operand)
		return err == nil
	}
	return false
}

func evalBinaryArg(x, op, y string) bool {
	switch op {
	case "=", "==":
		return x == y
	case "!=":
		return x != y
	case "-eq", "-ne", "-lt", "-le", "-gt", "-ge":
		xn, _ := strconv.Atoi(x)
		yn, _ := strconv.Atoi(y)
		switch op {
		case "-eq":
			return xn == yn
		case "-ne":
			return xn != yn
		case "-lt":
			return xn < yn
		case "-le":
			return xn <= yn
		case "-gt":
			return xn > yn
		case "-ge":
			return xn >= yn
		}
	}
	return false
}

