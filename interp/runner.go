package interp

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kodflow/gosh/expand"
	"github.com/kodflow/gosh/syntax"
)

// ShellOptions is spec §3.4's `ShellOptions` record.
type ShellOptions struct {
	ErrExit     bool
	NoUnset     bool
	XTrace      bool
	PipeFail    bool
	NoGlob      bool
	Verbose     bool
	Interactive bool
	Posix       bool
	Monitor     bool
	GlobStar    bool
	ExtGlob     bool
}

// Runner is the AST-walking executor (spec §4.4): one visit method per
// node kind, with exit status, break/continue, and function-return
// propagated as Runner fields rather than exceptions. Grounded on the
// teacher's `Runner` (interp.go/runner.go): the break/continue counters
// in particular (`breakEnclosing`/`contnEnclosing`, decremented at each
// enclosing loop boundary rather than unwound via panic/recover) are
// lifted directly from the teacher's `loopStmtsBroken`.
type Runner struct {
	Env   *Environ
	Funcs map[string]*syntax.FunctionDef
	Alias map[string]string
	Opts  ShellOptions
	Traps map[string]string
	Jobs  *JobTable

	Dir    string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// expand.Config's CmdSubst/ProcSubst callbacks are r.runCmdSubst and
	// r.runProcSubst, wired in cfg().
	lastStatus int
	breakN     int
	contN      int
	returning  bool
	exiting    bool

	// noErrExit suppresses the errexit/ERR-trap trigger in runStmt while
	// set, for guarded positions: if/while/until conditions, a negated
	// pipeline, and the left side of && / ||.
	noErrExit bool

	// currentJob is set on a subRunner spun up for a `&` background
	// command, so execExternal can record the forked process's pgid for
	// `jobs`/`fg`/`bg`/`kill %n`.
	currentJob *Job

	pathCache map[string]string
}

// New builds a Runner with fresh global state (spec §3.4's runtime
// entities, all frame 0 / empty).
func New() *Runner {
	r := &Runner{
		Env:       NewEnviron(),
		Funcs:     map[string]*syntax.FunctionDef{},
		Alias:     map[string]string{},
		Traps:     map[string]string{},
		Jobs:      NewJobTable(),
		Stdin:     os.Stdin,
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
		pathCache: map[string]string{},
	}
	if wd, err := os.Getwd(); err == nil {
		r.Dir = wd
	}
	r.Env.Set("IFS", expand.Variable{Str: " \t\n"})
	r.Env.Set("PWD", expand.Variable{Str: r.Dir})
	r.Env.Set("SHLVL", expand.Variable{Str: "1"})
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			r.Env.Set(kv[:i], expand.Variable{Str: kv[i+1:], Attrs: expand.AttrExported})
		}
	}
	return r
}

func (r *Runner) cfg() *expand.Config {
	return &expand.Config{
		Env:       r.Env,
		NoGlob:    r.Opts.NoGlob,
		GlobStar:  r.Opts.GlobStar,
		NoUnset:   r.Opts.NoUnset,
		Dir:       r.Dir,
		CmdSubst:  r.runCmdSubst,
		ProcSubst: r.runProcSubst,
	}
}

func (r *Runner) fields(words ...syntax.Word) []string {
	fs, err := expand.Fields(r.cfg(), words...)
	if err != nil {
		r.errf("%v\n", err)
		r.lastStatus = 1
		return nil
	}
	return fs
}

func (r *Runner) literal(w syntax.Word) string {
	s, err := expand.Literal(r.cfg(), w)
	if err != nil {
		r.errf("%v\n", err)
	}
	return s
}

func (r *Runner) pattern(w syntax.Word) string {
	s, err := expand.Pattern(r.cfg(), w)
	if err != nil {
		r.errf("%v\n", err)
	}
	return s
}

func (r *Runner) arith(w syntax.Word) int64 {
	text := r.literal(w)
	n, err := expand.EvalArith(r.cfg(), text)
	if err != nil {
		r.errf("%v\n", err)
		return 0
	}
	return n
}

func (r *Runner) out(s string)  { io.WriteString(r.Stdout, s) }
func (r *Runner) errf(format string, a ...any) {
	fmt.Fprintf(r.Stderr, format, a...)
}

// stop reports whether the executor should stop descending: a guarded
// "exit" propagation (errexit) or a function return in progress.
func (r *Runner) stop() bool { return r.exiting || r.returning }

// Run executes a parsed program top to bottom and returns the final exit
// status (spec §4.4's dispatch contract).
func (r *Runner) Run(f *syntax.File) int {
	r.runStmts(f.Stmts)
	if trap, ok := r.Traps["EXIT"]; ok && trap != "" {
		r.runTrapBody(trap)
	}
	return r.lastStatus
}

func (r *Runner) runStmts(stmts []*syntax.Stmt) {
	for _, st := range stmts {
		r.runStmt(st)
		if r.stop() || r.breakN > 0 || r.contN > 0 {
			return
		}
	}
}

func (r *Runner) runStmt(st *syntax.Stmt) {
	if r.stop() {
		return
	}
	if debugTrap, ok := r.Traps["DEBUG"]; ok && debugTrap != "" {
		r.runTrapBody(debugTrap)
	}
	if st.Background {
		r.runBackground(st)
		return
	}
	r.runCommand(st.Cmd)
	if r.lastStatus != 0 && !r.noErrExit {
		if errTrap, ok := r.Traps["ERR"]; ok && errTrap != "" {
			r.runTrapBody(errTrap)
		}
		if r.Opts.ErrExit {
			r.exiting = true
		}
	}
}

func (r *Runner) runBackground(st *syntax.Stmt) {
	sub := r.subRunner()
	job := r.Jobs.Add()
	sub.currentJob = job
	job.Cmd = stmtSummary(st)
	go func() {
		sub.runCommand(st.Cmd)
		r.Jobs.MarkDone(job.ID, sub.lastStatus)
	}()
	r.Env.LastBgPID = job.ID
}

// stmtSummary renders a short label for `jobs` output; exactness is not
// required since the job table is a convenience view, not the execution
// path.
func stmtSummary(st *syntax.Stmt) string {
	if sc, ok := st.Cmd.(*syntax.SimpleCommand); ok && len(sc.Words) > 0 {
		if lit, ok := sc.Words[0].Lit(); ok {
			return lit
		}
	}
	return "..."
}

func (r *Runner) runCommand(cm syntax.Command) {
	if r.stop() {
		return
	}
	switch cm := cm.(type) {
	case *syntax.SimpleCommand:
		r.runSimple(cm)
	case *syntax.Pipeline:
		r.runPipeline(cm)
	case *syntax.AndOrList:
		r.runAndOr(cm)
	case *syntax.If:
		r.runIf(cm)
	case *syntax.While:
		r.runWhile(cm)
	case *syntax.For:
		r.runFor(cm)
	case *syntax.CFor:
		r.runCFor(cm)
	case *syntax.Select:
		r.runSelect(cm)
	case *syntax.Case:
		r.runCase(cm)
	case *syntax.Subshell:
		r.runSubshell(cm)
	case *syntax.BraceGroup:
		r.runStmts(cm.Body)
	case *syntax.FunctionDef:
		r.Funcs[cm.Name] = cm
		r.lastStatus = 0
	case *syntax.ArithCommand:
		r.lastStatus = boolStatus(r.arith(cm.Expr) != 0)
	case *syntax.TestCommand:
		r.lastStatus = boolStatus(r.evalTest(cm.Expr))
	default:
		panic(fmt.Sprintf("interp: unhandled command node %T", cm))
	}
	r.Env.LastStatus = r.lastStatus
}

func boolStatus(ok bool) int {
	if ok {
		return 0
	}
	return 1
}

// ---- simple commands (spec §4.4 "Simple command") ----

func (r *Runner) runSimple(sc *syntax.SimpleCommand) {
	restores, err := r.applyRedirects(sc.Redirs)
	defer restores()
	if err != nil {
		r.errf("%v\n", err)
		r.lastStatus = 1
		return
	}

	if len(sc.Words) == 0 {
		// Bare assignment(s): apply to the current shell (spec §4.4 step 1).
		r.lastStatus = 0
		for _, as := range sc.Assigns {
			r.runAssign(as, r.Env)
		}
		return
	}

	args := r.fields(sc.Words...)
	if len(args) == 0 {
		r.lastStatus = 0
		return
	}
	name := args[0]

	if len(sc.Assigns) > 0 {
		// Assignments before a command word apply only to the child's
		// environment (spec §4.4 step 1's second sentence).
		childEnv := r.Env.Sub()
		for _, as := range sc.Assigns {
			r.runAssignInto(as, childEnv)
		}
		sub := *r
		sub.Env = childEnv
		sub.invoke(name, args)
		r.lastStatus = sub.lastStatus
		return
	}
	r.invoke(name, args)
}

func (r *Runner) runAssign(as *syntax.Assign, env *Environ) {
	if as.Array != nil {
		indexed, assoc, err := expand.ExpandArrayLiteral(r.cfg(), as.Array)
		if err != nil {
			r.errf("%v\n", err)
			r.lastStatus = 1
			return
		}
		if assoc != nil {
			env.Set(as.Name, expand.Variable{Attrs: expand.AttrAssoc, Assoc: assoc})
		} else {
			env.Set(as.Name, expand.Variable{Attrs: expand.AttrArray, Array: indexed})
		}
		return
	}
	val := ""
	if as.Value != nil {
		val = r.literal(*as.Value)
	}
	if as.Index != nil {
		idxText := r.literal(*as.Index)
		v := env.Get(as.Name)
		if v.Attrs&expand.AttrAssoc != 0 {
			if v.Assoc == nil {
				v.Assoc = map[string]string{}
			}
			v.Assoc[idxText] = val
			if err := env.Set(as.Name, v); err != nil {
				r.errf("%v\n", err)
				r.lastStatus = 1
			}
			return
		}
		n, aerr := expand.EvalArith(r.cfg(), idxText)
		if aerr != nil {
			r.errf("%s: %v\n", as.Name, aerr)
			r.lastStatus = 1
			return
		}
		for int64(len(v.Array)) <= n {
			v.Array = append(v.Array, "")
		}
		v.Array[n] = val
		v.Attrs |= expand.AttrArray
		if err := env.Set(as.Name, v); err != nil {
			r.errf("%v\n", err)
			r.lastStatus = 1
		}
		return
	}
	if as.Append {
		old := env.Get(as.Name)
		val = old.String() + val
	}
	if err := env.Set(as.Name, expand.Variable{Str: val}); err != nil {
		r.errf("%v\n", err)
		r.lastStatus = 1
	}
}

func (r *Runner) runAssignInto(as *syntax.Assign, env *Environ) { r.runAssign(as, env) }

func (r *Runner) invoke(name string, args []string) {
	if fn, ok := r.Funcs[name]; ok {
		r.callFunction(fn, args)
		return
	}
	if status, ok := r.runBuiltin(name, args); ok {
		r.lastStatus = status
		return
	}
	r.execExternal(name, args)
}

func (r *Runner) callFunction(fn *syntax.FunctionDef, args []string) {
	oldPositional := r.Env.Positional
	r.Env.Positional = args[1:]
	r.Env.PushFrame()
	r.runStmt(fn.Body)
	r.Env.PopLocals()
	r.Env.Positional = oldPositional
	if r.returning {
		r.returning = false
	}
}

func (r *Runner) execExternal(name string, args []string) {
	path, err := r.lookPath(name)
	if err != nil {
		r.errf("%s: command not found\n", name)
		r.lastStatus = 127
		return
	}
	cmd := exec.Command(path, args[1:]...)
	cmd.Dir = r.Dir
	cmd.Stdin = r.Stdin
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	cmd.Env = r.Env.ExportedEnv()
	setProcessGroup(cmd)
	err = cmd.Start()
	if err != nil {
		r.lastStatus = exitCodeOf(err)
		return
	}
	if r.currentJob != nil {
		r.currentJob.PGID = cmd.Process.Pid
	} else if r.Opts.Monitor && r.Opts.Interactive {
		// Foreground external command in an interactive, job-control
		// shell: hand the terminal to its process group for the
		// duration of the wait (spec §5's foreground handoff).
		foregroundHandoff(cmd.Process.Pid, func() { err = cmd.Wait() })
		r.lastStatus = exitCodeOf(err)
		return
	}
	r.lastStatus = exitCodeOf(cmd.Wait())
}

func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	if ee, ok := err.(*exec.ExitError); ok {
		return ee.ExitCode()
	}
	if _, ok := err.(*os.PathError); ok {
		return 126
	}
	return 1
}

func (r *Runner) lookPath(name string) (string, error) {
	if strings.ContainsRune(name, '/') {
		return name, nil
	}
	if p, ok := r.pathCache[name]; ok {
		return p, nil
	}
	pathEnv := r.Env.Get("PATH").String()
	for _, dir := range filepath.SplitList(pathEnv) {
		cand := filepath.Join(dir, name)
		if info, err := os.Stat(cand); err == nil && !info.IsDir() && info.Mode()&0111 != 0 {
			r.pathCache[name] = cand
			return cand, nil
		}
	}
	return "", fmt.Errorf("%s: not found", name)
}

// ---- pipelines (spec §4.4 "Pipelines") ----

func (r *Runner) runPipeline(p *syntax.Pipeline) {
	n := len(p.Commands)
	if p.Negated {
		// A `!`-negated command's own failure never trips errexit: the
		// negation is the whole point of testing it.
		oldNoErrExit := r.noErrExit
		r.noErrExit = true
		if n == 1 {
			r.runStmt(p.Commands[0])
		} else {
			r.runMultiStagePipeline(p)
		}
		r.noErrExit = oldNoErrExit
		r.lastStatus = boolStatus(r.lastStatus != 0)
		return
	}
	if n == 1 {
		r.runStmt(p.Commands[0])
	} else {
		r.runMultiStagePipeline(p)
	}
}

func (r *Runner) runMultiStagePipeline(p *syntax.Pipeline) {
	n := len(p.Commands)
	readers := make([]*io.PipeReader, n-1)
	writers := make([]*io.PipeWriter, n-1)
	for i := range readers {
		readers[i], writers[i] = io.Pipe()
	}
	statuses := make([]int, n)
	done := make(chan struct{}, n)
	for i, st := range p.Commands {
		i, st := i, st
		sub := r.subRunner()
		if i > 0 {
			sub.Stdin = readers[i-1]
		}
		if i < n-1 {
			sub.Stdout = writers[i]
		}
		go func() {
			sub.runStmt(st)
			if i > 0 {
				readers[i-1].Close()
			}
			if i < n-1 {
				writers[i].Close()
			}
			statuses[i] = sub.lastStatus
			done <- struct{}{}
		}()
	}
	for range p.Commands {
		<-done
	}
	if r.Opts.PipeFail {
		status := 0
		for _, s := range statuses {
			if s != 0 {
				status = s
			}
		}
		r.lastStatus = status
	} else {
		r.lastStatus = statuses[n-1]
	}
}

// subRunner returns a Runner sharing this one's variable scope chain (a
// new frame) and functions/options, for pipeline stages and subshells —
// the copy-on-fork view spec §5 describes.
func (r *Runner) subRunner() *Runner {
	sub := *r
	sub.Env = r.Env.Sub()
	return &sub
}

// ---- and/or lists ----

func (r *Runner) runAndOr(l *syntax.AndOrList) {
	last := len(l.Items) - 1
	r.runAndOrItem(l.Items[0].Pipeline, last > 0)
	for idx, item := range l.Items[1:] {
		if r.stop() {
			return
		}
		switch item.Conn {
		case syntax.ConnAnd:
			if r.lastStatus != 0 {
				return
			}
		case syntax.ConnOr:
			if r.lastStatus == 0 {
				return
			}
		}
		i := idx + 1
		r.runAndOrItem(item.Pipeline, i < last)
	}
}

// runAndOrItem runs one pipeline of an && / || list. guarded is true for
// every item but the last: its exit status only feeds the next
// connector's decision, so it must not trip errexit on its own.
func (r *Runner) runAndOrItem(p *syntax.Pipeline, guarded bool) {
	if !guarded {
		r.runPipeline(p)
		return
	}
	oldNoErrExit := r.noErrExit
	r.noErrExit = true
	r.runPipeline(p)
	r.noErrExit = oldNoErrExit
}

// ---- control structures (spec §4.4 "Control flow") ----

// runGuardedStmts runs a condition (if/elif/while/until) with errexit
// suppressed: a failing condition steers control flow, it doesn't abort it.
func (r *Runner) runGuardedStmts(stmts []*syntax.Stmt) {
	oldNoErrExit := r.noErrExit
	r.noErrExit = true
	r.runStmts(stmts)
	r.noErrExit = oldNoErrExit
}

func (r *Runner) runIf(i *syntax.If) {
	r.runGuardedStmts(i.Cond)
	if r.stop() {
		return
	}
	if r.lastStatus == 0 {
		r.runStmts(i.Then)
		return
	}
	for _, elif := range i.Elifs {
		r.runGuardedStmts(elif.Cond)
		if r.stop() {
			return
		}
		if r.lastStatus == 0 {
			r.runStmts(elif.Then)
			return
		}
	}
	if i.HasElse {
		r.runStmts(i.Else)
	} else {
		r.lastStatus = 0
	}
}

func (r *Runner) runWhile(w *syntax.While) {
	for {
		r.runGuardedStmts(w.Cond)
		if r.stop() {
			return
		}
		stop := (r.lastStatus == 0) == w.UntilFlag
		if stop {
			r.lastStatus = 0
			return
		}
		if r.loopBodyBroken(w.Body) {
			return
		}
	}
}

func (r *Runner) runFor(f *syntax.For) {
	var words []string
	if f.InClauseGiven {
		words = r.fields(f.Words...)
	} else {
		words = append([]string(nil), r.Env.Positional...)
	}
	for _, w := range words {
		r.Env.Set(f.Var, expand.Variable{Str: w})
		if r.loopBodyBroken(f.Body) {
			return
		}
	}
	r.lastStatus = 0
}

func (r *Runner) runCFor(c *syntax.CFor) {
	if c.Init != nil {
		r.arith(*c.Init)
	}
	for {
		if c.Cond != nil && r.arith(*c.Cond) == 0 {
			break
		}
		if r.loopBodyBroken(c.Body) {
			return
		}
		if c.Update != nil {
			r.arith(*c.Update)
		}
	}
	r.lastStatus = 0
}

func (r *Runner) runSelect(s *syntax.Select) {
	var words []string
	if len(s.Words) > 0 {
		words = r.fields(s.Words...)
	} else {
		words = append([]string(nil), r.Env.Positional...)
	}
	ps3 := r.Env.Get("PS3").String()
	if ps3 == "" {
		ps3 = "#? "
	}
	buf := make([]byte, 0, 64)
	for {
		for i, w := range words {
			fmt.Fprintf(r.Stderr, "%d) %s\n", i+1, w)
		}
		r.errf("%s", ps3)
		line, err := readLine(r.Stdin, buf)
		if err != nil {
			r.lastStatus = 0
			return
		}
		line = strings.TrimSpace(line)
		r.Env.Set("REPLY", expand.Variable{Str: line})
		n := atoiOr(line, 0)
		if n >= 1 && n <= len(words) {
			r.Env.Set(s.Var, expand.Variable{Str: words[n-1]})
		} else {
			r.Env.Set(s.Var, expand.Variable{Str: ""})
		}
		if r.loopBodyBroken(s.Body) {
			return
		}
	}
}

func atoiOr(s string, def int) int {
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return def
		}
		n = n*10 + int(s[i]-'0')
	}
	if s == "" {
		return def
	}
	return n
}

// loopBodyBroken runs one loop-body pass and reports whether the
// enclosing loop should stop, decrementing break/continue depth counters
// at this boundary (grounded on the teacher's loopStmtsBroken).
func (r *Runner) loopBodyBroken(body []*syntax.Stmt) bool {
	r.runStmts(body)
	if r.stop() {
		return true
	}
	if r.contN > 0 {
		r.contN--
		return r.contN > 0
	}
	if r.breakN > 0 {
		r.breakN--
		return true
	}
	return false
}

func (r *Runner) runCase(c *syntax.Case) {
	subject := r.literal(c.Subject)
	matched := false
	for _, arm := range c.Arms {
		if !matched {
			for _, pat := range arm.Patterns {
				if expand.MatchPattern(r.pattern(pat), subject) {
					matched = true
					break
				}
			}
		}
		if !matched {
			continue
		}
		r.runStmts(arm.Body)
		if r.stop() || r.breakN > 0 || r.contN > 0 {
			return
		}
		switch arm.Term {
		case syntax.CaseBreak:
			r.lastStatus = 0
			return
		case syntax.CaseFallthrough:
			matched = true
			continue
		case syntax.CaseContinueMatch:
			matched = false
			continue
		}
	}
	if !matched {
		r.lastStatus = 0
	}
}

func (r *Runner) runSubshell(s *syntax.Subshell) {
	sub := r.subRunner()
	sub.runStmts(s.Body)
	r.lastStatus = sub.lastStatus
	// side effects (variables, cwd) do not persist: sub.Env/sub.Dir are
	// discarded here, per spec §4.4's "Subshell vs brace group".
}

// ---- substitution entry points wired into expand.Config ----

func (r *Runner) runCmdSubst(stmts []*syntax.Stmt) (string, error) {
	sub := r.subRunner()
	var buf strings.Builder
	sub.Stdout = &buf
	sub.runStmts(stmts)
	return buf.String(), nil
}

func (r *Runner) runProcSubst(dir syntax.ProcDirection, stmts []*syntax.Stmt) (string, error) {
	return runProcessSubstitution(r, dir, stmts)
}

func (r *Runner) runTrapBody(src string) {
	prog, err := parseTrapBody(src)
	if err != nil {
		r.errf("trap: %v\n", err)
		return
	}
	sub := r.subRunner()
	sub.runStmts(prog.Stmts)
}

// sortedEnvNames is used by `export -p`/`readonly -p`/`set` listings.
func sortedEnvNames(env *Environ) []string {
	var names []string
	env.Each(func(name string, _ expand.Variable) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)
	return names
}
