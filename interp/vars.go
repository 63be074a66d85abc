// Package interp implements the AST-walking executor (spec §4.4): the
// runtime entity model (§3.4), the visitor that drives it, job control,
// traps, and the built-in command table.
package interp

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/kodflow/gosh/expand"
)

// scope is one frame of the variable scope chain (spec §3.4 "Scope"):
// frame 0 is global, a function call pushes a frame, and `local` marks a
// name as belonging to the current frame rather than the nearest
// enclosing one. Grounded on the teacher's mapEnviron parent-pointer
// design, generalized with an explicit locals set so `local` can be
// distinguished from an ordinary assignment that happens to shadow an
// outer name.
type scope struct {
	parent *scope
	vars   map[string]expand.Variable
	locals map[string]bool
}

func newScope(parent *scope) *scope {
	return &scope{parent: parent, vars: map[string]expand.Variable{}, locals: map[string]bool{}}
}

// Environ adapts the scope chain to expand.Environ, and adds the
// writer-side operations (Delete, Sub, local declaration, export/readonly
// bookkeeping) the executor needs beyond plain lookup.
type Environ struct {
	top *scope

	// Special-parameter callbacks, consulted by Get/Each so expand's
	// VariableRef/ParameterExpansion handling for `$@ $* $# $? $! $$ $-
	// $0 $1...` needs no special knowledge of the interpreter.
	Positional   []string
	ScriptName   string
	LastStatus   int
	LastBgPID    int
	ShellOptions string // `$-`, the single-letter active-options string
}

func NewEnviron() *Environ {
	return &Environ{top: newScope(nil)}
}

// Sub pushes a new frame (function invocation or a `( )` subshell's
// variable copy-on-fork view); the returned Environ shares special
// parameters with the parent except Positional, which callers overwrite
// for function/positional-parameter pushes.
func (e *Environ) Sub() *Environ {
	sub := *e
	sub.top = newScope(e.top)
	return &sub
}

func (e *Environ) Get(name string) expand.Variable {
	if v, ok := e.special(name); ok {
		return v
	}
	for s := e.top; s != nil; s = s.parent {
		if v, ok := s.vars[name]; ok {
			return v
		}
	}
	return expand.Variable{Unset: true}
}

func (e *Environ) special(name string) (expand.Variable, bool) {
	switch name {
	case "@", "*":
		return expand.Variable{Attrs: expand.AttrArray, Array: e.Positional}, true
	case "#":
		return expand.Variable{Str: itoa(len(e.Positional))}, true
	case "?":
		return expand.Variable{Str: itoa(e.LastStatus)}, true
	case "$":
		return expand.Variable{Str: itoa(os.Getpid())}, true
	case "!":
		if e.LastBgPID == 0 {
			return expand.Variable{Unset: true}, true
		}
		return expand.Variable{Str: itoa(e.LastBgPID)}, true
	case "-":
		return expand.Variable{Str: e.ShellOptions}, true
	case "0":
		return expand.Variable{Str: e.ScriptName}, true
	}
	if isAllDigits(name) {
		n := atoiSimple(name)
		if n >= 1 && n <= len(e.Positional) {
			return expand.Variable{Str: e.Positional[n-1]}, true
		}
		return expand.Variable{Unset: true}, true
	}
	return expand.Variable{}, false
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func atoiSimple(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		n = n*10 + int(s[i]-'0')
	}
	return n
}

func itoa(n int) string {
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

// Set implements spec §4.3's "Scope lookup": assignment targets the
// nearest frame declaring the name, else the global frame.
func (e *Environ) Set(name string, v expand.Variable) error {
	for s := e.top; s != nil; s = s.parent {
		if old, ok := s.vars[name]; ok {
			if old.Attrs&expand.AttrReadonly != 0 {
				return fmt.Errorf("%s: readonly variable", name)
			}
			v.Attrs |= old.Attrs & (expand.AttrExported | expand.AttrReadonly)
			s.vars[name] = applyCaseAttr(name, v)
			return nil
		}
	}
	e.top.vars[name] = applyCaseAttr(name, v)
	return nil
}

// SetLocal declares name in the current (innermost) frame, shadowing any
// outer binding, per `local NAME[=VAL]`.
func (e *Environ) SetLocal(name string, v expand.Variable) {
	e.top.locals[name] = true
	e.top.vars[name] = applyCaseAttr(name, v)
}

func applyCaseAttr(_ string, v expand.Variable) expand.Variable {
	if v.Attrs&expand.AttrUppercase != 0 {
		v.Str = strings.ToUpper(v.Str)
	} else if v.Attrs&expand.AttrLowercase != 0 {
		v.Str = strings.ToLower(v.Str)
	}
	return v
}

func (e *Environ) Delete(name string) {
	for s := e.top; s != nil; s = s.parent {
		if _, ok := s.vars[name]; ok {
			delete(s.vars, name)
			return
		}
	}
}

func (e *Environ) Each(f func(name string, v expand.Variable) bool) {
	seen := map[string]bool{}
	for s := e.top; s != nil; s = s.parent {
		for name, v := range s.vars {
			if seen[name] {
				continue
			}
			seen[name] = true
			if !f(name, v) {
				return
			}
		}
	}
}

// ExportedEnv renders exported variables as `NAME=value` pairs for a
// forked child's environment block (spec §4.3's "export" paragraph).
func (e *Environ) ExportedEnv() []string {
	var out []string
	e.Each(func(name string, v expand.Variable) bool {
		if v.Attrs&expand.AttrExported != 0 {
			out = append(out, name+"="+v.String())
		}
		return true
	})
	sort.Strings(out)
	return out
}

// PopLocals removes every name declared `local` in the current frame,
// run when a function invocation's frame is popped.
func (e *Environ) PopLocals() {
	e.top = e.top.parent
}

// PushFrame pushes a fresh frame (function call, per spec §3.4/§4.4's
// "Functions" paragraph: "push a scope frame; push positional params").
func (e *Environ) PushFrame() {
	e.top = newScope(e.top)
}
