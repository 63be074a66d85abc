package interp

import (
	"bufio"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/kodflow/gosh/syntax"
)

// parseTrapBody parses a trap action or an `eval`/`source` string as a
// standalone program, sharing the same parser the top-level REPL uses.
func parseTrapBody(src string) (*syntax.File, error) {
	p := syntax.NewParser(nil)
	return p.Parse([]byte(src), "trap")
}

// readLine reads one line from in (used by `read` and `select`'s prompt
// loop), trimming the trailing newline. buf is not used.
func readLine(in io.Reader, buf []byte) (string, error) {
	_ = buf
	r := bufio.NewReaderSize(in, 4096)
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSuffix(line, "\n"), nil
}

// SignalWatcher delivers named signals to registered trap handlers using
// Go's signal channel, which already provides the async-signal-safe
// hand-off a self-pipe gives a C program: os/signal.Notify enqueues onto
// a buffered channel from a safe context, so there is no separate
// self-pipe to wire up.
type SignalWatcher struct {
	mu      sync.Mutex
	ch      chan os.Signal
	stop    chan struct{}
	started bool
}

// NewSignalWatcher allocates a SignalWatcher for Runner.Watch; cmd/gosh
// starts it in its own goroutine for the life of an interactive session.
func NewSignalWatcher() *SignalWatcher {
	return &SignalWatcher{ch: make(chan os.Signal, 16), stop: make(chan struct{})}
}

// Stop ends a running Watch goroutine.
func (sw *SignalWatcher) Stop() { close(sw.stop) }

var trapSignals = map[string]os.Signal{
	"HUP":  syscall.SIGHUP,
	"INT":  syscall.SIGINT,
	"QUIT": syscall.SIGQUIT,
	"TERM": syscall.SIGTERM,
	"USR1": syscall.SIGUSR1,
	"USR2": syscall.SIGUSR2,
	"CHLD": syscall.SIGCHLD,
	"TSTP": syscall.SIGTSTP,
	"CONT": syscall.SIGCONT,
	"WINCH": syscall.SIGWINCH,
}

// Watch starts delivering OS signals named by r.Traps into the Runner's
// trap-execution path; callers run it in its own goroutine for an
// interactive shell's lifetime.
func (r *Runner) Watch(sw *SignalWatcher) {
	sw.mu.Lock()
	if sw.started {
		sw.mu.Unlock()
		return
	}
	sw.started = true
	var sigs []os.Signal
	for _, s := range trapSignals {
		sigs = append(sigs, s)
	}
	signal.Notify(sw.ch, sigs...)
	sw.mu.Unlock()

	for {
		select {
		case sig := <-sw.ch:
			name := signalName(sig)
			if body, ok := r.Traps[name]; ok && body != "" {
				r.runTrapBody(body)
			}
		case <-sw.stop:
			signal.Stop(sw.ch)
			return
		}
	}
}

func signalName(sig os.Signal) string {
	for name, s := range trapSignals {
		if s == sig {
			return name
		}
	}
	return ""
}
