package interp

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/kodflow/gosh/syntax"
)

// runProcessSubstitution implements `<(cmds)`/`>(cmds)` (spec §4.3's
// process-substitution word part) via a named pipe: a path is handed back
// immediately for the enclosing command to open, while the substituted
// command list runs concurrently against the FIFO's other end.
func runProcessSubstitution(r *Runner, dir syntax.ProcDirection, stmts []*syntax.Stmt) (string, error) {
	tmpDir, err := os.MkdirTemp("", "gosh-procsubst")
	if err != nil {
		return "", err
	}
	path := filepath.Join(tmpDir, "fifo")
	if err := unix.Mkfifo(path, 0600); err != nil {
		os.RemoveAll(tmpDir)
		return "", fmt.Errorf("process substitution: %w", err)
	}

	sub := r.subRunner()
	go func() {
		defer os.RemoveAll(tmpDir)
		switch dir {
		case syntax.ProcIn:
			f, err := os.OpenFile(path, os.O_WRONLY, 0)
			if err != nil {
				return
			}
			defer f.Close()
			sub.Stdout = f
		case syntax.ProcOut:
			f, err := os.OpenFile(path, os.O_RDONLY, 0)
			if err != nil {
				return
			}
			defer f.Close()
			sub.Stdin = f
		}
		sub.runStmts(stmts)
	}()
	return path, nil
}
