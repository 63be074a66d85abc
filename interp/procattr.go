package interp

import (
	"os/exec"
	"syscall"
)

// setProcessGroup puts an external command in its own process group, the
// precondition for job-control signal delivery and `tcsetpgrp` foreground
// handoff (spec §5): signals sent to -pgid reach the whole pipeline stage
// rather than just the shell.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
