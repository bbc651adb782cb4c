package runner

import (
	"os/exec"
	"syscall"
)

// setProcGroup puts the child in its own process group so a future group
// kill (not currently needed since cmd.Cancel already targets the direct
// child) would not also signal this process.
func setProcGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
