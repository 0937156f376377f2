//go:build windows

package pdf

import (
	"os/exec"
	"syscall"
)

const createNoWindow = 0x08000000

// hideWindowOnWindows keeps pdftoppm from flashing a console window while
// pages render.
func hideWindowOnWindows(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: createNoWindow,
	}
}
