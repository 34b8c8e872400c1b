//go:build windows

package downloader

import (
	"os/exec"
	"syscall"
)

// hideWindow 不弹出控制台窗口
func hideWindow(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: 0x08000000, // CREATE_NO_WINDOW
	}
}
