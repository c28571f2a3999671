//go:build windows

package progress

import (
	"golang.org/x/sys/windows"
)

// enableANSI turns on Virtual Terminal processing so bar redraws work in
// cmd.exe and PowerShell.
func enableANSI(fd uintptr) {
	handle := windows.Handle(fd)
	var mode uint32
	if err := windows.GetConsoleMode(handle, &mode); err == nil {
		const enableVirtualTerminalProcessing = 0x0004
		_ = windows.SetConsoleMode(handle, mode|enableVirtualTerminalProcessing)
	}
}
