//go:build !windows

package progress

// enableANSI is a no-op: Unix terminals support ANSI natively.
func enableANSI(fd uintptr) {}
