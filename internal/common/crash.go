// -----------------------------------------------------------------------
// Crash Protection - Fatal panic reports for the main goroutine
// -----------------------------------------------------------------------

package common

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// crashDir receives crash reports; set by InstallCrashHandler
var crashDir = "logs"

// InstallCrashHandler prepares dir for crash reports. Pair it with a deferred
// RecoverWithCrashFile at the top of main.
func InstallCrashHandler(dir string) {
	if dir != "" {
		crashDir = dir
	}
	if err := os.MkdirAll(crashDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "CRASH: cannot create %s: %v\n", crashDir, err)
	}
}

// WriteCrashFile writes a crash report for panicVal and returns its path,
// or "" when the report could only be written to stderr
func WriteCrashFile(panicVal interface{}, stack string) string {
	now := time.Now()
	report := buildCrashReport(now, panicVal, stack)

	path := filepath.Join(crashDir, fmt.Sprintf("crash-%s.log", now.Format("2006-01-02T15-04-05")))
	if err := os.WriteFile(path, []byte(report), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "CRASH: cannot write report: %v\n%s", err, report)
		return ""
	}

	fmt.Fprintf(os.Stderr, "\n!!! FATAL CRASH - report saved to %s !!!\nPanic: %v\n", path, panicVal)
	return path
}

func buildCrashReport(now time.Time, panicVal interface{}, stack string) string {
	var b strings.Builder
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	fmt.Fprintf(&b, "=== FAPI CRASH REPORT ===\n")
	fmt.Fprintf(&b, "Time: %s\nVersion: %s\n\n", now.Format(time.RFC3339), GetFullVersion())
	fmt.Fprintf(&b, "=== PANIC ===\n%v\n\n", panicVal)
	fmt.Fprintf(&b, "=== STACK ===\n%s\n", stack)
	fmt.Fprintf(&b, "=== ALL GOROUTINES ===\n%s\n", allGoroutineStacks())
	fmt.Fprintf(&b, "=== RUNTIME ===\n")
	fmt.Fprintf(&b, "Goroutines: %d (SafeGo spawned %d)\n", runtime.NumGoroutine(), GetGoroutineCount())
	fmt.Fprintf(&b, "GOOS/GOARCH: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(&b, "Alloc: %d MB, Sys: %d MB, NumGC: %d\n", mem.Alloc/1024/1024, mem.Sys/1024/1024, mem.NumGC)
	return b.String()
}

func allGoroutineStacks() string {
	buf := make([]byte, 64*1024)
	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) || len(buf) >= 16*1024*1024 {
			return string(buf[:n])
		}
		buf = make([]byte, len(buf)*2)
	}
}

// RecoverWithCrashFile writes a crash report and exits when the calling goroutine panics.
// Must be invoked directly via defer.
func RecoverWithCrashFile() {
	r := recover()
	if r == nil {
		return
	}
	buf := make([]byte, 8192)
	n := runtime.Stack(buf, false)
	WriteCrashFile(r, string(buf[:n]))
	os.Exit(1)
}
