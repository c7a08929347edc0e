package vsthreading

import (
	"context"
	"fmt"
	"os"
	"runtime/trace"
)

const diagnosticsTraceCategory = "vsthreading-diagnostics"

// DiagnosticSink receives reports of conditions this package detects but
// does not recover from: an unjoined RunAsync task that faulted, or an
// assertion violation raised by a transition hook. Neither stops execution;
// they are reported the way the host wants them reported. A synchronous Send
// about to block with nobody positioned to pump it (§7) is not reported
// here; it goes to the callback set by [WithNoAvailablePumpDetector].
type DiagnosticSink interface {
	Reportf(format string, args ...any)
}

// traceDiagnosticSink is the default sink: it logs under runtime/trace when
// a trace is being collected, and otherwise falls back to stderr so reports
// are never silently dropped.
type traceDiagnosticSink struct{}

func (traceDiagnosticSink) Reportf(format string, args ...any) {
	if trace.IsEnabled() {
		trace.Logf(context.Background(), diagnosticsTraceCategory, format, args...)
		return
	}
	fmt.Fprintf(os.Stderr, "vsthreading: "+format+"\n", args...)
}
