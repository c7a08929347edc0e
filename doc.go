// Package vsthreading reconciles two execution disciplines in a single
// process: an affinity-bound executor for a distinguished main thread (an
// event-loop, UI, or dispatcher thread that cannot be displaced) and a
// multithreaded worker pool on which arbitrary asynchronous work runs.
//
// Its purpose is to let code initiated on the main thread synchronously
// wait for asynchronous work that itself may need to run on the main
// thread, without deadlocking, by letting the blocked main thread lend
// itself to execute the awaited work's main-thread continuations.
//
// # Key components
//
//   - [JoinableTask]: a running (possibly completed) asynchronous operation,
//     tracked by the system. It holds a FIFO of continuations that must run
//     on the main thread and a set of dependency/dependent edges to other
//     tasks.
//
//   - [Collection]: a named set of JoinableTasks over which callers
//     establish joins, the unit of dependency admission.
//
//   - [Context]: the process-wide anchor that identifies the main thread,
//     the sink used to post work to it, and the ambient current-task slot.
//
//   - [Factory]: the entry points ([Factory.Run], [Factory.RunAsync],
//     [Factory.SwitchToMainThreadAsync], [Factory.CompleteSynchronously])
//     that construct JoinableTasks and implement the re-entrant blocking
//     loop — the pump — that lets a synchronously-blocked main thread admit
//     exactly the foreign work it depends on, and nothing else.
//
// # Re-entrant pump
//
// When [Factory.Run] is called on the main thread, it does not merely wait:
// it enters a bounded message loop that drains the running task's own
// main-thread queue and the queues of every task reachable through its join
// graph (childTasks and joins, recomputed lazily). Work belonging to
// unrelated tasks is filtered out — it still reaches the underlying
// main-thread post sink as a wake-up signal, but the pump never dispatches
// it. This is the interesting engineering in the package; everything else
// is plumbing around it.
//
// # What this package does not provide
//
// The underlying thread pool and the underlying main-thread message pump are
// assumed to be supplied by the host. Default, minimal implementations are
// provided ([NewWorkerPool], [NewMainThreadLoop]) so the package is usable
// standalone, but a host embedding vsthreading in a real UI or dispatcher
// loop is expected to supply its own.
//
// Fairness across unrelated task trees, preemption, work-stealing beyond
// main-thread lending, persistence, and cross-process coordination are all
// out of scope.
package vsthreading
