package api

/*
	Error categories raised by powergit, plus the exit codes the CLI maps
	them to.  All errors crossing a package boundary in this module carry
	one of these categories (see the errcat library).
*/

type ErrorCategory string
type ExitCode int

const (
	ExitSuccess                           = ExitCode(0)
	ExitUsage, ErrUsage                   = ExitCode(1), ErrorCategory("powergit-usage-error")     // Some piece of user input to a command was invalid and unrunnable.
	ExitPanic                             = ExitCode(2)                                            // Placeholder.  We don't use this.  '2' happens when golang exits due to panic.
	ExitNotFound, ErrNotFound             = ExitCode(3), ErrorCategory("powergit-not-found")       // A commit, tree, blob, or path segment is absent from the object store.
	ExitNotADirectory, ErrNotADirectory   = ExitCode(4), ErrorCategory("powergit-not-a-directory") // A path walk hit a blob where a directory was required.
	ExitIsADirectory, ErrIsADirectory     = ExitCode(5), ErrorCategory("powergit-is-a-directory")  // A path walk hit a tree where a blob was required.
	ExitDecodeFailed, ErrDecode           = ExitCode(6), ErrorCategory("powergit-decode-failed")   // A pack payload could not be decoded into raw bytes.
	ExitIOFailed, ErrIO                   = ExitCode(7), ErrorCategory("powergit-io-failed")       // The virtual filesystem rejected a read or write.
	ExitIndexFailed, ErrIndex             = ExitCode(8), ErrorCategory("powergit-index-failed")    // The underlying git indexer rejected a pack (e.g. corrupt packfile).
	ExitCancelled, ErrCancelled           = ExitCode(9), ErrorCategory("powergit-cancelled")       // The caller's context expired while waiting on a drain.
	ExitNotImplemented, ErrNotImplemented = ExitCode(10), ErrorCategory("powergit-not-implemented")
)
