// Package plugin defines capability modules and the machinery that runs them.
//
// A capability is selected by name from a user message ("run shell ls") and
// runs instead of a completion provider. The package provides:
//
//   - Plugin, the closed lifecycle interface (Initialize, Execute, Shutdown)
//   - Registry, the name to instance map built at startup
//   - Executor, which drives one invocation through the lifecycle under a
//     timeout and reports a tagged Result
//   - Func, an adapter exposing a plain function as a Plugin
//
// Failure classes are reported as Status values and *Error, which matches the
// corresponding core sentinel (core.ErrCapabilityNotFound,
// core.ErrCapabilityInitFailed, core.ErrCapabilityExecFailed,
// core.ErrCapabilityTimeout) with errors.Is.
//
// Built-in modules live in the builtin subpackage.
package plugin
