// Package log provides the logging facility used by the engine: a small
// Logger interface, a stdlib-backed default, a no-op implementation, and
// an adapter for kataras/golog. A package-level default logger lets the
// engine log without threading logger objects through every call.
package log
