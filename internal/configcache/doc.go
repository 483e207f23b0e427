// Package configcache turns the project's toolkit.toml into a
// bash-sourceable cache of TOOLKIT_* variables for the shell hooks that
// cannot afford a TOML parse on every invocation. Values are validated
// against the known config schema and escaped for safe single-quoted
// shell assignment before anything is written.
package configcache
