// Package settings composes layered configuration documents (base, stack
// overlays, project override) into the single settings document consumed
// by the host application. The merge is a pure function over the decoded
// documents; serialization is deterministic so repeated runs on identical
// inputs are byte-identical and diff cleanly under version control.
package settings
