// Package manifest is the provenance store for vendored toolkit files.
// It records, for every managed agent, rule, and skill, whether the file
// is still upstream-owned or has been customized locally, along with the
// upstream content hash as of the last manifest write.
//
// The manifest is the only shared mutable state in the system. All writes
// go through the atomic writer, which protects a single write from
// corruption but does not serialize read-modify-write cycles across two
// concurrently invoked processes; that race is accepted.
package manifest
