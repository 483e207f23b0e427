// Package upstream pulls toolkit content from the versioned upstream
// repository into the project's vendored copy. The update orchestrator
// only needs "fetch(ref) -> applied, new revision id" semantics from it,
// so the git implementation sits behind a small interface and tests
// substitute a fake.
package upstream
