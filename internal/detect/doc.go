// Package detect scans a project directory and reports its technology
// stacks, tooling commands, and toolkit installation state as a
// deterministic JSON report.
package detect
