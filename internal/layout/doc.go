// Package layout defines the fixed on-disk layout of a toolkit-managed
// project: the .assistant directory, the vendored upstream subtree inside
// it, and the materialized agent/rule/skill trees. It also enumerates the
// canonical upstream inventory that manifest initialization records.
package layout
