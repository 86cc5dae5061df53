// Package preflight provides filesystem readiness checks for the paths
// vpo depends on.
//
// The apply command calls RunAll before a batch starts: a database
// directory the process cannot write, or a library directory it cannot
// list, fails the run up front instead of partway through. Unconfigured
// paths are skipped.
package preflight
