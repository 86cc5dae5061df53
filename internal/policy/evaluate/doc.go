// Package evaluate holds the pure operation evaluators. Each evaluator
// maps (operation payload, current view) to an action list plus a new
// view reflecting the actions' hypothetical application; the input view
// is never mutated and nothing here touches files, databases, or
// subprocesses. Because every evaluator emits only deltas, re-running a
// phase against a view that already reflects its actions produces no
// actions at all.
package evaluate
