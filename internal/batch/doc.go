// Package batch fans policy evaluation out over a bounded worker pool.
//
// The coordinator owns the whole batch lifecycle: it enqueues a job row
// per file up front, resolves the worker count against the machine, and
// drains a task channel with the workers. Per-file outcomes land in a
// submission-ordered result, so output is stable no matter how many
// workers ran. Under on_error=fail the first failure raises a stop flag;
// files already running finish, everything not yet started is cancelled,
// and the result reports the early stop. Under on_error=skip the batch
// always drains.
//
// Files without a stored scan are skipped, not failed. Files whose plan
// comes back empty are reported compliant and leave no plan behind.
package batch
