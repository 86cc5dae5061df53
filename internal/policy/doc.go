// Package policy defines the declarative policy document model, its
// YAML schema, and the validation that turns a raw document into an
// immutable Model. A Model lists phases in declaration order; within a
// phase, operations always run in the canonical order regardless of
// how the document arranges their keys. Validation collects every
// violation in one pass so authors fix a document once, not field by
// field.
package policy
