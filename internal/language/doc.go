// Package language provides unified language code normalization and mapping.
//
// All language-related conversions (ISO 639-1, ISO 639-2, display names,
// tag extraction) are consolidated here, and Matches gives policy
// evaluation its equivalence-aware comparison so "en" preferences apply
// to "eng" tracks and vice versa.
package language
