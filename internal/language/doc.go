// Package language provides unified language code normalization and mapping.
//
// All language-related conversions (ISO 639-1, ISO 639-2, display names,
// tag extraction) are consolidated here so catalog results and library
// naming agree on one spelling per language.
package language
