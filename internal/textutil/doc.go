// Package textutil provides text processing utilities for filename
// sanitization and recognition cache keys.
//
// Sanitization replaces filesystem-unsafe characters with their full-width
// equivalents so catalog titles survive as library folder names without
// losing punctuation. Cache keys are stable fingerprints derived from a
// file's name and size.
package textutil
