// Package rules matches recognition results against routing rules.
//
// Rules are evaluated in ascending priority order (lower number first);
// the first rule whose media-type and storage-type filters accept the
// result and whose every condition holds wins. Conditions use AND
// semantics, and an empty condition list matches unconditionally.
//
// Supported operators: equals, contains, in, matches (regex), between,
// gte, lte. Invalid regex patterns and non-numeric operands fail closed,
// as do unresolved fields.
package rules
