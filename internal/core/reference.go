package core

import "strings"

const (
	voidPrefix        = "VOID-"
	legacyAliasPrefix = "INV-"
)

// NormalizeReference trims a document number into the canonical posting reference.
func NormalizeReference(number string) string {
	return strings.TrimSpace(number)
}

// VoidReference is the idempotency key and grouping reference of a reversal.
func VoidReference(ref string) string {
	return voidPrefix + ref
}

// IsVoidReference reports whether ref was produced by VoidReference.
func IsVoidReference(ref string) bool {
	return strings.HasPrefix(ref, voidPrefix)
}

// originalReferences lists every reference under which original movements of
// ref may have been written: the canonical number and the legacy INV- alias.
func originalReferences(ref string) []string {
	return []string{ref, legacyAliasPrefix + ref}
}

// voidReferences lists every reference that marks ref as already reversed.
func voidReferences(ref string) []string {
	return []string{VoidReference(ref), VoidReference(legacyAliasPrefix + ref)}
}

func validateReference(ref string) error {
	if ref == "" {
		return invalidDocument("reference is required")
	}
	if IsVoidReference(ref) {
		return invalidDocument("reference %q uses the reserved %s prefix", ref, voidPrefix)
	}
	if len(ref) > 120 {
		return invalidDocument("reference %q exceeds 120 characters", ref)
	}
	return nil
}
