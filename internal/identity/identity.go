// Package identity implements the deterministic hash functions behind the
// three-part function identity scheme and the derived keys built on it.
//
// Every function here is pure: identical logical inputs always yield
// identical output, with no randomness or timestamp dependence, so that
// re-scanning an unchanged file reproduces the same ids. The hash function
// (SHA-256) must never be changed silently; doing so invalidates every
// historical semantic-id join and requires a schema migration.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// SemanticID hashes a function's role-defining attributes: its name, the
// enclosing context path (file path, class names, enclosing functions) and
// its declared modifiers. The result is stable across snapshots while the
// role is unchanged, even if the body changes.
//
// Modifiers are sorted before hashing so declaration order never alters
// the id.
func SemanticID(name string, contextPath []string, modifiers []string) string {
	mods := make([]string, len(modifiers))
	copy(mods, modifiers)
	sort.Strings(mods)

	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('|')
	b.WriteString(strings.Join(contextPath, "."))
	b.WriteByte('|')
	b.WriteString(strings.Join(mods, ","))
	return hashHex(b.String())
}

// ContentID hashes a function's normalized implementation (AST shape, as
// produced by the analyzer). It changes whenever behavior changes, even if
// the signature does not, and survives renames.
func ContentID(normalizedBody string) string {
	return hashHex(normalizedBody)
}

// SignatureHash hashes the full signature text.
func SignatureHash(signatureText string) string {
	return hashHex(signatureText)
}

// EdgeID derives a deterministic call-edge id from its endpoints and the
// owning snapshot, so re-scanning an unchanged call site reproduces the
// same id and conflict-ignored inserts never accumulate duplicates.
//
// calleeKey is the callee function id for resolved edges; callers encode
// unresolved callees as "external:<name>" before passing it in. Two call
// sites on the same caller/callee pair are disambiguated by line and
// column.
func EdgeID(callerID, calleeKey, snapshotID string, line, column int) string {
	return hashHex(fmt.Sprintf("%s->%s@%s:%d:%d", callerID, calleeKey, snapshotID, line, column))
}

// ExternalCalleeKey encodes an unresolved callee for EdgeID.
func ExternalCalleeKey(calleeName string) string {
	return "external:" + calleeName
}

// ContentKey builds the composite key for deduplicated source content:
// byte-identical files across snapshots share one content row under this
// key.
func ContentKey(hash string, sizeBytes int64) string {
	return fmt.Sprintf("%s_%d", hash, sizeBytes)
}

// FileHash hashes whole-file source text for the content store.
func FileHash(content string) string {
	return hashHex(content)
}

func hashHex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
