// Package keys builds deterministic, collision-resistant cache keys for
// taxonomy and case-listing lookups. Keys are composed of fixed fields joined
// with a fixed delimiter so that the same logical lookup always produces the
// same key regardless of caller-supplied input order.
package keys

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	// defaultToken is used when no credential token is configured. Callers
	// must never build a key from an empty identifying field, since that
	// would aggregate unrelated requests under one entry.
	defaultToken = "anon"

	// defaultScope is used when no credential scope is configured.
	defaultScope = "default"

	// digestLen is the number of hex characters kept from the token digest.
	digestLen = 16
)

// Generator builds cache keys under a fixed namespace.
type Generator struct {
	namespace string
}

// NewGenerator creates a key generator for the given namespace.
func NewGenerator(namespace string) *Generator {
	return &Generator{namespace: namespace}
}

// TaxonomyKey returns the cache key for a taxonomy snapshot lookup.
// Form: {namespace}_{token_digest}_{scope}
func (g *Generator) TaxonomyKey(token, scope string) string {
	return fmt.Sprintf("%s_%s_%s", g.namespace, DigestToken(token), normalizeScope(scope))
}

// CaseListKey returns the cache key for a case-listing lookup. Procedure ids
// are coerced to positive integers, de-duplicated and sorted ascending so any
// permutation of the same filter set yields an identical key. The page token
// is appended only for page > 1: the default dataset and page 1 deliberately
// share one cache entry.
func (g *Generator) CaseListKey(token, scope string, procIDs []int, page int) string {
	key := g.TaxonomyKey(token, scope)

	if procsToken := ProcsToken(procIDs); procsToken != "" {
		key += "_" + procsToken
	}

	if page > 1 {
		key += "_page" + strconv.Itoa(page)
	}

	return key
}

// ResolutionKey returns the cache key for a slug resolution lookup. The key
// is a stable digest over the (normalized slug, credential scope) tuple.
func (g *Generator) ResolutionKey(slug, scope string) string {
	sum := sha256.Sum256([]byte(slug + "|" + normalizeScope(scope)))
	return fmt.Sprintf("%s_resolve_%s", g.namespace, hex.EncodeToString(sum[:])[:digestLen])
}

// ContentScanKey returns the cache key for the page-content scan result.
func (g *Generator) ContentScanKey(marker string) string {
	sum := sha256.Sum256([]byte(marker))
	return fmt.Sprintf("%s_scan_%s", g.namespace, hex.EncodeToString(sum[:])[:digestLen])
}

// DigestToken returns a one-way digest of the credential token. The raw
// token never appears in a cache key because keys may be logged or inspected.
// An empty token falls back to a fixed literal.
func DigestToken(token string) string {
	if strings.TrimSpace(token) == "" {
		return defaultToken
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])[:digestLen]
}

// ProcsToken normalizes a procedure-id filter list into a stable token.
// Non-positive ids are dropped, duplicates collapsed, and the remainder
// sorted numerically ascending before joining. Returns "" when nothing
// survives filtering.
func ProcsToken(procIDs []int) string {
	if len(procIDs) == 0 {
		return ""
	}

	seen := make(map[int]bool, len(procIDs))
	valid := make([]int, 0, len(procIDs))
	for _, id := range procIDs {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		valid = append(valid, id)
	}

	if len(valid) == 0 {
		return ""
	}

	sort.Ints(valid)

	parts := make([]string, len(valid))
	for i, id := range valid {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, "-")
}

func normalizeScope(scope string) string {
	if strings.TrimSpace(scope) == "" {
		return defaultScope
	}
	return scope
}
