package claims

import (
	"sort"
	"strings"
)

// Scopes estándar que afectan los claims emitidos.
const (
	ScopeOpenID        = "openid"
	ScopeProfile       = "profile"
	ScopeEmail         = "email"
	ScopeOfflineAccess = "offline_access"
)

// ParseScope separa por espacios y descarta duplicados conservando el orden.
func ParseScope(scope string) []string {
	fields := strings.Fields(scope)
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// HasScope reporta si scope contiene want.
func HasScope(scope, want string) bool {
	for _, f := range strings.Fields(scope) {
		if f == want {
			return true
		}
	}
	return false
}

// Normalize devuelve el scope sin duplicados ni espacios extra.
func Normalize(scope string) string { return strings.Join(ParseScope(scope), " ") }

// Union une conjuntos de strings, ordenado y sin duplicados.
func Union(sets ...[]string) []string {
	m := map[string]struct{}{}
	for _, s := range sets {
		for _, v := range s {
			if v != "" {
				m[v] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(m))
	for v := range m {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
