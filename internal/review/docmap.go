package review

import "sort"

// Mapping is the server-side shape: document type -> role keys allowed to
// see it. Per-land overrides and the global default table share it.
type Mapping map[string][]string

// InvertMapping turns documentType -> roles into role -> documentTypes,
// the direction the visibility filter needs. Unknown role keys are dropped.
func InvertMapping(m Mapping) map[RoleKey][]string {
	out := make(map[RoleKey][]string, 3)
	for docType, roles := range m {
		for _, r := range roles {
			role, ok := canonicalRole(r)
			if !ok {
				continue
			}
			out[role] = append(out[role], docType)
		}
	}
	for role := range out {
		sort.Strings(out[role])
	}
	return out
}

// AllowedDocumentTypes decides which document categories a role can see.
//
// The precedence rule is existence, not emptiness: a per-land mapping that is
// present, even `{}`, is the sole source of truth, and an
// empty override yields zero visible types rather than a silent fall back to
// defaults. Only a wholly absent per-land mapping (nil) consults defaults.
func AllowedDocumentTypes(landMapping, defaultMapping Mapping, role RoleKey) map[string]struct{} {
	source := defaultMapping
	if landMapping != nil {
		source = landMapping
	}
	allowed := map[string]struct{}{}
	for _, docType := range InvertMapping(source)[role] {
		allowed[docType] = struct{}{}
	}
	return allowed
}

// VisibleDocumentTypes is AllowedDocumentTypes as a sorted slice, for
// responses and tables.
func VisibleDocumentTypes(landMapping, defaultMapping Mapping, role RoleKey) []string {
	set := AllowedDocumentTypes(landMapping, defaultMapping, role)
	out := make([]string, 0, len(set))
	for docType := range set {
		out = append(out, docType)
	}
	sort.Strings(out)
	return out
}
