// Package review is the shared pure library behind the reviewer dashboards:
// role resolution for tasks with missing or inconsistent role data,
// completion-percentage aggregation across the task/subtask/document
// hierarchy, and document-type visibility per reviewer role. Everything here
// is side-effect free and total over arbitrary partial records.
package review

import (
	"strings"

	"github.com/JaligamRishitha/renewmart-sub002/internal/domain"
)

// RoleKey identifies one of the three fixed reviewer roles.
type RoleKey string

const (
	RoleSalesAdvisor   RoleKey = "re_sales_advisor"
	RoleAnalyst        RoleKey = "re_analyst"
	RoleGovernanceLead RoleKey = "re_governance_lead"

	// RoleUnknown is reported by ClassifyRole when nothing in the record
	// identifies a role. ResolveRole never returns it.
	RoleUnknown RoleKey = "unclassified"
)

// FallbackRole is the role assigned when resolution fails entirely. Kept as
// re_analyst for compatibility with historical data; callers that want to
// surface unclassified tasks should use ClassifyRole instead.
var FallbackRole = RoleAnalyst

// Roles lists the three fixed reviewer roles in display order.
func Roles() []RoleKey {
	return []RoleKey{RoleSalesAdvisor, RoleAnalyst, RoleGovernanceLead}
}

// KnownRole reports whether k is one of the three fixed role keys.
func KnownRole(k RoleKey) bool {
	switch k {
	case RoleSalesAdvisor, RoleAnalyst, RoleGovernanceLead:
		return true
	}
	return false
}

// RoleLabel returns the static display label for a role key.
func RoleLabel(k RoleKey) string {
	switch k {
	case RoleSalesAdvisor:
		return "Sales Advisor"
	case RoleAnalyst:
		return "Analyst"
	case RoleGovernanceLead:
		return "Governance Lead"
	default:
		return "Unclassified"
	}
}

// roleAliases maps legacy short keys onto the canonical role keys.
var roleAliases = map[string]RoleKey{
	"re_sales_advisor":   RoleSalesAdvisor,
	"re_analyst":         RoleAnalyst,
	"re_governance_lead": RoleGovernanceLead,
	"sales_advisor":      RoleSalesAdvisor,
	"analyst":            RoleAnalyst,
	"governance_lead":    RoleGovernanceLead,
}

// Keyword sets for free-text inference, checked in role order. A sales
// keyword in the title never beats an explicit assigned_role field.
var roleKeywords = []struct {
	role  RoleKey
	words []string
}{
	{RoleSalesAdvisor, []string{"sales", "market", "advisor"}},
	{RoleAnalyst, []string{"analyst", "analyze", "technical", "financial"}},
	{RoleGovernanceLead, []string{"governance", "compliance", "regulatory", "legal"}},
}

// MatchSource says which step of the resolution chain produced the role.
type MatchSource string

const (
	MatchField    MatchSource = "field"    // explicit role field
	MatchReviewer MatchSource = "reviewer" // reviewer string or object
	MatchKeyword  MatchSource = "keyword"  // free-text inference
	MatchNone     MatchSource = "none"
)

// ResolveRole determines the reviewer role a task record belongs to. It is
// total: for any record, including nil and {}, it returns one of the three
// known role keys. Records are decoded JSON objects; field values may be
// missing, null, numeric, or otherwise malformed.
func ResolveRole(rec map[string]any) RoleKey {
	role, _ := ClassifyRole(rec)
	if role == RoleUnknown {
		return FallbackRole
	}
	return role
}

// ClassifyRole runs the same chain as ResolveRole but reports RoleUnknown
// instead of applying the fallback, along with the step that matched.
func ClassifyRole(rec map[string]any) (RoleKey, MatchSource) {
	if rec == nil {
		return RoleUnknown, MatchNone
	}

	// 1. Explicit role fields, first match wins.
	for _, field := range []string{"assigned_role", "role", "role_id", "reviewer_role"} {
		if role, ok := canonicalRole(rec[field]); ok {
			return role, MatchField
		}
	}

	// 2/3. Reviewer as free text or as a nested object.
	switch reviewer := rec["reviewer"].(type) {
	case string:
		if role, ok := reviewerKeyword(reviewer); ok {
			return role, MatchReviewer
		}
	case map[string]any:
		for _, field := range []string{"role", "role_id"} {
			if role, ok := canonicalRole(reviewer[field]); ok {
				return role, MatchReviewer
			}
		}
	}

	// 4. Keyword inference over title, task_type, and description.
	text := strings.ToLower(strings.Join([]string{
		stringField(rec, "title"),
		stringField(rec, "task_type"),
		stringField(rec, "description"),
	}, " "))
	for _, set := range roleKeywords {
		for _, word := range set.words {
			if strings.Contains(text, word) {
				return set.role, MatchKeyword
			}
		}
	}

	return RoleUnknown, MatchNone
}

// ResolveTaskRole resolves a typed task record. AssignedRole wins when valid;
// otherwise the free-text chain applies.
func ResolveTaskRole(t domain.Task) RoleKey {
	role, _ := ClassifyTaskRole(t)
	if role == RoleUnknown {
		return FallbackRole
	}
	return role
}

// ClassifyTaskRole is ClassifyRole over a typed task record, reporting the
// match source so callers can record how the role was determined.
func ClassifyTaskRole(t domain.Task) (RoleKey, MatchSource) {
	return ClassifyRole(map[string]any{
		"assigned_role": t.AssignedRole,
		"title":         t.Title,
		"task_type":     t.TaskType,
		"description":   t.Description,
	})
}

func canonicalRole(v any) (RoleKey, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	role, ok := roleAliases[strings.ToLower(strings.TrimSpace(s))]
	return role, ok
}

func reviewerKeyword(s string) (RoleKey, bool) {
	lowered := strings.ToLower(s)
	switch {
	case strings.Contains(lowered, "sales"):
		return RoleSalesAdvisor, true
	case strings.Contains(lowered, "analyst"):
		return RoleAnalyst, true
	case strings.Contains(lowered, "governance"):
		return RoleGovernanceLead, true
	}
	return "", false
}

func stringField(rec map[string]any, key string) string {
	if s, ok := rec[key].(string); ok {
		return s
	}
	return ""
}
