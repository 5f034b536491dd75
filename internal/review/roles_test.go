package review

import "testing"

func TestResolveRoleTotal(t *testing.T) {
	records := []map[string]any{
		nil,
		{},
		{"assigned_role": 42},
		{"role": nil},
		{"reviewer": []any{"sales"}},
		{"title": 3.14, "description": true},
	}
	for i, rec := range records {
		role := ResolveRole(rec)
		if !KnownRole(role) {
			t.Fatalf("record %d: expected a known role, got %q", i, role)
		}
		if role != FallbackRole {
			t.Fatalf("record %d: expected fallback %q, got %q", i, FallbackRole, role)
		}
	}
}

func TestResolveRoleExplicitFieldWins(t *testing.T) {
	rec := map[string]any{
		"assigned_role": "re_governance_lead",
		"title":         "Review sales projections",
	}
	if got := ResolveRole(rec); got != RoleGovernanceLead {
		t.Fatalf("explicit assigned_role must win over title keywords, got %q", got)
	}
}

func TestResolveRoleAliases(t *testing.T) {
	cases := map[string]RoleKey{
		"sales_advisor":      RoleSalesAdvisor,
		"Analyst":            RoleAnalyst,
		"GOVERNANCE_LEAD":    RoleGovernanceLead,
		"re_sales_advisor":   RoleSalesAdvisor,
		" re_analyst ":       RoleAnalyst,
		"re_governance_lead": RoleGovernanceLead,
	}
	for in, want := range cases {
		if got := ResolveRole(map[string]any{"role": in}); got != want {
			t.Errorf("role %q: got %q, want %q", in, got, want)
		}
	}
}

func TestResolveRoleFieldPrecedence(t *testing.T) {
	rec := map[string]any{
		"assigned_role": "bogus",
		"role":          "analyst",
		"reviewer":      "governance team",
	}
	// assigned_role is malformed, so the next explicit field wins.
	if got := ResolveRole(rec); got != RoleAnalyst {
		t.Fatalf("got %q, want %q", got, RoleAnalyst)
	}
}

func TestResolveRoleReviewerString(t *testing.T) {
	if got := ResolveRole(map[string]any{"reviewer": "Senior Sales Rep"}); got != RoleSalesAdvisor {
		t.Fatalf("reviewer string: got %q", got)
	}
}

func TestResolveRoleReviewerObject(t *testing.T) {
	rec := map[string]any{
		"reviewer": map[string]any{"role_id": "governance_lead", "name": "J. Doe"},
	}
	if got := ResolveRole(rec); got != RoleGovernanceLead {
		t.Fatalf("reviewer object: got %q", got)
	}
}

func TestResolveRoleKeywords(t *testing.T) {
	cases := []struct {
		rec  map[string]any
		want RoleKey
	}{
		{map[string]any{"title": "Market feasibility visit"}, RoleSalesAdvisor},
		{map[string]any{"task_type": "technical"}, RoleAnalyst},
		{map[string]any{"description": "check regulatory permits"}, RoleGovernanceLead},
		{map[string]any{"title": "Financial model review"}, RoleAnalyst},
	}
	for i, c := range cases {
		if got := ResolveRole(c.rec); got != c.want {
			t.Errorf("case %d: got %q, want %q", i, got, c.want)
		}
	}
}

func TestClassifyRoleReportsUnknown(t *testing.T) {
	role, source := ClassifyRole(map[string]any{"title": "Misc paperwork"})
	if role != RoleUnknown || source != MatchNone {
		t.Fatalf("got %q/%q, want unclassified/none", role, source)
	}
	role, source = ClassifyRole(map[string]any{"assigned_role": "re_analyst"})
	if role != RoleAnalyst || source != MatchField {
		t.Fatalf("got %q/%q, want analyst/field", role, source)
	}
}

func TestRoleLabels(t *testing.T) {
	for _, role := range Roles() {
		if RoleLabel(role) == "Unclassified" {
			t.Fatalf("known role %q has no label", role)
		}
	}
	if RoleLabel(RoleUnknown) != "Unclassified" {
		t.Fatalf("unknown role label mismatch")
	}
}
