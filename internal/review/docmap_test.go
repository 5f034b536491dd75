package review

import (
	"reflect"
	"testing"
)

var defaultMapping = Mapping{
	"land_deed":        {"re_sales_advisor", "re_governance_lead"},
	"grid_study":       {"re_analyst"},
	"financial_model":  {"re_analyst", "re_sales_advisor"},
	"permit_clearance": {"re_governance_lead"},
}

func TestInvertMapping(t *testing.T) {
	inverted := InvertMapping(defaultMapping)
	want := []string{"financial_model", "grid_study"}
	if !reflect.DeepEqual(inverted[RoleAnalyst], want) {
		t.Fatalf("analyst types: got %v, want %v", inverted[RoleAnalyst], want)
	}
	if got := inverted[RoleGovernanceLead]; len(got) != 2 {
		t.Fatalf("governance types: got %v", got)
	}
}

func TestInvertMappingDropsUnknownRoles(t *testing.T) {
	m := Mapping{"land_deed": {"re_analyst", "superadmin", ""}}
	inverted := InvertMapping(m)
	if len(inverted) != 1 || len(inverted[RoleAnalyst]) != 1 {
		t.Fatalf("unexpected inversion: %v", inverted)
	}
}

func TestAllowedDocumentTypesEmptyOverrideIsAuthoritative(t *testing.T) {
	// Present-but-empty per-land mapping must yield zero visible types,
	// never a silent fallback to defaults.
	got := AllowedDocumentTypes(Mapping{}, defaultMapping, RoleAnalyst)
	if len(got) != 0 {
		t.Fatalf("empty override leaked defaults: %v", got)
	}
}

func TestAllowedDocumentTypesAbsentOverrideUsesDefaults(t *testing.T) {
	got := VisibleDocumentTypes(nil, defaultMapping, RoleAnalyst)
	want := []string{"financial_model", "grid_study"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestAllowedDocumentTypesOverrideReplacesDefaults(t *testing.T) {
	landMapping := Mapping{"site_survey": {"re_analyst"}}
	got := VisibleDocumentTypes(landMapping, defaultMapping, RoleAnalyst)
	if !reflect.DeepEqual(got, []string{"site_survey"}) {
		t.Fatalf("override not sole source of truth: %v", got)
	}
	// Roles absent from the override see nothing, even with defaults present.
	if got := VisibleDocumentTypes(landMapping, defaultMapping, RoleSalesAdvisor); len(got) != 0 {
		t.Fatalf("sales advisor leaked defaults: %v", got)
	}
}
