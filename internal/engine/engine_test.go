package engine_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/JaligamRishitha/renewmart-sub002/internal/config"
	"github.com/JaligamRishitha/renewmart-sub002/internal/db"
	"github.com/JaligamRishitha/renewmart-sub002/internal/engine"
	"github.com/JaligamRishitha/renewmart-sub002/internal/migrate"
	"github.com/JaligamRishitha/renewmart-sub002/internal/repo"
	"github.com/JaligamRishitha/renewmart-sub002/internal/review"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, config.Default())
	eng.Now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	return testEnv{Engine: eng, Ctx: context.Background()}
}

func createLand(t *testing.T, env testEnv) string {
	t.Helper()
	l, err := env.Engine.CreateLand(env.Ctx, engine.LandCreateOptions{
		OwnerID:    "owner-1",
		Title:      "Sunnyvale Plot",
		EnergyType: "solar",
		ActorID:    "tester",
	})
	if err != nil {
		t.Fatalf("create land: %v", err)
	}
	return l.ID
}

func TestLandLifecycle(t *testing.T) {
	env := newTestEnv(t)
	landID := createLand(t, env)

	for _, status := range []string{"submitted", "under_review", "approved", "published"} {
		l, err := env.Engine.SetLandStatus(env.Ctx, landID, status, "tester", false)
		if err != nil {
			t.Fatalf("to %s: %v", status, err)
		}
		if l.Status != status {
			t.Fatalf("expected %s, got %s", status, l.Status)
		}
		if status == "published" && l.PublishedAt == nil {
			t.Fatalf("expected published_at stamp")
		}
	}
	// published is terminal
	if _, err := env.Engine.SetLandStatus(env.Ctx, landID, "draft", "tester", false); err == nil {
		t.Fatalf("expected transition error")
	}
}

func TestLandRejectAndResubmit(t *testing.T) {
	env := newTestEnv(t)
	landID := createLand(t, env)
	_, _ = env.Engine.SetLandStatus(env.Ctx, landID, "submitted", "tester", false)
	_, _ = env.Engine.SetLandStatus(env.Ctx, landID, "under_review", "tester", false)
	l, err := env.Engine.SetLandStatus(env.Ctx, landID, "rejected", "tester", false)
	if err != nil || l.Status != "rejected" {
		t.Fatalf("reject: %v", err)
	}
	// rejected listings are editable and can be resubmitted
	title := "Sunnyvale Plot v2"
	if _, err := env.Engine.UpdateLand(env.Ctx, engine.LandUpdateOptions{ID: landID, Title: &title, ActorID: "tester"}); err != nil {
		t.Fatalf("edit rejected: %v", err)
	}
	if _, err := env.Engine.SetLandStatus(env.Ctx, landID, "submitted", "tester", false); err != nil {
		t.Fatalf("resubmit: %v", err)
	}
}

func TestCreateTaskResolvesRole(t *testing.T) {
	env := newTestEnv(t)
	landID := createLand(t, env)

	// explicit role wins over conflicting keywords in the title
	tk, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		LandID:       landID,
		AssignedRole: "re_governance_lead",
		Title:        "Sales comparables review",
		ActorID:      "tester",
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if tk.AssignedRole != "re_governance_lead" {
		t.Fatalf("expected governance lead, got %s", tk.AssignedRole)
	}

	// missing role falls back to keyword inference
	tk, err = env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		LandID:  landID,
		Title:   "Regulatory compliance check",
		ActorID: "tester",
	})
	if err != nil {
		t.Fatal(err)
	}
	if tk.AssignedRole != "re_governance_lead" {
		t.Fatalf("expected keyword match, got %s", tk.AssignedRole)
	}

	// nothing identifiable gets the fallback
	tk, err = env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		LandID:  landID,
		Title:   "Misc item",
		ActorID: "tester",
	})
	if err != nil {
		t.Fatal(err)
	}
	if tk.AssignedRole != string(review.FallbackRole) {
		t.Fatalf("expected fallback role, got %s", tk.AssignedRole)
	}
}

func TestTaskStatusTransitions(t *testing.T) {
	env := newTestEnv(t)
	landID := createLand(t, env)
	tk, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{LandID: landID, Title: "Grid study", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	tk, err = env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: tk.ID, Status: "in_progress", ActorID: "tester"})
	if err != nil || tk.Status != "in_progress" {
		t.Fatalf("to in_progress: %v", err)
	}
	tk, err = env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: tk.ID, Status: "completed", ActorID: "tester"})
	if err != nil || tk.Status != "completed" {
		t.Fatalf("to completed: %v", err)
	}
	if tk.CompletedAt == nil {
		t.Fatalf("expected completed_at stamp")
	}
	// invalid transition should error
	if _, err = env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: tk.ID, Status: "pending", ActorID: "tester"}); err == nil {
		t.Fatalf("expected transition error")
	}
}

func TestSubtaskStatusSyncsCompletedFlag(t *testing.T) {
	env := newTestEnv(t)
	landID := createLand(t, env)
	tk, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{LandID: landID, Title: "Checklist", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	s, err := env.Engine.AddSubtask(env.Ctx, tk.ID, "Verify deed", "", "tester")
	if err != nil {
		t.Fatalf("add subtask: %v", err)
	}
	s, err = env.Engine.SetSubtaskStatus(env.Ctx, s.ID, "completed", "tester")
	if err != nil {
		t.Fatalf("set status: %v", err)
	}
	if s.Completed == nil || !*s.Completed {
		t.Fatalf("expected completed flag set")
	}
	s, err = env.Engine.SetSubtaskStatus(env.Ctx, s.ID, "in_progress", "tester")
	if err != nil {
		t.Fatal(err)
	}
	if s.Completed == nil || *s.Completed {
		t.Fatalf("expected completed flag cleared")
	}
}

func TestDocumentVersioning(t *testing.T) {
	env := newTestEnv(t)
	landID := createLand(t, env)

	first, err := env.Engine.RecordDocument(env.Ctx, engine.DocumentRecordOptions{
		LandID:       landID,
		DocumentType: "grid_study",
		DocSlot:      "D1",
		FileName:     "grid-v1.pdf",
		UploadedBy:   "owner-1",
		ActorID:      "tester",
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if first.VersionNumber != 1 {
		t.Fatalf("expected version 1, got %d", first.VersionNumber)
	}
	second, err := env.Engine.RecordDocument(env.Ctx, engine.DocumentRecordOptions{
		LandID:       landID,
		DocumentType: "grid_study",
		DocSlot:      "D1",
		FileName:     "grid-v2.pdf",
		UploadedBy:   "owner-1",
		ActorID:      "tester",
	})
	if err != nil {
		t.Fatal(err)
	}
	if second.VersionNumber != 2 {
		t.Fatalf("expected version 2, got %d", second.VersionNumber)
	}
	// a different slot starts its own lineage
	other, err := env.Engine.RecordDocument(env.Ctx, engine.DocumentRecordOptions{
		LandID:       landID,
		DocumentType: "grid_study",
		DocSlot:      "D2",
		FileName:     "grid-alt.pdf",
		UploadedBy:   "owner-1",
		ActorID:      "tester",
	})
	if err != nil {
		t.Fatal(err)
	}
	if other.VersionNumber != 1 {
		t.Fatalf("expected slot D2 version 1, got %d", other.VersionNumber)
	}
	// unknown slot is rejected
	if _, err := env.Engine.RecordDocument(env.Ctx, engine.DocumentRecordOptions{
		LandID:       landID,
		DocumentType: "grid_study",
		DocSlot:      "D9",
		FileName:     "bad.pdf",
		UploadedBy:   "owner-1",
		ActorID:      "tester",
	}); err == nil {
		t.Fatalf("expected slot error")
	}
}

func TestDocumentReview(t *testing.T) {
	env := newTestEnv(t)
	landID := createLand(t, env)
	d, err := env.Engine.RecordDocument(env.Ctx, engine.DocumentRecordOptions{
		LandID:       landID,
		DocumentType: "land_deed",
		FileName:     "deed.pdf",
		UploadedBy:   "owner-1",
		ActorID:      "tester",
	})
	if err != nil {
		t.Fatal(err)
	}
	d, err = env.Engine.ReviewDocument(env.Ctx, d.ID, "approved", "checks out", "reviewer-1")
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if d.Status != "approved" || d.ReviewNote != "checks out" {
		t.Fatalf("unexpected review result %+v", d)
	}
	if _, err := env.Engine.ReviewDocument(env.Ctx, d.ID, "maybe", "", "reviewer-1"); err == nil {
		t.Fatalf("expected verdict error")
	}
}

func TestInterestRequiresPublished(t *testing.T) {
	env := newTestEnv(t)
	landID := createLand(t, env)

	if _, err := env.Engine.RegisterInterest(env.Ctx, landID, "investor-1", "", "investor-1"); err == nil {
		t.Fatalf("expected rejection on draft land")
	}
	for _, status := range []string{"submitted", "under_review", "approved", "published"} {
		_, _ = env.Engine.SetLandStatus(env.Ctx, landID, status, "tester", false)
	}
	if _, err := env.Engine.RegisterInterest(env.Ctx, landID, "investor-1", "Interested in solar", "investor-1"); err != nil {
		t.Fatalf("register: %v", err)
	}
	// duplicates are rejected
	if _, err := env.Engine.RegisterInterest(env.Ctx, landID, "investor-1", "", "investor-1"); err == nil {
		t.Fatalf("expected duplicate error")
	}
}

func TestDocMappingOverride(t *testing.T) {
	env := newTestEnv(t)
	landID := createLand(t, env)

	// defaults apply while no override exists
	types, err := env.Engine.VisibleDocumentTypes(env.Ctx, landID, review.RoleGovernanceLead)
	if err != nil {
		t.Fatal(err)
	}
	if len(types) == 0 {
		t.Fatalf("expected default visibility")
	}

	// an explicitly empty override hides everything
	if err := env.Engine.SetDocMapping(env.Ctx, landID, review.Mapping{}, "tester"); err != nil {
		t.Fatalf("set mapping: %v", err)
	}
	types, err = env.Engine.VisibleDocumentTypes(env.Ctx, landID, review.RoleGovernanceLead)
	if err != nil {
		t.Fatal(err)
	}
	if len(types) != 0 {
		t.Fatalf("expected empty override to hide all types, got %v", types)
	}

	// clearing the override restores the defaults
	if err := env.Engine.ClearDocMapping(env.Ctx, landID, "tester"); err != nil {
		t.Fatalf("clear mapping: %v", err)
	}
	types, _ = env.Engine.VisibleDocumentTypes(env.Ctx, landID, review.RoleGovernanceLead)
	if len(types) == 0 {
		t.Fatalf("expected defaults after clear")
	}
}

func TestDuplicateTitlesGetDistinctIDs(t *testing.T) {
	env := newTestEnv(t)

	// the fixed clock makes every record share one timestamp; identical
	// titles created in the same second must still get unique ids
	first, err := env.Engine.CreateLand(env.Ctx, engine.LandCreateOptions{
		OwnerID: "owner-1", Title: "Sunnyvale Plot", EnergyType: "solar", ActorID: "tester",
	})
	if err != nil {
		t.Fatal(err)
	}
	second, err := env.Engine.CreateLand(env.Ctx, engine.LandCreateOptions{
		OwnerID: "owner-1", Title: "Sunnyvale Plot", EnergyType: "solar", ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("second land with same title: %v", err)
	}
	if first.ID == second.ID {
		t.Fatalf("lands with identical titles share id %s", first.ID)
	}

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		tk, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
			LandID: first.ID, Title: "Feasibility step", ActorID: "tester",
		})
		if err != nil {
			t.Fatalf("task %d with repeated title: %v", i, err)
		}
		if seen[tk.ID] {
			t.Fatalf("task id %s reused", tk.ID)
		}
		seen[tk.ID] = true
	}
}

func TestDeleteLandCascades(t *testing.T) {
	env := newTestEnv(t)
	landID := createLand(t, env)
	tk, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{LandID: landID, Title: "Grid study", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}

	if err := env.Engine.DeleteLand(env.Ctx, landID, "tester", false); err != nil {
		t.Fatalf("delete draft: %v", err)
	}
	if _, err := env.Engine.Repo.GetLand(env.Ctx, landID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected deleted land, got %v", err)
	}
	if _, err := env.Engine.Repo.GetTask(env.Ctx, tk.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected cascaded task delete, got %v", err)
	}
}

func TestDeleteLandRequiresDraftOrRejected(t *testing.T) {
	env := newTestEnv(t)
	landID := createLand(t, env)
	for _, status := range []string{"submitted", "under_review", "approved", "published"} {
		_, _ = env.Engine.SetLandStatus(env.Ctx, landID, status, "tester", false)
	}
	if err := env.Engine.DeleteLand(env.Ctx, landID, "tester", false); err == nil {
		t.Fatalf("expected delete of published land to fail")
	}
	if err := env.Engine.DeleteLand(env.Ctx, landID, "tester", true); err != nil {
		t.Fatalf("forced delete: %v", err)
	}
}

func TestTaskCreatedEventRecordsRoleSource(t *testing.T) {
	env := newTestEnv(t)
	landID := createLand(t, env)

	cases := []struct {
		title  string
		role   string
		source string
	}{
		{"Pricing review", "re_governance_lead", "field"},
		{"Regulatory compliance check", "", "keyword"},
		{"Misc item", "", "none"},
	}
	for _, tc := range cases {
		tk, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
			LandID: landID, Title: tc.title, AssignedRole: tc.role, ActorID: "tester",
		})
		if err != nil {
			t.Fatal(err)
		}
		events, err := env.Engine.Repo.LatestEvents(env.Ctx, 1, landID, "task.created", "task", tk.ID)
		if err != nil || len(events) != 1 {
			t.Fatalf("task.created event for %q: %v (%d found)", tc.title, err, len(events))
		}
		if !strings.Contains(events[0].Payload, `"role_source":"`+tc.source+`"`) {
			t.Fatalf("event payload for %q = %s, want role_source %s", tc.title, events[0].Payload, tc.source)
		}
	}
}

func TestEventAppendOnStateChanges(t *testing.T) {
	env := newTestEnv(t)
	landID := createLand(t, env)
	_, _ = env.Engine.SetLandStatus(env.Ctx, landID, "submitted", "tester", false)
	_, _ = env.Engine.SetLandStatus(env.Ctx, landID, "under_review", "tester", false)
	rows, err := env.Engine.DB.QueryContext(env.Ctx, `SELECT type FROM events WHERE land_id=?`, landID)
	if err != nil {
		t.Fatalf("query events: %v", err)
	}
	defer rows.Close()
	count := 0
	for rows.Next() {
		count++
	}
	if count < 3 {
		t.Fatalf("expected multiple events, got %d", count)
	}
}
