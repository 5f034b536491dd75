package engine_test

import (
	"testing"

	"github.com/JaligamRishitha/renewmart-sub002/internal/engine"
	"github.com/JaligamRishitha/renewmart-sub002/internal/review"
)

func TestGatherSnapshot(t *testing.T) {
	env := newTestEnv(t)
	landID := createLand(t, env)

	// sales task: done outright
	sales, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		LandID: landID, AssignedRole: "re_sales_advisor", Title: "Pricing review", ActorID: "tester",
	})
	if err != nil {
		t.Fatal(err)
	}
	_, _ = env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: sales.ID, Status: "in_progress", ActorID: "tester"})
	if _, err := env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: sales.ID, Status: "completed", ActorID: "tester"}); err != nil {
		t.Fatal(err)
	}

	// analyst task: one of three subtasks done
	analyst, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		LandID: landID, AssignedRole: "re_analyst", Title: "Feasibility", ActorID: "tester",
	})
	if err != nil {
		t.Fatal(err)
	}
	var firstSub string
	for _, title := range []string{"Load model", "Yield study", "Cost sheet"} {
		s, err := env.Engine.AddSubtask(env.Ctx, analyst.ID, title, "", "tester")
		if err != nil {
			t.Fatal(err)
		}
		if firstSub == "" {
			firstSub = s.ID
		}
	}
	if _, err := env.Engine.SetSubtaskStatus(env.Ctx, firstSub, "completed", "tester"); err != nil {
		t.Fatal(err)
	}

	snap, err := env.Engine.Gather(env.Ctx, landID)
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if snap.State != "loaded" {
		t.Fatalf("expected loaded state, got %s", snap.State)
	}
	if len(snap.Tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(snap.Tasks))
	}
	for _, detail := range snap.Tasks {
		switch detail.Task.ID {
		case sales.ID:
			if !detail.Complete {
				t.Fatalf("sales task should report complete")
			}
		case analyst.ID:
			if detail.Complete {
				t.Fatalf("analyst task with open subtasks should not report complete")
			}
		}
	}
	if got := snap.RoleResults[review.RoleSalesAdvisor].Percentage; got != 100 {
		t.Fatalf("sales pct = %d, want 100", got)
	}
	if got := snap.RoleResults[review.RoleAnalyst].Percentage; got != 33 {
		t.Fatalf("analyst pct = %d, want 33", got)
	}
	if got := snap.RoleResults[review.RoleGovernanceLead].Percentage; got != 0 {
		t.Fatalf("governance pct = %d, want 0", got)
	}
	// (100 + 33 + 0) / 3 = 44, unstaffed governance counted per default policy
	if snap.OverallPct != 44 {
		t.Fatalf("overall pct = %d, want 44", snap.OverallPct)
	}
}

func TestGatherRejectedLandForcesZero(t *testing.T) {
	env := newTestEnv(t)
	landID := createLand(t, env)
	tk, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		LandID: landID, AssignedRole: "re_analyst", Title: "Feasibility", ActorID: "tester",
	})
	if err != nil {
		t.Fatal(err)
	}
	_, _ = env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: tk.ID, Status: "in_progress", ActorID: "tester"})
	_, _ = env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: tk.ID, Status: "completed", ActorID: "tester"})

	_, _ = env.Engine.SetLandStatus(env.Ctx, landID, "submitted", "tester", false)
	_, _ = env.Engine.SetLandStatus(env.Ctx, landID, "under_review", "tester", false)
	if _, err := env.Engine.SetLandStatus(env.Ctx, landID, "rejected", "tester", false); err != nil {
		t.Fatal(err)
	}

	snap, err := env.Engine.Gather(env.Ctx, landID)
	if err != nil {
		t.Fatal(err)
	}
	if snap.WeightedPct != 0 {
		t.Fatalf("weighted pct = %d, want 0 on rejected land", snap.WeightedPct)
	}
	// role math is unaffected by the rejection override
	if got := snap.RoleResults[review.RoleAnalyst].Percentage; got != 100 {
		t.Fatalf("analyst pct = %d, want 100", got)
	}
}

func TestGatherAssigneeStubOnMissingUser(t *testing.T) {
	env := newTestEnv(t)
	landID := createLand(t, env)
	assignee := "reviewer-77"
	tk, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		LandID: landID, AssignedRole: "re_analyst", Title: "Feasibility", AssignedTo: assignee, ActorID: "tester",
	})
	if err != nil {
		t.Fatal(err)
	}
	// wipe the user row to simulate a denied or failed lookup
	if _, err := env.Engine.DB.ExecContext(env.Ctx, `UPDATE tasks SET assigned_to=? WHERE id=?`, "ghost-1", tk.ID); err != nil {
		t.Fatal(err)
	}
	snap, err := env.Engine.Gather(env.Ctx, landID)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Tasks) != 1 || snap.Tasks[0].Assignee == nil {
		t.Fatalf("expected assignee stub")
	}
	if !snap.Tasks[0].Assignee.Stub() || snap.Tasks[0].Assignee.ID != "ghost-1" {
		t.Fatalf("expected id-only stub, got %+v", snap.Tasks[0].Assignee)
	}
}
