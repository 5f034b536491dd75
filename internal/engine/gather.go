package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/JaligamRishitha/renewmart-sub002/internal/domain"
	"github.com/JaligamRishitha/renewmart-sub002/internal/repo"
	"github.com/JaligamRishitha/renewmart-sub002/internal/review"
)

// TaskDetail is one task in a review snapshot, with its resolved role, its
// derived completion percentage, and a best-effort view of the assignee.
type TaskDetail struct {
	Task     domain.Task      `json:"task"`
	Role     review.RoleKey   `json:"role"`
	Pct      int              `json:"pct"`
	Complete bool             `json:"complete"`
	Subtasks []domain.Subtask `json:"subtasks,omitempty"`
	Assignee *domain.User     `json:"assignee,omitempty"`
}

// ReviewSnapshot is the assembled dashboard state for one land: every task
// with subtasks, documents, per-role and overall progress. Percentages are
// only computed once every constituent fetch has settled; a snapshot that
// failed mid-gather reports its state and carries no numbers.
type ReviewSnapshot struct {
	Land        domain.Land                                  `json:"land"`
	State       string                                       `json:"state"`
	Tasks       []TaskDetail                                 `json:"tasks"`
	Documents   []domain.Document                            `json:"documents,omitempty"`
	RoleResults map[review.RoleKey]review.RoleProgressResult `json:"role_results,omitempty"`
	OverallPct  int                                          `json:"overall_pct"`
	WeightedPct int                                          `json:"weighted_pct"`
	GeneratedAt string                                       `json:"generated_at"`
}

// Gather assembles a review snapshot for a land. Subtask loads fan out
// concurrently and any failure marks the whole gather failed; assignee
// lookups are best-effort and degrade to an id-only stub.
func (e Engine) Gather(ctx context.Context, landID string) (ReviewSnapshot, error) {
	snap := ReviewSnapshot{GeneratedAt: e.now().UTC().Format(time.RFC3339)}
	state := review.Reduce(review.LoadIdle, review.EventFetch)

	land, err := e.Repo.GetLand(ctx, landID)
	if err != nil {
		return snap, err
	}
	snap.Land = land

	tasks, err := e.Repo.ListTasks(ctx, repo.TaskFilters{LandID: landID})
	if err != nil {
		snap.State = review.Reduce(state, review.EventError).String()
		return snap, fmt.Errorf("list tasks: %w", err)
	}

	subtasksByTask := make(map[string][]domain.Subtask, len(tasks))
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		fetchErr error
	)
	for _, t := range tasks {
		wg.Add(1)
		go func(taskID string) {
			defer wg.Done()
			subs, err := e.Repo.ListSubtasks(ctx, taskID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if fetchErr == nil {
					fetchErr = fmt.Errorf("list subtasks for %s: %w", taskID, err)
				}
				return
			}
			subtasksByTask[taskID] = subs
		}(t.ID)
	}
	wg.Wait()
	if fetchErr != nil {
		snap.State = review.Reduce(state, review.EventError).String()
		return snap, fetchErr
	}

	docs, err := e.Repo.ListDocuments(ctx, repo.DocumentFilters{LandID: landID, LatestOnly: true})
	if err != nil {
		snap.State = review.Reduce(state, review.EventError).String()
		return snap, fmt.Errorf("list documents: %w", err)
	}
	snap.Documents = docs

	state = review.Reduce(state, review.EventSettled)
	snap.State = state.String()
	if !state.Ready() {
		return snap, errors.New("snapshot not ready")
	}

	byRole := map[review.RoleKey][]review.TaskSnapshot{}
	for _, t := range tasks {
		subs := subtasksByTask[t.ID]
		ts := review.SnapshotFromTask(t, subs)
		byRole[ts.Role] = append(byRole[ts.Role], ts)

		detail := TaskDetail{Task: t, Role: ts.Role, Pct: review.TaskProgress(ts), Complete: review.TaskComplete(ts), Subtasks: subs}
		if t.AssignedTo != nil {
			detail.Assignee = e.lookupUser(ctx, *t.AssignedTo)
		}
		snap.Tasks = append(snap.Tasks, detail)
	}

	results := make(map[review.RoleKey]review.RoleProgressResult, 3)
	for _, role := range review.Roles() {
		results[role] = review.RoleProgress(role, byRole[role])
	}
	snap.RoleResults = results
	snap.OverallPct = review.ProjectProgress(results, e.policy())

	var subtaskPct *int
	if len(tasks) > 0 {
		overall := snap.OverallPct
		subtaskPct = &overall
	}
	snap.WeightedPct = review.WeightedUnitProgress(land.Status, subtaskPct, review.DocumentApprovalPct(docs))
	return snap, nil
}

// lookupUser is best-effort: a missing or failed record degrades to an
// id-only stub so one denied lookup never sinks the whole snapshot.
func (e Engine) lookupUser(ctx context.Context, id string) *domain.User {
	u, err := e.Repo.GetUser(ctx, id)
	if err != nil {
		return &domain.User{ID: id}
	}
	return &u
}

func (e Engine) policy() review.AggregationPolicy {
	if e.Config == nil {
		return review.DefaultPolicy
	}
	return e.Config.Policy()
}
