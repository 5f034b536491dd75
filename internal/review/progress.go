package review

import (
	"math"

	"github.com/JaligamRishitha/renewmart-sub002/internal/domain"
)

// TaskSnapshot is the immutable view a progress computation runs over. It is
// built once per gather cycle after every constituent fetch has settled;
// aggregating a half-loaded snapshot is the bug this type exists to prevent.
type TaskSnapshot struct {
	ID       string
	Role     RoleKey
	Status   string
	Subtasks []SubtaskSnapshot
}

type SubtaskSnapshot struct {
	Status    string
	Completed *bool
}

// RoleProgressResult is the basic overview-panel rollup for one role.
type RoleProgressResult struct {
	Role           RoleKey `json:"role"`
	Percentage     int     `json:"percentage"`
	CompletedCount int     `json:"completed_count"`
	TotalCount     int     `json:"total_count"`
}

// AggregationPolicy names the contested denominator rules so they can change
// without touching the aggregation internals.
type AggregationPolicy struct {
	// CountUnassignedRoles keeps roles with zero assigned tasks in the
	// project-average denominator as 0%. This drags the overall number down
	// for roles nobody has staffed yet; preserved as the historical default.
	CountUnassignedRoles bool
}

// DefaultPolicy matches the behavior of the original dashboards.
var DefaultPolicy = AggregationPolicy{CountUnassignedRoles: true}

// SubtaskDone reports completion of a single subtask. The explicit Completed
// flag wins over a conflicting status.
func SubtaskDone(s SubtaskSnapshot) bool {
	if s.Completed != nil && *s.Completed {
		return true
	}
	return s.Status == "completed" || s.Status == "approved"
}

// TaskProgress computes a 0-100 completion percentage for one task. With
// subtasks present the task's own status is ignored: completion is derived,
// never stored. Without subtasks the task status maps to 0 or 100.
func TaskProgress(t TaskSnapshot) int {
	if len(t.Subtasks) == 0 {
		if t.Status == "completed" || t.Status == "approved" {
			return 100
		}
		return 0
	}
	done := 0
	for _, s := range t.Subtasks {
		if SubtaskDone(s) {
			done++
		}
	}
	return roundPct(float64(done) * 100 / float64(len(t.Subtasks)))
}

// TaskComplete reports whether every subtask is done (or, without subtasks,
// whether the task status is terminal-complete).
func TaskComplete(t TaskSnapshot) bool {
	return TaskProgress(t) == 100
}

// RoleProgress is the simple task-average rollup used by the overview panel:
// the mean of per-task percentages plus completed/total counts.
func RoleProgress(role RoleKey, tasks []TaskSnapshot) RoleProgressResult {
	res := RoleProgressResult{Role: role, TotalCount: len(tasks)}
	if len(tasks) == 0 {
		return res
	}
	sum := 0
	for _, t := range tasks {
		pct := TaskProgress(t)
		sum += pct
		if pct == 100 {
			res.CompletedCount++
		}
	}
	res.Percentage = roundPct(float64(sum) / float64(len(tasks)))
	return res
}

// MeanPct averages raw per-role percentages into an overall 0-100 value.
func MeanPct(perRole []int) int {
	if len(perRole) == 0 {
		return 0
	}
	sum := 0
	for _, p := range perRole {
		sum += p
	}
	return roundPct(float64(sum) / float64(len(perRole)))
}

// ProjectProgress rolls per-role results into the overall project
// percentage across the three fixed roles. The policy decides whether roles
// with zero assigned tasks stay in the denominator (as 0%) or are skipped.
func ProjectProgress(perRole map[RoleKey]RoleProgressResult, policy AggregationPolicy) int {
	var pcts []int
	for _, role := range Roles() {
		res, ok := perRole[role]
		if !ok || res.TotalCount == 0 {
			if policy.CountUnassignedRoles {
				pcts = append(pcts, 0)
			}
			continue
		}
		pcts = append(pcts, res.Percentage)
	}
	return MeanPct(pcts)
}

// WeightedUnitProgress is the richer aggregation-panel variant that blends
// subtask-derived and document-approval-derived percentages for one unit.
// Precedence: terminal statuses force the result; subtasks beat documents;
// fully-done subtasks with partial document approvals average the two.
func WeightedUnitProgress(status string, subtaskPct, docPct *int) int {
	switch status {
	case "rejected":
		// Rejection overrides partial progress. Policy decision, not a bug.
		return 0
	case "published", "approved", "completed":
		return 100
	}
	switch {
	case subtaskPct != nil && docPct != nil:
		if *subtaskPct == 100 && *docPct < 100 {
			return roundPct(float64(*subtaskPct+*docPct) / 2)
		}
		return clampPct(*subtaskPct)
	case subtaskPct != nil:
		return clampPct(*subtaskPct)
	case docPct != nil:
		return clampPct(*docPct)
	default:
		return 0
	}
}

// DocumentApprovalPct computes the document-approval percentage over a set
// of document records; missing arrays count as no documents, not an error.
func DocumentApprovalPct(docs []domain.Document) *int {
	if len(docs) == 0 {
		return nil
	}
	approved := 0
	for _, d := range docs {
		if d.Status == "approved" {
			approved++
		}
	}
	pct := roundPct(float64(approved) * 100 / float64(len(docs)))
	return &pct
}

// SnapshotFromTask builds a TaskSnapshot from typed records.
func SnapshotFromTask(t domain.Task, subs []domain.Subtask) TaskSnapshot {
	snap := TaskSnapshot{
		ID:     t.ID,
		Role:   ResolveTaskRole(t),
		Status: t.Status,
	}
	for _, s := range subs {
		snap.Subtasks = append(snap.Subtasks, SubtaskSnapshot{Status: s.Status, Completed: s.Completed})
	}
	return snap
}

func roundPct(v float64) int {
	return clampPct(int(math.Round(v)))
}

func clampPct(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
