package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/JaligamRishitha/renewmart-sub002/internal/domain"
	"github.com/JaligamRishitha/renewmart-sub002/internal/review"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

const landColumns = `id,owner_id,title,location,energy_type,capacity_mw,asking_price,status,description,created_at,updated_at,published_at`

func scanLand(scan func(dest ...any) error) (domain.Land, error) {
	var l domain.Land
	var location, description, publishedAt sql.NullString
	var capacity, price sql.NullFloat64
	err := scan(&l.ID, &l.OwnerID, &l.Title, &location, &l.EnergyType, &capacity, &price, &l.Status, &description, &l.CreatedAt, &l.UpdatedAt, &publishedAt)
	if err == sql.ErrNoRows {
		return l, ErrNotFound
	}
	if err != nil {
		return l, err
	}
	if location.Valid {
		l.Location = location.String
	}
	if description.Valid {
		l.Description = description.String
	}
	if capacity.Valid {
		l.CapacityMW = &capacity.Float64
	}
	if price.Valid {
		l.AskingPrice = &price.Float64
	}
	if publishedAt.Valid {
		l.PublishedAt = &publishedAt.String
	}
	return l, nil
}

func (r Repo) InsertLand(ctx context.Context, tx *sql.Tx, l domain.Land) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO lands(`+landColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		l.ID, l.OwnerID, l.Title, nullable(l.Location), l.EnergyType, nullableFloatPtr(l.CapacityMW), nullableFloatPtr(l.AskingPrice),
		l.Status, nullable(l.Description), l.CreatedAt, l.UpdatedAt, nullableStringPtr(l.PublishedAt))
	return err
}

func (r Repo) UpdateLand(ctx context.Context, tx *sql.Tx, l domain.Land) error {
	res, err := tx.ExecContext(ctx, `UPDATE lands SET title=?, location=?, energy_type=?, capacity_mw=?, asking_price=?, status=?, description=?, updated_at=?, published_at=? WHERE id=?`,
		l.Title, nullable(l.Location), l.EnergyType, nullableFloatPtr(l.CapacityMW), nullableFloatPtr(l.AskingPrice),
		l.Status, nullable(l.Description), l.UpdatedAt, nullableStringPtr(l.PublishedAt), l.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetLand(ctx context.Context, id string) (domain.Land, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+landColumns+` FROM lands WHERE id=?`, id)
	return scanLand(row.Scan)
}

func (r Repo) GetLandTx(ctx context.Context, tx *sql.Tx, id string) (domain.Land, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+landColumns+` FROM lands WHERE id=?`, id)
	return scanLand(row.Scan)
}

type LandFilters struct {
	OwnerID         string
	Status          string
	EnergyType      string
	Location        string
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

func (r Repo) ListLands(ctx context.Context, f LandFilters) ([]domain.Land, error) {
	var clauses []string
	var args []any
	if f.OwnerID != "" {
		clauses = append(clauses, "owner_id=?")
		args = append(args, f.OwnerID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.EnergyType != "" {
		clauses = append(clauses, "energy_type=?")
		args = append(args, f.EnergyType)
	}
	if f.Location != "" {
		clauses = append(clauses, "location LIKE ?")
		args = append(args, "%"+f.Location+"%")
	}
	if f.CursorCreatedAt != "" && f.CursorID != "" {
		clauses = append(clauses, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, f.CursorCreatedAt, f.CursorCreatedAt, f.CursorID)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + landColumns + ` FROM lands ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Land
	for rows.Next() {
		l, err := scanLand(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, l)
	}
	return res, rows.Err()
}

// DeleteLand removes a land row; dependent rows cascade via the schema.
func (r Repo) DeleteLand(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM lands WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const taskColumns = `id,land_id,assigned_role,assigned_to,task_type,title,description,status,created_at,updated_at,completed_at`

func scanTask(scan func(dest ...any) error) (domain.Task, error) {
	var t domain.Task
	var role, assignedTo, taskType, description, completedAt sql.NullString
	err := scan(&t.ID, &t.LandID, &role, &assignedTo, &taskType, &t.Title, &description, &t.Status, &t.CreatedAt, &t.UpdatedAt, &completedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	if role.Valid {
		t.AssignedRole = role.String
	}
	if assignedTo.Valid {
		t.AssignedTo = &assignedTo.String
	}
	if taskType.Valid {
		t.TaskType = taskType.String
	}
	if description.Valid {
		t.Description = description.String
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.String
	}
	return t, nil
}

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO tasks(`+taskColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.LandID, nullable(t.AssignedRole), nullableStringPtr(t.AssignedTo), nullable(t.TaskType), t.Title,
		nullable(t.Description), t.Status, t.CreatedAt, t.UpdatedAt, nullableStringPtr(t.CompletedAt))
	return err
}

func (r Repo) UpdateTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	_, err := tx.ExecContext(ctx, `UPDATE tasks SET assigned_role=?, assigned_to=?, task_type=?, title=?, description=?, status=?, updated_at=?, completed_at=? WHERE id=?`,
		nullable(t.AssignedRole), nullableStringPtr(t.AssignedTo), nullable(t.TaskType), t.Title, nullable(t.Description),
		t.Status, t.UpdatedAt, nullableStringPtr(t.CompletedAt), t.ID)
	return err
}

func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id)
	return scanTask(row.Scan)
}

func (r Repo) GetTaskTx(ctx context.Context, tx *sql.Tx, id string) (domain.Task, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id)
	return scanTask(row.Scan)
}

type TaskFilters struct {
	LandID          string
	AssignedRole    string
	AssignedTo      string
	Status          string
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

func (r Repo) ListTasks(ctx context.Context, f TaskFilters) ([]domain.Task, error) {
	var clauses []string
	var args []any
	if f.LandID != "" {
		clauses = append(clauses, "land_id=?")
		args = append(args, f.LandID)
	}
	if f.AssignedRole != "" {
		clauses = append(clauses, "assigned_role=?")
		args = append(args, f.AssignedRole)
	}
	if f.AssignedTo != "" {
		clauses = append(clauses, "assigned_to=?")
		args = append(args, f.AssignedTo)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.CursorCreatedAt != "" && f.CursorID != "" {
		clauses = append(clauses, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, f.CursorCreatedAt, f.CursorCreatedAt, f.CursorID)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + taskColumns + ` FROM tasks ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

const subtaskColumns = `id,task_id,title,description,status,completed,created_at,updated_at`

func scanSubtask(scan func(dest ...any) error) (domain.Subtask, error) {
	var s domain.Subtask
	var description sql.NullString
	var completed sql.NullBool
	err := scan(&s.ID, &s.TaskID, &s.Title, &description, &s.Status, &completed, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	if err != nil {
		return s, err
	}
	if description.Valid {
		s.Description = description.String
	}
	if completed.Valid {
		s.Completed = &completed.Bool
	}
	return s, nil
}

func (r Repo) InsertSubtask(ctx context.Context, tx *sql.Tx, s domain.Subtask) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO subtasks(`+subtaskColumns+`) VALUES (?,?,?,?,?,?,?,?)`,
		s.ID, s.TaskID, s.Title, nullable(s.Description), s.Status, nullableBoolPtr(s.Completed), s.CreatedAt, s.UpdatedAt)
	return err
}

func (r Repo) UpdateSubtask(ctx context.Context, tx *sql.Tx, s domain.Subtask) error {
	_, err := tx.ExecContext(ctx, `UPDATE subtasks SET title=?, description=?, status=?, completed=?, updated_at=? WHERE id=?`,
		s.Title, nullable(s.Description), s.Status, nullableBoolPtr(s.Completed), s.UpdatedAt, s.ID)
	return err
}

func (r Repo) GetSubtask(ctx context.Context, id string) (domain.Subtask, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+subtaskColumns+` FROM subtasks WHERE id=?`, id)
	return scanSubtask(row.Scan)
}

func (r Repo) GetSubtaskTx(ctx context.Context, tx *sql.Tx, id string) (domain.Subtask, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+subtaskColumns+` FROM subtasks WHERE id=?`, id)
	return scanSubtask(row.Scan)
}

func (r Repo) ListSubtasks(ctx context.Context, taskID string) ([]domain.Subtask, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+subtaskColumns+` FROM subtasks WHERE task_id=? ORDER BY created_at ASC, id ASC`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Subtask
	for rows.Next() {
		s, err := scanSubtask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// UpsertDocMapping stores a per-land visibility override. An empty map is a
// valid, authoritative override and is stored as {}.
func (r Repo) UpsertDocMapping(ctx context.Context, tx *sql.Tx, landID string, m review.Mapping, now string) error {
	if m == nil {
		return fmt.Errorf("mapping nil")
	}
	payload, err := json.Marshal(m)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO doc_mappings(land_id,mapping_json,created_at,updated_at) VALUES (?,?,?,?)
ON CONFLICT(land_id) DO UPDATE SET mapping_json=excluded.mapping_json, updated_at=excluded.updated_at`, landID, string(payload), now, now)
	return err
}

// GetDocMapping returns the per-land override, or (nil, nil) when none is
// stored. Callers treat nil as "fall back to the defaults".
func (r Repo) GetDocMapping(ctx context.Context, landID string) (review.Mapping, error) {
	var payload string
	err := r.DB.QueryRowContext(ctx, `SELECT mapping_json FROM doc_mappings WHERE land_id=?`, landID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	m := review.Mapping{}
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		return nil, err
	}
	return m, nil
}

func (r Repo) DeleteDocMapping(ctx context.Context, tx *sql.Tx, landID string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM doc_mappings WHERE land_id=?`, landID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) InsertInterest(ctx context.Context, tx *sql.Tx, i domain.Interest) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO interests(id,land_id,investor_id,message,created_at) VALUES (?,?,?,?,?)`,
		i.ID, i.LandID, i.InvestorID, nullable(i.Message), i.CreatedAt)
	return err
}

func (r Repo) ListInterests(ctx context.Context, landID string) ([]domain.Interest, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,land_id,investor_id,message,created_at FROM interests WHERE land_id=? ORDER BY created_at DESC, id DESC`, landID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Interest
	for rows.Next() {
		var i domain.Interest
		var message sql.NullString
		if err := rows.Scan(&i.ID, &i.LandID, &i.InvestorID, &message, &i.CreatedAt); err != nil {
			return nil, err
		}
		if message.Valid {
			i.Message = message.String
		}
		res = append(res, i)
	}
	return res, rows.Err()
}

func (r Repo) HasInterest(ctx context.Context, tx *sql.Tx, landID, investorID string) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM interests WHERE land_id=? AND investor_id=?`, landID, investorID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r Repo) LatestEvents(ctx context.Context, limit int, landID, evtType, entityKind, entityID string) ([]domain.Event, error) {
	return r.LatestEventsFrom(ctx, limit, 0, landID, evtType, entityKind, entityID)
}

func (r Repo) LatestEventsFrom(ctx context.Context, limit int, cursor int64, landID, evtType, entityKind, entityID string) ([]domain.Event, error) {
	clauses := []string{"1=1"}
	var args []any
	if landID != "" {
		clauses = append(clauses, "land_id=?")
		args = append(args, landID)
	}
	if evtType != "" {
		clauses = append(clauses, "type=?")
		args = append(args, evtType)
	}
	if entityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, entityKind)
	}
	if entityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, entityID)
	}
	if cursor > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, cursor)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := fmt.Sprintf(`SELECT id,ts,type,COALESCE(land_id,''),entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events %s ORDER BY id DESC LIMIT ?`, where)
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.LandID, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// EventsAfter returns events with IDs greater than the cursor in ascending order.
func (r Repo) EventsAfter(ctx context.Context, limit int, cursor int64, landID string) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	clauses := []string{"1=1"}
	var args []any
	if landID != "" {
		clauses = append(clauses, "land_id=?")
		args = append(args, landID)
	}
	if cursor > 0 {
		clauses = append(clauses, "id>?")
		args = append(args, cursor)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := fmt.Sprintf(`SELECT id,ts,type,COALESCE(land_id,''),entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events %s ORDER BY id ASC LIMIT ?`, where)
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.LandID, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// LatestEventID returns the most recent event ID for a land, or across all
// lands when landID is empty.
func (r Repo) LatestEventID(ctx context.Context, landID string) (int64, error) {
	query := `SELECT COALESCE(MAX(id),0) FROM events`
	var args []any
	if landID != "" {
		query += ` WHERE land_id=?`
		args = append(args, landID)
	}
	row := r.DB.QueryRowContext(ctx, query, args...)
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func nullableFloatPtr(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableBoolPtr(v *bool) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableInt64Ptr(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
