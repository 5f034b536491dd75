package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JaligamRishitha/renewmart-sub002/internal/config"
	"github.com/JaligamRishitha/renewmart-sub002/internal/domain"
	"github.com/JaligamRishitha/renewmart-sub002/internal/events"
	"github.com/JaligamRishitha/renewmart-sub002/internal/repo"
	"github.com/JaligamRishitha/renewmart-sub002/internal/review"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// LandCreateOptions are parameters for listing a new land project.
type LandCreateOptions struct {
	ID          string
	OwnerID     string
	Title       string
	Location    string
	EnergyType  string
	CapacityMW  *float64
	AskingPrice *float64
	Description string
	ActorID     string
}

func validEnergyType(t string) bool {
	switch t {
	case "solar", "wind", "hydro", "geothermal", "biomass":
		return true
	}
	return false
}

func (e Engine) CreateLand(ctx context.Context, opts LandCreateOptions) (domain.Land, error) {
	if e.Config == nil {
		return domain.Land{}, errors.New("config not loaded")
	}
	if opts.Title == "" {
		return domain.Land{}, errors.New("title is required")
	}
	if opts.OwnerID == "" {
		return domain.Land{}, errors.New("owner is required")
	}
	if !validEnergyType(opts.EnergyType) {
		return domain.Land{}, fmt.Errorf("invalid energy type %q", opts.EnergyType)
	}
	if opts.CapacityMW != nil && *opts.CapacityMW <= 0 {
		return domain.Land{}, errors.New("capacity must be positive")
	}
	if opts.AskingPrice != nil && *opts.AskingPrice < 0 {
		return domain.Land{}, errors.New("asking price cannot be negative")
	}
	id := opts.ID
	now := e.now().UTC().Format(time.RFC3339)
	if id == "" {
		id = uuid.New().String()
	}
	l := domain.Land{
		ID:          id,
		OwnerID:     opts.OwnerID,
		Title:       opts.Title,
		Location:    opts.Location,
		EnergyType:  opts.EnergyType,
		CapacityMW:  opts.CapacityMW,
		AskingPrice: opts.AskingPrice,
		Status:      "draft",
		Description: opts.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Land{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.EnsureUser(ctx, tx, opts.OwnerID, now); err != nil {
		return domain.Land{}, err
	}
	if err := e.Repo.InsertLand(ctx, tx, l); err != nil {
		return domain.Land{}, fmt.Errorf("insert land: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "land.created", l.ID, "land", l.ID, opts.ActorID, events.EventPayload{"title": l.Title, "status": l.Status}); err != nil {
		return domain.Land{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Land{}, err
	}
	return l, nil
}

func ensureLandTransition(oldStatus, newStatus string, force bool) error {
	if force {
		return nil
	}
	switch oldStatus {
	case "draft":
		if newStatus == "submitted" {
			return nil
		}
	case "submitted":
		if newStatus == "under_review" {
			return nil
		}
	case "under_review":
		if newStatus == "approved" || newStatus == "rejected" {
			return nil
		}
	case "approved":
		if newStatus == "published" {
			return nil
		}
	case "rejected":
		if newStatus == "submitted" {
			return nil
		}
	}
	return fmt.Errorf("invalid land status transition %s -> %s", oldStatus, newStatus)
}

// SetLandStatus moves a land through its lifecycle. Publishing stamps
// PublishedAt.
func (e Engine) SetLandStatus(ctx context.Context, id, status, actorID string, force bool) (domain.Land, error) {
	if e.Config == nil {
		return domain.Land{}, errors.New("config not loaded")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Land{}, err
	}
	defer tx.Rollback()
	// read inside the transaction so a concurrent transition cannot slip in
	// between the check and the write
	l, err := e.Repo.GetLandTx(ctx, tx, id)
	if err != nil {
		return l, err
	}
	if err := ensureLandTransition(l.Status, status, force); err != nil {
		return l, err
	}
	from := l.Status
	nowStr := e.now().UTC().Format(time.RFC3339)
	l.Status = status
	l.UpdatedAt = nowStr
	if status == "published" {
		l.PublishedAt = &nowStr
	}
	if err := e.Repo.UpdateLand(ctx, tx, l); err != nil {
		return l, err
	}
	if err := e.Events.Append(ctx, tx, "land.status.changed", l.ID, "land", l.ID, actorID, events.EventPayload{"from": from, "to": status}); err != nil {
		return l, err
	}
	if err := tx.Commit(); err != nil {
		return l, err
	}
	return l, nil
}

// LandUpdateOptions encapsulates allowed listing updates. Only drafts and
// rejected listings may be edited.
type LandUpdateOptions struct {
	ID          string
	Title       *string
	Location    *string
	EnergyType  *string
	CapacityMW  *float64
	AskingPrice *float64
	Description *string
	ActorID     string
	Force       bool
}

func (e Engine) UpdateLand(ctx context.Context, opts LandUpdateOptions) (domain.Land, error) {
	l, err := e.Repo.GetLand(ctx, opts.ID)
	if err != nil {
		return l, err
	}
	if !opts.Force && l.Status != "draft" && l.Status != "rejected" {
		return l, fmt.Errorf("land %s is %s; only draft or rejected listings are editable", l.ID, l.Status)
	}
	if opts.Title != nil {
		if *opts.Title == "" {
			return l, errors.New("title cannot be empty")
		}
		l.Title = *opts.Title
	}
	if opts.Location != nil {
		l.Location = *opts.Location
	}
	if opts.EnergyType != nil {
		if !validEnergyType(*opts.EnergyType) {
			return l, fmt.Errorf("invalid energy type %q", *opts.EnergyType)
		}
		l.EnergyType = *opts.EnergyType
	}
	if opts.CapacityMW != nil {
		if *opts.CapacityMW <= 0 {
			return l, errors.New("capacity must be positive")
		}
		l.CapacityMW = opts.CapacityMW
	}
	if opts.AskingPrice != nil {
		if *opts.AskingPrice < 0 {
			return l, errors.New("asking price cannot be negative")
		}
		l.AskingPrice = opts.AskingPrice
	}
	if opts.Description != nil {
		l.Description = *opts.Description
	}
	l.UpdatedAt = e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return l, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateLand(ctx, tx, l); err != nil {
		return l, err
	}
	if err := e.Events.Append(ctx, tx, "land.updated", l.ID, "land", l.ID, opts.ActorID, events.EventPayload{"status": l.Status}); err != nil {
		return l, err
	}
	if err := tx.Commit(); err != nil {
		return l, err
	}
	return l, nil
}

// DeleteLand removes a listing and everything hanging off it (tasks,
// subtasks, documents, interests, mapping overrides cascade in the schema).
// Only draft or rejected listings may be deleted without force.
func (e Engine) DeleteLand(ctx context.Context, id, actorID string, force bool) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	l, err := e.Repo.GetLandTx(ctx, tx, id)
	if err != nil {
		return err
	}
	if !force && l.Status != "draft" && l.Status != "rejected" {
		return fmt.Errorf("land %s is %s; only draft or rejected listings can be deleted", l.ID, l.Status)
	}
	if err := e.Repo.DeleteLand(ctx, tx, id); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "land.deleted", l.ID, "land", l.ID, actorID, events.EventPayload{"title": l.Title, "status": l.Status}); err != nil {
		return err
	}
	return tx.Commit()
}

// TaskCreateOptions are parameters for creating a review task on a land.
type TaskCreateOptions struct {
	ID           string
	LandID       string
	AssignedRole string
	AssignedTo   string
	TaskType     string
	Title        string
	Description  string
	ActorID      string
}

// CreateTask creates a review task. When no valid role is supplied the role
// is resolved from the task's free text and the record stores the resolved
// key, so later reads never have to re-infer it.
func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.Task, error) {
	if e.Config == nil {
		return domain.Task{}, errors.New("config not loaded")
	}
	if opts.Title == "" {
		return domain.Task{}, errors.New("title is required")
	}
	if opts.LandID == "" {
		return domain.Task{}, errors.New("land is required")
	}
	if _, err := e.Repo.GetLand(ctx, opts.LandID); err != nil {
		return domain.Task{}, err
	}
	id := opts.ID
	now := e.now().UTC().Format(time.RFC3339)
	if id == "" {
		id = uuid.New().String()
	}
	t := domain.Task{
		ID:           id,
		LandID:       opts.LandID,
		AssignedRole: opts.AssignedRole,
		AssignedTo:   optionalString(opts.AssignedTo),
		TaskType:     opts.TaskType,
		Title:        opts.Title,
		Description:  opts.Description,
		Status:       "pending",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	role, source := review.ClassifyTaskRole(t)
	if role == review.RoleUnknown {
		role = review.FallbackRole
	}
	t.AssignedRole = string(role)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()
	if opts.AssignedTo != "" {
		if err := e.Repo.EnsureUser(ctx, tx, opts.AssignedTo, now); err != nil {
			return domain.Task{}, err
		}
	}
	if err := e.Repo.InsertTask(ctx, tx, t); err != nil {
		return domain.Task{}, err
	}
	if err := e.Events.Append(ctx, tx, "task.created", t.LandID, "task", t.ID, opts.ActorID, events.EventPayload{
		"title":         t.Title,
		"assigned_role": t.AssignedRole,
		"role_source":   string(source),
		"status":        t.Status,
	}); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

func ensureTaskTransition(oldStatus, newStatus string, force bool) error {
	if force {
		return nil
	}
	switch oldStatus {
	case "pending":
		if newStatus == "in_progress" || newStatus == "rejected" {
			return nil
		}
	case "in_progress":
		if newStatus == "completed" || newStatus == "rejected" {
			return nil
		}
	case "completed":
		if newStatus == "approved" || newStatus == "rejected" {
			return nil
		}
	case "rejected":
		if newStatus == "pending" {
			return nil
		}
	}
	return fmt.Errorf("invalid task status transition %s -> %s", oldStatus, newStatus)
}

// TaskUpdateOptions encapsulates allowed task updates.
type TaskUpdateOptions struct {
	ID           string
	Status       string
	Assign       *string
	AssignedRole string
	ActorID      string
	Force        bool
}

func (e Engine) UpdateTask(ctx context.Context, opts TaskUpdateOptions) (domain.Task, error) {
	if e.Config == nil {
		return domain.Task{}, errors.New("config not loaded")
	}
	t, err := e.Repo.GetTask(ctx, opts.ID)
	if err != nil {
		return t, err
	}
	original := t
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return t, err
	}
	defer tx.Rollback()

	nowStr := e.now().UTC().Format(time.RFC3339)
	if opts.Assign != nil {
		if *opts.Assign == "" {
			t.AssignedTo = nil
		} else {
			if err := e.Repo.EnsureUser(ctx, tx, *opts.Assign, nowStr); err != nil {
				return t, err
			}
			t.AssignedTo = opts.Assign
		}
	}
	if opts.AssignedRole != "" {
		if !review.KnownRole(review.RoleKey(opts.AssignedRole)) {
			return t, fmt.Errorf("unknown role %q", opts.AssignedRole)
		}
		t.AssignedRole = opts.AssignedRole
	}
	if opts.Status != "" && opts.Status != t.Status {
		if err := ensureTaskTransition(t.Status, opts.Status, opts.Force); err != nil {
			return t, err
		}
		t.Status = opts.Status
		if opts.Status == "completed" || opts.Status == "approved" {
			t.CompletedAt = &nowStr
		}
	}
	t.UpdatedAt = nowStr
	if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
		return t, err
	}
	if err := e.Events.Append(ctx, tx, "task.updated", t.LandID, "task", t.ID, opts.ActorID, events.EventPayload{
		"from_status": original.Status,
		"to_status":   t.Status,
	}); err != nil {
		return t, err
	}
	if err := tx.Commit(); err != nil {
		return t, err
	}
	return t, nil
}

// AddSubtask appends a checklist item to a task.
func (e Engine) AddSubtask(ctx context.Context, taskID, title, description, actorID string) (domain.Subtask, error) {
	if title == "" {
		return domain.Subtask{}, errors.New("title is required")
	}
	now := e.now().UTC().Format(time.RFC3339)
	s := domain.Subtask{
		ID:          uuid.New().String(),
		TaskID:      taskID,
		Title:       title,
		Description: description,
		Status:      "pending",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return s, err
	}
	defer tx.Rollback()
	t, err := e.Repo.GetTaskTx(ctx, tx, taskID)
	if err != nil {
		return domain.Subtask{}, err
	}
	if err := e.Repo.InsertSubtask(ctx, tx, s); err != nil {
		return s, err
	}
	if err := e.Events.Append(ctx, tx, "subtask.created", t.LandID, "subtask", s.ID, actorID, events.EventPayload{"task_id": taskID, "title": title}); err != nil {
		return s, err
	}
	if err := tx.Commit(); err != nil {
		return s, err
	}
	return s, nil
}

// SetSubtaskStatus updates a subtask's status, keeping the redundant
// Completed flag consistent with it so old and new readers agree.
func (e Engine) SetSubtaskStatus(ctx context.Context, id, status, actorID string) (domain.Subtask, error) {
	switch status {
	case "pending", "in_progress", "completed", "approved", "rejected":
	default:
		return domain.Subtask{}, fmt.Errorf("invalid subtask status %q", status)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Subtask{}, err
	}
	defer tx.Rollback()
	s, err := e.Repo.GetSubtaskTx(ctx, tx, id)
	if err != nil {
		return s, err
	}
	t, err := e.Repo.GetTaskTx(ctx, tx, s.TaskID)
	if err != nil {
		return s, err
	}
	from := s.Status
	s.Status = status
	done := status == "completed" || status == "approved"
	s.Completed = &done
	s.UpdatedAt = e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.UpdateSubtask(ctx, tx, s); err != nil {
		return s, err
	}
	if err := e.Events.Append(ctx, tx, "subtask.updated", t.LandID, "subtask", s.ID, actorID, events.EventPayload{"from": from, "to": status}); err != nil {
		return s, err
	}
	if err := tx.Commit(); err != nil {
		return s, err
	}
	return s, nil
}

// DocumentRecordOptions are parameters for recording an uploaded document.
type DocumentRecordOptions struct {
	LandID       string
	TaskID       string
	DocumentType string
	DocSlot      string
	FileName     string
	FileSize     *int64
	MimeType     string
	UploadedBy   string
	ActorID      string
}

// RecordDocument registers document metadata. The version number is assigned
// inside the transaction as max+1 over the (land, type, slot) lineage, so
// concurrent uploads of the same lineage serialize instead of colliding.
func (e Engine) RecordDocument(ctx context.Context, opts DocumentRecordOptions) (domain.Document, error) {
	if e.Config == nil {
		return domain.Document{}, errors.New("config not loaded")
	}
	if opts.DocumentType == "" {
		return domain.Document{}, errors.New("document type is required")
	}
	if opts.FileName == "" {
		return domain.Document{}, errors.New("file name is required")
	}
	if opts.UploadedBy == "" {
		return domain.Document{}, errors.New("uploader is required")
	}
	if _, ok := e.Config.Documents.Defaults[opts.DocumentType]; !ok {
		return domain.Document{}, fmt.Errorf("unknown document type %q", opts.DocumentType)
	}
	if opts.DocSlot != "" {
		slots := e.Config.Documents.Slots[opts.DocumentType]
		found := false
		for _, s := range slots {
			if s == opts.DocSlot {
				found = true
				break
			}
		}
		if !found {
			return domain.Document{}, fmt.Errorf("document type %s has no slot %q", opts.DocumentType, opts.DocSlot)
		}
	}
	if _, err := e.Repo.GetLand(ctx, opts.LandID); err != nil {
		return domain.Document{}, err
	}
	if opts.TaskID != "" {
		t, err := e.Repo.GetTask(ctx, opts.TaskID)
		if err != nil {
			return domain.Document{}, err
		}
		if t.LandID != opts.LandID {
			return domain.Document{}, fmt.Errorf("task %s not on land %s", opts.TaskID, opts.LandID)
		}
	}
	now := e.now().UTC().Format(time.RFC3339)
	d := domain.Document{
		ID:           uuid.New().String(),
		LandID:       opts.LandID,
		TaskID:       optionalString(opts.TaskID),
		DocumentType: opts.DocumentType,
		DocSlot:      opts.DocSlot,
		FileName:     opts.FileName,
		FileSize:     opts.FileSize,
		MimeType:     opts.MimeType,
		UploadedBy:   opts.UploadedBy,
		Status:       "pending",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return d, err
	}
	defer tx.Rollback()
	if err := e.Repo.EnsureUser(ctx, tx, opts.UploadedBy, now); err != nil {
		return d, err
	}
	version, err := e.Repo.NextDocumentVersion(ctx, tx, opts.LandID, opts.DocumentType, opts.DocSlot)
	if err != nil {
		return d, err
	}
	d.VersionNumber = version
	if err := e.Repo.InsertDocument(ctx, tx, d); err != nil {
		return d, err
	}
	if err := e.Events.Append(ctx, tx, "document.recorded", d.LandID, "document", d.ID, opts.ActorID, events.EventPayload{
		"document_type": d.DocumentType,
		"doc_slot":      d.DocSlot,
		"version":       d.VersionNumber,
	}); err != nil {
		return d, err
	}
	if err := tx.Commit(); err != nil {
		return d, err
	}
	return d, nil
}

// ReviewDocument records a reviewer verdict on a document.
func (e Engine) ReviewDocument(ctx context.Context, id, verdict, note, actorID string) (domain.Document, error) {
	switch verdict {
	case "approved", "rejected", "under_review":
	default:
		return domain.Document{}, fmt.Errorf("invalid document verdict %q", verdict)
	}
	now := e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Document{}, err
	}
	defer tx.Rollback()
	d, err := e.Repo.GetDocumentTx(ctx, tx, id)
	if err != nil {
		return d, err
	}
	if err := e.Repo.UpdateDocumentReview(ctx, tx, id, verdict, note, now); err != nil {
		return d, err
	}
	if err := e.Events.Append(ctx, tx, "document.reviewed", d.LandID, "document", d.ID, actorID, events.EventPayload{
		"verdict": verdict,
		"note":    note,
	}); err != nil {
		return d, err
	}
	if err := tx.Commit(); err != nil {
		return d, err
	}
	d.Status = verdict
	d.ReviewNote = note
	d.UpdatedAt = now
	return d, nil
}

// SetDocMapping stores a per-land visibility override. An explicitly empty
// mapping is stored and replaces the defaults entirely.
func (e Engine) SetDocMapping(ctx context.Context, landID string, m review.Mapping, actorID string) error {
	if m == nil {
		return errors.New("mapping required; use ClearDocMapping to remove the override")
	}
	if _, err := e.Repo.GetLand(ctx, landID); err != nil {
		return err
	}
	for docType, roles := range m {
		if docType == "" {
			return errors.New("mapping has empty document type")
		}
		for _, r := range roles {
			if !review.KnownRole(review.RoleKey(r)) {
				return fmt.Errorf("document type %s references unknown role %s", docType, r)
			}
		}
	}
	now := e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.UpsertDocMapping(ctx, tx, landID, m, now); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "docmapping.updated", landID, "docmapping", landID, actorID, events.EventPayload{"types": len(m)}); err != nil {
		return err
	}
	return tx.Commit()
}

// ClearDocMapping removes the per-land override so the defaults apply again.
func (e Engine) ClearDocMapping(ctx context.Context, landID, actorID string) error {
	if _, err := e.Repo.GetLand(ctx, landID); err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteDocMapping(ctx, tx, landID); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "docmapping.cleared", landID, "docmapping", landID, actorID, events.EventPayload{}); err != nil {
		return err
	}
	return tx.Commit()
}

// VisibleDocumentTypes resolves which document types a role may see on a
// land: the per-land override when one exists, otherwise the defaults.
func (e Engine) VisibleDocumentTypes(ctx context.Context, landID string, role review.RoleKey) ([]string, error) {
	if e.Config == nil {
		return nil, errors.New("config not loaded")
	}
	if _, err := e.Repo.GetLand(ctx, landID); err != nil {
		return nil, err
	}
	override, err := e.Repo.GetDocMapping(ctx, landID)
	if err != nil {
		return nil, err
	}
	return review.VisibleDocumentTypes(override, e.Config.DefaultMapping(), role), nil
}

// RegisterInterest records an investor's interest in a published land.
func (e Engine) RegisterInterest(ctx context.Context, landID, investorID, message, actorID string) (domain.Interest, error) {
	if investorID == "" {
		return domain.Interest{}, errors.New("investor is required")
	}
	l, err := e.Repo.GetLand(ctx, landID)
	if err != nil {
		return domain.Interest{}, err
	}
	if l.Status != "published" {
		return domain.Interest{}, fmt.Errorf("land %s is %s; interest is only accepted on published lands", landID, l.Status)
	}
	now := e.now().UTC().Format(time.RFC3339)
	i := domain.Interest{
		ID:         uuid.New().String(),
		LandID:     landID,
		InvestorID: investorID,
		Message:    message,
		CreatedAt:  now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return i, err
	}
	defer tx.Rollback()
	exists, err := e.Repo.HasInterest(ctx, tx, landID, investorID)
	if err != nil {
		return i, err
	}
	if exists {
		return i, fmt.Errorf("investor %s already registered interest in land %s", investorID, landID)
	}
	if err := e.Repo.EnsureUser(ctx, tx, investorID, now); err != nil {
		return i, err
	}
	if err := e.Repo.InsertInterest(ctx, tx, i); err != nil {
		return i, err
	}
	if err := e.Events.Append(ctx, tx, "interest.registered", landID, "interest", i.ID, actorID, events.EventPayload{"investor_id": investorID}); err != nil {
		return i, err
	}
	if err := tx.Commit(); err != nil {
		return i, err
	}
	return i, nil
}

// RegisterUser creates or enriches a user record.
func (e Engine) RegisterUser(ctx context.Context, u domain.User, actorID string) (domain.User, error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	u.CreatedAt = e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return u, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertUser(ctx, tx, u); err != nil {
		return u, err
	}
	for _, role := range u.Roles {
		if !review.KnownRole(review.RoleKey(role)) && role != "landowner" && role != "investor" && role != "admin" {
			return u, fmt.Errorf("unknown role %q", role)
		}
		if err := e.Repo.AssignUserRole(ctx, tx, u.ID, role); err != nil {
			return u, err
		}
	}
	if err := e.Events.Append(ctx, tx, "user.registered", "", "user", u.ID, actorID, events.EventPayload{"email": u.Email}); err != nil {
		return u, err
	}
	if err := tx.Commit(); err != nil {
		return u, err
	}
	return u, nil
}

// CreateAPIKey mints a new key and returns the plaintext exactly once.
func (e Engine) CreateAPIKey(ctx context.Context, userID, name, actorID string) (domain.APIKey, string, error) {
	if userID == "" {
		return domain.APIKey{}, "", errors.New("user is required")
	}
	plain := uuid.New().String()
	key := domain.APIKey{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      name,
		KeyHash:   repo.HashAPIKey(plain),
		CreatedAt: e.now().UTC().Format(time.RFC3339),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return key, "", err
	}
	defer tx.Rollback()
	if err := e.Repo.EnsureUser(ctx, tx, userID, key.CreatedAt); err != nil {
		return key, "", err
	}
	if err := e.Repo.InsertAPIKey(ctx, tx, key); err != nil {
		return key, "", err
	}
	if err := e.Events.Append(ctx, tx, "apikey.created", "", "apikey", key.ID, actorID, events.EventPayload{"user_id": userID}); err != nil {
		return key, "", err
	}
	if err := tx.Commit(); err != nil {
		return key, "", err
	}
	return key, plain, nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
