package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/JaligamRishitha/renewmart-sub002/internal/domain"
	"github.com/JaligamRishitha/renewmart-sub002/internal/review"
)

// Request payloads

type CreateLandRequest struct {
	OwnerID     string   `json:"owner_id,omitempty"`
	Title       string   `json:"title"`
	Location    string   `json:"location,omitempty"`
	EnergyType  string   `json:"energy_type" enum:"solar,wind,hydro,geothermal,biomass"`
	CapacityMW  *float64 `json:"capacity_mw,omitempty"`
	AskingPrice *float64 `json:"asking_price,omitempty"`
	Description string   `json:"description,omitempty"`
}

type UpdateLandRequest struct {
	Title       *string  `json:"title,omitempty"`
	Location    *string  `json:"location,omitempty"`
	EnergyType  *string  `json:"energy_type,omitempty" enum:"solar,wind,hydro,geothermal,biomass"`
	CapacityMW  *float64 `json:"capacity_mw,omitempty"`
	AskingPrice *float64 `json:"asking_price,omitempty"`
	Description *string  `json:"description,omitempty"`
}

type SetLandStatusRequest struct {
	Status string `json:"status" enum:"draft,submitted,under_review,approved,published,rejected"`
}

type CreateTaskRequest struct {
	AssignedRole string `json:"assigned_role,omitempty"`
	AssignedTo   string `json:"assigned_to,omitempty"`
	TaskType     string `json:"task_type,omitempty"`
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
}

type UpdateTaskRequest struct {
	Status       *string `json:"status,omitempty" enum:"pending,in_progress,completed,approved,rejected"`
	AssignedRole *string `json:"assigned_role,omitempty"`
	AssignedTo   *string `json:"assigned_to,omitempty"`
}

type CreateSubtaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type SetSubtaskStatusRequest struct {
	Status string `json:"status" enum:"pending,in_progress,completed,approved,rejected"`
}

type RecordDocumentRequest struct {
	TaskID       string `json:"task_id,omitempty"`
	DocumentType string `json:"document_type"`
	DocSlot      string `json:"doc_slot,omitempty"`
	FileName     string `json:"file_name"`
	FileSize     *int64 `json:"file_size,omitempty"`
	MimeType     string `json:"mime_type,omitempty"`
	UploadedBy   string `json:"uploaded_by,omitempty"`
}

type ReviewDocumentRequest struct {
	Verdict string `json:"verdict" enum:"approved,rejected,under_review"`
	Note    string `json:"note,omitempty"`
}

type RegisterInterestRequest struct {
	InvestorID string `json:"investor_id,omitempty"`
	Message    string `json:"message,omitempty"`
}

type RegisterUserRequest struct {
	ID        string   `json:"id,omitempty"`
	Email     string   `json:"email,omitempty"`
	FirstName string   `json:"first_name,omitempty"`
	LastName  string   `json:"last_name,omitempty"`
	Roles     []string `json:"roles,omitempty"`
}

// Response payloads

type LandResponse struct {
	ID          string   `json:"id"`
	OwnerID     string   `json:"owner_id"`
	Title       string   `json:"title"`
	Location    string   `json:"location,omitempty"`
	EnergyType  string   `json:"energy_type" enum:"solar,wind,hydro,geothermal,biomass"`
	CapacityMW  *float64 `json:"capacity_mw,omitempty"`
	AskingPrice *float64 `json:"asking_price,omitempty"`
	Status      string   `json:"status" enum:"draft,submitted,under_review,approved,published,rejected"`
	Description string   `json:"description,omitempty"`
	CreatedAt   string   `json:"created_at" format:"date-time"`
	UpdatedAt   string   `json:"updated_at" format:"date-time"`
	PublishedAt *string  `json:"published_at,omitempty" format:"date-time"`
}

type TaskResponse struct {
	ID           string  `json:"id"`
	LandID       string  `json:"land_id"`
	AssignedRole string  `json:"assigned_role,omitempty"`
	AssignedTo   *string `json:"assigned_to,omitempty"`
	TaskType     string  `json:"task_type,omitempty"`
	Title        string  `json:"title"`
	Description  string  `json:"description,omitempty"`
	Status       string  `json:"status" enum:"pending,in_progress,completed,approved,rejected"`
	CreatedAt    string  `json:"created_at" format:"date-time"`
	UpdatedAt    string  `json:"updated_at" format:"date-time"`
	CompletedAt  *string `json:"completed_at,omitempty" format:"date-time"`
}

type SubtaskResponse struct {
	ID          string `json:"id"`
	TaskID      string `json:"task_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status" enum:"pending,in_progress,completed,approved,rejected"`
	Completed   *bool  `json:"completed,omitempty"`
	CreatedAt   string `json:"created_at" format:"date-time"`
	UpdatedAt   string `json:"updated_at" format:"date-time"`
}

type DocumentResponse struct {
	ID            string  `json:"id"`
	LandID        string  `json:"land_id"`
	TaskID        *string `json:"task_id,omitempty"`
	DocumentType  string  `json:"document_type"`
	DocSlot       string  `json:"doc_slot,omitempty"`
	FileName      string  `json:"file_name"`
	FileSize      *int64  `json:"file_size,omitempty"`
	MimeType      string  `json:"mime_type,omitempty"`
	UploadedBy    string  `json:"uploaded_by"`
	Status        string  `json:"status" enum:"pending,under_review,approved,rejected"`
	VersionNumber int     `json:"version_number"`
	ReviewNote    string  `json:"review_note,omitempty"`
	CreatedAt     string  `json:"created_at" format:"date-time"`
	UpdatedAt     string  `json:"updated_at" format:"date-time"`
}

type InterestResponse struct {
	ID         string `json:"id"`
	LandID     string `json:"land_id"`
	InvestorID string `json:"investor_id"`
	Message    string `json:"message,omitempty"`
	CreatedAt  string `json:"created_at" format:"date-time"`
}

type UserResponse struct {
	ID        string   `json:"id"`
	Email     string   `json:"email,omitempty"`
	FirstName string   `json:"first_name,omitempty"`
	LastName  string   `json:"last_name,omitempty"`
	Roles     []string `json:"roles,omitempty"`
	CreatedAt string   `json:"created_at" format:"date-time"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	LandID     string         `json:"land_id,omitempty"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

type DocMappingResponse struct {
	LandID      string         `json:"land_id"`
	Override    review.Mapping `json:"override,omitempty"`
	HasOverride bool           `json:"has_override"`
}

type VisibleTypesResponse struct {
	LandID        string   `json:"land_id"`
	Role          string   `json:"role"`
	DocumentTypes []string `json:"document_types"`
}

type paginatedLands struct {
	Items      []LandResponse `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

type paginatedTasks struct {
	Items      []TaskResponse `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor int64           `json:"next_cursor,omitempty"`
}

// Conversion helpers

func landResponse(l domain.Land) LandResponse {
	return LandResponse(l)
}

func taskResponse(t domain.Task) TaskResponse {
	return TaskResponse(t)
}

func subtaskResponse(s domain.Subtask) SubtaskResponse {
	return SubtaskResponse(s)
}

func documentResponse(d domain.Document) DocumentResponse {
	return DocumentResponse(d)
}

func interestResponse(i domain.Interest) InterestResponse {
	return InterestResponse(i)
}

func userResponse(u domain.User) UserResponse {
	return UserResponse(u)
}

func userFromRequest(req RegisterUserRequest) domain.User {
	return domain.User{
		ID:        req.ID,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Roles:     req.Roles,
	}
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		LandID:     e.LandID,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    decodeJSONMap(e.Payload),
	}
}

func decodeJSONMap(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}

func bodyBytes(ctx context.Context) []byte {
	if buf, ok := ctx.Value(bodyBytesKey{}).([]byte); ok {
		return buf
	}
	req, ok := ctx.Value(requestKey{}).(*http.Request)
	if !ok || req == nil {
		return nil
	}
	data, _ := io.ReadAll(req.Body)
	return data
}

func rawBodyMap(ctx context.Context) map[string]json.RawMessage {
	data := bodyBytes(ctx)
	if len(data) == 0 {
		return map[string]json.RawMessage{}
	}
	var outer map[string]json.RawMessage
	if err := json.Unmarshal(data, &outer); err != nil {
		return map[string]json.RawMessage{}
	}
	if inner, ok := outer["body"]; ok {
		var innerMap map[string]json.RawMessage
		if err := json.Unmarshal(inner, &innerMap); err == nil {
			return innerMap
		}
	}
	return outer
}

func isNullRaw(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && bytes.Equal(trimmed, []byte("null"))
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}

func parseCompositeCursor(cursor string) (string, string, error) {
	if cursor == "" {
		return "", "", nil
	}
	parts := strings.SplitN(cursor, "|", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid cursor")
	}
	return parts[0], parts[1], nil
}

func composeCursor(ts, id string) string {
	if ts == "" || id == "" {
		return ""
	}
	return ts + "|" + id
}
