package domain

// Land is a renewable-energy land project listed by a landowner.
type Land struct {
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

// Task is a unit of review work on a land project, assigned to one of the
// three fixed reviewer roles.
type Task struct {
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

// Subtask is the atomic, binary-completable item rolling up into task
// completion. Completed is redundant with Status in some legacy records;
// both are stored and both are checked.
type Subtask struct {
	ID          string `json:"id"`
	TaskID      string `json:"task_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status" enum:"pending,in_progress,completed,approved,rejected"`
	Completed   *bool  `json:"completed,omitempty"`
	CreatedAt   string `json:"created_at" format:"date-time"`
	UpdatedAt   string `json:"updated_at" format:"date-time"`
}

// Document is the metadata record of an uploaded file. DocSlot names a
// parallel track (e.g. D1/D2) when a category requires more than one
// independent file lineage.
type Document struct {
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

// Interest is an investor's expression of interest in a published land.
type Interest struct {
	ID         string `json:"id"`
	LandID     string `json:"land_id"`
	InvestorID string `json:"investor_id"`
	Message    string `json:"message,omitempty"`
	CreatedAt  string `json:"created_at" format:"date-time"`
}

// User is a best-effort view of an account. Lookups may be denied; callers
// degrade to an id-only stub instead of failing.
type User struct {
	ID        string   `json:"id"`
	Email     string   `json:"email,omitempty"`
	FirstName string   `json:"first_name,omitempty"`
	LastName  string   `json:"last_name,omitempty"`
	Roles     []string `json:"roles,omitempty"`
	CreatedAt string   `json:"created_at" format:"date-time"`
}

// Stub reports whether the record is an id-only placeholder produced by a
// denied or failed lookup.
func (u User) Stub() bool {
	return u.Email == "" && u.FirstName == "" && u.LastName == "" && len(u.Roles) == 0
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	LandID     string `json:"land_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
