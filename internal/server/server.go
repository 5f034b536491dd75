package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"github.com/JaligamRishitha/renewmart-sub002/internal/engine"
	"github.com/JaligamRishitha/renewmart-sub002/internal/repo"
	"github.com/JaligamRishitha/renewmart-sub002/internal/review"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"land not found"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

type requestKey struct{}
type bodyBytesKey struct{}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the RenewMart API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			ctx = context.WithValue(ctx, bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("RenewMart API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerLands(group, cfg.Engine)
	registerTasks(group, cfg.Engine)
	registerSubtasks(group, cfg.Engine)
	registerDocuments(group, cfg.Engine)
	registerProgress(group, cfg.Engine)
	registerMarketplace(group, cfg.Engine)
	registerUsers(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "already registered"):
		return newAPIError(http.StatusConflict, "conflict", msg, nil)
	case strings.Contains(lowered, "transition"),
		strings.Contains(lowered, "only accepted on published"),
		strings.Contains(lowered, "only draft or rejected"):
		return newAPIError(http.StatusUnprocessableEntity, "invalid_state", msg, nil)
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "unknown") || strings.Contains(lowered, "required"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "invalid_state"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	oas.Components.SecuritySchemes["apiKeyAuth"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: "X-Api-Key",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
		{"apiKeyAuth": {}},
	}
	oas.Security = security
	healthPath := path.Join(basePath, "health")
	if !strings.HasPrefix(healthPath, "/") {
		healthPath = "/" + healthPath
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if route == healthPath {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>RenewMart API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerLands(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-land",
		Method:        http.MethodPost,
		Path:          "/lands",
		Summary:       "List a new land project",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body CreateLandRequest `json:"body"`
	}) (*struct {
		Body LandResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		owner := input.Body.OwnerID
		if owner == "" {
			owner = actorID
		}
		l, err := e.CreateLand(ctx, engine.LandCreateOptions{
			OwnerID:     owner,
			Title:       input.Body.Title,
			Location:    input.Body.Location,
			EnergyType:  input.Body.EnergyType,
			CapacityMW:  input.Body.CapacityMW,
			AskingPrice: input.Body.AskingPrice,
			Description: input.Body.Description,
			ActorID:     actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body LandResponse `json:"body"`
		}{Body: landResponse(l)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-lands",
		Method:      http.MethodGet,
		Path:        "/lands",
		Summary:     "List land projects",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		OwnerID    string `query:"owner_id"`
		Status     string `query:"status"`
		EnergyType string `query:"energy_type"`
		Limit      int    `query:"limit" default:"50"`
		Cursor     string `query:"cursor"`
	}) (*struct {
		Body paginatedLands `json:"body"`
	}, error) {
		limit := normalizeLimit(input.Limit)
		cursorCreated, cursorID, err := parseCompositeCursor(input.Cursor)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
		}
		lands, err := e.Repo.ListLands(ctx, repo.LandFilters{
			OwnerID:         input.OwnerID,
			Status:          input.Status,
			EnergyType:      input.EnergyType,
			Limit:           limit + 1,
			CursorCreatedAt: cursorCreated,
			CursorID:        cursorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedLands{Items: []LandResponse{}}
		if len(lands) > limit {
			// the cursor keys off the last returned record; the filter is
			// strictly-less-than, so keying off the overflow row would skip it
			lands = lands[:limit]
			resp.NextCursor = composeCursor(lands[limit-1].CreatedAt, lands[limit-1].ID)
		}
		for _, l := range lands {
			resp.Items = append(resp.Items, landResponse(l))
		}
		return &struct {
			Body paginatedLands `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-land",
		Method:      http.MethodGet,
		Path:        "/lands/{id}",
		Summary:     "Get land project",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body LandResponse `json:"body"`
	}, error) {
		l, err := e.Repo.GetLand(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body LandResponse `json:"body"`
		}{Body: landResponse(l)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-land",
		Method:      http.MethodPatch,
		Path:        "/lands/{id}",
		Summary:     "Update land project",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body UpdateLandRequest `json:"body"`
	}) (*struct {
		Body LandResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		l, err := e.UpdateLand(ctx, engine.LandUpdateOptions{
			ID:          input.ID,
			Title:       input.Body.Title,
			Location:    input.Body.Location,
			EnergyType:  input.Body.EnergyType,
			CapacityMW:  input.Body.CapacityMW,
			AskingPrice: input.Body.AskingPrice,
			Description: input.Body.Description,
			ActorID:     actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body LandResponse `json:"body"`
		}{Body: landResponse(l)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-land-status",
		Method:      http.MethodPost,
		Path:        "/lands/{id}/status",
		Summary:     "Move land through its lifecycle",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ID    string               `path:"id"`
		Body  SetLandStatusRequest `json:"body"`
		Force bool                 `query:"force"`
	}) (*struct {
		Body LandResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.Status == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "status is required", nil)
		}
		switch input.Body.Status {
		case "approved", "rejected", "published":
			if err := requireAnyRole(ctx, e, "re_governance_lead", "admin"); err != nil {
				return nil, err
			}
		}
		l, err := e.SetLandStatus(ctx, input.ID, input.Body.Status, actorID, input.Force)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body LandResponse `json:"body"`
		}{Body: landResponse(l)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-land",
		Method:      http.MethodDelete,
		Path:        "/lands/{id}",
		Summary:     "Delete a draft or rejected listing",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ID    string `path:"id"`
		Force bool   `query:"force"`
	}) (*struct{}, error) {
		principal, ok := principalFromContext(ctx)
		if !ok {
			return nil, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		}
		l, err := e.Repo.GetLand(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if principal.ActorID != l.OwnerID && !hasRole(principal.Roles, "admin") {
			return nil, newAPIError(http.StatusForbidden, "forbidden", "only the owner or an admin can delete a listing", nil)
		}
		if err := e.DeleteLand(ctx, input.ID, principal.ActorID, input.Force); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-doc-mapping",
		Method:      http.MethodGet,
		Path:        "/lands/{id}/doc-mapping",
		Summary:     "Get per-land document visibility override",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body DocMappingResponse `json:"body"`
	}, error) {
		if _, err := e.Repo.GetLand(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		m, err := e.Repo.GetDocMapping(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DocMappingResponse `json:"body"`
		}{Body: DocMappingResponse{LandID: input.ID, Override: m, HasOverride: m != nil}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-doc-mapping",
		Method:      http.MethodPut,
		Path:        "/lands/{id}/doc-mapping",
		Summary:     "Set per-land document visibility override",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string         `path:"id"`
		Body review.Mapping `json:"body"`
	}) (*struct {
		Body DocMappingResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := requireAnyRole(ctx, e, "re_governance_lead", "admin"); err != nil {
			return nil, err
		}
		// an explicitly empty body {} is a valid, authoritative override
		m := input.Body
		if m == nil {
			m = review.Mapping{}
		}
		if err := e.SetDocMapping(ctx, input.ID, m, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DocMappingResponse `json:"body"`
		}{Body: DocMappingResponse{LandID: input.ID, Override: m, HasOverride: true}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "clear-doc-mapping",
		Method:      http.MethodDelete,
		Path:        "/lands/{id}/doc-mapping",
		Summary:     "Remove per-land document visibility override",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := requireAnyRole(ctx, e, "re_governance_lead", "admin"); err != nil {
			return nil, err
		}
		if err := e.ClearDocMapping(ctx, input.ID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "visible-document-types",
		Method:      http.MethodGet,
		Path:        "/lands/{id}/document-types",
		Summary:     "Document types visible to a role",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Role string `query:"role"`
	}) (*struct {
		Body VisibleTypesResponse `json:"body"`
	}, error) {
		role := review.RoleKey(input.Role)
		if !review.KnownRole(role) {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "unknown role", map[string]any{"role": input.Role})
		}
		types, err := e.VisibleDocumentTypes(ctx, input.ID, role)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body VisibleTypesResponse `json:"body"`
		}{Body: VisibleTypesResponse{LandID: input.ID, Role: string(role), DocumentTypes: types}}, nil
	})
}

func registerTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/lands/{land_id}/tasks",
		Summary:       "Create review task",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		LandID string            `path:"land_id"`
		Body   CreateTaskRequest `json:"body"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.CreateTask(ctx, engine.TaskCreateOptions{
			LandID:       input.LandID,
			AssignedRole: input.Body.AssignedRole,
			AssignedTo:   input.Body.AssignedTo,
			TaskType:     input.Body.TaskType,
			Title:        input.Body.Title,
			Description:  input.Body.Description,
			ActorID:      actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: taskResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/lands/{land_id}/tasks",
		Summary:     "List review tasks",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		LandID string `path:"land_id"`
		Role   string `query:"role"`
		Status string `query:"status"`
		Limit  int    `query:"limit" default:"50"`
		Cursor string `query:"cursor"`
	}) (*struct {
		Body paginatedTasks `json:"body"`
	}, error) {
		limit := normalizeLimit(input.Limit)
		cursorCreated, cursorID, err := parseCompositeCursor(input.Cursor)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
		}
		tasks, err := e.Repo.ListTasks(ctx, repo.TaskFilters{
			LandID:          input.LandID,
			AssignedRole:    input.Role,
			Status:          input.Status,
			Limit:           limit + 1,
			CursorCreatedAt: cursorCreated,
			CursorID:        cursorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedTasks{Items: []TaskResponse{}}
		if len(tasks) > limit {
			tasks = tasks[:limit]
			resp.NextCursor = composeCursor(tasks[limit-1].CreatedAt, tasks[limit-1].ID)
		}
		for _, t := range tasks {
			resp.Items = append(resp.Items, taskResponse(t))
		}
		return &struct {
			Body paginatedTasks `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}",
		Summary:     "Get task",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		t, err := e.Repo.GetTask(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: taskResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{id}",
		Summary:     "Update task",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ID    string            `path:"id"`
		Body  UpdateTaskRequest `json:"body"`
		Force bool              `query:"force"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		opts := engine.TaskUpdateOptions{ID: input.ID, ActorID: actorID, Force: input.Force}
		if input.Body.Status != nil {
			opts.Status = *input.Body.Status
		}
		if input.Body.AssignedRole != nil {
			opts.AssignedRole = *input.Body.AssignedRole
		}
		// an explicit "assigned_to": null unassigns; an absent key means no change
		if raw, ok := rawBodyMap(ctx)["assigned_to"]; ok {
			assign := ""
			if !isNullRaw(raw) && input.Body.AssignedTo != nil {
				assign = *input.Body.AssignedTo
			}
			opts.Assign = &assign
		}
		t, err := e.UpdateTask(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: taskResponse(t)}, nil
	})
}

func registerSubtasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-subtask",
		Method:        http.MethodPost,
		Path:          "/tasks/{task_id}/subtasks",
		Summary:       "Add subtask",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID string               `path:"task_id"`
		Body   CreateSubtaskRequest `json:"body"`
	}) (*struct {
		Body SubtaskResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := e.AddSubtask(ctx, input.TaskID, input.Body.Title, input.Body.Description, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SubtaskResponse `json:"body"`
		}{Body: subtaskResponse(s)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-subtasks",
		Method:      http.MethodGet,
		Path:        "/tasks/{task_id}/subtasks",
		Summary:     "List subtasks",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
	}) (*struct {
		Body []SubtaskResponse `json:"body"`
	}, error) {
		if _, err := e.Repo.GetTask(ctx, input.TaskID); err != nil {
			return nil, handleError(err)
		}
		subs, err := e.Repo.ListSubtasks(ctx, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		res := []SubtaskResponse{}
		for _, s := range subs {
			res = append(res, subtaskResponse(s))
		}
		return &struct {
			Body []SubtaskResponse `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-subtask-status",
		Method:      http.MethodPatch,
		Path:        "/subtasks/{id}/status",
		Summary:     "Update subtask status",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string                  `path:"id"`
		Body SetSubtaskStatusRequest `json:"body"`
	}) (*struct {
		Body SubtaskResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := e.SetSubtaskStatus(ctx, input.ID, input.Body.Status, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SubtaskResponse `json:"body"`
		}{Body: subtaskResponse(s)}, nil
	})
}

func registerDocuments(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "record-document",
		Method:        http.MethodPost,
		Path:          "/lands/{land_id}/documents",
		Summary:       "Record an uploaded document",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		LandID string                `path:"land_id"`
		Body   RecordDocumentRequest `json:"body"`
	}) (*struct {
		Body DocumentResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		uploadedBy := input.Body.UploadedBy
		if uploadedBy == "" {
			uploadedBy = actorID
		}
		d, err := e.RecordDocument(ctx, engine.DocumentRecordOptions{
			LandID:       input.LandID,
			TaskID:       input.Body.TaskID,
			DocumentType: input.Body.DocumentType,
			DocSlot:      input.Body.DocSlot,
			FileName:     input.Body.FileName,
			FileSize:     input.Body.FileSize,
			MimeType:     input.Body.MimeType,
			UploadedBy:   uploadedBy,
			ActorID:      actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DocumentResponse `json:"body"`
		}{Body: documentResponse(d)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-documents",
		Method:      http.MethodGet,
		Path:        "/lands/{land_id}/documents",
		Summary:     "List documents, filtered by role visibility",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		LandID     string `path:"land_id"`
		Role       string `query:"role"`
		LatestOnly bool   `query:"latest_only"`
	}) (*struct {
		Body []DocumentResponse `json:"body"`
	}, error) {
		if _, err := e.Repo.GetLand(ctx, input.LandID); err != nil {
			return nil, handleError(err)
		}
		docs, err := e.Repo.ListDocuments(ctx, repo.DocumentFilters{LandID: input.LandID, LatestOnly: input.LatestOnly})
		if err != nil {
			return nil, handleError(err)
		}
		if input.Role != "" {
			role := review.RoleKey(input.Role)
			if !review.KnownRole(role) {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "unknown role", map[string]any{"role": input.Role})
			}
			override, err := e.Repo.GetDocMapping(ctx, input.LandID)
			if err != nil {
				return nil, handleError(err)
			}
			allowed := review.AllowedDocumentTypes(override, e.Config.DefaultMapping(), role)
			filtered := docs[:0]
			for _, d := range docs {
				if _, ok := allowed[d.DocumentType]; ok {
					filtered = append(filtered, d)
				}
			}
			docs = filtered
		}
		res := []DocumentResponse{}
		for _, d := range docs {
			res = append(res, documentResponse(d))
		}
		return &struct {
			Body []DocumentResponse `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "review-document",
		Method:      http.MethodPost,
		Path:        "/documents/{id}/review",
		Summary:     "Record a reviewer verdict",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string                `path:"id"`
		Body ReviewDocumentRequest `json:"body"`
	}) (*struct {
		Body DocumentResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := requireAnyRole(ctx, e, "re_sales_advisor", "re_analyst", "re_governance_lead", "admin"); err != nil {
			return nil, err
		}
		d, err := e.ReviewDocument(ctx, input.ID, input.Body.Verdict, input.Body.Note, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DocumentResponse `json:"body"`
		}{Body: documentResponse(d)}, nil
	})
}

func registerProgress(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "land-progress",
		Method:      http.MethodGet,
		Path:        "/lands/{id}/progress",
		Summary:     "Review progress snapshot",
		Errors:      []int{http.StatusNotFound, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body engine.ReviewSnapshot `json:"body"`
	}, error) {
		snap, err := e.Gather(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.ReviewSnapshot `json:"body"`
		}{Body: snap}, nil
	})
}

func registerMarketplace(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "marketplace-lands",
		Method:      http.MethodGet,
		Path:        "/marketplace/lands",
		Summary:     "Browse published land projects",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		EnergyType string `query:"energy_type"`
		Location   string `query:"location"`
		Limit      int    `query:"limit" default:"50"`
		Cursor     string `query:"cursor"`
	}) (*struct {
		Body paginatedLands `json:"body"`
	}, error) {
		limit := normalizeLimit(input.Limit)
		cursorCreated, cursorID, err := parseCompositeCursor(input.Cursor)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
		}
		lands, err := e.Repo.ListLands(ctx, repo.LandFilters{
			Status:          "published",
			EnergyType:      input.EnergyType,
			Location:        input.Location,
			Limit:           limit + 1,
			CursorCreatedAt: cursorCreated,
			CursorID:        cursorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedLands{Items: []LandResponse{}}
		if len(lands) > limit {
			lands = lands[:limit]
			resp.NextCursor = composeCursor(lands[limit-1].CreatedAt, lands[limit-1].ID)
		}
		for _, l := range lands {
			resp.Items = append(resp.Items, landResponse(l))
		}
		return &struct {
			Body paginatedLands `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "register-interest",
		Method:        http.MethodPost,
		Path:          "/lands/{land_id}/interests",
		Summary:       "Register investor interest",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		LandID string                  `path:"land_id"`
		Body   RegisterInterestRequest `json:"body"`
	}) (*struct {
		Body InterestResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		investor := input.Body.InvestorID
		if investor == "" {
			investor = actorID
		}
		i, err := e.RegisterInterest(ctx, input.LandID, investor, input.Body.Message, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body InterestResponse `json:"body"`
		}{Body: interestResponse(i)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-interests",
		Method:      http.MethodGet,
		Path:        "/lands/{land_id}/interests",
		Summary:     "List registered interests",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		LandID string `path:"land_id"`
	}) (*struct {
		Body []InterestResponse `json:"body"`
	}, error) {
		if _, err := e.Repo.GetLand(ctx, input.LandID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListInterests(ctx, input.LandID)
		if err != nil {
			return nil, handleError(err)
		}
		res := []InterestResponse{}
		for _, i := range items {
			res = append(res, interestResponse(i))
		}
		return &struct {
			Body []InterestResponse `json:"body"`
		}{Body: res}, nil
	})
}

func registerUsers(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "register-user",
		Method:        http.MethodPost,
		Path:          "/users",
		Summary:       "Register user",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body RegisterUserRequest `json:"body"`
	}) (*struct {
		Body UserResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		u, err := e.RegisterUser(ctx, userFromRequest(input.Body), actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body UserResponse `json:"body"`
		}{Body: userResponse(u)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-user",
		Method:      http.MethodGet,
		Path:        "/users/{id}",
		Summary:     "Get user",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body UserResponse `json:"body"`
	}, error) {
		principal, ok := principalFromContext(ctx)
		if !ok {
			return nil, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		}
		// non-admin callers can only read their own record
		if principal.ActorID != input.ID && !hasRole(principal.Roles, "admin") {
			return nil, newAPIError(http.StatusForbidden, "forbidden", "cannot read other users", nil)
		}
		u, err := e.Repo.GetUser(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body UserResponse `json:"body"`
		}{Body: userResponse(u)}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List audit events",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		LandID     string `query:"land_id"`
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind"`
		EntityID   string `query:"entity_id"`
		Limit      int    `query:"limit" default:"50"`
		Cursor     int64  `query:"cursor"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		limit := normalizeLimit(input.Limit)
		items, err := e.Repo.LatestEventsFrom(ctx, limit+1, input.Cursor, input.LandID, input.Type, input.EntityKind, input.EntityID)
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedEvents{Items: []EventResponse{}}
		if len(items) > limit {
			resp.NextCursor = items[limit-1].ID
			items = items[:limit]
		}
		for _, evt := range items {
			resp.Items = append(resp.Items, eventResponse(evt))
		}
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: resp}, nil
	})
}

func hasRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// requireAnyRole checks the principal's roles, falling back to the stored
// role assignments for api-key and legacy principals whose tokens carry none.
func requireAnyRole(ctx context.Context, e engine.Engine, roles ...string) huma.StatusError {
	principal, ok := principalFromContext(ctx)
	if !ok {
		return newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
	}
	known := principal.Roles
	if len(known) == 0 {
		stored, err := e.Repo.ListUserRoles(ctx, principal.ActorID)
		if err == nil {
			known = stored
		}
	}
	for _, role := range roles {
		if hasRole(known, role) {
			return nil
		}
	}
	return newAPIError(http.StatusForbidden, "forbidden", "insufficient role", map[string]any{"required_any": roles})
}
