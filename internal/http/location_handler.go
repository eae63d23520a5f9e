package httpapi

import (
	"errors"
	"net/http"

	"owl-location/internal/domain"
	"owl-location/internal/logger"
	"owl-location/internal/query"
	"owl-location/internal/repository"
	"owl-location/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// LocationHandler /api/locations
type LocationHandler struct {
	svc    *service.LocationService
	logger *zap.Logger
}

func NewLocationHandler(svc *service.LocationService, logger *zap.Logger) *LocationHandler {
	return &LocationHandler{svc: svc, logger: logger}
}

// Create POST /api/locations
func (h *LocationHandler) Create(w http.ResponseWriter, r *http.Request) {
	patch, ok := h.readPayload(w, r, false)
	if !ok {
		return
	}

	created, err := h.svc.Create(r.Context(), patch)
	if err != nil {
		writeServiceError(w, h.logger, "CreateLocation", err)
		return
	}
	h.logger.Info("Created location successfully", logger.LocationID(created.ID))
	writeOk(w, http.StatusCreated, created, nil)
}

// Update PUT /api/locations/{id}
func (h *LocationHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	// body validation answers before the existence check
	patch, ok := h.readPayload(w, r, true)
	if !ok {
		return
	}
	if !h.exists(w, r, id) {
		return
	}
	if parent, ok := patch[query.ParentIDField].(string); ok && parent == id {
		writeValidationFailed(w, []FieldError{{Name: query.ParentIDField, Message: "parentId cannot reference the location itself"}})
		return
	}

	updated, err := h.svc.Update(r.Context(), id, patch)
	if err != nil {
		writeServiceError(w, h.logger, "UpdateLocation", err)
		return
	}
	if updated == nil {
		// deleted between the existence check and the re-read
		writeNotFound(w, id)
		return
	}
	h.logger.Info("Updated location successfully", logger.LocationID(id))
	writeOk(w, http.StatusOK, updated, nil)
}

// Delete DELETE /api/locations/{id}
func (h *LocationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.exists(w, r, id) {
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeServiceError(w, h.logger, "DeleteLocation", err)
		return
	}
	h.logger.Info("Deleted location successfully", logger.LocationID(id))
	w.WriteHeader(http.StatusNoContent)
}

// Get GET /api/locations/{id}?withRelationship=
func (h *LocationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !validID(id) {
		writeNotFound(w, id)
		return
	}

	var (
		result any
		found  bool
		err    error
	)
	if isTruthy(r.URL.Query().Get("withRelationship")) {
		var node *domain.LocationNode
		node, err = h.svc.GetTreeByID(r.Context(), id)
		result, found = node, node != nil
	} else {
		var l *domain.Location
		l, err = h.svc.FindByID(r.Context(), id, nil)
		result, found = l, l != nil
	}
	if err != nil {
		writeServiceError(w, h.logger, "GetLocation", err)
		return
	}
	if !found {
		writeNotFound(w, id)
		return
	}
	h.logger.Debug("Got location successfully", logger.LocationID(id))
	writeOk(w, http.StatusOK, result, nil)
}

// List GET /api/locations?search=&withRelationship=&order[f]=&pagination[limit]=&pagination[offset]=
func (h *LocationHandler) List(w http.ResponseWriter, r *http.Request) {
	req, fields := parseListRequest(r)
	if len(fields) > 0 {
		writeValidationFailed(w, fields)
		return
	}
	limit, offset := query.NormalizePagination(req.Pagination)

	var (
		data  any
		total int
	)
	if req.WithRelationship {
		page, err := h.svc.QueryAllRootTree(r.Context(), req.Request())
		if err != nil {
			writeServiceError(w, h.logger, "ListLocations", err)
			return
		}
		data, total = page.Items, page.Total
	} else {
		page, err := h.svc.Query(r.Context(), req.Request(), nil)
		if err != nil {
			writeServiceError(w, h.logger, "ListLocations", err)
			return
		}
		data, total = page.Items, page.Total
	}

	h.logger.Debug("Queried locations successfully", zap.Int("total", total))
	writeOk(w, http.StatusOK, data, ListMetadata{Limit: limit, Offset: offset, Total: total})
}

// Export GET /api/locations/export?search=&order[f]=
// Every matching root is expanded into its subtree; pagination is ignored.
func (h *LocationHandler) Export(w http.ResponseWriter, r *http.Request) {
	req, fields := parseListRequest(r)
	if len(fields) > 0 {
		writeValidationFailed(w, fields)
		return
	}
	req.WithRelationship = true
	req.Pagination = &query.Pagination{Limit: 0, Offset: 0}

	page, err := h.svc.QueryAllRootTree(r.Context(), req.Request())
	if err != nil {
		writeServiceError(w, h.logger, "ExportLocations", err)
		return
	}
	data, err := GenerateLocationExport(page.Items)
	if err != nil {
		writeServiceError(w, h.logger, "ExportLocations", err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="locations.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// exists writes 404 and returns false when id names no location.
func (h *LocationHandler) exists(w http.ResponseWriter, r *http.Request, id string) bool {
	if !validID(id) {
		writeNotFound(w, id)
		return false
	}
	l, err := h.svc.FindByID(r.Context(), id, nil)
	if err != nil {
		writeServiceError(w, h.logger, "FindLocation", err)
		return false
	}
	if l == nil {
		writeNotFound(w, id)
		return false
	}
	return true
}

// readPayload validates the body; an empty body is validated as {}.
func (h *LocationHandler) readPayload(w http.ResponseWriter, r *http.Request, partial bool) (repository.Patch, bool) {
	body, err := readBodyObject(r, maxBodyBytes)
	if err != nil && !errors.Is(err, errEmptyBody) {
		writeErrors(w, http.StatusBadRequest, ErrorItem{
			Code:    http.StatusBadRequest,
			Message: "Invalid JSON body: " + err.Error(),
		})
		return nil, false
	}
	patch, fields := validateLocation(body, partial)
	if len(fields) > 0 {
		writeValidationFailed(w, fields)
		return nil, false
	}
	return patch, true
}
