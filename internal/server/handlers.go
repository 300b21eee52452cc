package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/longhang2004/content-service/internal/model"
	"github.com/longhang2004/content-service/internal/service"
)

// NewHandler creates the REST handler set over the content and versioning
// services.
func NewHandler(contents *service.ContentService, versioning *service.VersioningService) *Handler {
	return &Handler{
		contents:   contents,
		versioning: versioning,
	}
}

type Handler struct {
	contents   *service.ContentService
	versioning *service.VersioningService
}

// Routes mounts the handler set on a chi router.
func (h *Handler) Routes(auth *Authenticator) chi.Router {
	r := chi.NewRouter()
	r.Use(RequestLogger)

	r.Route("/v1/contents", func(r chi.Router) {
		r.Get("/", h.listContents)
		r.With(auth.RequireUser).Post("/", h.createContent)

		r.Route("/{contentID}", func(r chi.Router) {
			r.Get("/", h.getContent)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireUser)
				r.Patch("/", h.updateContent)
				r.Post("/archive", h.archiveContent)
				r.Post("/unarchive", h.unarchiveContent)
				r.Post("/tags", h.attachTags)
				r.Delete("/tags/{name}", h.detachTag)
			})

			r.Route("/versions", func(r chi.Router) {
				r.Get("/", h.listVersions)
				r.Get("/compare", h.compareVersions)
				r.Get("/{version}", h.getVersion)
				r.With(auth.RequireUser).Post("/{version}/restore", h.restoreVersion)
			})
		})
	})

	return r
}

type createContentRequest struct {
	Title       string                  `json:"title"`
	Body        *string                 `json:"body"`
	ContentType string                  `json:"contentType"`
	ResourceURL *string                 `json:"resourceUrl"`
	HierarchyID *string                 `json:"hierarchyId"`
	Metadata    *model.MetadataSnapshot `json:"metadata"`
	Tags        []string                `json:"tags"`
}

type updateContentRequest struct {
	Title       *string                 `json:"title"`
	Body        *string                 `json:"body"`
	ContentType *string                 `json:"contentType"`
	ResourceURL *string                 `json:"resourceUrl"`
	HierarchyID *string                 `json:"hierarchyId"`
	Metadata    *model.MetadataSnapshot `json:"metadata"`
	Tags        []string                `json:"tags"`
}

type attachTagsRequest struct {
	Tags []string `json:"tags"`
}

func (h *Handler) createContent(w http.ResponseWriter, r *http.Request) {
	var req createContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	view, err := h.contents.Create(r.Context(), &service.CreateContentInput{
		Title:       req.Title,
		Body:        req.Body,
		ContentType: req.ContentType,
		ResourceURL: req.ResourceURL,
		HierarchyID: req.HierarchyID,
		Metadata:    req.Metadata,
		Tags:        req.Tags,
	}, UserID(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, view)
}

func (h *Handler) getContent(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "contentID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid content id")
		return
	}

	view, err := h.contents.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) listContents(w http.ResponseWriter, r *http.Request) {
	includeArchived := r.URL.Query().Get("includeArchived") == "true"
	limit, offset := paging(r)

	views, total, err := h.contents.List(r.Context(), includeArchived, limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"contents": views,
		"total":    total,
	})
}

func (h *Handler) updateContent(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "contentID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid content id")
		return
	}

	var req updateContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	view, err := h.contents.Update(r.Context(), id, &service.UpdateContentInput{
		Title:       req.Title,
		Body:        req.Body,
		ContentType: req.ContentType,
		ResourceURL: req.ResourceURL,
		HierarchyID: req.HierarchyID,
		Metadata:    req.Metadata,
		Tags:        req.Tags,
	}, UserID(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) archiveContent(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "contentID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid content id")
		return
	}

	view, err := h.contents.Archive(r.Context(), id, UserID(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) unarchiveContent(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "contentID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid content id")
		return
	}

	view, err := h.contents.Unarchive(r.Context(), id, UserID(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) attachTags(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "contentID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid content id")
		return
	}

	var req attachTagsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	attached, skipped, err := h.contents.AttachTags(r.Context(), id, req.Tags, UserID(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"attached": attached,
		"skipped":  skipped,
	})
}

func (h *Handler) detachTag(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "contentID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid content id")
		return
	}

	name := chi.URLParam(r, "name")
	if err := h.contents.DetachTag(r.Context(), id, name, UserID(r.Context())); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Tag removed",
	})
}

func (h *Handler) listVersions(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "contentID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid content id")
		return
	}
	limit, offset := paging(r)

	versions, total, err := h.contents.ListVersions(r.Context(), id, limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"versions": versions,
		"total":    total,
	})
}

func (h *Handler) getVersion(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "contentID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid content id")
		return
	}

	version, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid version number")
		return
	}

	info, err := h.versioning.GetVersion(r.Context(), id, version)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *Handler) compareVersions(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "contentID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid content id")
		return
	}

	versionA, errA := strconv.Atoi(r.URL.Query().Get("versionA"))
	versionB, errB := strconv.Atoi(r.URL.Query().Get("versionB"))
	if errA != nil || errB != nil {
		writeError(w, http.StatusBadRequest, "versionA and versionB are required")
		return
	}

	diff, err := h.versioning.CompareVersions(r.Context(), id, versionA, versionB)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, diff)
}

func (h *Handler) restoreVersion(w http.ResponseWriter, r *http.Request) {
	contentID, err := uuid.Parse(chi.URLParam(r, "contentID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid content id")
		return
	}

	versionID, err := uuid.Parse(chi.URLParam(r, "version"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid version id")
		return
	}

	view, err := h.contents.Restore(r.Context(), contentID, versionID, UserID(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func paging(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if limit < 0 {
		limit = 0
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Errorf("error writing response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps the service error taxonomy onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrContentNotFound),
		errors.Is(err, service.ErrVersionNotFound),
		errors.Is(err, service.ErrTagNotAttached):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrVersionMismatch),
		errors.Is(err, service.ErrInvalidContent),
		errors.Is(err, service.ErrAlreadyArchived),
		errors.Is(err, service.ErrNotArchived):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrVersionConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		logrus.Errorf("internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
