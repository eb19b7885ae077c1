package controllers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/iota-uz/roster-sync/modules/roster/domain/roster"
	"github.com/iota-uz/roster-sync/modules/roster/infrastructure/reportfile"
	"github.com/iota-uz/roster-sync/modules/roster/infrastructure/tabular"
	"github.com/iota-uz/roster-sync/modules/roster/services"
	"github.com/iota-uz/roster-sync/pkg/application"
	"github.com/iota-uz/roster-sync/pkg/httpapi"
	"github.com/iota-uz/roster-sync/pkg/serrors"
)

const defaultMaxUploadSize = 32 << 20

type ImportAPIController struct {
	jobs          *services.ImportJobService
	validate      *validator.Validate
	apiPrefix     string
	maxUploadSize int64
}

func NewImportAPIController(jobs *services.ImportJobService, maxUploadSize int64) application.Controller {
	if maxUploadSize <= 0 {
		maxUploadSize = defaultMaxUploadSize
	}
	return &ImportAPIController{
		jobs:          jobs,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		apiPrefix:     "/roster/api",
		maxUploadSize: maxUploadSize,
	}
}

func (c *ImportAPIController) Key() string {
	return c.apiPrefix
}

func (c *ImportAPIController) Register(r *mux.Router) {
	api := r.PathPrefix(c.apiPrefix).Subrouter()
	api.HandleFunc("/imports", c.CreateImport).Methods(http.MethodPost)
	api.HandleFunc("/imports/{id}", c.GetImport).Methods(http.MethodGet)
	api.HandleFunc("/imports/{id}/report", c.GetReport).Methods(http.MethodGet)
}

type createImportRequest struct {
	Source string            `json:"source" validate:"max=200"`
	Apply  bool              `json:"apply"`
	Rows   []json.RawMessage `json:"rows" validate:"required,min=1,max=100000"`
}

type importJobResponse struct {
	roster.ImportJob
	ReportURL string `json:"report_url,omitempty"`
}

func (c *ImportAPIController) CreateImport(w http.ResponseWriter, r *http.Request) {
	requestID := w.Header().Get("X-Request-Id")
	r.Body = http.MaxBytesReader(w, r.Body, c.maxUploadSize)

	var (
		source  string
		apply   bool
		records []roster.Record
		err     error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		source, apply, records, err = c.readUpload(r)
	} else {
		source, apply, records, err = c.readJSON(r)
	}
	if err != nil {
		var verrs serrors.ValidationErrors
		if errors.As(err, &verrs) {
			writeValidationError(w, requestID, verrs)
			return
		}
		writeAPIError(w, http.StatusBadRequest, requestID, "ROSTER_INVALID_REQUEST", err.Error())
		return
	}

	job, err := c.jobs.Submit(r.Context(), source, apply, records)
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	location := fmt.Sprintf("%s/imports/%s", c.apiPrefix, job.ID)
	w.Header().Set("Location", location)
	_ = httpapi.WriteJSON(w, http.StatusAccepted, importJobResponse{ImportJob: job})
}

func (c *ImportAPIController) readUpload(r *http.Request) (string, bool, []roster.Record, error) {
	if err := r.ParseMultipartForm(c.maxUploadSize); err != nil {
		return "", false, nil, fmt.Errorf("invalid multipart body: %w", err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return "", false, nil, serrors.ValidationErrors{"file": serrors.NewFieldRequiredError("file", "Roster.Imports.File")}
	}
	defer func() { _ = file.Close() }()

	apply, err := parseBool(r.FormValue("apply"))
	if err != nil {
		return "", false, nil, err
	}
	name := filepath.Base(header.Filename)
	records, err := tabular.Read(name, file, r.FormValue("sheet"))
	if err != nil {
		return "", false, nil, err
	}
	if len(records) == 0 {
		return "", false, nil, fmt.Errorf("%s has no data rows", name)
	}
	return name, apply, records, nil
}

func (c *ImportAPIController) readJSON(r *http.Request) (string, bool, []roster.Record, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return "", false, nil, fmt.Errorf("read body: %w", err)
	}
	var req createImportRequest
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&req); err != nil {
		return "", false, nil, fmt.Errorf("invalid json body: %w", err)
	}
	if err := c.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return "", false, nil, serrors.ProcessValidatorErrors(verrs, func(field string) string {
				return "Roster.Imports." + field
			})
		}
		return "", false, nil, err
	}

	records := make([]roster.Record, 0, len(req.Rows))
	for i, raw := range req.Rows {
		rec, err := tabular.DecodeRecord(raw)
		if err != nil {
			return "", false, nil, fmt.Errorf("rows[%d]: %w", i, err)
		}
		records = append(records, rec)
	}
	source := req.Source
	if source == "" {
		source = "api"
	}
	return source, req.Apply, records, nil
}

func (c *ImportAPIController) GetImport(w http.ResponseWriter, r *http.Request) {
	requestID := w.Header().Get("X-Request-Id")
	id := mux.Vars(r)["id"]
	job, err := c.jobs.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	resp := importJobResponse{ImportJob: job}
	if job.Summary != nil {
		// Row results are served by the report endpoint.
		summary := *job.Summary
		summary.Results = nil
		resp.Summary = &summary
		resp.ReportURL = fmt.Sprintf("%s/imports/%s/report", c.apiPrefix, job.ID)
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, resp)
}

func (c *ImportAPIController) GetReport(w http.ResponseWriter, r *http.Request) {
	requestID := w.Header().Get("X-Request-Id")
	format, err := reportfile.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, "ROSTER_INVALID_QUERY", err.Error())
		return
	}
	job, err := c.jobs.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	if job.Summary == nil {
		msg := fmt.Sprintf("import job is %s", job.Status)
		if job.Error != "" {
			msg += ": " + job.Error
		}
		writeAPIError(w, http.StatusConflict, requestID, "ROSTER_JOB_NOT_FINISHED", msg)
		return
	}

	var buf bytes.Buffer
	if err := reportfile.Write(&buf, format, *job.Summary); err != nil {
		writeAPIError(w, http.StatusInternalServerError, requestID, "ROSTER_INTERNAL", err.Error())
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="roster-import-%s.%s"`, job.ID, format))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func parseBool(v string) (bool, error) {
	if strings.TrimSpace(v) == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, fmt.Errorf("apply must be a boolean, got %q", v)
	}
	return b, nil
}

func writeValidationError(w http.ResponseWriter, requestID string, verrs serrors.ValidationErrors) {
	meta := make(map[string]string, len(verrs)+1)
	for field, e := range verrs {
		meta[field] = e.Code
	}
	if requestID != "" {
		meta["request_id"] = requestID
	}
	_ = httpapi.WriteError(w, http.StatusUnprocessableEntity, "ROSTER_VALIDATION", verrs.Error(), meta)
}

func writeServiceError(w http.ResponseWriter, requestID string, err error) {
	switch {
	case errors.Is(err, roster.ErrNotFound):
		writeAPIError(w, http.StatusNotFound, requestID, roster.ErrNotFound.Code, err.Error())
	case errors.Is(err, roster.ErrInput):
		writeAPIError(w, http.StatusBadRequest, requestID, roster.ErrInput.Code, err.Error())
	default:
		writeAPIError(w, http.StatusInternalServerError, requestID, serrors.CodeOf(err, "ROSTER_INTERNAL"), err.Error())
	}
}

func writeAPIError(w http.ResponseWriter, status int, requestID, code, message string) {
	meta := map[string]string{}
	if requestID != "" {
		meta["request_id"] = requestID
	}
	_ = httpapi.WriteError(w, status, code, message, meta)
}
