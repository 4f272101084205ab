package web

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/JonMunkholm/annonces/internal/core"
	"github.com/JonMunkholm/annonces/internal/logging"
	"github.com/go-chi/chi/v5"
)

// multipartMemory is the part of a multipart form kept in memory; the rest
// spills to temporary files.
const multipartMemory = 8 << 20

// multipartOverhead allows for form boundaries and the other form fields on
// top of the file itself.
const multipartOverhead = 1 << 20

// healthResponse is the body of GET /healthz.
type healthResponse struct {
	Status  string                   `json:"status"`
	Store   string                   `json:"store"`
	Uploads core.UploadLimiterStatus `json:"uploads"`
}

// handleHealth reports limiter state and store reachability.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:  "ok",
		Store:   "ok",
		Uploads: s.service.UploadLimiterStatus(),
	}
	status := http.StatusOK

	if s.store != nil {
		if err := s.store.Ping(r.Context()); err != nil {
			resp.Status = "degraded"
			resp.Store = core.MapError(err).Code
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, r, status, resp)
}

// handleListSchemas lists the registered schema versions.
func (s *Server) handleListSchemas(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"default": s.service.DefaultSchema(),
		"schemas": s.service.Schemas(),
	})
}

// handleGetSchema describes one schema version with its documented rules.
func (s *Server) handleGetSchema(w http.ResponseWriter, r *http.Request) {
	summary, err := s.service.Schema(chi.URLParam(r, "key"))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, r, http.StatusOK, summary)
}

// handleExplainCode returns the explanation of a finding code.
func (s *Server) handleExplainCode(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	msg, ok := core.ExplainFinding(code)
	if !ok {
		writeJSON(w, r, http.StatusNotFound, ErrorResponse{
			Error:   "unknown finding code",
			Message: fmt.Sprintf("%q is not a finding code.", code),
			Code:    code,
		})
		return
	}
	writeJSON(w, r, http.StatusOK, msg)
}

// handleValidate validates an uploaded file and returns the recorded run.
//
// Form fields: file (required), schema (optional schema key) and
// include_rows (optional, "true" adds the normalized rows to the report).
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Upload.MaxFileSize
	if maxSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			respondError(w, r, core.ErrFileTooLarge, http.StatusRequestEntityTooLarge)
			return
		}
		respondError(w, r, fmt.Errorf("%w: %v", errNoFile, err), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, errNoFile, http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, r, fmt.Errorf("read upload: %w", err), http.StatusInternalServerError)
		return
	}

	ctx := withRequestMetadata(r.Context(), r)
	run, err := s.service.Validate(ctx, r.FormValue("schema"), header.Filename, data)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	writeJSON(w, r, http.StatusOK, runView(run, parseBool(r.FormValue("include_rows"))))
}

// handleListRuns lists recent runs, newest first.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.service.ListRuns(r.Context(), parseIntParam(r, "limit", 0))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"runs": runs})
}

// handleGetRun returns one run with its report.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.service.GetRun(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, r, http.StatusOK, runView(run, parseBool(r.URL.Query().Get("include_rows"))))
}

// handleExportFindings exports a run's findings as CSV, in report order.
func (s *Server) handleExportFindings(w http.ResponseWriter, r *http.Request) {
	run, err := s.service.GetRun(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="findings_%s.csv"`, run.ID))

	csvWriter := csv.NewWriter(w)
	csvWriter.Write([]string{"line", "business_key", "rank", "field", "code", "severity", "message", "value"})

	if run.Report != nil {
		for _, f := range run.Report.Findings {
			csvWriter.Write([]string{
				strconv.Itoa(f.LineNumber),
				f.BusinessKey,
				strconv.Itoa(f.Rank),
				f.FieldName,
				f.Code,
				string(f.Severity),
				f.Message,
				f.RawValue,
			})
		}
	}

	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		logging.FromContext(r.Context()).Error("findings export failed", "run_id", run.ID, "error", err)
	}
}

// runView returns run for the response. Normalized rows are dropped unless
// asked for; the stored run is never modified.
func runView(run *core.Run, includeRows bool) *core.Run {
	if includeRows || run.Report == nil || run.Report.Rows == nil {
		return run
	}
	view := *run
	report := *run.Report
	report.Rows = nil
	view.Report = &report
	return &view
}

// parseIntParam parses a non-negative integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 0 {
		return defaultVal
	}
	return i
}

func parseBool(s string) bool {
	b, _ := strconv.ParseBool(s)
	return b
}
