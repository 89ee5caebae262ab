package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bizmap/internal/estimate"
	"github.com/sells-group/bizmap/internal/explorer"
	"github.com/sells-group/bizmap/internal/geo"
	"github.com/sells-group/bizmap/internal/ingest"
	"github.com/sells-group/bizmap/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// mutationStatus maps a mutation error to a status and warning. A persist
// failure still counts as success.
func mutationStatus(w http.ResponseWriter, err error) (int, string, bool) {
	switch {
	case err == nil:
		return http.StatusOK, "", true
	case explorer.IsPersistError(err):
		return http.StatusMultiStatus, err.Error(), true
	case errors.Is(err, explorer.ErrBusinessNotFound):
		writeError(w, http.StatusNotFound, "business not found")
	case eris.Is(err, explorer.ErrInvalidBusiness):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
	return 0, "", false
}

func (s *server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"records":    s.ex.Len(),
		"boundaries": s.boundaries.Loaded(),
	})
}

func (s *server) listBusinesses(w http.ResponseWriter, r *http.Request) {
	var records []model.Business
	if r.URL.Query().Has("q") {
		records = s.ex.SetFilter(r.URL.Query().Get("q"))
	} else {
		records = s.ex.Filtered()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query":      s.ex.Query(),
		"count":      len(records),
		"businesses": records,
	})
}

func (s *server) getBusiness(w http.ResponseWriter, r *http.Request) {
	b, ok := s.ex.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "business not found")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// updateBusiness applies the fields present in the body to the stored
// record; absent fields keep their values.
func (s *server) updateBusiness(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEditBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := s.ex.Edit(r.Context(), chi.URLParam(r, "id"), func(b *model.Business) error {
		if err := json.Unmarshal(body, b); err != nil {
			return eris.Wrapf(explorer.ErrInvalidBusiness, "decode fields: %v", err)
		}
		return nil
	})
	status, warning, ok := mutationStatus(w, err)
	if !ok {
		return
	}
	writeJSON(w, status, map[string]any{"business": updated, "warning": warning})
}

func tagFromRequest(r *http.Request) string {
	if tag := r.URL.Query().Get("tag"); tag != "" {
		return tag
	}
	var body struct {
		Tag string `json:"tag"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	return body.Tag
}

func (s *server) addTag(w http.ResponseWriter, r *http.Request) {
	tag := tagFromRequest(r)
	if strings.TrimSpace(tag) == "" {
		writeError(w, http.StatusBadRequest, "tag is required")
		return
	}
	b, err := s.ex.AddTag(r.Context(), chi.URLParam(r, "id"), tag)
	status, warning, ok := mutationStatus(w, err)
	if !ok {
		return
	}
	writeJSON(w, status, map[string]any{"business": b, "warning": warning})
}

func (s *server) removeTag(w http.ResponseWriter, r *http.Request) {
	tag := tagFromRequest(r)
	if strings.TrimSpace(tag) == "" {
		writeError(w, http.StatusBadRequest, "tag is required")
		return
	}
	b, err := s.ex.RemoveTag(r.Context(), chi.URLParam(r, "id"), tag)
	status, warning, ok := mutationStatus(w, err)
	if !ok {
		return
	}
	writeJSON(w, status, map[string]any{"business": b, "warning": warning})
}

func (s *server) clear(w http.ResponseWriter, r *http.Request) {
	status, warning, ok := mutationStatus(w, s.ex.Clear(r.Context()))
	if !ok {
		return
	}
	writeJSON(w, status, map[string]any{"records": s.ex.Len(), "warning": warning})
}

func (s *server) summarize(w http.ResponseWriter, r *http.Request) {
	b, ok := s.ex.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "business not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"business_id": b.ID,
		"summary":     s.summarizer.Summarize(r.Context(), b),
	})
}

// uploadFile returns the import body and its file name. Multipart requests
// use the "file" field; anything else is the raw body.
func uploadFile(r *http.Request) (io.ReadCloser, string, error) {
	name := r.URL.Query().Get("filename")

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		f, hdr, err := r.FormFile("file")
		if err != nil {
			return nil, "", err
		}
		if name == "" {
			name = hdr.Filename
		}
		return f, name, nil
	}

	if name == "" {
		switch mediaType {
		case "text/csv":
			name = "upload.csv"
		case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
			name = "upload.xlsx"
		default:
			name = "upload.json"
		}
	}
	return r.Body, name, nil
}

func (s *server) importFile(w http.ResponseWriter, r *http.Request) {
	mode, err := ingest.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	body, name, err := uploadFile(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer body.Close() //nolint:errcheck

	report, err := s.ex.Import(r.Context(), name, body, mode)
	if err != nil && !explorer.IsPersistError(err) {
		zap.L().Warn("api: import rejected", zap.String("file", name), zap.Error(err))
		msg := "Failed to parse file. Please ensure it is valid JSON, CSV or XLSX."
		if errors.Is(err, ingest.ErrNotArray) {
			msg = "Invalid file format. Expected an array of records."
		}
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	resp := map[string]any{"report": report, "message": report.Message()}
	status := http.StatusOK
	if err != nil {
		status = http.StatusMultiStatus
		resp["message"] = report.StorageFullMessage()
		resp["warning"] = err.Error()
	}
	writeJSON(w, status, resp)
}

type selectionResponse struct {
	Selection model.Selection `json:"selection"`
	Level     model.ScopeKind `json:"level"`
	Business  *model.Business `json:"business,omitempty"`
}

func (s *server) selectionBody(sel model.Selection) selectionResponse {
	resp := selectionResponse{Selection: sel, Level: sel.Level()}
	if b, ok := s.ex.SelectedBusiness(); ok {
		resp.Business = &b
	}
	return resp
}

func (s *server) getSelection(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.selectionBody(s.ex.Selection()))
}

func (s *server) closeSelection(w http.ResponseWriter, _ *http.Request) {
	s.ex.CloseAll()
	writeJSON(w, http.StatusOK, s.selectionBody(s.ex.Selection()))
}

func (s *server) selectBusiness(w http.ResponseWriter, r *http.Request) {
	sel, err := s.ex.SelectBusiness(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "business not found")
		return
	}
	writeJSON(w, http.StatusOK, s.selectionBody(sel))
}

func (s *server) selectCounty(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.selectionBody(s.ex.SelectCounty(chi.URLParam(r, "name"))))
}

func (s *server) selectZip(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.selectionBody(s.ex.SelectZip(chi.URLParam(r, "zip"))))
}

// totals aggregates the requested scope. A county or zip scope without a
// value uses the current selection.
func (s *server) totals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	scope := estimate.Scope{Kind: model.ScopeKind(q.Get("scope")), Value: q.Get("value")}

	sel := s.ex.Selection()
	switch scope.Kind {
	case "", model.ScopeState:
		scope = estimate.StateScope()
	case model.ScopeCounty:
		if scope.Value == "" {
			scope.Value = sel.County
		}
	case model.ScopeZip:
		if scope.Value == "" {
			scope.Value = sel.Zip
		}
	default:
		writeError(w, http.StatusBadRequest, "scope must be state, county or zip")
		return
	}

	t := s.ex.Totals(scope)
	writeJSON(w, http.StatusOK, map[string]any{
		"scope":     scope,
		"employees": t.Employees,
		"revenue":   t.Revenue,
		"display":   estimate.FormatAmount(t.Revenue),
	})
}

func (s *server) boundaryLayer(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "layer")
	if name != geo.LayerCounties && name != geo.LayerZips {
		writeError(w, http.StatusNotFound, "unknown boundary layer")
		return
	}
	layer := s.boundaries.Layer(name)
	if layer == nil {
		writeError(w, http.StatusServiceUnavailable, "boundary layer not loaded")
		return
	}
	data, err := json.Marshal(layer)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
