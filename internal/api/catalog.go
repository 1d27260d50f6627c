package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cautiouskurns/FinalRound/internal/db"
)

// handleImportCatalog replaces the whole catalog from an uploaded document.
// The replace is one transaction: on any failure nothing is kept and the
// previous catalog stays visible.
func (a *API) handleImportCatalog(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBodySize)

	doc, err := decodeImportDocument(r.Body)
	if err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	counts, err := a.db.ReplaceCatalog(doc)
	a.audit(r, "import_catalog", map[string]int{"subjects": len(doc)}, start, err)
	if err != nil {
		respondDBError(w, err, "importing catalog")
		return
	}
	jsonResp(w, http.StatusOK, counts)
}

// decodeImportDocument accepts either a bare subject array or the wrapper
// emitted by GET /api/catalog/export, so exports re-import unmodified.
func decodeImportDocument(r io.Reader) ([]*db.Subject, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, err
	}
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var wrapped struct {
			Subjects []*db.Subject `json:"subjects"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil, err
		}
		return wrapped.Subjects, nil
	}
	var doc []*db.Subject
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// handleGetCatalog returns the full nested catalog. Questions are included
// unless ?questions=0 is given.
func (a *API) handleGetCatalog(w http.ResponseWriter, r *http.Request) {
	includeQuestions := r.URL.Query().Get("questions") != "0"
	doc, err := a.db.LoadCatalog(includeQuestions)
	if err != nil {
		slog.Error("loading catalog", "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	jsonResp(w, http.StatusOK, doc)
}

func (a *API) handleGetOutline(w http.ResponseWriter, r *http.Request) {
	outline, err := a.db.LoadOutline()
	if err != nil {
		slog.Error("loading outline", "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	jsonResp(w, http.StatusOK, outline)
}

func (a *API) handleAddSubject(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	subject, err := a.db.CreateSubject(req.Name)
	a.audit(r, "add_subject", req, start, err)
	if err != nil {
		respondDBError(w, err, "creating subject")
		return
	}
	jsonResp(w, http.StatusCreated, subject)
}

func (a *API) handleAddTopic(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req struct {
		Name      string  `json:"name"`
		Details   *string `json:"details"`
		SubjectID int64   `json:"subject_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	topic, err := a.db.CreateTopic(req.Name, req.Details, req.SubjectID)
	a.audit(r, "add_topic", req, start, err)
	if err != nil {
		respondDBError(w, err, "creating topic")
		return
	}
	jsonResp(w, http.StatusCreated, topic)
}

func (a *API) handleAddConcept(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req struct {
		Name        string  `json:"name"`
		Details     *string `json:"details"`
		CodeExample *string `json:"code_example"`
		TopicID     int64   `json:"topic_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	concept, err := a.db.CreateConcept(req.Name, req.Details, req.CodeExample, req.TopicID)
	a.audit(r, "add_concept", req, start, err)
	if err != nil {
		respondDBError(w, err, "creating concept")
		return
	}
	jsonResp(w, http.StatusCreated, concept)
}

func (a *API) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		jsonError(w, "query is required", http.StatusBadRequest)
		return
	}

	hits, err := a.db.SearchQuestions(req.Query, req.Limit)
	if err != nil {
		slog.Error("searching questions", "error", err, "query", req.Query)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	jsonResp(w, http.StatusOK, map[string]interface{}{"hits": hits})
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	subjects, topics, concepts, questions, err := a.db.Counts()
	if err != nil {
		slog.Error("reading counts", "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	jsonResp(w, http.StatusOK, map[string]interface{}{
		"version":   a.version,
		"subjects":  subjects,
		"topics":    topics,
		"concepts":  concepts,
		"questions": questions,
	})
}

// respondDBError maps the db error taxonomy onto HTTP statuses: validation
// failures are 400, missing parents 404, anything else is a 500 after the
// store has already rolled back or refused the statement.
func respondDBError(w http.ResponseWriter, err error, context string) {
	var ve *db.ValidationError
	if errors.As(err, &ve) {
		jsonError(w, ve.Error(), http.StatusBadRequest)
		return
	}
	var re *db.ReferentialError
	if errors.As(err, &re) {
		jsonError(w, re.Error(), http.StatusNotFound)
		return
	}
	slog.Error(context, "error", err)
	jsonError(w, "internal error", http.StatusInternalServerError)
}
