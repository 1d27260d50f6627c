package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/cautiouskurns/FinalRound/internal/auth"
	"github.com/cautiouskurns/FinalRound/internal/db"
	"github.com/cautiouskurns/FinalRound/pkg/audit"
)

// emailRe is a permissive sanity check, not a full RFC 5322 validator.
var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// maxImportBodySize caps the bulk import payload (whole catalog as JSON).
const maxImportBodySize = 4 * 1024 * 1024 // 4MB

// SearchRateLimiter is the rate limiter for POST /api/search (30 req/60s).
var SearchRateLimiter = NewRateLimiter(30, 60*time.Second)

type API struct {
	db       *db.DB
	auth     *auth.Auth
	auditLog audit.Logger
	version  string
}

func New(database *db.DB, a *auth.Auth) *API {
	return &API{db: database, auth: a, version: "dev"}
}

// SetAuditLog sets the audit logger for mutating endpoints.
func (a *API) SetAuditLog(l audit.Logger) {
	a.auditLog = l
}

// SetVersion sets the version string reported by /api/status.
func (a *API) SetVersion(v string) {
	a.version = v
}

func (a *API) RegisterRoutes(mux *http.ServeMux) {
	// Auth
	mux.HandleFunc("POST /api/register", a.handleRegister)
	mux.HandleFunc("POST /api/login", a.handleLogin)
	mux.HandleFunc("GET /api/me", a.handleGetMe)

	// Users
	mux.HandleFunc("GET /api/users", a.requireAdmin(a.handleListUsers))
	mux.HandleFunc("POST /api/users/bulk", a.requireAdmin(a.handleBulkUploadUsers))

	// Catalog
	mux.HandleFunc("POST /api/catalog/import", a.requireAdmin(a.handleImportCatalog))
	mux.HandleFunc("GET /api/catalog", a.handleGetCatalog)
	mux.HandleFunc("GET /api/catalog/outline", a.handleGetOutline)
	mux.HandleFunc("GET /api/catalog/export", a.handleExportCatalog)
	mux.HandleFunc("POST /api/catalog/subjects", a.requireUser(a.handleAddSubject))
	mux.HandleFunc("POST /api/catalog/topics", a.requireUser(a.handleAddTopic))
	mux.HandleFunc("POST /api/catalog/concepts", a.requireUser(a.handleAddConcept))

	// Search
	mux.HandleFunc("POST /api/search", RateLimitMiddleware(SearchRateLimiter, a.handleSearch))

	// Status
	mux.HandleFunc("GET /api/status", a.handleStatus)
}

// --- Auth ---

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		jsonError(w, "name, email and password are required", http.StatusBadRequest)
		return
	}
	if !emailRe.MatchString(req.Email) {
		jsonError(w, "invalid email address", http.StatusBadRequest)
		return
	}
	if len(req.Password) < 8 {
		jsonError(w, "password must be at least 8 characters", http.StatusBadRequest)
		return
	}

	hash, err := a.auth.HashPassword(req.Password)
	if err != nil {
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	// The first account on a fresh instance becomes the admin; everyone
	// after that registers as a plain user.
	role := "user"
	var userCount int
	if err := a.db.QueryRow("SELECT COUNT(*) FROM users").Scan(&userCount); err == nil && userCount == 0 {
		role = "admin"
	}

	user, err := a.db.CreateUser(db.CreateUserInput{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			jsonError(w, "email already registered", http.StatusConflict)
			return
		}
		slog.Error("creating user", "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	token, err := a.auth.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	jsonResp(w, http.StatusCreated, map[string]interface{}{
		"user":  user,
		"token": token,
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Password == "" {
		jsonError(w, "email and password are required", http.StatusBadRequest)
		return
	}

	user, hash, err := a.db.GetUserByEmail(req.Email)
	if err != nil || !a.auth.CheckPassword(hash, req.Password) {
		jsonError(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := a.auth.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	jsonResp(w, http.StatusOK, map[string]interface{}{
		"user":  user,
		"token": token,
	})
}

func (a *API) handleGetMe(w http.ResponseWriter, r *http.Request) {
	claims := a.auth.ExtractClaims(r)
	if claims == nil {
		jsonError(w, "authentication required", http.StatusUnauthorized)
		return
	}
	user, err := a.db.GetUserByID(claims.UserID)
	if err != nil {
		jsonError(w, "user not found", http.StatusNotFound)
		return
	}
	jsonResp(w, http.StatusOK, user)
}

// --- Users ---

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.db.ListUsers()
	if err != nil {
		slog.Error("listing users", "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	jsonResp(w, http.StatusOK, map[string]interface{}{"users": users})
}

func (a *API) handleBulkUploadUsers(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req []struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	inputs := make([]db.CreateUserInput, 0, len(req))
	for _, u := range req {
		// Imported accounts without a password get a sentinel that no
		// bcrypt comparison can ever match, so they cannot log in until
		// an operator resets them.
		hash := "!locked"
		if u.Password != "" {
			var err error
			hash, err = a.auth.HashPassword(u.Password)
			if err != nil {
				jsonError(w, "internal error", http.StatusInternalServerError)
				return
			}
		}
		inputs = append(inputs, db.CreateUserInput{Name: u.Name, Email: u.Email, PasswordHash: hash})
	}

	inserted, err := a.db.BulkCreateUsers(inputs)
	a.audit(r, "bulk_upload_users", map[string]int{"count": len(inputs)}, start, err)
	if err != nil {
		respondDBError(w, err, "bulk user upload")
		return
	}
	jsonResp(w, http.StatusOK, map[string]int{"inserted": inserted})
}

// --- Middleware-ish guards ---

func (a *API) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a.auth.ExtractClaims(r) == nil {
			jsonError(w, "authentication required", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (a *API) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := a.auth.ExtractClaims(r)
		if claims == nil {
			jsonError(w, "authentication required", http.StatusUnauthorized)
			return
		}
		if claims.Role != "admin" {
			jsonError(w, "admin access required", http.StatusForbidden)
			return
		}
		next(w, r)
	}
}

// audit records a mutating action if an audit logger is configured.
func (a *API) audit(r *http.Request, action string, params interface{}, start time.Time, err error) {
	if a.auditLog == nil {
		return
	}
	entry := &audit.Entry{
		Action:     action,
		Transport:  "http",
		DurationMs: time.Since(start).Milliseconds(),
	}
	if claims := a.auth.ExtractClaims(r); claims != nil {
		entry.UserID = claims.UserID
	}
	if data, e := json.Marshal(params); e == nil {
		entry.Parameters = string(data)
	}
	if err != nil {
		entry.Error = err.Error()
		entry.Status = "error"
	}
	a.auditLog.LogAsync(entry)
}

// --- Helpers ---

func jsonResp(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
