package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/askloop/askloop/internal/middleware"
	"github.com/askloop/askloop/internal/services"
)

// Router wires the HTTP verbs onto the service layer. Create/list/update/
// delete map onto POST/GET/PUT/DELETE of /api/questions; responses and
// skips arrive through the per-question response route.
type Router struct {
	questions *services.QuestionService
	responses *services.ResponseService
	analytics *services.AnalyticsService
	auth      *services.AuthService
	speech    *services.SpeechService
}

func NewRouter(
	questions *services.QuestionService,
	responses *services.ResponseService,
	analytics *services.AnalyticsService,
	auth *services.AuthService,
	speech *services.SpeechService,
) *Router {
	return &Router{
		questions: questions,
		responses: responses,
		analytics: analytics,
		auth:      auth,
		speech:    speech,
	}
}

func (rt *Router) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/auth/login", rt.handleLogin)            // POST
	mux.HandleFunc("/api/questions", rt.handleQuestions)         // POST, GET, PUT, DELETE
	mux.HandleFunc("/api/questions/", rt.handleQuestionScoped)   // PUT /{id}, POST /{id}/response
	mux.HandleFunc("/api/stats", rt.handleStats)                 // GET
	mux.HandleFunc("/api/speech/transcribe", rt.handleTranscribe) // POST
	mux.HandleFunc("/api/speech/tts", rt.handleTTS)              // POST
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps service error codes onto HTTP statuses and emits the
// message as {"error": ...}.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if se, ok := services.AsServiceError(err); ok {
		switch se.Code {
		case services.ErrorInvalid:
			status = http.StatusBadRequest
		case services.ErrorUnauthorized:
			status = http.StatusUnauthorized
		case services.ErrorNotFound:
			status = http.StatusNotFound
		case services.ErrorConflict:
			status = http.StatusConflict
		case services.ErrorBadGateway:
			status = http.StatusBadGateway
		}
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	if !middleware.IsAdmin(r.Context()) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "admin token required"})
		return false
	}
	return true
}

// POST /api/auth/login
func (rt *Router) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, services.NewInvalidError(err.Error()))
		return
	}
	res, err := rt.auth.Login(req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (rt *Router) handleQuestions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		rt.createQuestions(w, r)
	case http.MethodGet:
		rt.listQuestions(w, r)
	case http.MethodPut:
		rt.updateQuestions(w, r)
	case http.MethodDelete:
		rt.deleteQuestions(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (rt *Router) createQuestions(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	var req struct {
		Questions []*services.Question `json:"questions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, services.NewInvalidError(err.Error()))
		return
	}
	created, err := rt.questions.Create(req.Questions)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"questions": created})
}

func (rt *Router) listQuestions(w http.ResponseWriter, r *http.Request) {
	scope := services.ListScope(r.URL.Query().Get("scope"))
	if scope != services.ScopeAdmin {
		scope = services.ScopeParticipant
	}
	if scope == services.ScopeAdmin && !requireAdmin(w, r) {
		return
	}
	qs, err := rt.questions.List(scope)
	if err != nil {
		// An empty survey is a normal state; clients receive 404 with a
		// distinguishable message, not a generic failure.
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"questions": qs})
}

func (rt *Router) updateQuestions(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	var req struct {
		Questions []*services.Question `json:"questions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, services.NewInvalidError(err.Error()))
		return
	}
	updated, err := rt.questions.UpdateMany(req.Questions)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"questions": updated})
}

func (rt *Router) deleteQuestions(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, services.NewInvalidError(err.Error()))
		return
	}
	if err := rt.questions.Delete(req.IDs); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": req.IDs})
}

// PUT /api/questions/{id} and POST /api/questions/{id}/response
func (rt *Router) handleQuestionScoped(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/questions/")
	parts := strings.Split(rest, "/")
	switch {
	case len(parts) == 1 && parts[0] != "":
		if r.Method != http.MethodPut {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		rt.updateOneQuestion(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "response":
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		rt.recordResponse(w, r, parts[0])
	default:
		http.NotFound(w, r)
	}
}

func (rt *Router) updateOneQuestion(w http.ResponseWriter, r *http.Request, id string) {
	if !requireAdmin(w, r) {
		return
	}
	var q services.Question
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		writeError(w, services.NewInvalidError(err.Error()))
		return
	}
	q.ID = id
	updated, err := rt.questions.UpdateOne(&q)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// recordResponse accepts {"answer": "..."} where an empty or missing
// answer registers a skip.
func (rt *Router) recordResponse(w http.ResponseWriter, r *http.Request, id string) {
	var req struct {
		Answer string `json:"answer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, services.NewInvalidError(err.Error()))
		return
	}
	if err := rt.responses.RecordResponse(id, req.Answer); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// GET /api/stats
func (rt *Router) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !requireAdmin(w, r) {
		return
	}
	stats, err := rt.analytics.Overview()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// POST /api/speech/transcribe — raw audio in, transcript out.
func (rt *Router) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	audio, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, services.NewInvalidError(err.Error()))
		return
	}
	text, err := rt.speech.Transcribe(r.Context(), audio, r.Header.Get("Content-Type"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

// POST /api/speech/tts — {"text": "..."} in, audio out.
func (rt *Router) handleTTS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, services.NewInvalidError(err.Error()))
		return
	}
	audio, ct, err := rt.speech.Synthesize(r.Context(), req.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", ct)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(audio)
}
