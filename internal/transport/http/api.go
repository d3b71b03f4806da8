package http

import (
	"context"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/cors"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

// DefaultHeartbeat is the keep-alive interval on push channels.
const DefaultHeartbeat = 15 * time.Second

type APIOptions struct {
	// AdminKey protects quiz management and host controls. Empty leaves them open.
	AdminKey       string
	AllowedOrigins []string
	PingMessage    string
	Heartbeat      time.Duration
	// Clock drives heartbeat tickers on push channels.
	Clock clockwork.Clock
}

// API exposes the quiz service over HTTP: REST for commands and queries, SSE and
// WebSocket for the live event stream.
type API struct {
	service *app.QuizService
	opts    APIOptions
	stream  *StreamHandler
	ws      *WSHandler
}

func NewAPI(service *app.QuizService, opts APIOptions) *API {
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = DefaultHeartbeat
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.PingMessage == "" {
		opts.PingMessage = "ping"
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	return &API{
		service: service,
		opts:    opts,
		stream:  NewStreamHandler(service, opts.Clock, opts.Heartbeat),
		ws:      NewWSHandler(service, opts.Clock, opts.Heartbeat),
	}
}

// Routes builds the complete handler tree, including CORS and request logging.
func (a *API) Routes() http.Handler {
	admin := func(h http.HandlerFunc) http.HandlerFunc {
		return requireAdmin(a.opts.AdminKey, h)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /api/ping", a.ping)
	mux.HandleFunc("POST /api/admin/login", a.adminLogin)

	mux.HandleFunc("POST /api/quizzes", admin(a.createQuiz))
	mux.HandleFunc("GET /api/quizzes", admin(a.listQuizzes))
	mux.HandleFunc("GET /api/quizzes/{id}", admin(a.getQuiz))
	mux.HandleFunc("PUT /api/quizzes/{id}", admin(a.updateQuiz))
	mux.HandleFunc("DELETE /api/quizzes/{id}", admin(a.deleteQuiz))
	mux.HandleFunc("POST /api/quizzes/{id}/duplicate", admin(a.duplicateQuiz))
	mux.HandleFunc("POST /api/quizzes/{id}/start", admin(a.startQuiz))
	mux.HandleFunc("POST /api/quizzes/{id}/next", admin(a.nextQuestion))
	mux.HandleFunc("POST /api/quizzes/{id}/stop", admin(a.stopQuiz))

	mux.HandleFunc("POST /api/join/{code}", a.joinQuiz)
	mux.HandleFunc("POST /api/answer/{quizId}", a.submitAnswer)
	mux.HandleFunc("GET /api/state/{quizId}", a.getState)
	mux.HandleFunc("GET /api/stream/{quizId}", a.stream.ServeSSE)
	mux.HandleFunc("GET /ws", a.ws.ServeWS)

	c := cors.New(cors.Options{
		AllowedOrigins: a.opts.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
		},
		AllowedHeaders: []string{"Content-Type", "X-Admin-Key"},
	})
	return logRequests(c.Handler(mux))
}

type okBody struct {
	OK bool `json:"ok"`
}

func (a *API) ping(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": a.opts.PingMessage})
}

func (a *API) adminLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Key string `json:"key"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	if a.opts.AdminKey != "" && !keyMatches(a.opts.AdminKey, body.Key) {
		writeError(w, domain.ErrInvalidAdminKey)
		return
	}
	writeJSON(w, http.StatusOK, okBody{OK: true})
}

func (a *API) createQuiz(w http.ResponseWriter, r *http.Request) {
	var in domain.QuizInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}
	quiz, err := a.service.CreateQuiz(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, quiz)
}

func (a *API) listQuizzes(w http.ResponseWriter, r *http.Request) {
	list, err := a.service.ListQuizzes(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) getQuiz(w http.ResponseWriter, r *http.Request) {
	quiz, err := a.service.GetQuiz(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (a *API) updateQuiz(w http.ResponseWriter, r *http.Request) {
	var in domain.QuizInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}
	quiz, err := a.service.UpdateQuiz(r.Context(), r.PathValue("id"), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (a *API) duplicateQuiz(w http.ResponseWriter, r *http.Request) {
	quiz, err := a.service.DuplicateQuiz(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, quiz)
}

func (a *API) deleteQuiz(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteQuiz(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okBody{OK: true})
}

func (a *API) startQuiz(w http.ResponseWriter, r *http.Request) {
	a.respondState(w, r, a.service.StartQuiz)
}

func (a *API) nextQuestion(w http.ResponseWriter, r *http.Request) {
	a.respondState(w, r, a.service.NextQuestion)
}

func (a *API) stopQuiz(w http.ResponseWriter, r *http.Request) {
	a.respondState(w, r, a.service.StopQuiz)
}

func (a *API) respondState(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, quizID string) (domain.LiveState, error)) {
	state, err := op(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (a *API) joinQuiz(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	res, err := a.service.JoinQuiz(r.Context(), r.PathValue("code"), body.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) submitAnswer(w http.ResponseWriter, r *http.Request) {
	var sub domain.AnswerSubmission
	if err := decodeJSON(w, r, &sub); err != nil {
		writeError(w, err)
		return
	}
	res, err := a.service.SubmitAnswer(r.Context(), r.PathValue("quizId"), sub)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) getState(w http.ResponseWriter, r *http.Request) {
	state, err := a.service.GetState(r.Context(), r.PathValue("quizId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}
