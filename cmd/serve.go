package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/esg-research/internal/chat"
	"github.com/sells-group/esg-research/internal/config"
	"github.com/sells-group/esg-research/internal/model"
	"github.com/sells-group/esg-research/internal/report"
	"github.com/sells-group/esg-research/internal/scorer"
	"github.com/sells-group/esg-research/internal/store"
)

const (
	requestIDHeader = "X-Request-ID"
	sessionIDHeader = "X-Session-ID"

	maxChatBody     = 64 << 10
	shutdownTimeout = 15 * time.Second
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the chat and company API over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		cfg.Server.Port = port

		env, err := initApp(ctx, config.ModeServe)
		if err != nil {
			return err
		}
		defer env.Close()

		srv := &http.Server{
			Addr: fmt.Sprintf(":%d", port),
			Handler: buildRouter(&apiServer{
				chat:     env.Chat,
				sessions: chat.NewSessions(cfg.Server.MaxSessions, cfg.Server.SessionIdle()),
				dir:      env.Directory,
				renderer: env.Renderer,
				scorer:   scorer.New(),
			}, cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("serve: shutting down")
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(sctx); err != nil {
				zap.L().Error("serve: shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("serve: listening", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

// companyDirectory is the store surface the API reads and deletes through.
type companyDirectory interface {
	List(ctx context.Context) ([]store.Entry, error)
	DeleteCompany(ctx context.Context, name string) (bool, error)
}

// apiServer holds the HTTP handlers' dependencies.
type apiServer struct {
	chat     chatHandler
	sessions *chat.Sessions
	dir      companyDirectory
	renderer *report.Renderer
	scorer   *scorer.Scorer
}

// buildRouter returns the API routes wrapped in request id, logging,
// recovery and CORS middleware.
func buildRouter(s *apiServer, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", sessionIDHeader, requestIDHeader},
		ExposedHeaders: []string{sessionIDHeader, requestIDHeader, "Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/chat", s.handleChat)
	r.Route("/companies", func(r chi.Router) {
		r.Get("/", s.handleListCompanies)
		r.Get("/{name}", s.handleGetCompany)
		r.Get("/{name}/report", s.handleReport)
		r.Delete("/{name}", s.handleDeleteCompany)
	})
	return r
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type chatResponse struct {
	SessionID string         `json:"session_id"`
	Messages  []chat.Message `json:"messages"`
}

func (s *apiServer) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.chat == nil {
		writeError(w, http.StatusServiceUnavailable, "chat is not configured")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	id := req.SessionID
	if id == "" {
		id = r.Header.Get(sessionIDHeader)
	}
	sess := s.sessions.Get(id)

	var out []chat.Message
	if sess.ID != id {
		// New conversations open with the greeting.
		out = append(out, sess.Messages()...)
	}
	replies, err := s.chat.Handle(r.Context(), sess, req.Message)
	if err != nil {
		zap.L().Error("serve: chat turn failed", zap.String("session_id", sess.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "chat failed")
		return
	}
	out = append(out, replies...)

	w.Header().Set(sessionIDHeader, sess.ID)
	writeJSON(w, http.StatusOK, chatResponse{SessionID: sess.ID, Messages: out})
}

func (s *apiServer) handleListCompanies(w http.ResponseWriter, r *http.Request) {
	entries, err := s.dir.List(r.Context())
	if err != nil {
		zap.L().Error("serve: list companies", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list companies failed")
		return
	}
	writeJSON(w, http.StatusOK, companyRows(entries))
}

type companyResponse struct {
	*model.Analysis
	Level           model.Level `json:"level"`
	Recommendations []string    `json:"recommendations"`
}

func (s *apiServer) handleGetCompany(w http.ResponseWriter, r *http.Request) {
	a, ok := s.freshAnalysis(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, companyResponse{
		Analysis:        a,
		Level:           a.Score.LevelOrDerive(),
		Recommendations: scorer.Recommendations(s.scorer.Restore(a.Score, a.Metrics)),
	})
}

func (s *apiServer) handleReport(w http.ResponseWriter, r *http.Request) {
	format := report.Markdown
	if q := r.URL.Query().Get("format"); q != "" {
		f, err := report.ParseFormat(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		format = f
	}

	a, ok := s.freshAnalysis(w, r)
	if !ok {
		return
	}
	analyses := []*model.Analysis{a}
	body, err := s.renderer.Render(r.Context(), format, analyses)
	if err != nil {
		zap.L().Error("serve: render report", zap.String("company", a.Company.Name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "render report failed")
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", s.renderer.FileName(format, analyses)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *apiServer) handleDeleteCompany(w http.ResponseWriter, r *http.Request) {
	entries, err := s.dir.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list companies failed")
		return
	}
	e, ok := findEntry(entries, companyParam(r))
	if !ok {
		writeError(w, http.StatusNotFound, "company not found")
		return
	}
	if _, err := s.dir.DeleteCompany(r.Context(), e.Company.Name); err != nil {
		zap.L().Error("serve: delete company", zap.String("company", e.Company.Name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// freshAnalysis resolves the {name} parameter to a fresh analysis, writing a
// 404 when there is none.
func (s *apiServer) freshAnalysis(w http.ResponseWriter, r *http.Request) (*model.Analysis, bool) {
	entries, err := s.dir.List(r.Context())
	if err != nil {
		zap.L().Error("serve: list companies", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list companies failed")
		return nil, false
	}
	e, ok := findEntry(entries, companyParam(r))
	if !ok || e.Analysis == nil {
		writeError(w, http.StatusNotFound, "no fresh analysis for company")
		return nil, false
	}
	return e.Analysis, true
}

func companyParam(r *http.Request) string {
	name := chi.URLParam(r, "name")
	if un, err := url.PathUnescape(name); err == nil {
		return un
	}
	return name
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("serve: request",
			zap.String("request_id", w.Header().Get(requestIDHeader)),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
