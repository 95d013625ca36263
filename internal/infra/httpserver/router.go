package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/bryanwahyu/apr-reconciler/internal/application"
	appreview "github.com/bryanwahyu/apr-reconciler/internal/application/review"
	"github.com/bryanwahyu/apr-reconciler/internal/domain/report"
	"github.com/bryanwahyu/apr-reconciler/internal/domain/review"
	"github.com/bryanwahyu/apr-reconciler/internal/infra/session"
	"github.com/bryanwahyu/apr-reconciler/internal/logger"
	"github.com/bryanwahyu/apr-reconciler/internal/middleware"
)

type Options struct {
	AllowedOrigins []string
	APIKeys        map[string]string
	Health         map[string]middleware.HealthChecker
	MaxUploadBytes int64
	Clock          application.Clock
}

type Router struct {
	sessions  *session.Store
	reviewSvc *appreview.Service
	metrics   *middleware.Metrics
	limiter   *middleware.RateLimiter
	opts      Options
}

func NewRouter(sessions *session.Store, reviewSvc *appreview.Service, metrics *middleware.Metrics, limiter *middleware.RateLimiter, opts Options) http.Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 64 << 20
	}
	if opts.Clock == nil {
		opts.Clock = application.SystemClock{}
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	r := &Router{sessions: sessions, reviewSvc: reviewSvc, metrics: metrics, limiter: limiter, opts: opts}

	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(metrics.MetricsMiddleware)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", middleware.RequestIDHeader},
		ExposedHeaders:   []string{"Content-Disposition", middleware.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	mux.Get("/health", middleware.HealthHandler(opts.Health))
	mux.Get("/ready", middleware.ReadinessHandler)
	mux.Get("/live", middleware.LivenessHandler)
	mux.Get("/metrics", metrics.Handler)

	mux.Route("/v1/sessions", func(rt chi.Router) {
		rt.Use(middleware.APIKeyAuth(opts.APIKeys))

		rt.Post("/", r.wrap(r.handleCreateSession))
		rt.Route("/{id}", func(rs chi.Router) {
			rs.Get("/", r.wrap(r.handleGetSession))
			rs.Delete("/", r.wrap(r.handleDeleteSession))
			rs.Put("/primary", r.wrap(r.handleSetPrimary))
			rs.Post("/supporting", r.wrap(r.handleAddSupporting))
			rs.Delete("/supporting/{index}", r.wrap(r.handleRemoveSupporting))
			rs.With(limiter.Middleware).Post("/analyze", r.wrap(r.handleAnalyze))
			rs.Get("/report", r.wrap(r.handleReport))
			rs.Get("/report/download", r.wrap(r.handleDownload))
			rs.Get("/report/html", r.wrap(r.handleReportHTML))
			rs.Get("/progress", r.handleProgress)
		})
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// badRequest is a client error that is not a domain validation failure.
type badRequest struct{ msg string }

func (e *badRequest) Error() string { return e.msg }

var errNoReport = errors.New("no report yet")

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		var (
			ve *review.ValidationError
			br *badRequest
		)
		switch {
		case errors.As(err, &ve):
			code := http.StatusBadRequest
			if ve.TooLarge {
				code = http.StatusRequestEntityTooLarge
			}
			http.Error(w, ve.Message, code)
		case errors.As(err, &br):
			http.Error(w, br.msg, http.StatusBadRequest)
		case errors.Is(err, review.ErrSessionNotFound), errors.Is(err, errNoReport):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, review.ErrAnalysisInProgress):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, review.ErrPrimaryMissing):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			logger.WithContext(req.Context()).Error("http.handler.failed", "path", req.URL.Path, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(v)
}

func (r *Router) session(req *http.Request) (*session.Session, error) {
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateSessionID(id); err != nil {
		return nil, &badRequest{msg: err.Error()}
	}
	return r.sessions.Get(id)
}

// POST /v1/sessions
func (r *Router) handleCreateSession(w http.ResponseWriter, req *http.Request) error {
	sess := r.sessions.Create()
	r.metrics.IncrementSessions()
	return writeJSON(w, http.StatusCreated, sess.Snapshot())
}

// GET /v1/sessions/{id}
func (r *Router) handleGetSession(w http.ResponseWriter, req *http.Request) error {
	sess, err := r.session(req)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, sess.Snapshot())
}

// DELETE /v1/sessions/{id}
func (r *Router) handleDeleteSession(w http.ResponseWriter, req *http.Request) error {
	sess, err := r.session(req)
	if err != nil {
		return err
	}
	if sess.Snapshot().Analyzing {
		return review.ErrAnalysisInProgress
	}
	r.sessions.Delete(sess.ID)
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// PUT /v1/sessions/{id}/primary  (multipart field "file")
func (r *Router) handleSetPrimary(w http.ResponseWriter, req *http.Request) error {
	sess, err := r.session(req)
	if err != nil {
		return err
	}
	if err := r.parseMultipart(w, req); err != nil {
		return err
	}
	headers := req.MultipartForm.File["file"]
	if len(headers) == 0 {
		return sess.SetPrimary(nil)
	}
	hdr := headers[0]
	// reject by declared size before reading the part
	if hdr.Size > review.MaxPrimaryBytes {
		return sess.SetPrimary(&review.FileHandle{Name: hdr.Filename, Size: hdr.Size})
	}
	f, err := readUpload(hdr)
	if err != nil {
		return err
	}
	if err := sess.SetPrimary(&f); err != nil {
		return err
	}
	logger.WithContext(req.Context()).Info("session.primary.set", "session_id", sess.ID, "file", f.Name, "bytes", f.Size)
	return writeJSON(w, http.StatusOK, sess.Snapshot())
}

// POST /v1/sessions/{id}/supporting  (multipart field "files", repeated)
func (r *Router) handleAddSupporting(w http.ResponseWriter, req *http.Request) error {
	sess, err := r.session(req)
	if err != nil {
		return err
	}
	if err := r.parseMultipart(w, req); err != nil {
		return err
	}
	headers := req.MultipartForm.File["files"]
	if len(headers) == 0 {
		return &badRequest{msg: "no files in field \"files\""}
	}
	files := make([]review.FileHandle, 0, len(headers))
	for _, hdr := range headers {
		f, err := readUpload(hdr)
		if err != nil {
			return err
		}
		files = append(files, f)
	}
	if err := sess.AddSupporting(files...); err != nil {
		return err
	}
	logger.WithContext(req.Context()).Info("session.supporting.added", "session_id", sess.ID, "count", len(files))
	return writeJSON(w, http.StatusOK, sess.Snapshot())
}

// DELETE /v1/sessions/{id}/supporting/{index}
func (r *Router) handleRemoveSupporting(w http.ResponseWriter, req *http.Request) error {
	sess, err := r.session(req)
	if err != nil {
		return err
	}
	idx, err := middleware.ParseIndex(chi.URLParam(req, "index"))
	if err != nil {
		return &badRequest{msg: err.Error()}
	}
	if err := sess.RemoveSupporting(idx); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, sess.Snapshot())
}

// POST /v1/sessions/{id}/analyze
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	sess, err := r.session(req)
	if err != nil {
		return err
	}
	// Run di background; client pantau lewat /progress atau GET session.
	if err := r.reviewSvc.Start(sess); err != nil {
		return err
	}
	logger.WithContext(req.Context()).Info("session.analysis.started", "session_id", sess.ID)
	return writeJSON(w, http.StatusAccepted, sess.Snapshot())
}

type reportResponse struct {
	Text   string                `json:"text"`
	Blocks []report.Block        `json:"blocks"`
	Error  *review.AnalysisError `json:"error,omitempty"`
}

func (r *Router) finishedReport(req *http.Request) (review.Result, error) {
	sess, err := r.session(req)
	if err != nil {
		return review.Result{}, err
	}
	res, ok := sess.Report()
	if !ok {
		return review.Result{}, errNoReport
	}
	return res, nil
}

// GET /v1/sessions/{id}/report
func (r *Router) handleReport(w http.ResponseWriter, req *http.Request) error {
	res, err := r.finishedReport(req)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, reportResponse{
		Text:   res.Text,
		Blocks: report.Render(res.Text),
		Error:  res.Err,
	})
}

// GET /v1/sessions/{id}/report/download
func (r *Router) handleDownload(w http.ResponseWriter, req *http.Request) error {
	res, err := r.finishedReport(req)
	if err != nil {
		return err
	}
	name := report.DownloadName(r.opts.Clock.Now())
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	_, err = io.WriteString(w, report.ToPlainText(res.Text))
	return err
}

// GET /v1/sessions/{id}/report/html
func (r *Router) handleReportHTML(w http.ResponseWriter, req *http.Request) error {
	res, err := r.finishedReport(req)
	if err != nil {
		return err
	}
	body, err := report.ToHTML(res.Text)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err = w.Write(body)
	return err
}

func (r *Router) parseMultipart(w http.ResponseWriter, req *http.Request) error {
	req.Body = http.MaxBytesReader(w, req.Body, r.opts.MaxUploadBytes)
	if err := req.ParseMultipartForm(32 << 20); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return &review.ValidationError{
				Field:    "upload",
				Message:  fmt.Sprintf("Upload too large (max %d bytes per request).", mbe.Limit),
				TooLarge: true,
			}
		}
		return &badRequest{msg: "invalid multipart form: " + err.Error()}
	}
	return nil
}

func readUpload(hdr *multipart.FileHeader) (review.FileHandle, error) {
	src, err := hdr.Open()
	if err != nil {
		return review.FileHandle{}, fmt.Errorf("open upload %s: %w", hdr.Filename, err)
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return review.FileHandle{}, fmt.Errorf("read upload %s: %w", hdr.Filename, err)
	}
	return review.FileHandle{
		Name:        middleware.SanitizeFilename(hdr.Filename),
		ContentType: hdr.Header.Get("Content-Type"),
		Size:        int64(len(data)),
		Data:        data,
	}, nil
}

