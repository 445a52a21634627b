package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coolboyler/md2word/delivery"
	"github.com/coolboyler/md2word/document"
	"github.com/coolboyler/md2word/editor"
	"github.com/coolboyler/md2word/generator"
)

const (
	maxBodyBytes = 4 << 20

	// DefaultSessionTTL is how long an untouched session survives.
	DefaultSessionTTL = time.Hour
)

// Server exposes independent editor sessions over HTTP/JSON.
type Server struct {
	gateway  editor.Transformer
	outbox   *delivery.Outbox
	logger   *log.Logger
	ctrlOpts []editor.Option
	store    *sessionStore
}

type session struct {
	id       string
	ctrl     *editor.Controller
	slot     *delivery.Slot
	lastUsed time.Time
}

type sessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]*session
}

func newStore() *sessionStore {
	return &sessionStore{
		ttl:      DefaultSessionTTL,
		now:      time.Now,
		sessions: make(map[string]*session),
	}
}

func (s *sessionStore) set(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.lastUsed = s.now()
	s.sessions[sess.id] = sess
}

// get 同时刷新会话的最近使用时间。
func (s *sessionStore) get(id string) (*session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if ok {
		sess.lastUsed = s.now()
	}
	return sess, ok
}

// sweep drops sessions idle longer than the TTL. A session whose operation is
// still processing is kept until it settles.
func (s *sessionStore) sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	now := s.now()
	for id, sess := range s.sessions {
		if now.Sub(sess.lastUsed) <= s.ttl {
			continue
		}
		if sess.ctrl.State().Status == editor.StatusProcessing {
			continue
		}
		delete(s.sessions, id)
		n++
	}
	return n
}

func (s *sessionStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// New builds a server. ctrlOpts are applied to every session's controller.
func New(gateway editor.Transformer, outbox *delivery.Outbox, logger *log.Logger, ctrlOpts ...editor.Option) (*Server, error) {
	if gateway == nil {
		return nil, errors.New("gateway required")
	}
	if outbox == nil {
		outbox = delivery.NewOutbox(0)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		gateway:  gateway,
		outbox:   outbox,
		logger:   logger,
		ctrlOpts: ctrlOpts,
		store:    newStore(),
	}, nil
}

// SetSessionTTL changes how long idle sessions are kept; ttl <= 0 keeps the default.
func (s *Server) SetSessionTTL(ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	s.store.mu.Lock()
	s.store.ttl = ttl
	s.store.mu.Unlock()
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/sessions", s.handleSessionCreate)
	mux.HandleFunc("/api/sessions/", s.handleSessionByID)
	mux.HandleFunc("/api/downloads/", s.handleDownload)
	return logMiddleware(s.logger, mux)
}

// SweepLoop drops expired downloads and idle sessions until ctx is done.
func (s *Server) SweepLoop(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.sweep()
		}
	}
}

func (s *Server) sweep() {
	if n := s.outbox.Sweep(); n > 0 {
		s.logger.Printf("[http] dropped %d expired downloads", n)
	}
	if n := s.store.sweep(); n > 0 {
		s.logger.Printf("[http] dropped %d idle sessions", n)
	}
}

// --- Handlers ---

type bufferReq struct {
	Markdown string `json:"markdown"`
}

type stateResp struct {
	SessionID string         `json:"session_id"`
	State     editor.State   `json:"state"`
	Download  string         `json:"download,omitempty"`
	Events    []editor.Event `json:"events,omitempty"`
}

func (s *Server) newSession(markdown *string) (*session, error) {
	slot := s.outbox.Slot()
	opts := append([]editor.Option(nil), s.ctrlOpts...)
	if markdown != nil {
		opts = append(opts, editor.WithBuffer(*markdown))
	}
	ctrl, err := editor.New(s.gateway, slot, opts...)
	if err != nil {
		return nil, err
	}
	sess := &session{id: uuid.NewString(), ctrl: ctrl, slot: slot}
	s.store.set(sess)
	return sess, nil
}

func (s *Server) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Markdown *string `json:"markdown"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sess, err := s.newSession(req.Markdown)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Location", "/api/sessions/"+sess.id)
	writeJSON(w, http.StatusCreated, s.stateOf(sess))
}

func (s *Server) handleSessionByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/sessions/"), "/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		http.NotFound(w, r)
		return
	}
	sess, ok := s.store.get(id)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	switch action {
	case "":
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, s.stateOf(sess))
	case "buffer":
		s.handleBuffer(w, r, sess)
	case "repair", "export", "convert":
		s.handleTrigger(w, r, sess, action)
	case "preview":
		s.handlePreview(w, r, sess)
	case "events":
		s.handleEvents(w, r, sess)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleBuffer(w http.ResponseWriter, r *http.Request, sess *session) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var markdown string
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "text/html":
		markdown, err = document.ImportHTML(string(body))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	case "text/markdown", "text/plain":
		markdown = string(body)
	default:
		var req bufferReq
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		markdown = req.Markdown
	}

	sess.ctrl.SetBuffer(markdown)
	writeJSON(w, http.StatusOK, s.stateOf(sess))
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request, sess *session, action string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	kind, err := generator.ParseKind(action)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	// the operation outlives this request and is never cancelled
	ctx := context.WithoutCancel(r.Context())
	if _, err := sess.ctrl.Trigger(ctx, kind); err != nil {
		if errors.Is(err, editor.ErrBusy) {
			writeJSON(w, http.StatusConflict, s.stateOf(sess))
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusAccepted, s.stateOf(sess))
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request, sess *session) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	out, err := document.RenderPreview(sess.ctrl.Buffer())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, out)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request, sess *session) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var since int64
	if v := r.URL.Query().Get("since"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			http.Error(w, "since must be an integer", http.StatusBadRequest)
			return
		}
		since = n
	}
	resp := s.stateOf(sess)
	resp.Events = sess.ctrl.Events(since)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	token := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/downloads/"), "/")
	a, err := s.outbox.Take(token)
	if err != nil {
		http.Error(w, "download not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", a.MediaType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(a.Data)))
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(a.Data)
}

// --- Helpers ---

func (s *Server) stateOf(sess *session) stateResp {
	resp := stateResp{SessionID: sess.id, State: sess.ctrl.State()}
	if token := sess.slot.Pending(); token != "" {
		resp.Download = "/api/downloads/" + token
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logMiddleware(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		path := r.URL.Path
		if path == "" {
			path = "/"
		}
		logger.Printf("[http] %s %s %d %s", r.Method, path, rec.status, time.Since(start).Round(time.Millisecond))
	})
}
