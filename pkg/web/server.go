// Package web exposes routing, live navigation and map maintenance over
// HTTP, with server-sent events for navigation and map changes.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/paulmach/orb"

	"github.com/ritzau/wayfinder/pkg/logging"
	"github.com/ritzau/wayfinder/pkg/mapfile"
	"github.com/ritzau/wayfinder/pkg/model"
	"github.com/ritzau/wayfinder/pkg/navigation"
	"github.com/ritzau/wayfinder/pkg/pubsub"
	"github.com/ritzau/wayfinder/pkg/route"
)

// Server represents the web server
type Server struct {
	router    *mux.Router
	nav       *navigation.Navigator
	publisher pubsub.Publisher
	grid      float64
}

// NewPublisher creates the event broker shared by the navigator and the
// server, with replay configured per topic.
func NewPublisher() *pubsub.SSEPublisher {
	p := pubsub.NewSSEPublisher()
	p.ConfigureTopic(navigation.TopicNavigation, pubsub.NavigationTopic)
	p.ConfigureTopic(navigation.TopicMap, pubsub.MapTopic)
	return p
}

// NewServer creates a new web server. grid is the alignment cell used when a
// request does not name one.
func NewServer(nav *navigation.Navigator, publisher pubsub.Publisher, grid float64) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		nav:       nav,
		publisher: publisher,
		grid:      grid,
	}
	s.setupRoutes()
	return s
}

// Handler returns the router wrapped in the request-id middleware.
func (s *Server) Handler() http.Handler {
	return logging.RequestIDMiddleware(s.router)
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/subscribe/{topic}", s.handleSubscribe).Methods("GET")

	api.HandleFunc("/building", s.handleBuilding).Methods("GET")
	api.HandleFunc("/route", s.handleRoute).Methods("GET")
	api.HandleFunc("/route/export", s.handleExport).Methods("POST")

	api.HandleFunc("/navigation", s.handleStatus).Methods("GET")
	api.HandleFunc("/navigation/start", s.handleStart).Methods("POST")
	api.HandleFunc("/navigation/explore", s.handleExplore).Methods("POST")
	api.HandleFunc("/navigation/sample", s.handleSample).Methods("POST")
	api.HandleFunc("/navigation/confirm", s.handleConfirm).Methods("POST")
	api.HandleFunc("/navigation/reason", s.handleReason).Methods("POST")
	api.HandleFunc("/navigation/finish", s.handleFinish).Methods("POST")
	api.HandleFunc("/navigation/reset", s.handleReset).Methods("POST")

	api.HandleFunc("/nodes/{id}", s.handleRemoveNode).Methods("DELETE")
	api.HandleFunc("/nodes/{id}/label", s.handleLabel).Methods("PUT")
	api.HandleFunc("/map/align", s.handleAlign).Methods("POST")
	api.HandleFunc("/map/merge", s.handleMerge).Methods("POST")

	api.HandleFunc("/feedback/stats", s.handleFeedbackStats).Methods("GET")
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	topic := mux.Vars(r)["topic"]
	if topic != navigation.TopicNavigation && topic != navigation.TopicMap {
		writeError(w, r, http.StatusNotFound, fmt.Errorf("unknown topic %q", topic))
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*") // CORS support

	sub, err := s.publisher.Subscribe(r.Context(), topic)
	if err != nil {
		writeError(w, r, http.StatusServiceUnavailable, err)
		return
	}
	defer sub.Close()

	// Send initial comment to establish connection (Safari compatibility)
	fmt.Fprintf(w, ": connected\n\n")
	flush(w)

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := pubsub.WriteSSE(w, event); err != nil {
				logging.WarnContext(r.Context(), "error writing SSE event", "topic", topic, "error", err)
				return
			}
			flush(w)
		}
	}
}

func flush(w http.ResponseWriter) {
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (s *Server) handleBuilding(w http.ResponseWriter, r *http.Request) {
	sum, err := s.nav.Summary()
	if err != nil {
		writeNavError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// endpoints is the body of route and start requests.
type endpoints struct {
	From      model.NodeID `json:"from"`
	To        model.NodeID `json:"to"`
	Itinerary bool         `json:"itinerary"`
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := model.ParseNodeID(q.Get("from"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	to, err := model.ParseNodeID(q.Get("to"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	it, err := s.nav.Route(from, to)
	if err != nil {
		writeNavError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req endpoints
	if !decode(w, r, &req) {
		return
	}
	it, err := s.nav.Export(req.From, req.To)
	if err != nil {
		writeNavError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.nav.Status()
	if err != nil {
		writeNavError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req endpoints
	if !decode(w, r, &req) {
		return
	}
	var (
		st  navigation.Status
		err error
	)
	if req.Itinerary {
		st, err = s.nav.StartFromFile()
	} else {
		st, err = s.nav.Start(req.From, req.To)
	}
	if err != nil {
		writeNavError(w, r, err)
		return
	}
	logging.InfoContext(r.Context(), "navigation requested", "session", st.Session)
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleExplore(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Floor string `json:"floor"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Floor == "" {
		req.Floor = model.DefaultFloor
	}
	st, err := s.nav.Explore(req.Floor)
	if err != nil {
		writeNavError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleSample(w http.ResponseWriter, r *http.Request) {
	var req struct {
		X *float64 `json:"x"`
		Y *float64 `json:"y"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.X == nil || req.Y == nil {
		writeError(w, r, http.StatusBadRequest, errors.New("sample needs x and y"))
		return
	}
	u, err := s.nav.Sample(orb.Point{*req.X, *req.Y})
	if err != nil {
		writeNavError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Accept bool `json:"accept"`
	}
	if !decode(w, r, &req) {
		return
	}
	u, err := s.nav.Confirm(req.Accept)
	if err != nil {
		writeNavError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleReason(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
		Notes  string `json:"notes"`
		Skip   bool   `json:"skip"`
	}
	if !decode(w, r, &req) {
		return
	}
	var (
		st  navigation.Status
		err error
	)
	if req.Skip {
		st, err = s.nav.SkipReason()
	} else {
		st, err = s.nav.SubmitReason(req.Reason, req.Notes)
	}
	if err != nil {
		writeNavError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleFinish(w http.ResponseWriter, r *http.Request) {
	st, reports, err := s.nav.Finish()
	if err != nil {
		writeNavError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": st, "merges": reports})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.nav.Reset()
	w.WriteHeader(http.StatusNoContent)
}

func nodeVar(w http.ResponseWriter, r *http.Request) (model.NodeID, bool) {
	id, err := model.ParseNodeID(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return model.NodeID{}, false
	}
	return id, true
}

func (s *Server) handleRemoveNode(w http.ResponseWriter, r *http.Request) {
	id, ok := nodeVar(w, r)
	if !ok {
		return
	}
	if err := s.nav.RemoveNode(id); err != nil {
		writeNavError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLabel(w http.ResponseWriter, r *http.Request) {
	id, ok := nodeVar(w, r)
	if !ok {
		return
	}
	var req struct {
		Label string `json:"label"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := s.nav.SetLabel(id, req.Label); err != nil {
		writeNavError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAlign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Grid float64 `json:"grid"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Grid == 0 {
		req.Grid = s.grid
	}
	if req.Grid < 0 {
		writeError(w, r, http.StatusBadRequest, errors.New("grid must be positive"))
		return
	}
	moved, err := s.nav.Align(req.Grid)
	if err != nil {
		writeNavError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"grid": req.Grid, "moved": moved})
}

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Floor string `json:"floor"`
	}
	if !decode(w, r, &req) {
		return
	}
	m, err := s.nav.MergeCorridors(req.Floor)
	if err != nil {
		writeNavError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"floor":  req.Floor,
		"before": len(m.Remap),
		"after":  len(m.Points),
		"links":  len(m.Links),
	})
}

func (s *Server) handleFeedbackStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.nav.FeedbackStats()
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// decode reads a JSON body. An empty body leaves v untouched.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status >= http.StatusInternalServerError {
		logging.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	} else {
		logging.DebugContext(r.Context(), "request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeNavError maps navigator errors onto status codes.
func writeNavError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrBadNodeID),
		errors.Is(err, navigation.ErrInvalidReason),
		errors.Is(err, route.ErrEmptyRoute):
		status = http.StatusBadRequest
	case errors.Is(err, navigation.ErrUnknownNode),
		errors.Is(err, navigation.ErrNoSession):
		status = http.StatusNotFound
	case errors.Is(err, navigation.ErrNoPath),
		errors.Is(err, mapfile.ErrMalformed):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, navigation.ErrAwaitingConfirmation),
		errors.Is(err, navigation.ErrNotAwaitingConfirmation),
		errors.Is(err, navigation.ErrNotAwaitingReason),
		errors.Is(err, navigation.ErrSessionOver),
		errors.Is(err, navigation.ErrNotExploring):
		status = http.StatusConflict
	case errors.Is(err, navigation.ErrNoMap):
		status = http.StatusServiceUnavailable
	}
	writeError(w, r, status, err)
}

// Start serves on port until ctx is cancelled.
func (s *Server) Start(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logging.Info("starting web server", "url", fmt.Sprintf("http://localhost:%d", port))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}
