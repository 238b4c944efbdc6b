// Package viewer serves a computed schedule over HTTP for browser tools.
package viewer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/dhenderson/criticalpy/internal/cpm"
	"github.com/dhenderson/criticalpy/internal/export"
	"github.com/dhenderson/criticalpy/internal/loader"
)

// --- Graph types ---

type GraphNode struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Duration    int    `json:"duration"`
	EarlyStart  int    `json:"early_start"`
	EarlyFinish int    `json:"early_finish"`
	LateStart   int    `json:"late_start"`
	LateFinish  int    `json:"late_finish"`
	Slack       int    `json:"slack"`
	IsCritical  bool   `json:"is_critical"`
	WaveIndex   int    `json:"wave_index"`
}

type GraphEdge struct {
	From int `json:"from"`
	To   int `json:"to"`
}

type GraphMetadata struct {
	Source     string `json:"source"`
	CreatedAt  string `json:"created_at"`
	Finish     int    `json:"finish"`
	TotalTasks int    `json:"total_tasks"`
	TotalWaves int    `json:"total_waves"`
}

type Graph struct {
	Nodes        []GraphNode   `json:"nodes"`
	Edges        []GraphEdge   `json:"edges"`
	CriticalPath []int         `json:"critical_path"`
	Metadata     GraphMetadata `json:"metadata"`
}

// toGraph converts a Project into the normalised Graph a UI renders.
func toGraph(p *cpm.Project, source string) *Graph {
	tasks := p.Tasks()
	nodes := make([]GraphNode, 0, len(tasks))
	edges := []GraphEdge{}
	for _, t := range tasks {
		nodes = append(nodes, GraphNode{
			ID:          t.ID,
			Name:        t.Name,
			Duration:    t.Duration,
			EarlyStart:  t.EarlyStart,
			EarlyFinish: t.EarlyFinish,
			LateStart:   t.LateStart,
			LateFinish:  t.LateFinish,
			Slack:       t.Slack,
			IsCritical:  t.Critical,
			WaveIndex:   t.Wave,
		})
		for _, pred := range t.PredecessorIDs {
			edges = append(edges, GraphEdge{From: pred, To: t.ID})
		}
	}

	return &Graph{
		Nodes:        nodes,
		Edges:        edges,
		CriticalPath: p.CriticalPath(),
		Metadata: GraphMetadata{
			Source:     source,
			CreatedAt:  time.Now().UTC().Format(time.RFC3339),
			Finish:     p.Finish(),
			TotalTasks: p.Len(),
			TotalWaves: len(p.Waves()),
		},
	}
}

// --- HTTP server ---

// Server holds the schedule currently on display. POST /graph replaces it
// with one computed from a JSON task list.
type Server struct {
	cfg    cpm.Config
	dot    export.DOTOptions
	logger *slog.Logger
	// maxBody caps the size of a POST /graph body.
	maxBody int64

	mu      sync.RWMutex
	project *cpm.Project
	graph   *Graph
}

// NewServer creates a Server showing p, which may be nil.
func NewServer(p *cpm.Project, source string, cfg cpm.Config, dot export.DOTOptions, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{cfg: cfg, dot: dot, logger: logger, maxBody: defaultMaxBody}
	if p != nil {
		s.set(p, source)
	}
	return s
}

func (s *Server) set(p *cpm.Project, source string) *Graph {
	g := toGraph(p, source)
	s.mu.Lock()
	s.project = p
	s.graph = g
	s.mu.Unlock()
	return g
}

func (s *Server) current() (*cpm.Project, *Graph) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.project, s.graph
}

const defaultMaxBody = 8 << 20

func (s *Server) handlePostGraph(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, fmt.Sprintf("task list exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "read body: "+err.Error(), http.StatusBadRequest)
		return
	}

	records, err := loader.ReadJSON(data, "request")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	p, err := cpm.New(records, s.cfg)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	g := s.set(p, r.URL.Query().Get("source"))
	s.logger.Info("Schedule replaced.", "tasks", p.Len(), "finish", p.Finish())

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(g)
}

func (s *Server) handleGetGraph(w http.ResponseWriter, r *http.Request) {
	_, g := s.current()
	if g == nil {
		http.Error(w, "no graph loaded", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(g)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	p, _ := s.current()
	if p == nil {
		http.Error(w, "no graph loaded", http.StatusNotFound)
		return
	}

	var err error
	switch r.URL.Path {
	case "/schedule.csv":
		w.Header().Set("Content-Type", "text/csv")
		err = export.WriteScheduleCSV(w, p)
	case "/schedule.dot":
		w.Header().Set("Content-Type", "text/vnd.graphviz")
		err = export.WriteDOT(w, p, s.dot)
	}
	if err != nil {
		s.logger.Warn("Export failed.", "path", r.URL.Path, "error", err)
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/graph", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			s.handlePostGraph(w, r)
		case http.MethodGet:
			s.handleGetGraph(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("GET /schedule.csv", s.handleExport)
	mux.HandleFunc("GET /schedule.dot", s.handleExport)

	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
// ready, if non-nil, receives the bound address once listening.
func (s *Server) ListenAndServe(ctx context.Context, addr string, ready chan<- string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	s.logger.Info("Viewer listening.", "addr", ln.Addr().String())
	if ready != nil {
		ready <- ln.Addr().String()
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
