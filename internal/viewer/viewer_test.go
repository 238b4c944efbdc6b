package viewer

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhenderson/criticalpy/internal/cpm"
	"github.com/dhenderson/criticalpy/internal/export"
	"github.com/dhenderson/criticalpy/internal/graph"
)

func testProject(t *testing.T) *cpm.Project {
	t.Helper()
	p, err := cpm.New([]graph.Record{
		{ID: 1, Name: "A", Duration: 3},
		{ID: 2, Name: "B", Duration: 2, PredecessorIDs: []int{1}},
	}, cpm.Config{})
	require.NoError(t, err)
	return p
}

func TestGetGraph(t *testing.T) {
	s := NewServer(testProject(t), "chain.csv", cpm.Config{}, export.DOTOptions{}, nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/graph")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var g Graph
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&g))
	assert.Len(t, g.Nodes, 2)
	assert.Equal(t, []GraphEdge{{From: 1, To: 2}}, g.Edges)
	assert.Equal(t, []int{1, 2}, g.CriticalPath)
	assert.Equal(t, 5, g.Metadata.Finish)
	assert.Equal(t, "chain.csv", g.Metadata.Source)
	assert.Equal(t, 4, g.Nodes[1].EarlyStart)
}

func TestGetGraph_Empty(t *testing.T) {
	ts := httptest.NewServer(NewServer(nil, "", cpm.Config{}, export.DOTOptions{}, nil).Handler())
	defer ts.Close()

	for _, path := range []string{"/graph", "/schedule.csv", "/schedule.dot"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}
}

func TestPostGraph(t *testing.T) {
	s := NewServer(nil, "", cpm.Config{Sinks: cpm.SingleSink}, export.DOTOptions{}, nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	body := `[{"id": 1, "name": "A", "duration": 2},
		{"id": 2, "name": "B", "duration": 4, "predecessors": [1]}]`
	resp, err := http.Post(ts.URL+"/graph?source=upload", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	p, g := s.current()
	require.NotNil(t, p)
	assert.Equal(t, 6, p.Finish())
	assert.Equal(t, "upload", g.Metadata.Source)

	resp, err = http.Get(ts.URL + "/schedule.csv")
	require.NoError(t, err)
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(data), "2,B,4,3,6,3,6,0,true")
}

func TestPostGraph_Errors(t *testing.T) {
	s := NewServer(testProject(t), "chain.csv", cpm.Config{Sinks: cpm.SingleSink}, export.DOTOptions{}, nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	tests := []struct {
		name string
		body string
		code int
	}{
		{"malformed", `[{"id": "x"}]`, http.StatusBadRequest},
		{"cycle", `[{"id": 1, "name": "A", "duration": 1, "predecessors": [1]}]`, http.StatusUnprocessableEntity},
		{"two sinks", `[{"id": 1, "name": "A", "duration": 1}, {"id": 2, "name": "B", "duration": 1}]`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+"/graph", "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tt.code, resp.StatusCode)
		})
	}

	// A rejected upload leaves the previous schedule in place.
	p, _ := s.current()
	assert.Equal(t, 5, p.Finish())
}

func TestPostGraph_BodyTooLarge(t *testing.T) {
	s := NewServer(testProject(t), "chain.csv", cpm.Config{}, export.DOTOptions{}, nil)
	s.maxBody = 64
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	// Valid JSON padded past the limit must not be truncated into a parse error.
	body := `[{"id": 1, "name": "` + strings.Repeat("A", 128) + `", "duration": 1}]`
	resp, err := http.Post(ts.URL+"/graph", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)

	p, _ := s.current()
	assert.Equal(t, 5, p.Finish())
}

func TestScheduleDOT(t *testing.T) {
	s := NewServer(testProject(t), "", cpm.Config{}, export.DOTOptions{HighlightColor: "#FF0000"}, nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/schedule.dot")
	require.NoError(t, err)
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	assert.True(t, strings.HasPrefix(string(data), "digraph G {"))
	assert.Contains(t, string(data), `fillcolor="#FF0000"`)
}

func TestMethodNotAllowed(t *testing.T) {
	ts := httptest.NewServer(NewServer(nil, "", cpm.Config{}, export.DOTOptions{}, nil).Handler())
	defer ts.Close()

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/graph", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestListenAndServe_ShutsDownOnCancel(t *testing.T) {
	s := NewServer(testProject(t), "", cpm.Config{}, export.DOTOptions{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan string, 1)
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0", ready) }()

	addr := <-ready
	resp, err := http.Get("http://" + addr + "/graph")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	assert.NoError(t, <-done)
}
