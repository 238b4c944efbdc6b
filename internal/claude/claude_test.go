package claude

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cenkalti/backoff/v4"

	"github.com/dhenderson/criticalpy/internal/graph"
)

func TestStripJSONFences_Clean(t *testing.T) {
	input := `{"edges": [], "summary": "no deps"}`
	got := stripJSONFences(input)
	if got != input {
		t.Errorf("expected unchanged, got %q", got)
	}
}

func TestStripJSONFences_WithJSONTag(t *testing.T) {
	input := "```json\n{\"edges\": []}\n```"
	got := stripJSONFences(input)
	if got != `{"edges": []}` {
		t.Errorf("expected clean JSON, got %q", got)
	}
}

func TestStripJSONFences_WithPlainFence(t *testing.T) {
	input := "```\n{\"edges\": []}\n```"
	got := stripJSONFences(input)
	if got != `{"edges": []}` {
		t.Errorf("expected clean JSON, got %q", got)
	}
}

func TestStripJSONFences_WithWhitespace(t *testing.T) {
	input := "  \n```json\n{\"edges\": []}\n```\n  "
	got := stripJSONFences(input)
	if got != `{"edges": []}` {
		t.Errorf("expected clean JSON, got %q", got)
	}
}

func TestBuildPrompt_ContainsTaskData(t *testing.T) {
	tasks := Summaries([]graph.Record{
		{ID: 1, Name: "Pour foundation", Duration: 3},
		{ID: 2, Name: "Frame walls", Duration: 5},
	})
	prompt, err := buildPrompt(tasks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(prompt, `"id": 1`) || !strings.Contains(prompt, "Pour foundation") {
		t.Error("prompt should contain task IDs and names")
	}
	if !strings.Contains(prompt, `"id": 2`) || !strings.Contains(prompt, "Frame walls") {
		t.Error("prompt should contain all tasks")
	}
	if !strings.Contains(prompt, "strong causal reason") {
		t.Error("prompt should contain dependency rules")
	}
}

func TestParseInferResult(t *testing.T) {
	raw := "```json\n" + `{
		"edges": [
			{"task_id": 2, "predecessor_id": 1, "reason": "walls sit on the foundation"}
		],
		"summary": "2 depends on 1"
	}` + "\n```"
	result, err := ParseInferResult([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Edges) != 1 {
		t.Fatalf("expected 1 edge, got %d", len(result.Edges))
	}
	if e := result.Edges[0]; e.TaskID != 2 || e.PredecessorID != 1 {
		t.Errorf("expected edge 1 -> 2, got %+v", e)
	}
	if result.Summary != "2 depends on 1" {
		t.Errorf("unexpected summary: %s", result.Summary)
	}

	if _, err := ParseInferResult([]byte("not json")); err == nil {
		t.Error("expected error for non-JSON response")
	}
}

// fakeSender replays canned responses, one per call.
type fakeSender struct {
	errs  []error
	text  string
	calls int
}

func (f *fakeSender) New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error) {
	f.calls++
	if f.calls <= len(f.errs) {
		return nil, f.errs[f.calls-1]
	}
	return &anthropic.Message{
		Content: []anthropic.ContentBlockUnion{{Type: "text", Text: f.text}},
	}, nil
}

func testClient(sender messageSender, retries int) *Client {
	c := newClient(sender, Options{MaxRetries: retries})
	c.newBackOff = func() backoff.BackOff { return backoff.NewConstantBackOff(time.Millisecond) }
	return c
}

func TestInferPredecessors_RetriesTransientErrors(t *testing.T) {
	sender := &fakeSender{
		errs: []error{errors.New("connection reset"), errors.New("connection reset")},
		text: `{"edges": [{"task_id": 2, "predecessor_id": 1, "reason": "r"}], "summary": "s"}`,
	}
	c := testClient(sender, 3)

	result, err := c.InferPredecessors(context.Background(), Summaries([]graph.Record{
		{ID: 1, Name: "A", Duration: 1},
		{ID: 2, Name: "B", Duration: 1},
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sender.calls != 3 {
		t.Errorf("expected 3 calls, got %d", sender.calls)
	}
	if len(result.Edges) != 1 {
		t.Errorf("expected 1 edge, got %d", len(result.Edges))
	}
}

func TestInferPredecessors_GivesUpAfterMaxRetries(t *testing.T) {
	boom := errors.New("connection reset")
	sender := &fakeSender{errs: []error{boom, boom, boom, boom, boom}}
	c := testClient(sender, 2)

	_, err := c.InferPredecessors(context.Background(), nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped transport error, got %v", err)
	}
	if sender.calls != 3 {
		t.Errorf("expected 1 attempt + 2 retries, got %d calls", sender.calls)
	}
}

func TestInferPredecessors_ClientErrorIsPermanent(t *testing.T) {
	sender := &fakeSender{errs: []error{&anthropic.Error{StatusCode: 400}}}
	c := testClient(sender, 3)

	if _, err := c.InferPredecessors(context.Background(), nil); err == nil {
		t.Fatal("expected error")
	}
	if sender.calls != 1 {
		t.Errorf("expected no retries for a 400, got %d calls", sender.calls)
	}
}

func TestExplainSchedule(t *testing.T) {
	sender := &fakeSender{text: "  Tasks 1, 2 and 4 drive the finish.\n"}
	c := testClient(sender, 0)

	got, err := c.ExplainSchedule(context.Background(), "table")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Tasks 1, 2 and 4 drive the finish." {
		t.Errorf("unexpected narrative %q", got)
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{errors.New("dial tcp: timeout"), true},
		{&anthropic.Error{StatusCode: 429}, true},
		{&anthropic.Error{StatusCode: 529}, true},
		{&anthropic.Error{StatusCode: 401}, false},
		{context.Canceled, false},
	}
	for _, tt := range tests {
		if got := retryable(tt.err); got != tt.want {
			t.Errorf("retryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestValidateEdges(t *testing.T) {
	records := []graph.Record{
		{ID: 1, Name: "A", Duration: 2},
		{ID: 2, Name: "B", Duration: 4, PredecessorIDs: []int{1}},
		{ID: 3, Name: "C", Duration: 1},
		{ID: 4, Name: "D", Duration: 1, PredecessorIDs: []int{2}},
	}
	edges := []Edge{
		{TaskID: 3, PredecessorID: 1}, // ok
		{TaskID: 4, PredecessorID: 3}, // ok
		{TaskID: 9, PredecessorID: 1}, // unknown task
		{TaskID: 2, PredecessorID: 9}, // unknown predecessor
		{TaskID: 3, PredecessorID: 3}, // self
		{TaskID: 2, PredecessorID: 1}, // already present
		{TaskID: 1, PredecessorID: 4}, // 1 -> 2 -> 4 -> 1
		{TaskID: 3, PredecessorID: 1}, // duplicate of accepted edge
	}

	set, err := ValidateEdges(records, edges, graph.Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(set.Accepted) != 2 {
		t.Fatalf("expected 2 accepted edges, got %+v", set.Accepted)
	}
	var reasons []string
	for _, r := range set.Rejected {
		reasons = append(reasons, r.Why)
	}
	want := []string{RejectUnknownTask, RejectUnknownPredecessor, RejectSelfEdge, RejectDuplicate, RejectCycle, RejectDuplicate}
	if !slices.Equal(reasons, want) {
		t.Errorf("rejections = %v, want %v", reasons, want)
	}

	if got := set.Records[2].PredecessorIDs; !slices.Equal(got, []int{1}) {
		t.Errorf("task 3 predecessors = %v, want [1]", got)
	}
	if got := set.Records[3].PredecessorIDs; !slices.Equal(got, []int{2, 3}) {
		t.Errorf("task 4 predecessors = %v, want [2 3]", got)
	}
	if got := set.Records[0].PredecessorIDs; len(got) != 0 {
		t.Errorf("task 1 should stay a root, got %v", got)
	}
	if _, err := graph.Build(set.Records, graph.Config{}); err != nil {
		t.Errorf("merged records should build: %v", err)
	}
	// Input records are untouched.
	if len(records[2].PredecessorIDs) != 0 {
		t.Errorf("input records were modified: %v", records[2].PredecessorIDs)
	}
}

func TestValidateEdges_InvalidBase(t *testing.T) {
	_, err := ValidateEdges([]graph.Record{
		{ID: 1, Name: "A", Duration: 1, PredecessorIDs: []int{2}},
	}, nil, graph.Config{})
	if !errors.Is(err, graph.ErrUnknownPredecessor) {
		t.Fatalf("expected ErrUnknownPredecessor, got %v", err)
	}
}
