package http

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/aretw0/triage/internal/logging"
	"github.com/aretw0/triage/pkg/adapters/memory"
	"github.com/aretw0/triage/pkg/codec"
	"github.com/aretw0/triage/pkg/domain"
	"github.com/aretw0/triage/pkg/dsl"
	"github.com/aretw0/triage/pkg/observability"
	"github.com/aretw0/triage/pkg/session"
	"github.com/aretw0/triage/pkg/validator"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func printerDoc() *domain.Document {
	return dsl.New("printer").
		Start("1", "Printer offline").Go("2").
		Question("2", "Is it powered?", "Check the LED.").Yes("3").No("4").
		End("3", "Reinstall the driver").
		End("4", "Switch it on").
		Document()
}

type fixture struct {
	handler http.Handler
	server  *Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := observability.New(reg)
	docs := memory.NewDocuments(printerDoc())
	mgr := session.NewManager(memory.NewStore(), docs, session.WithLifecycleHooks(m.Hooks()))
	srv := NewServer(mgr, docs, WithMetrics(m, reg))
	return &fixture{handler: srv.Handler(), server: srv}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case []byte:
		buf.Write(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestServer_Health(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestServer_Workflows(t *testing.T) {
	f := newFixture(t)

	doc := dsl.New("ignored").
		Start("1", "Slow boot").Go("2").
		End("2", "Defragment").
		Document()
	data, err := codec.Encode(doc, codec.FormatJSON)
	require.NoError(t, err)

	w := f.do(t, http.MethodPut, "/workflows/boot?folder=pc", data)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[workflowResponse](t, w)
	assert.Equal(t, "boot", resp.Metadata.Name)
	assert.Equal(t, "pc", resp.Metadata.Folder)
	assert.True(t, resp.Report.Executable())

	w = f.do(t, http.MethodGet, "/workflows/?folder=pc", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]domain.DocumentMetadata](t, w)
	require.Len(t, list, 1)
	assert.Equal(t, "boot", list[0].Name)

	w = f.do(t, http.MethodGet, "/workflows/boot?folder=pc&format=yaml", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/yaml", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "title: Slow boot")

	w = f.do(t, http.MethodGet, "/workflows/boot/graph?folder=pc", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "1 --> 2")

	w = f.do(t, http.MethodDelete, "/workflows/boot?folder=pc", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = f.do(t, http.MethodGet, "/workflows/boot?folder=pc", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decode[errorBody](t, w).Code)
}

func TestServer_PutMalformed(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPut, "/workflows/bad", []byte(`{"nodes": []}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "bad_request", decode[errorBody](t, w).Code)
}

func TestServer_Validate(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/workflows/printer/validate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	report := decode[validator.Report](t, w)
	assert.Equal(t, "1", report.StartNodeID)
	assert.Empty(t, report.Findings)

	body := []byte(`{"nodes":[{"id":"a","kind":"info","title":"A","content":"x"},{"id":"b","kind":"info","title":"B","content":"y"}],
		"edges":[{"id":"ab","source":"a","target":"b"},{"id":"ba","source":"b","target":"a"}]}`)
	w = f.do(t, http.MethodPost, "/workflows/anything/validate", body)
	require.Equal(t, http.StatusOK, w.Code)
	report = decode[validator.Report](t, w)
	assert.True(t, report.Has(validator.CodeNoStartNode))

	w = f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `triage_validation_findings_total{code="NoStartNode",severity="error"} 1`)
}

func TestServer_SessionLifecycle(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/sessions/", startRequest{Workflow: "printer"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	sess := decode[domain.Session](t, w)
	base := "/sessions/" + sess.ID

	w = f.do(t, http.MethodPost, base+"/answers", answerRequest{})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[answerResponse](t, w)
	require.NotNil(t, resp.Diff)
	assert.Equal(t, "2", *resp.Diff.CurrentNodeID)

	maybe := "maybe"
	w = f.do(t, http.MethodPost, base+"/answers", answerRequest{Input: &maybe})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "invalid_answer", decode[errorBody](t, w).Code)

	w = f.do(t, http.MethodPost, base+"/pause", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = f.do(t, http.MethodPost, base+"/answers", answerRequest{Answer: &domain.Answer{Kind: domain.AnswerConfirm, Confirmed: true}})
	assert.Equal(t, http.StatusConflict, w.Code)
	w = f.do(t, http.MethodPost, base+"/resume", nil)
	require.Equal(t, http.StatusOK, w.Code)

	yes := "yes"
	w = f.do(t, http.MethodPost, base+"/answers", answerRequest{Input: &yes})
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, base+"/graph", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "class 3 current;")

	w = f.do(t, http.MethodGet, base+"/trail", nil)
	require.Equal(t, http.StatusOK, w.Code)
	trail := decode[[]domain.AuditEntry](t, w)
	require.Len(t, trail, 2)
	assert.Equal(t, "2", trail[1].NodeID)
	assert.Equal(t, domain.Yes(), trail[1].Answer)

	w = f.do(t, http.MethodPost, base+"/reset", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", decode[domain.Session](t, w).State.CurrentNodeID)

	w = f.do(t, http.MethodGet, "/metrics", nil)
	assert.Contains(t, w.Body.String(), `triage_node_visits_total{kind="question",node_id="2"} 1`)

	w = f.do(t, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = f.do(t, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_StartErrors(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/sessions/", startRequest{Workflow: "missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodPost, "/sessions/", startRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/sessions/", map[string]string{"workflow": "printer", "bogus": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "unknown fields are rejected")

	loop := dsl.New("loop").
		Info("A", "A", "a").Go("B").
		Info("B", "B", "b").Go("A").
		Document()
	data, err := codec.Encode(loop, codec.FormatJSON)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPut, "/workflows/loop", data).Code)

	w = f.do(t, http.MethodPost, "/sessions/", startRequest{Workflow: "loop"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "not_executable", decode[errorBody](t, w).Code)
}

func TestServer_Editing(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/workflows/printer/nodes", addNodeRequest{
		Kind:   domain.KindWarning,
		Fields: map[string]any{"title": "Hot fuser", "warning": map[string]any{"level": "caution", "requiresAck": true}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var added struct {
		Result domain.Node `json:"result"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &added))
	assert.Equal(t, "5", added.Result.ID)

	w = f.do(t, http.MethodPost, "/workflows/printer/edges", connectRequest{Source: "4", Target: "5"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(t, http.MethodPost, "/workflows/printer/edges", connectRequest{Source: "4", Target: "ghost"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPatch, "/workflows/printer/nodes/5", map[string]any{"content": "Wait ten minutes."})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(t, http.MethodPatch, "/workflows/printer/nodes/5", map[string]any{"titel": "typo"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPatch, "/workflows/printer/nodes/404", map[string]any{"title": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodPost, "/workflows/printer/nodes/duplicate", duplicateRequest{IDs: []string{"3"}, Offset: domain.Position{X: 40}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(t, http.MethodGet, "/workflows/printer", nil)
	require.Equal(t, http.StatusOK, w.Code)
	doc, err := codec.Decode(w.Body.Bytes(), codec.FormatJSON)
	require.NoError(t, err)
	assert.Len(t, doc.Nodes, 6)
	assert.Equal(t, 7, doc.NodeCounter)

	w = f.do(t, http.MethodDelete, "/workflows/printer/edges/e4-5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = f.do(t, http.MethodDelete, "/workflows/printer/nodes/6", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = f.do(t, http.MethodDelete, "/workflows/printer/nodes/6", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStreamManager(t *testing.T) {
	sm := NewStreamManager(nil)
	ch, cancel := sm.Subscribe("s1")

	sm.Broadcast("s1", "hello")
	sm.Broadcast("other", "ignored")
	assert.Equal(t, "hello", <-ch)

	cancel()
	_, open := <-ch
	assert.False(t, open)
	assert.Empty(t, sm.subscribers)
}

func TestStreamManager_LogsDroppedMessages(t *testing.T) {
	var logs bytes.Buffer
	srv := NewServer(nil, memory.NewDocuments(), WithLogger(logging.NewWith(&logs, logging.FormatText, slog.LevelDebug)))
	_, cancel := srv.Streams.Subscribe("s1")
	defer cancel()

	for i := range 11 {
		srv.Streams.Broadcast("s1", strconv.Itoa(i))
	}
	assert.Equal(t, 1, strings.Count(logs.String(), "client buffer full"))
	assert.Contains(t, logs.String(), "session_id=s1")
}

func TestStreamFilter(t *testing.T) {
	status := domain.StatusCompleted
	data, err := json.Marshal(domain.StateDiff{SessionID: "s", Status: &status})
	require.NoError(t, err)
	msg := string(data)

	assert.True(t, matches(msg, nil))
	assert.True(t, matches(msg, []string{"trail", " status"}))
	assert.False(t, matches(msg, []string{"answers", "current"}))
	assert.True(t, strings.HasPrefix(msg, "{"))
}
