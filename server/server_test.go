package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coolboyler/md2word/delivery"
	"github.com/coolboyler/md2word/editor"
	"github.com/coolboyler/md2word/generator"
)

// stubGateway answers per kind; gate, when non-nil, blocks calls until closed.
type stubGateway struct {
	repair  string
	convert string
	err     error
	gate    chan struct{}
}

func (g *stubGateway) Execute(_ context.Context, kind generator.Kind, source string) (generator.Result, error) {
	if g.gate != nil {
		<-g.gate
	}
	if g.err != nil {
		return generator.Result{}, &generator.Failure{Op: kind, Cause: g.err}
	}
	if kind == generator.Repair {
		return generator.PostProcess(kind, g.repair, source), nil
	}
	return generator.PostProcess(kind, g.convert, source), nil
}

func newTestServer(t *testing.T, gw editor.Transformer) *httptest.Server {
	t.Helper()
	srv, err := New(gw, delivery.NewOutbox(time.Minute), log.New(io.Discard, "", 0),
		editor.WithRevertDelay(time.Hour))
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, method, url, contentType, body string) (*http.Response, stateResp) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out stateResp
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func createSession(t *testing.T, ts *httptest.Server, markdown string) stateResp {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"markdown": markdown})
	resp, st := do(t, http.MethodPost, ts.URL+"/api/sessions", "application/json", string(body))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotEmpty(t, st.SessionID)
	return st
}

func waitSettled(t *testing.T, ts *httptest.Server, id string) stateResp {
	t.Helper()
	var st stateResp
	require.Eventually(t, func() bool {
		_, st = do(t, http.MethodGet, ts.URL+"/api/sessions/"+id, "", "")
		return st.State.Status != editor.StatusProcessing
	}, 2*time.Second, 5*time.Millisecond)
	return st
}

func TestCreateSessionDefaultsToSample(t *testing.T) {
	ts := newTestServer(t, &stubGateway{})
	resp, st := do(t, http.MethodPost, ts.URL+"/api/sessions", "", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, editor.DefaultSample, st.State.Buffer)
	assert.Equal(t, editor.StatusIdle, st.State.Status)
}

func TestRepairFlow(t *testing.T) {
	ts := newTestServer(t, &stubGateway{repair: "Hello $x$."})
	st := createSession(t, ts, "Hello $x$")

	resp, trig := do(t, http.MethodPost, ts.URL+"/api/sessions/"+st.SessionID+"/repair", "", "")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Contains(t, []editor.Status{editor.StatusProcessing, editor.StatusSuccess}, trig.State.Status)

	final := waitSettled(t, ts, st.SessionID)
	assert.Equal(t, editor.StatusSuccess, final.State.Status)
	assert.Equal(t, "Hello $x$.", final.State.Buffer)
	assert.Empty(t, final.Download)
}

func TestRepairFailureKeepsBuffer(t *testing.T) {
	ts := newTestServer(t, &stubGateway{err: errors.New("network down")})
	st := createSession(t, ts, "Hello $x$")

	resp, _ := do(t, http.MethodPost, ts.URL+"/api/sessions/"+st.SessionID+"/repair", "", "")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	final := waitSettled(t, ts, st.SessionID)
	assert.Equal(t, editor.StatusError, final.State.Status)
	assert.NotEmpty(t, final.State.Message)
	assert.NotContains(t, final.State.Message, "network down")
	assert.Equal(t, "Hello $x$", final.State.Buffer)
}

func TestExportAndDownloadOnce(t *testing.T) {
	fragment := "<p>Hi <math><mi>x</mi></math></p>"
	ts := newTestServer(t, &stubGateway{convert: fragment})
	st := createSession(t, ts, "Hi $x$")

	resp, _ := do(t, http.MethodPost, ts.URL+"/api/sessions/"+st.SessionID+"/export", "", "")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	final := waitSettled(t, ts, st.SessionID)
	require.Equal(t, editor.StatusSuccess, final.State.Status)
	assert.Equal(t, "Download started!", final.State.Message)
	require.NotEmpty(t, final.Download)

	dl, err := http.Get(ts.URL + final.Download)
	require.NoError(t, err)
	data, err := io.ReadAll(dl.Body)
	dl.Body.Close()
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, dl.StatusCode)
	assert.Equal(t, "application/msword", dl.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename=document_export.doc`, dl.Header.Get("Content-Disposition"))
	assert.Equal(t, 1, strings.Count(string(data), fragment))
	assert.Contains(t, string(data), "<title>Exported Document</title>")

	again, err := http.Get(ts.URL + final.Download)
	require.NoError(t, err)
	again.Body.Close()
	assert.Equal(t, http.StatusNotFound, again.StatusCode)

	_, after := do(t, http.MethodGet, ts.URL+"/api/sessions/"+st.SessionID, "", "")
	assert.Empty(t, after.Download)
}

func TestTriggerWhileBusyConflicts(t *testing.T) {
	gate := make(chan struct{})
	ts := newTestServer(t, &stubGateway{repair: "done", gate: gate})
	st := createSession(t, ts, "draft")
	base := ts.URL + "/api/sessions/" + st.SessionID

	resp, _ := do(t, http.MethodPost, base+"/repair", "", "")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, busy := do(t, http.MethodPost, base+"/export", "", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, editor.StatusProcessing, busy.State.Status)

	close(gate)
	final := waitSettled(t, ts, st.SessionID)
	assert.Equal(t, "done", final.State.Buffer)
	assert.Empty(t, final.Download, "the ignored export never ran")
}

func TestSessionsAreIndependent(t *testing.T) {
	ts := newTestServer(t, &stubGateway{repair: "fixed"})
	a := createSession(t, ts, "a")
	b := createSession(t, ts, "b")

	do(t, http.MethodPost, ts.URL+"/api/sessions/"+a.SessionID+"/repair", "", "")
	waitSettled(t, ts, a.SessionID)

	_, sb := do(t, http.MethodGet, ts.URL+"/api/sessions/"+b.SessionID, "", "")
	assert.Equal(t, "b", sb.State.Buffer)
	assert.Equal(t, editor.StatusIdle, sb.State.Status)
}

func TestPutBuffer(t *testing.T) {
	ts := newTestServer(t, &stubGateway{})
	st := createSession(t, ts, "old")
	url := ts.URL + "/api/sessions/" + st.SessionID + "/buffer"

	resp, out := do(t, http.MethodPut, url, "application/json", `{"markdown":"# New $y$"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "# New $y$", out.State.Buffer)

	resp, out = do(t, http.MethodPut, url, "text/html; charset=utf-8", "<h1>Imported</h1><p><em>hi</em></p>")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, out.State.Buffer, "# Imported")

	resp, out = do(t, http.MethodPut, url, "text/markdown", "raw *md*")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "raw *md*", out.State.Buffer)

	resp, _ = do(t, http.MethodPut, url, "application/json", "{not json")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPreview(t *testing.T) {
	ts := newTestServer(t, &stubGateway{})
	st := createSession(t, ts, "# Title\n\n$a_1$")

	resp, err := http.Get(ts.URL + "/api/sessions/" + st.SessionID + "/preview")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, string(body), "Title</h1>")
	assert.Contains(t, string(body), `\(a_1\)`)
}

func TestEvents(t *testing.T) {
	ts := newTestServer(t, &stubGateway{repair: "x"})
	st := createSession(t, ts, "y")
	base := ts.URL + "/api/sessions/" + st.SessionID

	do(t, http.MethodPost, base+"/repair", "", "")
	waitSettled(t, ts, st.SessionID)

	_, ev := do(t, http.MethodGet, base+"/events?since=0", "", "")
	require.Len(t, ev.Events, 2)
	assert.Equal(t, editor.StatusProcessing, ev.Events[0].Status)
	assert.Equal(t, editor.StatusSuccess, ev.Events[1].Status)

	_, ev = do(t, http.MethodGet, base+"/events?since="+"1", "", "")
	assert.Len(t, ev.Events, 1)

	resp, _ := do(t, http.MethodGet, base+"/events?since=abc", "", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestNotFoundAndMethods(t *testing.T) {
	ts := newTestServer(t, &stubGateway{})
	st := createSession(t, ts, "x")

	resp, _ := do(t, http.MethodGet, ts.URL+"/api/sessions/nope", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, ts.URL+"/api/sessions/"+st.SessionID+"/repair", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, ts.URL+"/api/sessions/"+st.SessionID+"/publish", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, ts.URL+"/api/sessions", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, ts.URL+"/api/downloads/unknown", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestNewRequiresGateway(t *testing.T) {
	_, err := New(nil, nil, nil)
	assert.Error(t, err)
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestSweepDropsIdleSessions(t *testing.T) {
	gate := make(chan struct{})
	srv, err := New(&stubGateway{repair: "done", gate: gate}, delivery.NewOutbox(time.Minute),
		log.New(io.Discard, "", 0), editor.WithRevertDelay(time.Hour))
	require.NoError(t, err)
	srv.SetSessionTTL(time.Minute)

	clock := &testClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	srv.store.now = clock.Now

	idle, err := srv.newSession(nil)
	require.NoError(t, err)
	used, err := srv.newSession(nil)
	require.NoError(t, err)
	busy, err := srv.newSession(nil)
	require.NoError(t, err)
	_, err = busy.ctrl.Trigger(context.Background(), generator.Repair)
	require.NoError(t, err)

	clock.Advance(45 * time.Second)
	_, ok := srv.store.get(used.id)
	require.True(t, ok)

	clock.Advance(30 * time.Second)
	srv.sweep()

	_, ok = srv.store.get(idle.id)
	assert.False(t, ok, "idle session evicted")
	_, ok = srv.store.get(used.id)
	assert.True(t, ok, "recently used session kept")
	_, ok = srv.store.get(busy.id)
	assert.True(t, ok, "processing session kept")
	assert.Equal(t, 2, srv.store.count())

	close(gate)
}

func TestEvictedSessionIsNotFound(t *testing.T) {
	srv, err := New(&stubGateway{}, delivery.NewOutbox(time.Minute), log.New(io.Discard, "", 0))
	require.NoError(t, err)
	clock := &testClock{t: time.Now()}
	srv.store.now = clock.Now
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)

	st := createSession(t, ts, "x")
	clock.Advance(DefaultSessionTTL + time.Second)
	srv.sweep()

	resp, _ := do(t, http.MethodGet, ts.URL+"/api/sessions/"+st.SessionID, "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
