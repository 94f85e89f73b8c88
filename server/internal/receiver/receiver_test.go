package receiver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rulboard/rulboard/server/internal/compute"
	"github.com/rulboard/rulboard/server/internal/config"
	"github.com/rulboard/rulboard/server/internal/store"
)

type evalCall struct {
	sourceID string
	sum      compute.Summary
}

type fakeEvaluator struct {
	mu    sync.Mutex
	calls []evalCall
}

func (f *fakeEvaluator) Evaluate(sourceID string, sum compute.Summary) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, evalCall{sourceID, sum})
}

type observeCall struct {
	transport          string
	accepted, rejected int
}

type fakeObserver struct {
	mu    sync.Mutex
	calls []observeCall
}

func (f *fakeObserver) ObserveBatch(transport string, accepted, rejected int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, observeCall{transport, accepted, rejected})
}

func newTestReceiver() (*Receiver, *store.Store, *fakeEvaluator, *fakeObserver) {
	st := store.New(5 * time.Minute)
	ev, ob := &fakeEvaluator{}, &fakeObserver{}
	r := New(st, ev, ob)
	r.now = func() time.Time { return time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC) }
	return r, st, ev, ob
}

const mixedBody = `{"predictions":[
	{"device":"pump-1","current_date":"2026-03-01","predicted_rul_days":12,"predicted_failure_date":"2026-03-13"},
	{"device":"pump-2","current_date":"2026-03-01","predicted_rul_days":"200","predicted_failure_date":"2026-09-17"},
	{"device":"pump-3","current_date":"2026-03-01","predicted_rul_days":"n/a","predicted_failure_date":""},
	{"device":"pump-4","current_date":"2026-03-01","predicted_rul_days":-4,"predicted_failure_date":""}
],"rejected":1}`

func TestIngest_StoresValidRecords(t *testing.T) {
	r, st, ev, ob := newTestReceiver()

	res, err := r.Ingest(TransportHTTP, "plant-a", strings.NewReader(mixedBody))
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, 2, res.Accepted)
	assert.Equal(t, 3, res.Rejected)
	assert.NotEmpty(t, res.BatchID)

	e, ok := st.Get("plant-a")
	require.True(t, ok, "store.Get: expected entry")
	assert.Equal(t, res.Version, e.Version)
	assert.Len(t, e.Batch.Records, 2)
	assert.Equal(t, 3, e.Batch.Rejected)
	assert.Equal(t, 3, e.Summary.Rejected)
	assert.Equal(t, 2, e.Summary.Total)
	assert.True(t, e.Batch.ReceivedAt.Equal(r.now()), "ReceivedAt = %v", e.Batch.ReceivedAt)

	require.Len(t, ev.calls, 1)
	assert.Equal(t, "plant-a", ev.calls[0].sourceID)
	assert.Equal(t, 2, ev.calls[0].sum.Total)
	assert.Equal(t, []observeCall{{TransportHTTP, 2, 3}}, ob.calls)
}

func TestIngest_EmptyBatchReplacesPrevious(t *testing.T) {
	r, st, _, _ := newTestReceiver()
	_, err := r.Ingest(TransportHTTP, "plant-a", strings.NewReader(mixedBody))
	require.NoError(t, err)

	res, err := r.Ingest(TransportHTTP, "plant-a", strings.NewReader(`{"predictions":[]}`))
	require.NoError(t, err, "empty batch should be accepted")
	assert.Zero(t, res.Accepted)
	assert.Zero(t, res.Rejected)

	e, _ := st.Get("plant-a")
	assert.Empty(t, e.Batch.Records, "empty batch should replace previous one")
	assert.Nil(t, e.Summary.Split)
}

func TestIngest_NotifiesListeners(t *testing.T) {
	r, _, _, _ := newTestReceiver()

	var got []string
	var last Result
	r.OnStored(func(sourceID string, res Result) {
		got = append(got, sourceID)
		last = res
	})

	res, err := r.Ingest(TransportMQTT, "plant-b", strings.NewReader(mixedBody))
	require.NoError(t, err)
	assert.Equal(t, []string{"plant-b"}, got)
	assert.Equal(t, res, last)

	_, err = r.Ingest(TransportHTTP, "bad/id", strings.NewReader(mixedBody))
	require.Error(t, err)
	assert.Len(t, got, 1, "listener called for a rejected request")
}

func TestIngest_InvalidSourceID(t *testing.T) {
	r, _, ev, _ := newTestReceiver()
	for _, id := range []string{"", "-lead", "a/b", "has space", strings.Repeat("x", 129)} {
		_, err := r.Ingest(TransportHTTP, id, strings.NewReader(`{"predictions":[]}`))
		assert.ErrorIs(t, err, ErrInvalidSourceID, "id %q", id)
	}
	assert.Empty(t, ev.calls, "evaluator should not be called for rejected requests")
}

func TestIngest_MalformedBody(t *testing.T) {
	r, st, _, _ := newTestReceiver()
	_, err := r.Ingest(TransportHTTP, "plant-a", strings.NewReader(`{"predictions":`))
	require.Error(t, err)
	assert.Zero(t, st.Count(), "nothing should be stored for a malformed body")
}

func TestIngest_NilCollaborators(t *testing.T) {
	r := New(store.New(time.Minute), nil, nil)
	_, err := r.Ingest(TransportHTTP, "plant-a", strings.NewReader(mixedBody))
	assert.NoError(t, err)
}

func TestServeHTTP(t *testing.T) {
	r, st, _, _ := newTestReceiver()
	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/sources/plant-a/predictions", "application/json", strings.NewReader(mixedBody))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.True(t, res.OK)
	assert.Equal(t, 2, res.Accepted)
	assert.Equal(t, 3, res.Rejected)

	_, ok := st.Get("plant-a")
	assert.True(t, ok, "batch not stored")
}

func TestServeHTTP_Errors(t *testing.T) {
	r, _, _, _ := newTestReceiver()

	cases := []struct {
		name, method, path, body string
		want                     int
	}{
		{"get", http.MethodGet, "/api/v1/sources/plant-a/predictions", "", http.StatusMethodNotAllowed},
		{"missing id", http.MethodPost, "/api/v1/sources//predictions", "{}", http.StatusNotFound},
		{"nested id", http.MethodPost, "/api/v1/sources/a/b/predictions", "{}", http.StatusNotFound},
		{"prefix overlap", http.MethodPost, "/api/v1/sources/predictions", "{}", http.StatusNotFound},
		{"bad id", http.MethodPost, "/api/v1/sources/-x/predictions", "{}", http.StatusBadRequest},
		{"bad json", http.MethodPost, "/api/v1/sources/plant-a/predictions", "nope", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestSubscriber_HandleMessage(t *testing.T) {
	r, st, _, ob := newTestReceiver()
	sub := NewSubscriber(r, config.MQTTConfig{Broker: "tcp://unused:1883", TopicPrefix: "factory/rul/"})

	res, err := sub.HandleMessage("factory/rul/line-7/predictions", []byte(mixedBody))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Accepted)

	_, ok := st.Get("line-7")
	assert.True(t, ok, "batch not stored under topic source id")
	require.Len(t, ob.calls, 1)
	assert.Equal(t, TransportMQTT, ob.calls[0].transport)

	for _, topic := range []string{
		"other/line-7/predictions",
		"factory/rul/predictions",
		"factory/rul/a/b/predictions",
		"factory/rul/line-7/status",
	} {
		_, err := sub.HandleMessage(topic, []byte(mixedBody))
		assert.Error(t, err, "topic %q", topic)
	}
}
