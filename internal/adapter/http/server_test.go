package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	httpadapter "github.com/couchcryptid/clima-ingest-service/internal/adapter/http"
	"github.com/couchcryptid/clima-ingest-service/internal/domain"
	"github.com/couchcryptid/clima-ingest-service/internal/pipeline"
	"github.com/couchcryptid/clima-ingest-service/internal/store"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

// mockInvoker answers every record with a success for its own city, except
// "Namek", which fails.
type mockInvoker struct {
	payloads [][]byte
}

func (m *mockInvoker) HandleAll(_ context.Context, payload []byte) ([]domain.Outcome, error) {
	m.payloads = append(m.payloads, payload)
	queries, err := domain.ParseBatch(payload)
	if err != nil {
		return nil, err
	}
	if len(queries) == 0 {
		return nil, pipeline.ErrEmptyBatch
	}
	out := make([]domain.Outcome, 0, len(queries))
	for _, q := range queries {
		if q.City == "Namek" {
			out = append(out, domain.Failure(fmt.Errorf(`unexpected API structure: {"cod":"404","message":"city not found"}`)))
			continue
		}
		out = append(out, domain.Success(q.City, 20))
	}
	return out, nil
}

func (m *mockInvoker) Handle(ctx context.Context, payload []byte) (domain.Outcome, error) {
	all, err := m.HandleAll(ctx, payload)
	if err != nil {
		return domain.Outcome{}, err
	}
	return all[len(all)-1], nil
}

type fixture struct {
	srv     *httpadapter.Server
	invoker *mockInvoker
	store   *store.MemoryStore
}

func newFixture(readyErr error) fixture {
	f := fixture{
		invoker: &mockInvoker{},
		store:   store.NewMemoryStore("city-test", clockwork.NewFakeClockAt(time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC))),
	}
	f.srv = httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, f.invoker, f.store, slog.Default())
	return f
}

func TestHealthzReturns200(t *testing.T) {
	srv := newFixture(nil).srv
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	srv := newFixture(nil).srv
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	srv := newFixture(fmt.Errorf("not ready yet")).srv
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "not ready yet", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newFixture(nil).srv
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestInvoke_BareQuery(t *testing.T) {
	srv := newFixture(nil).srv
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/invoke", strings.NewReader(`{"city":"Monterrey"}`))

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"response":"OK","error":null,"body":{"city":"Monterrey","temperature":20}}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestInvoke_KeepsCallerRequestID(t *testing.T) {
	srv := newFixture(nil).srv
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/invoke", strings.NewReader(`{"city":"Lima"}`))
	req.Header.Set("X-Request-ID", "req-42")

	srv.ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}

func TestInvoke_BatchReturnsLastOutcome(t *testing.T) {
	srv := newFixture(nil).srv
	payload, err := domain.EncodeBatch(domain.CityQuery{City: "Lima"}, domain.CityQuery{City: "Namek"})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/invoke", strings.NewReader(string(payload))))

	assert.Equal(t, http.StatusOK, rec.Code, "record failures are not transport errors")
	assert.JSONEq(t,
		`{"response":null,"error":"unexpected API structure: {\"cod\":\"404\",\"message\":\"city not found\"}","body":null}`,
		rec.Body.String())
}

func TestInvoke_AllReturnsEveryOutcome(t *testing.T) {
	srv := newFixture(nil).srv
	payload, err := domain.EncodeBatch(domain.CityQuery{City: "Lima"}, domain.CityQuery{City: "Namek"})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/invoke?all=true", strings.NewReader(string(payload))))

	require.Equal(t, http.StatusOK, rec.Code)
	var outcomes []domain.Outcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outcomes))
	require.Len(t, outcomes, 2)
	assert.True(t, outcomes[0].OK())
	assert.Equal(t, "Lima", outcomes[0].Body.City)
	assert.False(t, outcomes[1].OK())
}

func TestInvoke_EmptyBatchIs400(t *testing.T) {
	srv := newFixture(nil).srv
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/invoke", strings.NewReader(`{"Records":[]}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, pipeline.ErrEmptyBatch.Error(), body["error"])
}

func TestInvoke_RejectsGet(t *testing.T) {
	srv := newFixture(nil).srv
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/invoke", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestGetObservation(t *testing.T) {
	f := newFixture(nil)
	require.NoError(t, f.store.Upsert(context.Background(), "São Paulo", 27))

	for _, target := range []string{"/observations/S%C3%A3o%20Paulo", "/observations/S%C3%A3o%20Paulo?consistent=true"} {
		rec := httptest.NewRecorder()
		f.srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

		require.Equal(t, http.StatusOK, rec.Code, target)
		assert.JSONEq(t, `{"city":"São Paulo","temperature":27,"observed_at":"2025-03-14T12:00:00Z"}`, rec.Body.String())
	}
}

func TestGetObservation_NotFound(t *testing.T) {
	srv := newFixture(nil).srv
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/observations/Namek", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
