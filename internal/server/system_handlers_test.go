package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/divtrack/internal/database"
	"github.com/aristath/divtrack/internal/scheduler"
	testingpkg "github.com/aristath/divtrack/internal/testing"
)

type stubJobs struct {
	names []string
	errs  map[string]error
	runs  []string
}

func (s *stubJobs) Status() []scheduler.JobStatus {
	out := make([]scheduler.JobStatus, 0, len(s.names))
	for _, n := range s.names {
		out = append(out, scheduler.JobStatus{Name: n, Schedule: "@hourly"})
	}
	return out
}

func (s *stubJobs) RunByName(name string) error {
	for _, n := range s.names {
		if n == name {
			s.runs = append(s.runs, name)
			return s.errs[name]
		}
	}
	return fmt.Errorf("%w %q", scheduler.ErrUnknownJob, name)
}

func newSystemRouter(h *SystemHandlers) http.Handler {
	r := chi.NewRouter()
	r.Get("/status", h.HandleSystemStatus)
	r.Get("/jobs", h.HandleListJobs)
	r.Post("/jobs/{name}", h.HandleRunJob)
	return r
}

func TestSystemHandlers_HandleSystemStatus(t *testing.T) {
	ledger, cleanup := testingpkg.NewTestDB(t, "ledger")
	defer cleanup()
	closed, cleanupClosed := testingpkg.NewTestDB(t, "portfolio")
	cleanupClosed()

	h := NewSystemHandlers(zerolog.Nop(), t.TempDir(), map[string]*database.DB{
		"ledger":    ledger,
		"portfolio": closed,
	}, nil)

	w := httptest.NewRecorder()
	newSystemRouter(h).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp SystemStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	require.Len(t, resp.Databases, 2)
	assert.Equal(t, "ledger", resp.Databases[0].Name)
	assert.True(t, resp.Databases[0].Healthy)
	assert.NotNil(t, resp.Databases[0].Stats)
	assert.False(t, resp.Databases[1].Healthy)
}

func TestSystemHandlers_Jobs(t *testing.T) {
	jobs := &stubJobs{
		names: []string{"fx_warmup", "backup"},
		errs:  map[string]error{"backup": errors.New("bucket missing")},
	}
	router := newSystemRouter(NewSystemHandlers(zerolog.Nop(), t.TempDir(), nil, jobs))

	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"list", http.MethodGet, "/jobs", http.StatusOK},
		{"run", http.MethodPost, "/jobs/fx_warmup", http.StatusOK},
		{"failing job", http.MethodPost, "/jobs/backup", http.StatusInternalServerError},
		{"unknown job", http.MethodPost, "/jobs/nope", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.want, w.Code)
		})
	}

	assert.Equal(t, []string{"fx_warmup", "backup"}, jobs.runs)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/jobs", nil))
	var listed struct {
		Jobs []scheduler.JobStatus `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	require.Len(t, listed.Jobs, 2)
	assert.Equal(t, "fx_warmup", listed.Jobs[0].Name)
	assert.Equal(t, "@hourly", listed.Jobs[0].Schedule)
}

func TestSystemHandlers_NoJobRunner(t *testing.T) {
	router := newSystemRouter(NewSystemHandlers(zerolog.Nop(), t.TempDir(), nil, nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/jobs", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"jobs":[]}`, w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/jobs/fx_warmup", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
