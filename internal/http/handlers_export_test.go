package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/sproutlog/sproutlog/internal/domain/model"
	"github.com/sproutlog/sproutlog/internal/mocks"
	"github.com/sproutlog/sproutlog/internal/service"
)

type exportFixture struct {
	handler *http.ServeMux
	jobs    *stubJobRepo
	results *stubResultStore
	gate    *mocks.MockCapabilityGate
}

func newExportFixture(t *testing.T) *exportFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	gate := mocks.NewMockCapabilityGate(ctrl)
	jobs := &stubJobRepo{}
	results := newStubResultStore()

	svc, err := service.NewExportService(service.ExportServiceOptions{
		Jobs:     jobs,
		Gate:     gate,
		Renderer: stubRenderer{},
		Results:  results,
	})
	require.NoError(t, err)

	mux := http.NewServeMux()
	registerExportRoutes(mux, &ExportHandlers{Svc: svc})
	return &exportFixture{handler: mux, jobs: jobs, results: results, gate: gate}
}

func (f *exportFixture) do(method, target, userID string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	r := httptest.NewRequest(method, target, reader)
	if userID != "" {
		r.Header.Set(userHeader, userID)
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, r)
	return w
}

func TestSubmitExport_Accepted(t *testing.T) {
	f := newExportFixture(t)
	f.gate.EXPECT().CanRead(gomock.Any(), "parent", "child-1").Return(true, nil)

	w := f.do(http.MethodPost, "/api/export/child-1", "parent", map[string]string{"format": "pdf"})

	require.Equal(t, http.StatusAccepted, w.Code)
	var got model.JobStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, "job-1", got.JobID)
	assert.Equal(t, model.JobStateQueued, got.State)
	assert.Equal(t, 0, got.Progress)
}

func TestSubmitExport_MissingUser(t *testing.T) {
	f := newExportFixture(t)

	w := f.do(http.MethodPost, "/api/export/child-1", "", map[string]string{"format": "pdf"})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSubmitExport_Forbidden(t *testing.T) {
	f := newExportFixture(t)
	f.gate.EXPECT().CanRead(gomock.Any(), "stranger", "child-1").Return(false, nil)

	w := f.do(http.MethodPost, "/api/export/child-1", "stranger", map[string]string{"format": "csv"})

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSubmitExport_InvalidFormat(t *testing.T) {
	f := newExportFixture(t)

	w := f.do(http.MethodPost, "/api/export/child-1", "parent", map[string]string{"format": "docx"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetExportStatus_OwnerSeesSnapshot(t *testing.T) {
	f := newExportFixture(t)
	f.jobs.getByIDFn = func(_ context.Context, id string) (*model.Job, error) {
		return &model.Job{ID: id, OwnerID: "parent", State: model.JobStateRunning, Progress: 50}, nil
	}

	w := f.do(http.MethodGet, "/api/export/jobs/job-9/status", "parent", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var got model.JobStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, model.JobStateRunning, got.State)
	assert.Equal(t, 50, got.Progress)
}

func TestGetExportStatus_ForeignJobIsNotFound(t *testing.T) {
	f := newExportFixture(t)
	f.jobs.getByIDFn = func(_ context.Context, id string) (*model.Job, error) {
		return &model.Job{ID: id, OwnerID: "parent", State: model.JobStateQueued}, nil
	}

	w := f.do(http.MethodGet, "/api/export/jobs/job-9/status", "stranger", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetExportResult_ServesStoredPayload(t *testing.T) {
	f := newExportFixture(t)
	key := "result-key"
	require.NoError(t, f.results.Put(context.Background(), key, "application/pdf", []byte("report-bytes")))
	f.jobs.getByIDFn = func(_ context.Context, id string) (*model.Job, error) {
		return &model.Job{ID: id, OwnerID: "parent", State: model.JobStateSucceeded, Progress: 100, ResultKey: &key}, nil
	}

	w := f.do(http.MethodGet, "/api/export/jobs/job-9/result", "parent", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, "report-bytes", w.Body.String())
}

func TestGetExportResult_NotReadyWhileRunning(t *testing.T) {
	f := newExportFixture(t)
	f.jobs.getByIDFn = func(_ context.Context, id string) (*model.Job, error) {
		return &model.Job{ID: id, OwnerID: "parent", State: model.JobStateRunning, Progress: 25}, nil
	}

	w := f.do(http.MethodGet, "/api/export/jobs/job-9/result", "parent", nil)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestGetExportResult_UnknownJob(t *testing.T) {
	f := newExportFixture(t)

	w := f.do(http.MethodGet, "/api/export/jobs/nope/result", "parent", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
