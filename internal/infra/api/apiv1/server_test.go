//go:build !integration

package apiv1_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"portfolio-advisor/internal/domain/model"
	apiv1 "portfolio-advisor/internal/infra/api/apiv1"
	"portfolio-advisor/internal/infra/db/memory"
	"portfolio-advisor/internal/usecase"
)

//
// ---------------- test doubles ----------------
//

type nopDispatcher struct{ jobs []*model.AdvisoryJob }

func (d *nopDispatcher) Dispatch(ctx context.Context, job *model.AdvisoryJob) error {
	d.jobs = append(d.jobs, job)
	return nil
}

type denyLimiter struct{}

func (denyLimiter) AllowSubmit(ctx context.Context, userID string) (bool, error) { return false, nil }

type brokenRepo struct{ *memory.AdvisoryJobRepo }

func (brokenRepo) Get(ctx context.Context, id string) (*model.AdvisoryJob, error) {
	return nil, errors.New("connection refused")
}

//
// -------------------- test helpers --------------------
//

func newLogger() *zerolog.Logger { l := zerolog.Nop(); return &l }

type fixture struct {
	router *chi.Mux
	repo   *memory.AdvisoryJobRepo
	disp   *nopDispatcher
}

func newFixture(auth *apiv1.Authenticator, opts ...usecase.AdvisoryOption) *fixture {
	repo := memory.NewAdvisoryJobRepo()
	disp := &nopDispatcher{}
	seq := 0
	opts = append([]usecase.AdvisoryOption{usecase.WithIDGenerator(func() string {
		seq++
		return "job-" + string(rune('0'+seq))
	})}, opts...)
	uc := usecase.NewAdvisoryUseCase(repo, disp, newLogger(), false, opts...)

	r := chi.NewRouter()
	apiv1.RegisterAPIV1(r, apiv1.NewServer(uc, auth, newLogger()))
	return &fixture{router: r, repo: repo, disp: disp}
}

func (f *fixture) do(method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

//
// -------------------- tests --------------------
//

func TestSubmitJob(t *testing.T) {
	t.Run("202 accepted", func(t *testing.T) {
		f := newFixture(nil)
		rec := f.do(http.MethodPost, "/api/v1/advisory/jobs",
			`{"userId":"u1","prompt":"Should I sell AAPL?","prompts":["p1"],"responses":["r1"]}`, nil)
		if rec.Code != http.StatusAccepted {
			t.Fatalf("want 202, got %d, body=%s", rec.Code, rec.Body.String())
		}
		var body apiv1.SubmitJobResponse
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.JobID != "job-1" || body.Status != "PROCESSING" || body.Message != "Job submitted successfully" {
			t.Fatalf("unexpected body %+v", body)
		}
		if len(f.disp.jobs) != 1 || f.disp.jobs[0].Input.UserID != "u1" {
			t.Fatalf("job not dispatched: %+v", f.disp.jobs)
		}
	})

	t.Run("400 malformed json", func(t *testing.T) {
		f := newFixture(nil)
		rec := f.do(http.MethodPost, "/api/v1/advisory/jobs", `{"prompt":`, nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("want 400, got %d", rec.Code)
		}
	})

	t.Run("400 missing prompt", func(t *testing.T) {
		f := newFixture(nil)
		rec := f.do(http.MethodPost, "/api/v1/advisory/jobs", `{"prompt":"   "}`, nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("want 400, got %d, body=%s", rec.Code, rec.Body.String())
		}
		if len(f.disp.jobs) != 0 {
			t.Fatal("rejected submission must not dispatch")
		}
	})

	t.Run("429 rate limited", func(t *testing.T) {
		f := newFixture(nil, usecase.WithSubmitLimiter(denyLimiter{}))
		rec := f.do(http.MethodPost, "/api/v1/advisory/jobs", `{"userId":"u1","prompt":"q"}`, nil)
		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("want 429, got %d", rec.Code)
		}
	})
}

func TestSubmitJob_BearerIdentity(t *testing.T) {
	auth := apiv1.NewAuthenticator("test-secret")
	token, err := auth.Mint("token-user", time.Hour)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	t.Run("token subject overrides body", func(t *testing.T) {
		f := newFixture(auth)
		rec := f.do(http.MethodPost, "/api/v1/advisory/jobs", `{"userId":"body-user","prompt":"q"}`,
			map[string]string{"Authorization": "Bearer " + token})
		if rec.Code != http.StatusAccepted {
			t.Fatalf("want 202, got %d, body=%s", rec.Code, rec.Body.String())
		}
		if f.disp.jobs[0].Input.UserID != "token-user" {
			t.Fatalf("user id = %q", f.disp.jobs[0].Input.UserID)
		}
	})

	t.Run("401 invalid token", func(t *testing.T) {
		f := newFixture(auth)
		rec := f.do(http.MethodPost, "/api/v1/advisory/jobs", `{"prompt":"q"}`,
			map[string]string{"Authorization": "Bearer not-a-jwt"})
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("want 401, got %d", rec.Code)
		}
	})

	t.Run("anonymous without header", func(t *testing.T) {
		f := newFixture(auth)
		rec := f.do(http.MethodPost, "/api/v1/advisory/jobs", `{"prompt":"q"}`, nil)
		if rec.Code != http.StatusAccepted {
			t.Fatalf("want 202, got %d", rec.Code)
		}
		if f.disp.jobs[0].Input.UserID != "" {
			t.Fatalf("expected anonymous job, got %q", f.disp.jobs[0].Input.UserID)
		}
	})
}

func TestGetJob(t *testing.T) {
	t.Run("200 processing then completed", func(t *testing.T) {
		f := newFixture(nil)
		f.do(http.MethodPost, "/api/v1/advisory/jobs", `{"prompt":"q"}`, nil)

		rec := f.do(http.MethodGet, "/api/v1/advisory/jobs/job-1", "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("want 200, got %d", rec.Code)
		}
		var raw map[string]any
		_ = json.Unmarshal(rec.Body.Bytes(), &raw)
		if raw["status"] != "PROCESSING" {
			t.Fatalf("unexpected body %v", raw)
		}
		for _, k := range []string{"result", "error", "completedAt"} {
			if _, ok := raw[k]; ok {
				t.Fatalf("%s must be absent while processing: %v", k, raw)
			}
		}

		if err := f.repo.Finalize(context.Background(), "job-1", model.CompletedOutcome("Diversify.", time.Now())); err != nil {
			t.Fatalf("Finalize: %v", err)
		}
		rec = f.do(http.MethodGet, "/api/v1/advisory/jobs/job-1", "", nil)
		var body apiv1.JobResponse
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Status != "COMPLETED" || body.Result != "Diversify." || body.CompletedAt == nil {
			t.Fatalf("unexpected body %+v", body)
		}
	})

	t.Run("404 unknown", func(t *testing.T) {
		f := newFixture(nil)
		rec := f.do(http.MethodGet, "/api/v1/advisory/jobs/nope", "", nil)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("want 404, got %d", rec.Code)
		}
		var body map[string]string
		_ = json.NewDecoder(rec.Body).Decode(&body)
		if body["error"] != "Job not found" {
			t.Fatalf("unexpected body %v", body)
		}
	})

	t.Run("500 store failure", func(t *testing.T) {
		repo := brokenRepo{memory.NewAdvisoryJobRepo()}
		uc := usecase.NewAdvisoryUseCase(repo, &nopDispatcher{}, newLogger(), false)
		r := chi.NewRouter()
		apiv1.RegisterAPIV1(r, apiv1.NewServer(uc, nil, newLogger()))

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/advisory/jobs/x", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("want 500, got %d", rec.Code)
		}
		if bytes.Contains(rec.Body.Bytes(), []byte("connection refused")) {
			t.Fatal("internal error details leaked")
		}
	})
}
