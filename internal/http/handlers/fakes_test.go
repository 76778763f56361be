package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"mockupstudio/internal/catalog"
	"mockupstudio/internal/domain"
	"mockupstudio/internal/pipeline"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), bytes.Repeat([]byte{0}, 32)...)

type fakeJobs struct {
	created   *pipeline.CreateJobInput
	job       *domain.Job
	err       error
	simulated []int64
	deleted   string
}

func (f *fakeJobs) CreateJob(_ context.Context, in pipeline.CreateJobInput) (*domain.Job, error) {
	f.created = &in
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Job{ID: "job-1", Kind: domain.JobKindInitial, BaseProductID: in.BaseProductID, Status: domain.JobStatusPending}, nil
}

func (f *fakeJobs) Regenerate(_ context.Context, id string) (*domain.Job, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Job{ID: "job-2", Kind: domain.JobKindInitial, ParentID: &id, Status: domain.JobStatusPending}, nil
}

func (f *fakeJobs) Modify(_ context.Context, id, changeText string) (*domain.Job, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Job{ID: "job-3", Kind: domain.JobKindModification, ParentID: &id, Status: domain.JobStatusPending,
		Inputs: domain.JobInputs{ChangeRequest: changeText}}, nil
}

func (f *fakeJobs) GenerateSimulationVariants(_ context.Context, _ string, ids []int64) error {
	f.simulated = ids
	return f.err
}

func (f *fakeJobs) Job(_ context.Context, _ string) (*domain.Job, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.job, nil
}

func (f *fakeJobs) Jobs(_ context.Context, _ int64, _ int) ([]domain.Job, error) {
	if f.job == nil {
		return nil, f.err
	}
	return []domain.Job{*f.job}, f.err
}

func (f *fakeJobs) DeleteJob(_ context.Context, id string) error {
	f.deleted = id
	return f.err
}

type fakeCatalog struct {
	CatalogService
	product *domain.BaseProduct
	patch   *catalog.ProductPatch
	input   *catalog.ProductInput
	prompt  *catalog.PromptInput
	err     error
}

func (f *fakeCatalog) CreateProduct(_ context.Context, in catalog.ProductInput) (*domain.BaseProduct, error) {
	f.input = &in
	if f.err != nil {
		return nil, f.err
	}
	return &domain.BaseProduct{ID: 7, Name: in.Name, Image: domain.ImageRef{Ref: "base/x.png", MIME: "image/png"}}, nil
}

func (f *fakeCatalog) UpdateProduct(_ context.Context, id int64, patch catalog.ProductPatch) (*domain.BaseProduct, error) {
	f.patch = &patch
	if f.err != nil {
		return nil, f.err
	}
	return &domain.BaseProduct{ID: id}, nil
}

func (f *fakeCatalog) Product(_ context.Context, _ int64) (*domain.BaseProduct, error) {
	return f.product, f.err
}

func (f *fakeCatalog) References(_ context.Context, _ int64) ([]domain.Reference, error) {
	return nil, f.err
}

func (f *fakeCatalog) CreatePrompt(_ context.Context, in catalog.PromptInput) (*domain.PromptTemplate, error) {
	f.prompt = &in
	if f.err != nil {
		return nil, f.err
	}
	return &domain.PromptTemplate{ID: 4, Name: in.Name, Prompt: in.Prompt}, nil
}

type fakeBlobs struct {
	data map[string][]byte
}

func (f *fakeBlobs) Fetch(_ context.Context, ref string) ([]byte, error) {
	data, ok := f.data[ref]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return data, nil
}

func (f *fakeBlobs) URLFor(ref string) (string, error) {
	return "https://cdn.test/" + ref, nil
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func newTestApp() (*App, *fakeJobs, *fakeCatalog) {
	jobs := &fakeJobs{}
	cat := &fakeCatalog{}
	app := &App{
		Jobs:        jobs,
		Catalog:     cat,
		Blobs:       &fakeBlobs{data: map[string][]byte{}},
		Logger:      zerolog.Nop(),
		StorageKind: "local",
		Model:       "test-model",
	}
	return app, jobs, cat
}

type part struct {
	field    string
	filename string
	data     []byte
}

func multipartRequest(t *testing.T, method, target string, values map[string]string, files ...part) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range values {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	for _, f := range files {
		fw, err := mw.CreateFormFile(f.field, f.filename)
		if err != nil {
			t.Fatalf("create file: %v", err)
		}
		if _, err := fw.Write(f.data); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(method, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func withID(req *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

type testEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) testEnvelope {
	t.Helper()
	var env testEnvelope
	if err := json.NewDecoder(rr.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}
