package handlers

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"mockupstudio/internal/domain"
)

func TestCreateJobPassesFormInputs(t *testing.T) {
	app, jobs, _ := newTestApp()
	req := multipartRequest(t, http.MethodPost, "/api/jobs", map[string]string{
		"baseProductId": "3",
		"referenceIds":  "[1,2]",
		"concept":       " galaxy ",
		"text":          "bold colours",
	},
		part{field: "logo", filename: "logo.png", data: pngBytes},
		part{field: "userImages", filename: "a.png", data: pngBytes},
		part{field: "userImages", filename: "b.png", data: pngBytes},
	)
	rr := httptest.NewRecorder()

	app.CreateJob(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	in := jobs.created
	if in == nil {
		t.Fatal("orchestrator was not called")
	}
	if in.BaseProductID != 3 || !reflect.DeepEqual(in.ReferenceIDs, []int64{1, 2}) {
		t.Fatalf("unexpected ids: %+v", in)
	}
	if in.Concept != "galaxy" || in.Instructions != "bold colours" {
		t.Fatalf("unexpected text fields: %q %q", in.Concept, in.Instructions)
	}
	if in.Logo == nil || in.Logo.MIME != "image/png" {
		t.Fatalf("logo = %+v", in.Logo)
	}
	if len(in.UserImages) != 2 {
		t.Fatalf("user images = %d, want 2", len(in.UserImages))
	}

	env := decodeEnvelope(t, rr)
	var job jobResponse
	if err := json.Unmarshal(env.Data, &job); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	if !env.Success || job.ID != "job-1" || job.Status != domain.JobStatusPending {
		t.Fatalf("unexpected response: %+v", job)
	}
}

func TestCreateJobRejectsNonImageUpload(t *testing.T) {
	app, jobs, _ := newTestApp()
	req := multipartRequest(t, http.MethodPost, "/api/jobs", map[string]string{"baseProductId": "3"},
		part{field: "logo", filename: "logo.png", data: []byte("plain text pretending to be a png")},
	)
	rr := httptest.NewRecorder()

	app.CreateJob(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if jobs.created != nil {
		t.Fatal("orchestrator must not be called for rejected uploads")
	}
	if env := decodeEnvelope(t, rr); env.Success || env.Error == "" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestCreateJobRequiresProductID(t *testing.T) {
	app, _, _ := newTestApp()
	req := multipartRequest(t, http.MethodPost, "/api/jobs", map[string]string{"concept": "x"})
	rr := httptest.NewRecorder()

	app.CreateJob(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestParseIDList(t *testing.T) {
	tests := []struct {
		name    string
		values  []string
		want    []int64
		wantErr bool
	}{
		{name: "json", values: []string{"[1, 2]"}, want: []int64{1, 2}},
		{name: "repeated", values: []string{"4", "5"}, want: []int64{4, 5}},
		{name: "comma", values: []string{"6, 7"}, want: []int64{6, 7}},
		{name: "empty", values: []string{""}, want: nil},
		{name: "negative", values: []string{"-1"}, wantErr: true},
		{name: "garbage", values: []string{"a,b"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseIDList(tt.values, "referenceIds")
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFailMapsDomainErrors(t *testing.T) {
	tests := []struct {
		err  error
		code int
		msg  string
	}{
		{err: fmt.Errorf("%w: bad", domain.ErrInvalidInput), code: http.StatusBadRequest},
		{err: domain.ErrNotFound, code: http.StatusNotFound},
		{err: domain.ErrNotCompleted, code: http.StatusConflict},
		{err: domain.ErrConflict, code: http.StatusConflict},
		{err: domain.ErrInputUnavailable, code: http.StatusUnprocessableEntity},
		{err: errors.New("connection reset by peer"), code: http.StatusInternalServerError, msg: "internal server error"},
	}
	for _, tt := range tests {
		app, jobs, _ := newTestApp()
		jobs.err = tt.err
		rr := httptest.NewRecorder()

		app.GetJob(rr, withID(httptest.NewRequest(http.MethodGet, "/api/jobs/x", nil), "x"))

		if rr.Code != tt.code {
			t.Fatalf("%v: status = %d, want %d", tt.err, rr.Code, tt.code)
		}
		env := decodeEnvelope(t, rr)
		if env.Success {
			t.Fatalf("%v: success must be false", tt.err)
		}
		if tt.msg != "" && env.Error != tt.msg {
			t.Fatalf("%v: error = %q, want %q", tt.err, env.Error, tt.msg)
		}
	}
}

func TestGetJobResolvesURLs(t *testing.T) {
	app, jobs, _ := newTestApp()
	artifact := "generated/a.png"
	jobs.job = &domain.Job{
		ID:               "job-9",
		Status:           domain.JobStatusCompleted,
		ArtifactRef:      &artifact,
		SimulationStatus: domain.SimulationCompleted,
		SimulationRefs:   []string{"simulations/1.png"},
	}
	rr := httptest.NewRecorder()

	app.GetJob(rr, withID(httptest.NewRequest(http.MethodGet, "/api/jobs/job-9", nil), "job-9"))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var job jobResponse
	if err := json.Unmarshal(decodeEnvelope(t, rr).Data, &job); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if job.ArtifactURL != "https://cdn.test/"+artifact {
		t.Fatalf("artifact url = %q", job.ArtifactURL)
	}
	if len(job.Simulation.URLs) != 1 || job.Simulation.URLs[0] != "https://cdn.test/simulations/1.png" {
		t.Fatalf("simulation urls = %v", job.Simulation.URLs)
	}
}

func TestModifyJobDecodesChangeText(t *testing.T) {
	app, _, _ := newTestApp()
	req := withID(httptest.NewRequest(http.MethodPost, "/api/jobs/p/modify", strings.NewReader(`{"changeText":"make it blue"}`)), "p")
	rr := httptest.NewRecorder()

	app.ModifyJob(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var job jobResponse
	if err := json.Unmarshal(decodeEnvelope(t, rr).Data, &job); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if job.ChangeText != "make it blue" || job.ParentID == nil || *job.ParentID != "p" {
		t.Fatalf("unexpected job: %+v", job)
	}
}

func TestModifyJobRejectsMalformedBody(t *testing.T) {
	app, _, _ := newTestApp()
	req := withID(httptest.NewRequest(http.MethodPost, "/api/jobs/p/modify", strings.NewReader(`{`)), "p")
	rr := httptest.NewRecorder()

	app.ModifyJob(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestSimulateJobAccepted(t *testing.T) {
	app, jobs, _ := newTestApp()
	req := withID(httptest.NewRequest(http.MethodPost, "/api/jobs/j/simulate", strings.NewReader(`{"templateIds":[2,3]}`)), "j")
	rr := httptest.NewRecorder()

	app.SimulateJob(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rr.Code)
	}
	if !reflect.DeepEqual(jobs.simulated, []int64{2, 3}) {
		t.Fatalf("template ids = %v", jobs.simulated)
	}
}

func TestSimulateJobNotCompleted(t *testing.T) {
	app, jobs, _ := newTestApp()
	jobs.err = domain.ErrNotCompleted
	req := withID(httptest.NewRequest(http.MethodPost, "/api/jobs/j/simulate", strings.NewReader(`{"templateIds":[1]}`)), "j")
	rr := httptest.NewRecorder()

	app.SimulateJob(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rr.Code)
	}
}

func TestSimulationZipBundlesVariants(t *testing.T) {
	app, jobs, _ := newTestApp()
	app.Blobs = &fakeBlobs{data: map[string][]byte{
		"simulations/1": pngBytes,
		"simulations/2": pngBytes,
	}}
	jobs.job = &domain.Job{
		ID:               "job-z",
		Status:           domain.JobStatusCompleted,
		SimulationStatus: domain.SimulationCompleted,
		SimulationRefs:   []string{"simulations/1", "simulations/2"},
	}
	rr := httptest.NewRecorder()

	app.SimulationZip(rr, withID(httptest.NewRequest(http.MethodGet, "/api/jobs/job-z/simulation.zip", nil), "job-z"))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/zip" {
		t.Fatalf("content type = %q", ct)
	}
	zr, err := zip.NewReader(bytes.NewReader(rr.Body.Bytes()), int64(rr.Body.Len()))
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		data, _ := io.ReadAll(rc)
		rc.Close()
		if !bytes.Equal(data, pngBytes) {
			t.Fatalf("%s content mismatch", f.Name)
		}
	}
	if !reflect.DeepEqual(names, []string{"simulation-1.png", "simulation-2.png"}) {
		t.Fatalf("names = %v", names)
	}
}

func TestSimulationZipRequiresCompletedSimulation(t *testing.T) {
	app, jobs, _ := newTestApp()
	jobs.job = &domain.Job{ID: "j", Status: domain.JobStatusCompleted, SimulationStatus: domain.SimulationGenerating}
	rr := httptest.NewRecorder()

	app.SimulationZip(rr, withID(httptest.NewRequest(http.MethodGet, "/api/jobs/j/simulation.zip", nil), "j"))

	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rr.Code)
	}
}

func TestCreateProductMultipart(t *testing.T) {
	app, _, cat := newTestApp()
	req := multipartRequest(t, http.MethodPost, "/api/base-products", map[string]string{
		"name":        "Tote bag",
		"parts":       "strap, body",
		"constraints": "no print on strap",
	}, part{field: "image", filename: "tote.png", data: pngBytes})
	rr := httptest.NewRecorder()

	app.CreateProduct(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if cat.input == nil || cat.input.Name != "Tote bag" || cat.input.Constraints != "no print on strap" || cat.input.Image == nil {
		t.Fatalf("unexpected input: %+v", cat.input)
	}
	var p productResponse
	if err := json.Unmarshal(decodeEnvelope(t, rr).Data, &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.ID != 7 || p.ImageURL != "https://cdn.test/base/x.png" {
		t.Fatalf("unexpected product: %+v", p)
	}
}

func TestUpdateProductOnlyPatchesSentFields(t *testing.T) {
	app, _, cat := newTestApp()
	req := withID(multipartRequest(t, http.MethodPut, "/api/base-products/5", map[string]string{"name": "Mug"}), "5")
	rr := httptest.NewRecorder()

	app.UpdateProduct(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	patch := cat.patch
	if patch == nil || patch.Name == nil || *patch.Name != "Mug" {
		t.Fatalf("name not patched: %+v", patch)
	}
	if patch.Description != nil || patch.Parts != nil || patch.Constraints != nil || patch.Image != nil {
		t.Fatalf("unsent fields must stay nil: %+v", patch)
	}
}

func TestGetProductRejectsBadID(t *testing.T) {
	app, _, _ := newTestApp()
	rr := httptest.NewRecorder()

	app.GetProduct(rr, withID(httptest.NewRequest(http.MethodGet, "/api/base-products/abc", nil), "abc"))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestListReferencesRequiresProduct(t *testing.T) {
	app, _, _ := newTestApp()
	rr := httptest.NewRecorder()

	app.ListReferences(rr, httptest.NewRequest(http.MethodGet, "/api/references", nil))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestListReferencesEmptyIsArray(t *testing.T) {
	app, _, _ := newTestApp()
	rr := httptest.NewRecorder()

	app.ListReferences(rr, httptest.NewRequest(http.MethodGet, "/api/references?baseProductId=2", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if data := string(decodeEnvelope(t, rr).Data); data != "[]" {
		t.Fatalf("data = %s, want []", data)
	}
}

func TestCreatePromptJSON(t *testing.T) {
	app, _, cat := newTestApp()
	rr := httptest.NewRecorder()

	app.CreatePrompt(rr, httptest.NewRequest(http.MethodPost, "/api/prompts", strings.NewReader(`{"name":"Studio","prompt":"white backdrop"}`)))

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if cat.prompt == nil || cat.prompt.Name != "Studio" || cat.prompt.Prompt != "white backdrop" {
		t.Fatalf("unexpected prompt input: %+v", cat.prompt)
	}
}

func TestHealthReportsDatabaseFailure(t *testing.T) {
	app, _, _ := newTestApp()
	app.DB = fakePinger{err: errors.New("dial tcp: refused")}
	rr := httptest.NewRecorder()

	app.Health(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
}

func TestHealthOK(t *testing.T) {
	app, _, _ := newTestApp()
	app.DB = fakePinger{}
	rr := httptest.NewRecorder()

	app.Health(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var status map[string]string
	if err := json.Unmarshal(decodeEnvelope(t, rr).Data, &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status["storage"] != "local" || status["model"] != "test-model" {
		t.Fatalf("status = %v", status)
	}
}
