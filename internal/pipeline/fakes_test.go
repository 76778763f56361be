package pipeline

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"mockupstudio/internal/domain"
	"mockupstudio/internal/providers/genai"
	"mockupstudio/internal/storage"
	"mockupstudio/internal/worker"
)

// errInvalidText mirrors Postgres refusing text that is not valid UTF-8
// (SQLSTATE 22021).
var errInvalidText = errors.New("invalid byte sequence for encoding UTF8")

func storableText(s string) error {
	if !utf8.ValidString(s) || strings.ContainsRune(s, 0) {
		return errInvalidText
	}
	return nil
}

type memJobs struct {
	mu          sync.Mutex
	jobs        map[string]domain.Job
	transitions map[string]int
}

func newMemJobs() *memJobs {
	return &memJobs{jobs: map[string]domain.Job{}, transitions: map[string]int{}}
}

func (m *memJobs) Create(_ context.Context, job *domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = *job
	return nil
}

func (m *memJobs) GetByID(_ context.Context, id string) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &j, nil
}

func (m *memJobs) List(_ context.Context, baseProductID int64, limit int) ([]domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Job
	for _, j := range m.jobs {
		if baseProductID == 0 || j.BaseProductID == baseProductID {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memJobs) MarkCompleted(_ context.Context, id, ref, mime string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.Status != domain.JobStatusPending {
		return domain.ErrAlreadyTerminated
	}
	j.Status = domain.JobStatusCompleted
	j.ArtifactRef = &ref
	j.ArtifactMIME = mime
	m.jobs[id] = j
	m.transitions[id]++
	return nil
}

func (m *memJobs) MarkFailed(_ context.Context, id, reason string) error {
	if err := storableText(reason); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.Status != domain.JobStatusPending {
		return domain.ErrAlreadyTerminated
	}
	j.Status = domain.JobStatusFailed
	j.ErrorMessage = reason
	m.jobs[id] = j
	m.transitions[id]++
	return nil
}

func (m *memJobs) BeginSimulation(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.Status != domain.JobStatusCompleted || j.SimulationStatus == domain.SimulationGenerating {
		return domain.ErrConflict
	}
	j.SimulationStatus = domain.SimulationGenerating
	j.SimulationRefs = nil
	j.SimulationError = ""
	m.jobs[id] = j
	return nil
}

func (m *memJobs) CompleteSimulation(_ context.Context, id string, refs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.SimulationStatus != domain.SimulationGenerating {
		return domain.ErrConflict
	}
	j.SimulationStatus = domain.SimulationCompleted
	j.SimulationRefs = append([]string(nil), refs...)
	m.jobs[id] = j
	return nil
}

func (m *memJobs) FailSimulation(_ context.Context, id, reason string) error {
	if err := storableText(reason); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.SimulationStatus != domain.SimulationGenerating {
		return domain.ErrConflict
	}
	j.SimulationStatus = domain.SimulationFailed
	j.SimulationError = reason
	j.SimulationRefs = nil
	m.jobs[id] = j
	return nil
}

func (m *memJobs) FailInterrupted(_ context.Context, reason string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, j := range m.jobs {
		changed := false
		if j.Status == domain.JobStatusPending {
			j.Status = domain.JobStatusFailed
			j.ErrorMessage = reason
			changed = true
		}
		if j.SimulationStatus == domain.SimulationGenerating {
			j.SimulationStatus = domain.SimulationFailed
			j.SimulationError = reason
			changed = true
		}
		if changed {
			m.jobs[id] = j
			n++
		}
	}
	return n, nil
}

func (m *memJobs) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.jobs, id)
	return nil
}

func (m *memJobs) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

type memProducts struct {
	products map[int64]domain.BaseProduct
}

func (m *memProducts) Create(_ context.Context, p *domain.BaseProduct) error {
	p.ID = int64(len(m.products) + 1)
	m.products[p.ID] = *p
	return nil
}

func (m *memProducts) GetByID(_ context.Context, id int64) (*domain.BaseProduct, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (m *memProducts) List(context.Context) ([]domain.BaseProduct, error) { return nil, nil }

func (m *memProducts) Update(_ context.Context, p *domain.BaseProduct) error {
	m.products[p.ID] = *p
	return nil
}

func (m *memProducts) Delete(_ context.Context, id int64) error {
	delete(m.products, id)
	return nil
}

type memReferences struct {
	refs []domain.Reference
}

func (m *memReferences) Create(_ context.Context, r *domain.Reference) error {
	r.ID = int64(len(m.refs) + 1)
	m.refs = append(m.refs, *r)
	return nil
}

func (m *memReferences) ListByBaseProduct(_ context.Context, id int64) ([]domain.Reference, error) {
	var out []domain.Reference
	for _, r := range m.refs {
		if r.BaseProductID == id {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memReferences) Delete(context.Context, int64) (domain.ImageRef, error) {
	return domain.ImageRef{}, nil
}

type memPrompts struct {
	templates []domain.PromptTemplate
}

func (m *memPrompts) Create(_ context.Context, t *domain.PromptTemplate) error {
	t.ID = int64(len(m.templates) + 1)
	m.templates = append(m.templates, *t)
	return nil
}

func (m *memPrompts) GetByIDs(_ context.Context, ids []int64) ([]domain.PromptTemplate, error) {
	var out []domain.PromptTemplate
	for _, t := range m.templates {
		for _, id := range ids {
			if t.ID == id {
				out = append(out, t)
				break
			}
		}
	}
	return out, nil
}

func (m *memPrompts) List(context.Context) ([]domain.PromptTemplate, error) { return m.templates, nil }
func (m *memPrompts) Update(context.Context, *domain.PromptTemplate) error  { return nil }
func (m *memPrompts) Delete(context.Context, int64) error                   { return nil }
func (m *memPrompts) Count(context.Context) (int, error)                    { return len(m.templates), nil }

type stubGenerator struct {
	mu    sync.Mutex
	calls []genai.Request
	fn    func(ctx context.Context, call int, req genai.Request) (genai.Result, error)
}

func (s *stubGenerator) Generate(ctx context.Context, req genai.Request) (genai.Result, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	call := len(s.calls)
	s.mu.Unlock()
	if s.fn == nil {
		return genai.Result{Kind: genai.ResultImage, Data: []byte("generated-" + req.RequestID), MIMEType: "image/png"}, nil
	}
	return s.fn(ctx, call, req)
}

func (s *stubGenerator) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// queueDispatcher holds tasks until drain is called.
type queueDispatcher struct {
	mu        sync.Mutex
	tasks     []worker.Task
	submitErr error
}

func (q *queueDispatcher) Submit(t worker.Task) error {
	if q.submitErr != nil {
		return q.submitErr
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, t)
	return nil
}

func (q *queueDispatcher) drain(t *testing.T) {
	t.Helper()
	for {
		q.mu.Lock()
		if len(q.tasks) == 0 {
			q.mu.Unlock()
			return
		}
		task := q.tasks[0]
		q.tasks = q.tasks[1:]
		q.mu.Unlock()
		_ = task.Run(context.Background())
	}
}

type fixture struct {
	orch       *Orchestrator
	jobs       *memJobs
	products   *memProducts
	references *memReferences
	prompts    *memPrompts
	store      *storage.Store
	gen        *stubGenerator
	dispatcher *queueDispatcher
	product    domain.BaseProduct
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	local, err := storage.NewFileStore(t.TempDir(), "http://localhost/uploads")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	f := &fixture{
		jobs:       newMemJobs(),
		products:   &memProducts{products: map[int64]domain.BaseProduct{}},
		references: &memReferences{},
		prompts:    &memPrompts{},
		store:      storage.NewStore(local),
		gen:        &stubGenerator{},
		dispatcher: &queueDispatcher{},
	}
	ctx := context.Background()

	templateRef, err := f.store.Store(ctx, []byte("template-bytes"), storage.CategoryBaseProducts, "stick.png", "image/png")
	if err != nil {
		t.Fatalf("store template: %v", err)
	}
	f.product = domain.BaseProduct{
		Name:        "Light stick",
		Description: "Acrylic panel on a grip",
		Image:       domain.ImageRef{Ref: templateRef, MIME: "image/png"},
		Parts:       "panel, grip",
		Constraints: "grip stays black",
	}
	_ = f.products.Create(ctx, &f.product)

	for i, desc := range []string{"pastel", "stars"} {
		ref, err := f.store.Store(ctx, []byte("reference-"+desc), storage.CategoryReferences, "r.png", "image/png")
		if err != nil {
			t.Fatalf("store reference %d: %v", i, err)
		}
		_ = f.references.Create(ctx, &domain.Reference{BaseProductID: f.product.ID, Description: desc, Image: domain.ImageRef{Ref: ref, MIME: "image/png"}})
	}
	for _, p := range domain.DefaultPromptTemplates {
		p := p
		_ = f.prompts.Create(ctx, &p)
	}

	f.orch = New(Deps{
		Jobs:       f.jobs,
		Products:   f.products,
		References: f.references,
		Prompts:    f.prompts,
		Blobs:      f.store,
		Generator:  f.gen,
		Dispatcher: f.dispatcher,
		Logger:     zerolog.New(io.Discard),
		Timeout:    time.Second,
		InputCache: cache.New(time.Minute, time.Minute),
	})
	return f
}

func (f *fixture) job(t *testing.T, id string) *domain.Job {
	t.Helper()
	j, err := f.jobs.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("load job %s: %v", id, err)
	}
	return j
}

// completedJob creates and runs a job to completion.
func (f *fixture) completedJob(t *testing.T) *domain.Job {
	t.Helper()
	job, err := f.orch.CreateJob(context.Background(), CreateJobInput{BaseProductID: f.product.ID, Concept: "galaxy"})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	f.dispatcher.drain(t)
	got := f.job(t, job.ID)
	if got.Status != domain.JobStatusCompleted {
		t.Fatalf("job status = %s (%s)", got.Status, got.ErrorMessage)
	}
	return got
}

type recordingBlobs struct {
	Blobs
	stored []string
}

func (r *recordingBlobs) Store(ctx context.Context, data []byte, category, name, mime string) (string, error) {
	ref, err := r.Blobs.Store(ctx, data, category, name, mime)
	if err == nil {
		r.stored = append(r.stored, ref)
	}
	return ref, err
}

// failingStore refuses generated artifacts once allow successful writes
// have been used up.
type failingStore struct {
	Blobs
	allow  int
	stored []string
}

func (f *failingStore) Store(ctx context.Context, data []byte, category, name, mime string) (string, error) {
	if category == storage.CategoryGenerated {
		if f.allow == 0 {
			return "", errors.New("disk full")
		}
		f.allow--
	}
	ref, err := f.Blobs.Store(ctx, data, category, name, mime)
	if err == nil && category == storage.CategoryGenerated {
		f.stored = append(f.stored, ref)
	}
	return ref, err
}

// gatedBlobs holds Fetch of one ref until release is closed.
type gatedBlobs struct {
	Blobs
	ref     string
	entered chan struct{}
	release chan struct{}
}

func (g *gatedBlobs) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if ref == g.ref {
		select {
		case g.entered <- struct{}{}:
		default:
		}
		<-g.release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return g.Blobs.Fetch(ctx, ref)
}
