package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"mockupstudio/internal/domain"
	"mockupstudio/internal/providers/genai"
	"mockupstudio/internal/storage"
	"mockupstudio/internal/worker"
)

const (
	// MaxUserImages bounds the extra images attached to one job.
	MaxUserImages = 10

	defaultTimeout   = 180 * time.Second
	terminalWriteTTL = 15 * time.Second
	sharedFetchTTL   = 60 * time.Second
	maxErrorMessage  = 500
)

// Generator produces one artifact per call.
type Generator interface {
	Generate(ctx context.Context, req genai.Request) (genai.Result, error)
}

// Blobs is the storage surface the orchestrator needs.
type Blobs interface {
	Store(ctx context.Context, data []byte, category, suggestedName, mime string) (string, error)
	Fetch(ctx context.Context, ref string) ([]byte, error)
	Exists(ctx context.Context, ref string) (bool, error)
	Delete(ctx context.Context, ref string) error
}

// Dispatcher runs background tasks.
type Dispatcher interface {
	Submit(t worker.Task) error
}

// Deps wires the orchestrator's collaborators.
type Deps struct {
	Jobs       domain.JobRepository
	Products   domain.BaseProductRepository
	References domain.ReferenceRepository
	Prompts    domain.PromptTemplateRepository
	Blobs      Blobs
	Generator  Generator
	Dispatcher Dispatcher
	Logger     zerolog.Logger
	// Timeout bounds each generation call.
	Timeout time.Duration
	// InputCache holds template and reference bytes, which never change
	// once stored. Nil disables caching.
	InputCache *cache.Cache
}

// Orchestrator accepts generation requests, persists pending jobs and runs
// generation in the background until each job reaches a terminal status.
type Orchestrator struct {
	jobs       domain.JobRepository
	products   domain.BaseProductRepository
	references domain.ReferenceRepository
	prompts    domain.PromptTemplateRepository
	blobs      Blobs
	gen        Generator
	dispatcher Dispatcher
	logger     zerolog.Logger
	timeout    time.Duration
	cache      *cache.Cache
	fetches    singleflight.Group
}

// New builds an Orchestrator.
func New(d Deps) *Orchestrator {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Orchestrator{
		jobs:       d.Jobs,
		products:   d.Products,
		references: d.References,
		prompts:    d.Prompts,
		blobs:      d.Blobs,
		gen:        d.Generator,
		dispatcher: d.Dispatcher,
		logger:     d.Logger,
		timeout:    timeout,
		cache:      d.InputCache,
	}
}

// CreateJobInput is a request for a new mockup.
type CreateJobInput struct {
	BaseProductID int64
	ReferenceIDs  []int64
	Logo          *domain.Upload
	UserImages    []domain.Upload
	Concept       string
	Instructions  string
}

// CreateJob validates the request, stores uploaded images, persists a pending
// job and schedules its generation.
func (o *Orchestrator) CreateJob(ctx context.Context, in CreateJobInput) (*domain.Job, error) {
	if in.BaseProductID <= 0 {
		return nil, fmt.Errorf("%w: baseProductId is required", domain.ErrInvalidInput)
	}
	if len(in.UserImages) > MaxUserImages {
		return nil, fmt.Errorf("%w: at most %d user images", domain.ErrInvalidInput, MaxUserImages)
	}

	product, err := o.products.GetByID(ctx, in.BaseProductID)
	if err != nil {
		return nil, fmt.Errorf("load base product %d: %w", in.BaseProductID, err)
	}
	refs, err := o.selectReferences(ctx, product.ID, in.ReferenceIDs)
	if err != nil {
		return nil, err
	}

	inputs := domain.JobInputs{
		Template:     product.Image,
		ProductName:  product.Name,
		ProductText:  product.Description,
		Parts:        product.Parts,
		Constraints:  product.Constraints,
		Concept:      strings.TrimSpace(in.Concept),
		Instructions: strings.TrimSpace(in.Instructions),
	}
	for _, r := range refs {
		inputs.ReferenceIDs = append(inputs.ReferenceIDs, r.ID)
		inputs.References = append(inputs.References, r.Image)
		inputs.ReferenceText = append(inputs.ReferenceText, r.Description)
	}

	var stored []string
	keep := func(ref string) { stored = append(stored, ref) }
	if in.Logo != nil && len(in.Logo.Data) > 0 {
		ref, err := o.blobs.Store(ctx, in.Logo.Data, storage.CategoryLogos, in.Logo.Filename, in.Logo.MIME)
		if err != nil {
			return nil, fmt.Errorf("store logo: %w", err)
		}
		keep(ref)
		inputs.Logo = &domain.ImageRef{Ref: ref, MIME: mimeOrDetect(in.Logo.MIME, in.Logo.Data)}
	}
	for i, up := range in.UserImages {
		if len(up.Data) == 0 {
			continue
		}
		ref, err := o.blobs.Store(ctx, up.Data, storage.CategoryUserImages, up.Filename, up.MIME)
		if err != nil {
			o.discard(stored)
			return nil, fmt.Errorf("store user image %d: %w", i+1, err)
		}
		keep(ref)
		inputs.UserImages = append(inputs.UserImages, domain.ImageRef{Ref: ref, MIME: mimeOrDetect(up.MIME, up.Data)})
	}

	job := newPendingJob(domain.JobKindInitial, product.ID, nil, inputs)
	if err := o.jobs.Create(ctx, job); err != nil {
		o.discard(stored)
		return nil, fmt.Errorf("create job: %w", err)
	}
	o.schedule(job)
	return job, nil
}

// Regenerate forks a job with the same inputs. Uploaded images are copied to
// fresh references; template and reference images are shared.
func (o *Orchestrator) Regenerate(ctx context.Context, jobID string) (*domain.Job, error) {
	src, err := o.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	inputs := src.Inputs
	shared := append([]domain.ImageRef{inputs.Template}, inputs.References...)
	if inputs.Source != nil {
		shared = append(shared, *inputs.Source)
	}
	for _, ref := range shared {
		if ref.Ref == "" {
			continue
		}
		ok, err := o.blobs.Exists(ctx, ref.Ref)
		if err != nil || !ok {
			return nil, inputUnavailable(ref.Ref, err)
		}
	}

	var stored []string
	if src.Inputs.Logo != nil {
		copied, err := o.copyInput(ctx, *src.Inputs.Logo, storage.CategoryLogos)
		if err != nil {
			return nil, err
		}
		stored = append(stored, copied.Ref)
		inputs.Logo = &copied
	}
	inputs.UserImages = nil
	for _, img := range src.Inputs.UserImages {
		copied, err := o.copyInput(ctx, img, storage.CategoryUserImages)
		if err != nil {
			o.discard(stored)
			return nil, err
		}
		stored = append(stored, copied.Ref)
		inputs.UserImages = append(inputs.UserImages, copied)
	}

	parent := src.ID
	job := newPendingJob(src.Kind, src.BaseProductID, &parent, inputs)
	if err := o.jobs.Create(ctx, job); err != nil {
		o.discard(stored)
		return nil, fmt.Errorf("create job: %w", err)
	}
	o.schedule(job)
	return job, nil
}

// Modify creates a modification job from a completed job's artifact.
func (o *Orchestrator) Modify(ctx context.Context, jobID, changeText string) (*domain.Job, error) {
	changeText = strings.TrimSpace(changeText)
	if changeText == "" {
		return nil, fmt.Errorf("%w: changeText is required", domain.ErrInvalidInput)
	}
	src, err := o.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if src.Status != domain.JobStatusCompleted || src.ArtifactRef == nil {
		return nil, fmt.Errorf("%w: job %s is %s", domain.ErrNotCompleted, src.ID, src.Status)
	}

	inputs := domain.JobInputs{
		Template:      src.Inputs.Template,
		ProductName:   src.Inputs.ProductName,
		ProductText:   src.Inputs.ProductText,
		Parts:         src.Inputs.Parts,
		Constraints:   src.Inputs.Constraints,
		Concept:       src.Inputs.Concept,
		ChangeRequest: changeText,
		Source:        &domain.ImageRef{Ref: *src.ArtifactRef, MIME: src.ArtifactMIME},
	}
	parent := src.ID
	job := newPendingJob(domain.JobKindModification, src.BaseProductID, &parent, inputs)
	if err := o.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	o.schedule(job)
	return job, nil
}

// GenerateSimulationVariants renders one scene per prompt template from a
// completed job's artifact. The batch is all-or-nothing.
func (o *Orchestrator) GenerateSimulationVariants(ctx context.Context, jobID string, templateIDs []int64) error {
	if n := len(templateIDs); n < 1 || n > domain.MaxSimulationTemplates {
		return fmt.Errorf("%w: between 1 and %d templateIds required, got %d", domain.ErrInvalidInput, domain.MaxSimulationTemplates, n)
	}
	for _, id := range templateIDs {
		if id <= 0 {
			return fmt.Errorf("%w: invalid template id %d", domain.ErrInvalidInput, id)
		}
	}

	job, err := o.jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != domain.JobStatusCompleted || job.ArtifactRef == nil {
		return fmt.Errorf("%w: job %s is %s", domain.ErrNotCompleted, job.ID, job.Status)
	}
	if job.SimulationStatus == domain.SimulationGenerating {
		return fmt.Errorf("%w: simulation already running for job %s", domain.ErrConflict, job.ID)
	}

	found, err := o.prompts.GetByIDs(ctx, templateIDs)
	if err != nil {
		return fmt.Errorf("load prompt templates: %w", err)
	}
	byID := make(map[int64]domain.PromptTemplate, len(found))
	for _, t := range found {
		byID[t.ID] = t
	}
	templates := make([]domain.PromptTemplate, 0, len(templateIDs))
	for _, id := range templateIDs {
		t, ok := byID[id]
		if !ok {
			return fmt.Errorf("prompt template %d: %w", id, domain.ErrNotFound)
		}
		templates = append(templates, t)
	}

	if err := o.jobs.BeginSimulation(ctx, job.ID); err != nil {
		return err
	}
	job.SimulationStatus = domain.SimulationGenerating

	err = o.dispatcher.Submit(worker.Task{
		Name:    "simulate:" + job.ID,
		Run:     func(ctx context.Context) error { return o.runSimulation(ctx, job, templates) },
		OnPanic: func(r any) { o.failSimulation(job.ID, fmt.Errorf("panic: %v", r)) },
	})
	if err != nil {
		o.logger.Error().Err(err).Str("job_id", job.ID).Msg("pipeline: simulation not scheduled")
		o.failSimulation(job.ID, fmt.Errorf("schedule: %w", err))
	}
	return nil
}

// Job returns a job by id.
func (o *Orchestrator) Job(ctx context.Context, id string) (*domain.Job, error) {
	return o.jobs.GetByID(ctx, id)
}

// Jobs lists recent jobs, optionally for one base product.
func (o *Orchestrator) Jobs(ctx context.Context, baseProductID int64, limit int) ([]domain.Job, error) {
	return o.jobs.List(ctx, baseProductID, limit)
}

// DeleteJob removes the job record. Stored artifacts are left in place.
func (o *Orchestrator) DeleteJob(ctx context.Context, id string) error {
	return o.jobs.Delete(ctx, id)
}

// RecoverInterrupted fails jobs and simulations left running by a previous
// process, since their background tasks no longer exist.
func (o *Orchestrator) RecoverInterrupted(ctx context.Context) error {
	n, err := o.jobs.FailInterrupted(ctx, "interrupted by server restart")
	if err != nil {
		return fmt.Errorf("recover interrupted jobs: %w", err)
	}
	if n > 0 {
		o.logger.Warn().Int64("count", n).Msg("pipeline: failed interrupted jobs")
	}
	return nil
}

func (o *Orchestrator) selectReferences(ctx context.Context, productID int64, ids []int64) ([]domain.Reference, error) {
	all, err := o.references.ListByBaseProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("load references: %w", err)
	}
	if len(ids) == 0 {
		return all, nil
	}
	byID := make(map[int64]domain.Reference, len(all))
	for _, r := range all {
		byID[r.ID] = r
	}
	out := make([]domain.Reference, 0, len(ids))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		r, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: reference %d does not belong to base product %d", domain.ErrInvalidInput, id, productID)
		}
		out = append(out, r)
	}
	return out, nil
}

func (o *Orchestrator) copyInput(ctx context.Context, img domain.ImageRef, category string) (domain.ImageRef, error) {
	data, err := o.blobs.Fetch(ctx, img.Ref)
	if err != nil {
		return domain.ImageRef{}, inputUnavailable(img.Ref, err)
	}
	mime := mimeOrDetect(img.MIME, data)
	ref, err := o.blobs.Store(ctx, data, category, "", mime)
	if err != nil {
		return domain.ImageRef{}, fmt.Errorf("copy %s: %w", img.Ref, err)
	}
	return domain.ImageRef{Ref: ref, MIME: mime}, nil
}

// schedule submits the job's generation. A job that cannot be scheduled is
// failed right away so it never stays pending.
func (o *Orchestrator) schedule(job *domain.Job) {
	snapshot := *job
	err := o.dispatcher.Submit(worker.Task{
		Name:    "job:" + job.ID,
		Run:     func(ctx context.Context) error { return o.runJob(ctx, &snapshot) },
		OnPanic: func(r any) { o.failJob(snapshot.ID, fmt.Errorf("panic: %v", r)) },
	})
	if err != nil {
		o.logger.Error().Err(err).Str("job_id", job.ID).Msg("pipeline: job not scheduled")
		o.failJob(job.ID, fmt.Errorf("schedule: %w", err))
		job.Status = domain.JobStatusFailed
		job.ErrorMessage = truncate("schedule: " + err.Error())
	}
}

func (o *Orchestrator) discard(refs []string) {
	if len(refs) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), terminalWriteTTL)
	defer cancel()
	for _, ref := range refs {
		if err := o.blobs.Delete(ctx, ref); err != nil {
			o.logger.Warn().Err(err).Str("ref", ref).Msg("pipeline: cleanup failed")
		}
	}
}

func newPendingJob(kind domain.JobKind, productID int64, parent *string, inputs domain.JobInputs) *domain.Job {
	now := time.Now().UTC()
	return &domain.Job{
		ID:               uuid.NewString(),
		Kind:             kind,
		BaseProductID:    productID,
		ParentID:         parent,
		Inputs:           inputs,
		Status:           domain.JobStatusPending,
		SimulationStatus: domain.SimulationIdle,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func inputUnavailable(ref string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%w: %s", domain.ErrInputUnavailable, ref)
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrInputUnavailable, ref, cause)
}

func mimeOrDetect(mime string, data []byte) string {
	if mime = strings.TrimSpace(mime); mime != "" {
		return mime
	}
	return storage.DetectMIME(data)
}

// truncate makes msg storable in a text column: valid UTF-8, no NUL bytes
// and at most maxErrorMessage bytes, cut on a character boundary.
func truncate(msg string) string {
	msg = strings.ReplaceAll(strings.ToValidUTF8(msg, "\uFFFD"), "\x00", "")
	if len(msg) <= maxErrorMessage {
		return msg
	}
	n := maxErrorMessage
	for n > 0 && !utf8.RuneStart(msg[n]) {
		n--
	}
	return msg[:n]
}

func isTerminated(err error) bool {
	return errors.Is(err, domain.ErrAlreadyTerminated)
}
