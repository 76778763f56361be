package pipeline

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"mockupstudio/internal/domain"
	"mockupstudio/internal/imagegen"
	"mockupstudio/internal/providers/genai"
	"mockupstudio/internal/storage"
)

// runJob generates and stores the job's artifact, then writes exactly one
// terminal status.
func (o *Orchestrator) runJob(ctx context.Context, job *domain.Job) error {
	log := o.logger.With().Str("job_id", job.ID).Str("kind", string(job.Kind)).Logger()
	log.Info().Msg("pipeline: job started")

	req, err := o.buildRequest(ctx, job)
	if err != nil {
		o.failJob(job.ID, err)
		return err
	}
	ref, mime, err := o.generateAndStore(ctx, req)
	if err != nil {
		o.failJob(job.ID, err)
		return err
	}

	wctx, cancel := terminalContext(ctx)
	defer cancel()
	if err := o.jobs.MarkCompleted(wctx, job.ID, ref, mime); err != nil {
		o.discard([]string{ref})
		if isTerminated(err) {
			log.Warn().Msg("pipeline: job already terminal, artifact discarded")
			return nil
		}
		o.failJob(job.ID, fmt.Errorf("record artifact: %w", err))
		return err
	}
	log.Info().Str("artifact", ref).Msg("pipeline: job completed")
	return nil
}

// runSimulation renders the variants in order. Any failure discards the
// variants stored so far and fails the whole batch.
func (o *Orchestrator) runSimulation(ctx context.Context, job *domain.Job, templates []domain.PromptTemplate) error {
	log := o.logger.With().Str("job_id", job.ID).Int("variants", len(templates)).Logger()
	log.Info().Msg("pipeline: simulation started")

	source := domain.ImageRef{Ref: *job.ArtifactRef, MIME: job.ArtifactMIME}
	images, err := o.resolveImages(ctx, []domain.ImageRef{source}, false)
	if err != nil {
		o.failSimulation(job.ID, err)
		return err
	}

	refs := make([]string, 0, len(templates))
	for i, t := range templates {
		req := genai.Request{
			Instruction: imagegen.SimulationInstruction(t.Prompt, job.Inputs.Concept),
			Images:      images,
			RequestID:   fmt.Sprintf("%s-sim-%d", job.ID, i+1),
		}
		ref, _, err := o.generateAndStore(ctx, req)
		if err != nil {
			o.discard(refs)
			err = fmt.Errorf("variant %d (%s): %w", i+1, t.Name, err)
			o.failSimulation(job.ID, err)
			return err
		}
		refs = append(refs, ref)
	}

	wctx, cancel := terminalContext(ctx)
	defer cancel()
	if err := o.jobs.CompleteSimulation(wctx, job.ID, refs); err != nil {
		o.discard(refs)
		if !errors.Is(err, domain.ErrConflict) {
			o.failSimulation(job.ID, fmt.Errorf("record variants: %w", err))
		}
		return err
	}
	log.Info().Strs("refs", refs).Msg("pipeline: simulation completed")
	return nil
}

func (o *Orchestrator) buildRequest(ctx context.Context, job *domain.Job) (genai.Request, error) {
	in := job.Inputs
	switch job.Kind {
	case domain.JobKindModification:
		if in.Source == nil {
			return genai.Request{}, fmt.Errorf("%w: modification job has no source", domain.ErrInputUnavailable)
		}
		images, err := o.resolveImages(ctx, []domain.ImageRef{*in.Source}, false)
		if err != nil {
			return genai.Request{}, err
		}
		return genai.Request{
			Instruction: imagegen.ModificationInstruction(in.ChangeRequest),
			Images:      images,
			RequestID:   job.ID,
		}, nil
	default:
		shared, err := o.resolveImages(ctx, append([]domain.ImageRef{in.Template}, in.References...), true)
		if err != nil {
			return genai.Request{}, err
		}
		var uploaded []domain.ImageRef
		if in.Logo != nil {
			uploaded = append(uploaded, *in.Logo)
		}
		uploaded = append(uploaded, in.UserImages...)
		own, err := o.resolveImages(ctx, uploaded, false)
		if err != nil {
			return genai.Request{}, err
		}
		return genai.Request{
			Instruction: imagegen.DesignInstruction(imagegen.DesignInput{
				ProductName:        in.ProductName,
				ProductDescription: in.ProductText,
				Parts:              in.Parts,
				Constraints:        in.Constraints,
				References:         in.ReferenceText,
				HasLogo:            in.Logo != nil,
				UserImageCount:     len(in.UserImages),
				Concept:            in.Concept,
				Instructions:       in.Instructions,
			}),
			Images:    append(shared, own...),
			RequestID: job.ID,
		}, nil
	}
}

func (o *Orchestrator) generateAndStore(ctx context.Context, req genai.Request) (string, string, error) {
	gctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	res, err := o.gen.Generate(gctx, req)
	if err != nil {
		if errors.Is(gctx.Err(), context.DeadlineExceeded) {
			return "", "", fmt.Errorf("generation timed out after %s: %w", o.timeout, err)
		}
		return "", "", fmt.Errorf("generate: %w", err)
	}
	data, mime, err := res.Image()
	if err != nil {
		return "", "", err
	}
	ref, err := o.blobs.Store(ctx, data, storage.CategoryGenerated, "", mime)
	if err != nil {
		return "", "", fmt.Errorf("store artifact: %w", err)
	}
	return ref, mime, nil
}

// resolveImages fetches refs concurrently and returns them in input order.
func (o *Orchestrator) resolveImages(ctx context.Context, refs []domain.ImageRef, cacheable bool) ([]genai.InlineImage, error) {
	out := make([]genai.InlineImage, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, ref := range refs {
		i, ref := i, ref
		g.Go(func() error {
			data, err := o.fetch(gctx, ref.Ref, cacheable)
			if err != nil {
				return inputUnavailable(ref.Ref, err)
			}
			out[i] = genai.InlineImage{MIMEType: mimeOrDetect(ref.MIME, data), Data: data}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (o *Orchestrator) fetch(ctx context.Context, ref string, cacheable bool) ([]byte, error) {
	if !cacheable || o.cache == nil {
		return o.blobs.Fetch(ctx, ref)
	}
	if v, ok := o.cache.Get(ref); ok {
		return v.([]byte), nil
	}
	// Jobs waiting on the same ref share one fetch, detached from every
	// caller's cancellation.
	ch := o.fetches.DoChan(ref, func() (any, error) {
		if v, ok := o.cache.Get(ref); ok {
			return v, nil
		}
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedFetchTTL)
		defer cancel()
		data, err := o.blobs.Fetch(fctx, ref)
		if err != nil {
			return nil, err
		}
		o.cache.SetDefault(ref, data)
		return data, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

func (o *Orchestrator) failJob(id string, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), terminalWriteTTL)
	defer cancel()
	msg := truncate(cause.Error())
	if err := o.jobs.MarkFailed(ctx, id, msg); err != nil {
		if isTerminated(err) {
			return
		}
		o.logger.Error().Err(err).Str("job_id", id).Msg("pipeline: could not record failure")
		return
	}
	o.logger.Warn().Str("job_id", id).Str("reason", msg).Msg("pipeline: job failed")
}

func (o *Orchestrator) failSimulation(id string, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), terminalWriteTTL)
	defer cancel()
	msg := truncate(cause.Error())
	if err := o.jobs.FailSimulation(ctx, id, msg); err != nil && !errors.Is(err, domain.ErrConflict) {
		o.logger.Error().Err(err).Str("job_id", id).Msg("pipeline: could not record simulation failure")
		return
	}
	o.logger.Warn().Str("job_id", id).Str("reason", msg).Msg("pipeline: simulation failed")
}

// terminalContext keeps terminal writes alive after the task context ends.
func terminalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), terminalWriteTTL)
}
