// Package catalog manages the inputs operators register ahead of generation:
// base products, their reference images and simulation prompt templates.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"mockupstudio/internal/domain"
	"mockupstudio/internal/storage"
)

// Blobs is the storage surface the catalog needs.
type Blobs interface {
	Store(ctx context.Context, data []byte, category, suggestedName, mime string) (string, error)
	Delete(ctx context.Context, ref string) error
}

// Service implements catalog administration.
type Service struct {
	products   domain.BaseProductRepository
	references domain.ReferenceRepository
	prompts    domain.PromptTemplateRepository
	blobs      Blobs
	logger     zerolog.Logger
}

func NewService(products domain.BaseProductRepository, references domain.ReferenceRepository, prompts domain.PromptTemplateRepository, blobs Blobs, logger zerolog.Logger) *Service {
	return &Service{
		products:   products,
		references: references,
		prompts:    prompts,
		blobs:      blobs,
		logger:     logger,
	}
}

// ProductInput carries a create request. Image is required.
type ProductInput struct {
	Name        string
	Description string
	Parts       string
	Constraints string
	Image       *domain.Upload
}

// ProductPatch carries an update. Nil fields are left unchanged.
type ProductPatch struct {
	Name        *string
	Description *string
	Parts       *string
	Constraints *string
	Image       *domain.Upload
}

func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (*domain.BaseProduct, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}
	if in.Image == nil || len(in.Image.Data) == 0 {
		return nil, fmt.Errorf("%w: image is required", domain.ErrInvalidInput)
	}
	img, err := s.storeImage(ctx, *in.Image, storage.CategoryBaseProducts)
	if err != nil {
		return nil, err
	}
	p := &domain.BaseProduct{
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Image:       img,
		Parts:       strings.TrimSpace(in.Parts),
		Constraints: strings.TrimSpace(in.Constraints),
	}
	if err := s.products.Create(ctx, p); err != nil {
		s.release(ctx, img.Ref)
		return nil, fmt.Errorf("create base product: %w", err)
	}
	return p, nil
}

func (s *Service) Product(ctx context.Context, id int64) (*domain.BaseProduct, error) {
	return s.products.GetByID(ctx, id)
}

func (s *Service) Products(ctx context.Context) ([]domain.BaseProduct, error) {
	return s.products.List(ctx)
}

// UpdateProduct applies patch. A replaced image stays in storage because
// existing jobs still reference it for regeneration.
func (s *Service) UpdateProduct(ctx context.Context, id int64, patch ProductPatch) (*domain.BaseProduct, error) {
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", domain.ErrInvalidInput)
		}
		p.Name = name
	}
	if patch.Description != nil {
		p.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Parts != nil {
		p.Parts = strings.TrimSpace(*patch.Parts)
	}
	if patch.Constraints != nil {
		p.Constraints = strings.TrimSpace(*patch.Constraints)
	}

	replaced := false
	if patch.Image != nil && len(patch.Image.Data) > 0 {
		img, err := s.storeImage(ctx, *patch.Image, storage.CategoryBaseProducts)
		if err != nil {
			return nil, err
		}
		p.Image = img
		replaced = true
	}
	if err := s.products.Update(ctx, p); err != nil {
		if replaced {
			s.release(ctx, p.Image.Ref)
		}
		return nil, err
	}
	return p, nil
}

// DeleteProduct removes the product, its references and their images. Job
// rows go with the product; generated artifacts stay in storage.
func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return err
	}
	refs, err := s.references.ListByBaseProduct(ctx, id)
	if err != nil {
		return fmt.Errorf("load references: %w", err)
	}
	if err := s.products.Delete(ctx, id); err != nil {
		return err
	}
	s.release(ctx, p.Image.Ref)
	for _, r := range refs {
		s.release(ctx, r.Image.Ref)
	}
	return nil
}

func (s *Service) AddReference(ctx context.Context, baseProductID int64, description string, image *domain.Upload) (*domain.Reference, error) {
	if baseProductID <= 0 {
		return nil, fmt.Errorf("%w: baseProductId is required", domain.ErrInvalidInput)
	}
	if image == nil || len(image.Data) == 0 {
		return nil, fmt.Errorf("%w: image is required", domain.ErrInvalidInput)
	}
	if _, err := s.products.GetByID(ctx, baseProductID); err != nil {
		return nil, err
	}
	img, err := s.storeImage(ctx, *image, storage.CategoryReferences)
	if err != nil {
		return nil, err
	}
	ref := &domain.Reference{
		BaseProductID: baseProductID,
		Description:   strings.TrimSpace(description),
		Image:         img,
	}
	if err := s.references.Create(ctx, ref); err != nil {
		s.release(ctx, img.Ref)
		return nil, fmt.Errorf("create reference: %w", err)
	}
	return ref, nil
}

func (s *Service) References(ctx context.Context, baseProductID int64) ([]domain.Reference, error) {
	if baseProductID <= 0 {
		return nil, fmt.Errorf("%w: baseProductId is required", domain.ErrInvalidInput)
	}
	return s.references.ListByBaseProduct(ctx, baseProductID)
}

// DeleteReference removes the row only. Jobs created with the reference keep
// pointing at its image.
func (s *Service) DeleteReference(ctx context.Context, id int64) error {
	img, err := s.references.Delete(ctx, id)
	if err != nil {
		return err
	}
	s.logger.Debug().Int64("reference_id", id).Str("ref", img.Ref).Msg("catalog: reference removed, image retained")
	return nil
}

// PromptInput carries a prompt template create or update.
type PromptInput struct {
	Name   string
	Prompt string
}

func (in PromptInput) validate() (PromptInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Prompt = strings.TrimSpace(in.Prompt)
	if in.Name == "" || in.Prompt == "" {
		return in, fmt.Errorf("%w: name and prompt are required", domain.ErrInvalidInput)
	}
	return in, nil
}

func (s *Service) CreatePrompt(ctx context.Context, in PromptInput) (*domain.PromptTemplate, error) {
	in, err := in.validate()
	if err != nil {
		return nil, err
	}
	t := &domain.PromptTemplate{Name: in.Name, Prompt: in.Prompt}
	if err := s.prompts.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("create prompt template: %w", err)
	}
	return t, nil
}

func (s *Service) UpdatePrompt(ctx context.Context, id int64, in PromptInput) (*domain.PromptTemplate, error) {
	in, err := in.validate()
	if err != nil {
		return nil, err
	}
	t := &domain.PromptTemplate{ID: id, Name: in.Name, Prompt: in.Prompt}
	if err := s.prompts.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) DeletePrompt(ctx context.Context, id int64) error {
	return s.prompts.Delete(ctx, id)
}

func (s *Service) Prompts(ctx context.Context) ([]domain.PromptTemplate, error) {
	return s.prompts.List(ctx)
}

// SeedDefaultPrompts inserts the default templates when none exist yet.
func (s *Service) SeedDefaultPrompts(ctx context.Context) (int, error) {
	n, err := s.prompts.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count prompt templates: %w", err)
	}
	if n > 0 {
		return 0, nil
	}
	for i, def := range domain.DefaultPromptTemplates {
		t := def
		if err := s.prompts.Create(ctx, &t); err != nil {
			return i, fmt.Errorf("seed prompt template %q: %w", def.Name, err)
		}
	}
	s.logger.Info().Int("count", len(domain.DefaultPromptTemplates)).Msg("catalog: seeded default prompt templates")
	return len(domain.DefaultPromptTemplates), nil
}

func (s *Service) storeImage(ctx context.Context, up domain.Upload, category string) (domain.ImageRef, error) {
	mime := strings.TrimSpace(up.MIME)
	if mime == "" {
		mime = storage.DetectMIME(up.Data)
	}
	ref, err := s.blobs.Store(ctx, up.Data, category, up.Filename, mime)
	if err != nil {
		return domain.ImageRef{}, fmt.Errorf("store %s image: %w", category, err)
	}
	return domain.ImageRef{Ref: ref, MIME: mime}, nil
}

func (s *Service) release(ctx context.Context, ref string) {
	if ref == "" {
		return
	}
	if err := s.blobs.Delete(context.WithoutCancel(ctx), ref); err != nil {
		s.logger.Warn().Err(err).Str("ref", ref).Msg("catalog: image cleanup failed")
	}
}
