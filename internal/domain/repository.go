package domain

import "context"

// JobRepository persists generation jobs. Terminal writes are conditional so
// a job leaves pending at most once.
type JobRepository interface {
	Create(ctx context.Context, job *Job) error
	GetByID(ctx context.Context, id string) (*Job, error)
	List(ctx context.Context, baseProductID int64, limit int) ([]Job, error)
	MarkCompleted(ctx context.Context, id, artifactRef, artifactMIME string) error
	MarkFailed(ctx context.Context, id, reason string) error
	BeginSimulation(ctx context.Context, id string) error
	CompleteSimulation(ctx context.Context, id string, refs []string) error
	FailSimulation(ctx context.Context, id, reason string) error
	FailInterrupted(ctx context.Context, reason string) (int64, error)
	Delete(ctx context.Context, id string) error
}

// BaseProductRepository persists base product templates.
type BaseProductRepository interface {
	Create(ctx context.Context, p *BaseProduct) error
	GetByID(ctx context.Context, id int64) (*BaseProduct, error)
	List(ctx context.Context) ([]BaseProduct, error)
	Update(ctx context.Context, p *BaseProduct) error
	Delete(ctx context.Context, id int64) error
}

// ReferenceRepository persists reference images.
type ReferenceRepository interface {
	Create(ctx context.Context, ref *Reference) error
	ListByBaseProduct(ctx context.Context, baseProductID int64) ([]Reference, error)
	// Delete removes the row and returns the image it pointed at.
	Delete(ctx context.Context, id int64) (ImageRef, error)
}

// PromptTemplateRepository persists simulation prompt templates.
type PromptTemplateRepository interface {
	Create(ctx context.Context, t *PromptTemplate) error
	GetByIDs(ctx context.Context, ids []int64) ([]PromptTemplate, error)
	List(ctx context.Context) ([]PromptTemplate, error)
	Update(ctx context.Context, t *PromptTemplate) error
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int, error)
}
