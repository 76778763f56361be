package repo

import (
	"context"

	"mockupstudio/internal/domain"
	"mockupstudio/internal/infra"
	"mockupstudio/internal/sqlinline"
)

// BaseProductRepositoryPG implements domain.BaseProductRepository.
type BaseProductRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewBaseProductRepository(sql infra.SQLExecutor) *BaseProductRepositoryPG {
	return &BaseProductRepositoryPG{sql: sql}
}

func (r *BaseProductRepositoryPG) Create(ctx context.Context, p *domain.BaseProduct) error {
	return r.sql.QueryRow(ctx, sqlinline.QInsertBaseProduct,
		p.Name, p.Description, p.Image.Ref, p.Image.MIME, p.Parts, p.Constraints,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

func (r *BaseProductRepositoryPG) GetByID(ctx context.Context, id int64) (*domain.BaseProduct, error) {
	var p domain.BaseProduct
	err := r.sql.QueryRow(ctx, sqlinline.QSelectBaseProductByID, id).Scan(
		&p.ID, &p.Name, &p.Description, &p.Image.Ref, &p.Image.MIME, &p.Parts, &p.Constraints, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *BaseProductRepositoryPG) List(ctx context.Context) ([]domain.BaseProduct, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListBaseProducts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.BaseProduct
	for rows.Next() {
		var p domain.BaseProduct
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Image.Ref, &p.Image.MIME, &p.Parts, &p.Constraints, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *BaseProductRepositoryPG) Update(ctx context.Context, p *domain.BaseProduct) error {
	err := r.sql.QueryRow(ctx, sqlinline.QUpdateBaseProduct,
		p.ID, p.Name, p.Description, p.Image.Ref, p.Image.MIME, p.Parts, p.Constraints,
	).Scan(&p.UpdatedAt)
	if infra.IsNoRows(err) {
		return domain.ErrNotFound
	}
	return err
}

// Delete removes the product. References and jobs go with it.
func (r *BaseProductRepositoryPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QDeleteBaseProduct, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ReferenceRepositoryPG implements domain.ReferenceRepository.
type ReferenceRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewReferenceRepository(sql infra.SQLExecutor) *ReferenceRepositoryPG {
	return &ReferenceRepositoryPG{sql: sql}
}

func (r *ReferenceRepositoryPG) Create(ctx context.Context, ref *domain.Reference) error {
	return r.sql.QueryRow(ctx, sqlinline.QInsertReference,
		ref.BaseProductID, ref.Description, ref.Image.Ref, ref.Image.MIME,
	).Scan(&ref.ID, &ref.CreatedAt)
}

func (r *ReferenceRepositoryPG) ListByBaseProduct(ctx context.Context, baseProductID int64) ([]domain.Reference, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListReferencesByProduct, baseProductID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.Reference
	for rows.Next() {
		var ref domain.Reference
		if err := rows.Scan(&ref.ID, &ref.BaseProductID, &ref.Description, &ref.Image.Ref, &ref.Image.MIME, &ref.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *ReferenceRepositoryPG) Delete(ctx context.Context, id int64) (domain.ImageRef, error) {
	var img domain.ImageRef
	if err := r.sql.QueryRow(ctx, sqlinline.QDeleteReference, id).Scan(&img.Ref, &img.MIME); err != nil {
		if infra.IsNoRows(err) {
			return img, domain.ErrNotFound
		}
		return img, err
	}
	return img, nil
}

// PromptTemplateRepositoryPG implements domain.PromptTemplateRepository.
type PromptTemplateRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewPromptTemplateRepository(sql infra.SQLExecutor) *PromptTemplateRepositoryPG {
	return &PromptTemplateRepositoryPG{sql: sql}
}

func (r *PromptTemplateRepositoryPG) Create(ctx context.Context, t *domain.PromptTemplate) error {
	return r.sql.QueryRow(ctx, sqlinline.QInsertPromptTemplate, t.Name, t.Prompt, t.IsDefault).
		Scan(&t.ID, &t.CreatedAt)
}

// GetByIDs returns the templates that exist among ids, in no particular order.
func (r *PromptTemplateRepositoryPG) GetByIDs(ctx context.Context, ids []int64) ([]domain.PromptTemplate, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.list(ctx, sqlinline.QSelectPromptTemplatesByIDs, ids)
}

func (r *PromptTemplateRepositoryPG) List(ctx context.Context) ([]domain.PromptTemplate, error) {
	return r.list(ctx, sqlinline.QListPromptTemplates)
}

func (r *PromptTemplateRepositoryPG) list(ctx context.Context, query string, args ...any) ([]domain.PromptTemplate, error) {
	rows, err := r.sql.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.PromptTemplate
	for rows.Next() {
		var t domain.PromptTemplate
		if err := rows.Scan(&t.ID, &t.Name, &t.Prompt, &t.IsDefault, &t.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *PromptTemplateRepositoryPG) Update(ctx context.Context, t *domain.PromptTemplate) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QUpdatePromptTemplate, t.ID, t.Name, t.Prompt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PromptTemplateRepositoryPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QDeletePromptTemplate, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PromptTemplateRepositoryPG) Count(ctx context.Context) (int, error) {
	var n int
	err := r.sql.QueryRow(ctx, sqlinline.QCountPromptTemplates).Scan(&n)
	return n, err
}
