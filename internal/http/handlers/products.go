package handlers

import (
	"net/http"
	"time"

	"mockupstudio/internal/catalog"
	"mockupstudio/internal/domain"
)

type productResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	ImageRef    string    `json:"imageRef"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	Parts       string    `json:"parts"`
	Constraints string    `json:"constraints"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (a *App) productView(p *domain.BaseProduct) productResponse {
	return productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		ImageRef:    p.Image.Ref,
		ImageURL:    a.url(p.Image.Ref),
		Parts:       p.Parts,
		Constraints: p.Constraints,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func (a *App) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := a.Catalog.Products(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	items := make([]productResponse, 0, len(products))
	for i := range products {
		items = append(items, a.productView(&products[i]))
	}
	a.json(w, http.StatusOK, items)
}

func (a *App) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	p, err := a.Catalog.Product(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, a.productView(p))
}

func (a *App) CreateProduct(w http.ResponseWriter, r *http.Request) {
	if err := a.parseMultipart(w, r, 1); err != nil {
		a.fail(w, r, err)
		return
	}
	image, err := a.formImage(r, "image")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	name, _ := formValue(r, "name")
	description, _ := formValue(r, "description")
	parts, _ := formValue(r, "parts")
	constraints, _ := formValue(r, "constraints")

	p, err := a.Catalog.CreateProduct(r.Context(), catalog.ProductInput{
		Name:        name,
		Description: description,
		Parts:       parts,
		Constraints: constraints,
		Image:       image,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, a.productView(p))
}

func (a *App) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.parseMultipart(w, r, 1); err != nil {
		a.fail(w, r, err)
		return
	}
	image, err := a.formImage(r, "image")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	patch := catalog.ProductPatch{Image: image}
	if v, ok := formValue(r, "name"); ok {
		patch.Name = &v
	}
	if v, ok := formValue(r, "description"); ok {
		patch.Description = &v
	}
	if v, ok := formValue(r, "parts"); ok {
		patch.Parts = &v
	}
	if v, ok := formValue(r, "constraints"); ok {
		patch.Constraints = &v
	}

	p, err := a.Catalog.UpdateProduct(r.Context(), id, patch)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, a.productView(p))
}

func (a *App) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.Catalog.DeleteProduct(r.Context(), id); err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]bool{"deleted": true})
}
