package handlers

import (
	"net/http"
	"time"

	"mockupstudio/internal/domain"
)

type referenceResponse struct {
	ID            int64     `json:"id"`
	BaseProductID int64     `json:"baseProductId"`
	Description   string    `json:"description"`
	ImageRef      string    `json:"imageRef"`
	ImageURL      string    `json:"imageUrl,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (a *App) referenceView(ref *domain.Reference) referenceResponse {
	return referenceResponse{
		ID:            ref.ID,
		BaseProductID: ref.BaseProductID,
		Description:   ref.Description,
		ImageRef:      ref.Image.Ref,
		ImageURL:      a.url(ref.Image.Ref),
		CreatedAt:     ref.CreatedAt,
	}
}

func (a *App) ListReferences(w http.ResponseWriter, r *http.Request) {
	productID, err := parseID(r.URL.Query().Get("baseProductId"), "baseProductId")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	refs, err := a.Catalog.References(r.Context(), productID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	items := make([]referenceResponse, 0, len(refs))
	for i := range refs {
		items = append(items, a.referenceView(&refs[i]))
	}
	a.json(w, http.StatusOK, items)
}

func (a *App) CreateReference(w http.ResponseWriter, r *http.Request) {
	if err := a.parseMultipart(w, r, 1); err != nil {
		a.fail(w, r, err)
		return
	}
	raw, _ := formValue(r, "baseProductId")
	productID, err := parseID(raw, "baseProductId")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	image, err := a.formImage(r, "image")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	description, _ := formValue(r, "description")

	ref, err := a.Catalog.AddReference(r.Context(), productID, description, image)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, a.referenceView(ref))
}

func (a *App) DeleteReference(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.Catalog.DeleteReference(r.Context(), id); err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]bool{"deleted": true})
}
