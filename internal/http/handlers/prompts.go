package handlers

import (
	"net/http"
	"time"

	"mockupstudio/internal/catalog"
	"mockupstudio/internal/domain"
)

type promptResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Prompt    string    `json:"prompt"`
	IsDefault bool      `json:"isDefault"`
	CreatedAt time.Time `json:"createdAt"`
}

func promptView(t *domain.PromptTemplate) promptResponse {
	return promptResponse{ID: t.ID, Name: t.Name, Prompt: t.Prompt, IsDefault: t.IsDefault, CreatedAt: t.CreatedAt}
}

type promptRequest struct {
	Name   string `json:"name"`
	Prompt string `json:"prompt"`
}

func (a *App) ListPrompts(w http.ResponseWriter, r *http.Request) {
	prompts, err := a.Catalog.Prompts(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	items := make([]promptResponse, 0, len(prompts))
	for i := range prompts {
		items = append(items, promptView(&prompts[i]))
	}
	a.json(w, http.StatusOK, items)
}

func (a *App) CreatePrompt(w http.ResponseWriter, r *http.Request) {
	var req promptRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	t, err := a.Catalog.CreatePrompt(r.Context(), catalog.PromptInput{Name: req.Name, Prompt: req.Prompt})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, promptView(t))
}

func (a *App) UpdatePrompt(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var req promptRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	t, err := a.Catalog.UpdatePrompt(r.Context(), id, catalog.PromptInput{Name: req.Name, Prompt: req.Prompt})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, promptView(t))
}

func (a *App) DeletePrompt(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.Catalog.DeletePrompt(r.Context(), id); err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]bool{"deleted": true})
}
