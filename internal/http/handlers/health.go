package handlers

import (
	"context"
	"net/http"
	"time"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{
		"status":  "ok",
		"storage": a.StorageKind,
		"model":   a.Model,
	}
	if a.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.DB.Ping(ctx); err != nil {
			a.Logger.Warn().Err(err).Msg("health: database unreachable")
			a.error(w, http.StatusServiceUnavailable, "database unreachable")
			return
		}
	}
	a.json(w, http.StatusOK, status)
}

func (a *App) Ping(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, "pong")
}
