// Package credentials persists provider API keys so a deployment can rotate
// them without touching the environment.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"mockupstudio/internal/infra"
	"mockupstudio/internal/sqlinline"
)

const ProviderGemini = "gemini"

// Gemini is the stored Gemini key plus an optional model override.
type Gemini struct {
	APIKey string
	Model  string
}

type geminiProps struct {
	Model string `json:"model,omitempty"`
}

type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// Gemini returns the stored settings; a missing row yields the zero value.
func (s *Store) Gemini(ctx context.Context) (Gemini, error) {
	var (
		token string
		raw   []byte
	)
	if err := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, ProviderGemini).Scan(&token, &raw); err != nil {
		if infra.IsNoRows(err) {
			return Gemini{}, nil
		}
		return Gemini{}, fmt.Errorf("load gemini credentials: %w", err)
	}
	var props geminiProps
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &props); err != nil {
			return Gemini{}, fmt.Errorf("decode gemini properties: %w", err)
		}
	}
	return Gemini{APIKey: strings.TrimSpace(token), Model: strings.TrimSpace(props.Model)}, nil
}

func (s *Store) SetGemini(ctx context.Context, g Gemini) error {
	key := strings.TrimSpace(g.APIKey)
	if key == "" {
		return errors.New("gemini api key is required")
	}
	raw, err := json.Marshal(geminiProps{Model: strings.TrimSpace(g.Model)})
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, ProviderGemini, key, raw)
	return err
}

// ResolveGemini prefers the environment and falls back to the stored row
// field by field.
func (s *Store) ResolveGemini(ctx context.Context, env Gemini) (Gemini, error) {
	if env.APIKey != "" && env.Model != "" {
		return env, nil
	}
	stored, err := s.Gemini(ctx)
	if err != nil {
		return env, err
	}
	if env.APIKey == "" {
		env.APIKey = stored.APIKey
	}
	if env.Model == "" {
		env.Model = stored.Model
	}
	return env, nil
}
