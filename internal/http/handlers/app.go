package handlers

import (
	"encoding/json"
	"net/http"

	"dude/internal/assets"
	"dude/internal/generation"
	"dude/internal/infra"
)

// App is the handler container; every route is a method on it.
type App struct {
	Config     *infra.Config
	Logger     infra.Logger
	Controller *generation.Controller
	Library    *assets.Library
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]any{
		"error": map[string]any{"code": code, "message": message},
	})
}
