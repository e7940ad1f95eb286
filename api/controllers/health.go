package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/angelmondragon/rentsync/pkg/config"
)

func Healthz(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-RentSync-Env", cfg.App.Env)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}
