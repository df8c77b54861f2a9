// Package simulator provides local stand-ins for external collaborators.
package simulator

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
)

// Inference returns a handler that mimics the caption service for local
// development and end-to-end tests: it consumes the posted image bytes and
// answers with a canned caption and confidence.
func Inference(caption string, confidence float64) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /describe", func(w http.ResponseWriter, r *http.Request) {
		n, err := io.Copy(io.Discard, r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		log.Debug().Int64("payload_bytes", n).Msg("simulated describe request")

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"caption":    caption,
			"confidence": confidence,
		})
	})
	return mux
}
