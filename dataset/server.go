package dataset

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// FallbackMessage is served when the dataset has no record.
const FallbackMessage = "No cert found."

// Card is the record shape the game UI consumes.
type Card struct {
	ID       string `json:"id"`
	Grade    int    `json:"grade"`
	FrontURL string `json:"frontUrl"`
	BackURL  string `json:"backUrl"`
	Price    string `json:"price,omitempty"`
}

// RandomCardResponse is the body of GET /api/random-card.
type RandomCardResponse struct {
	OK       bool   `json:"ok"`
	Items    []Card `json:"items,omitempty"`
	Fallback string `json:"fallback,omitempty"`
	Error    string `json:"error,omitempty"`
}

// NewHandler serves the random card API, a health check and, when registry is set, metrics.
func NewHandler(s *Sampler, registry *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/random-card", func(w http.ResponseWriter, r *http.Request) {
		record, err := s.Random()
		switch {
		case errors.Is(err, ErrEmptyDataset):
			writeJSON(w, http.StatusOK, RandomCardResponse{OK: true, Fallback: FallbackMessage})
		case err != nil:
			slog.Error("random card failed", slog.String("path", s.Path()), slog.Any("error", err))
			writeJSON(w, http.StatusInternalServerError, RandomCardResponse{OK: false, Error: "dataset unavailable"})
		default:
			writeJSON(w, http.StatusOK, RandomCardResponse{
				OK: true,
				Items: []Card{{
					ID:       record.Identifier,
					Grade:    record.Grade,
					FrontURL: record.FrontImageURL,
					BackURL:  record.BackImageURL,
					Price:    record.Price,
				}},
			})
		}
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if registry != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}
	return mux
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Debug("write response failed", slog.Any("error", err))
	}
}
