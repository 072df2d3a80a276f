package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"nfseBack/internal/models"
	"nfseBack/internal/services"
)

type SaleHandler struct {
	Service *services.SaleService
}

func (h *SaleHandler) GetSale(w http.ResponseWriter, r *http.Request) {
	uid := r.URL.Query().Get(":uid")
	sale, err := h.Service.GetSale(r.Context(), uid)
	if err != nil {
		http.Error(w, saleErrorText(err), saleErrorStatus(err))
		return
	}
	json.NewEncoder(w).Encode(sale)
}

func (h *SaleHandler) EnqueueSale(w http.ResponseWriter, r *http.Request) {
	uid := r.URL.Query().Get(":uid")
	added, err := h.Service.Enqueue(r.Context(), uid)
	if err != nil {
		http.Error(w, saleErrorText(err), saleErrorStatus(err))
		return
	}
	if !added {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"message": "Sale is already queued."})
		return
	}
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"saleId": uid})
}

func (h *SaleHandler) QueueCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.Service.QueueCounts(r.Context())
	if err != nil {
		http.Error(w, "Failed to read queue", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(map[string]int64{
		"waiting": counts.Waiting,
		"active":  counts.Active,
		"delayed": counts.Delayed,
		"dead":    counts.Dead,
	})
}

type deadJobResponse struct {
	SaleID       string `json:"saleId"`
	AttemptsMade int    `json:"attemptsMade"`
	StalledCount int    `json:"stalledCount"`
	FailedReason string `json:"failedReason"`
	FinishedAt   string `json:"finishedAt,omitempty"`
}

func (h *SaleHandler) DeadJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.Service.DeadJobs(r.Context())
	if err != nil {
		http.Error(w, "Failed to read queue", http.StatusInternalServerError)
		return
	}
	out := make([]deadJobResponse, 0, len(jobs))
	for _, j := range jobs {
		resp := deadJobResponse{
			SaleID:       j.Data.SaleID,
			AttemptsMade: j.AttemptsMade,
			StalledCount: j.StalledCount,
			FailedReason: j.FailedReason,
		}
		if !j.FinishedAt.IsZero() {
			resp.FinishedAt = j.FinishedAt.UTC().Format("2006-01-02T15:04:05.000Z")
		}
		out = append(out, resp)
	}
	json.NewEncoder(w).Encode(out)
}

func (h *SaleHandler) RetryDeadJob(w http.ResponseWriter, r *http.Request) {
	uid := r.URL.Query().Get(":uid")
	ok, err := h.Service.RetryDead(r.Context(), uid)
	if err != nil {
		http.Error(w, saleErrorText(err), saleErrorStatus(err))
		return
	}
	if !ok {
		http.Error(w, "Dead job not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"saleId": uid})
}

func saleErrorStatus(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidSaleUID):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNoRecord):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func saleErrorText(err error) string {
	switch saleErrorStatus(err) {
	case http.StatusBadRequest:
		return "Invalid sale uid"
	case http.StatusNotFound:
		return "Sale not found"
	default:
		return "Internal server error"
	}
}
