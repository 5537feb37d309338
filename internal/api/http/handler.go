package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/event"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/factory"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/ledger"
	apperrors "github.com/jamiebones/crowd-funding-begi-begi/internal/platform/errors"
)

const (
	defaultEventLimit = 100
	maxEventLimit     = 500
)

type handler struct {
	factory *factory.Factory
	events  event.Reader
	ready   func(context.Context) error
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Error: err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

func (h *handler) listCampaigns(w http.ResponseWriter, r *http.Request) {
	entries := h.factory.Campaigns()
	if owner := strings.TrimSpace(r.URL.Query().Get("owner")); owner != "" {
		entries = h.factory.CampaignsByOwner(ledger.Address(owner))
	}
	resp := campaignListResponse{Campaigns: make([]entryDTO, 0, len(entries))}
	for _, entry := range entries {
		resp.Campaigns = append(resp.Campaigns, newEntryDTO(entry))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) getCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := h.factory.Campaign(chi.URLParam(r, "campaign_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	milestones := c.Milestones()
	resp := campaignResponse{
		Campaign:   newDetailsDTO(c.FundingDetails()),
		Milestones: make([]milestoneDTO, 0, len(milestones)),
	}
	for _, milestone := range milestones {
		resp.Milestones = append(resp.Milestones, newMilestoneDTO(milestone))
	}
	if maturesAt, ok := c.MaturesAt(); ok {
		resp.PendingMaturesAt = formatTime(maturesAt)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) getDonation(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaign_id")
	c, err := h.factory.Campaign(campaignID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	donor := ledger.Address(chi.URLParam(r, "address"))
	writeJSON(w, http.StatusOK, donationResponse{
		CampaignID: campaignID,
		Donor:      string(donor),
		Amount:     formatAmount(c.DonationOf(donor)),
	})
}

func (h *handler) listEvents(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaign_id")
	if _, err := h.factory.Campaign(campaignID); err != nil {
		writeError(w, r, err)
		return
	}
	after, err := queryUint(r, "after", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := queryUint(r, "limit", defaultEventLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if limit == 0 || limit > maxEventLimit {
		limit = maxEventLimit
	}

	events, err := h.events.List(r.Context(), campaignID, after, int(limit))
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := eventListResponse{Events: make([]eventDTO, 0, len(events))}
	for _, evt := range events {
		resp.Events = append(resp.Events, newEventDTO(evt))
	}
	if n := len(events); n > 0 && n == int(limit) {
		resp.NextAfter = strconv.FormatUint(events[n-1].Seq, 10)
	}
	writeJSON(w, http.StatusOK, resp)
}

func queryUint(r *http.Request, name string, fallback uint64) (uint64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, apperrors.WithMetadata(apperrors.CodeInvalidRequest, name+" must be a non-negative integer",
			map[string]string{"Field": name})
	}
	return value, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
