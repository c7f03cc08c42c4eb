package httpapi

import (
	"net/http"

	"github.com/p-n-ai/sinifplanim/internal/tier"
)

type upgradeRequest struct {
	Tier string `json:"tier" validate:"required,oneof=standard pro"`
}

type upgradeResponse struct {
	Profile *tier.Profile `json:"profile"`
	Message string        `json:"message"`
}

func (s *Server) handlePlans(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, tier.Plans())
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.tiers.Profile(r.Context(), teacherFrom(r.Context()))
	if err != nil {
		fail(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	u, err := s.tiers.Usage(r.Context(), teacherFrom(r.Context()))
	if err != nil {
		fail(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// handleRequestUpgrade marks the plan as pending. Payment is made by bank
// transfer and an admin approves it afterwards.
func (s *Server) handleRequestUpgrade(w http.ResponseWriter, r *http.Request) {
	var req upgradeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	target, err := tier.ParseTier(req.Tier)
	if err != nil {
		fail(w, r, err, "")
		return
	}
	p, err := s.tiers.RequestUpgrade(r.Context(), teacherFrom(r.Context()), target)
	if err != nil {
		fail(w, r, err, "Paket güncellenirken bir sorun oluştu: "+msgUnknown)
		return
	}
	writeJSON(w, http.StatusAccepted, upgradeResponse{
		Profile: p,
		Message: "Paket yükseltme isteğiniz yönetici onayına gönderildi.",
	})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	p, err := s.tiers.Approve(r.Context(), r.PathValue("userID"))
	if err != nil {
		fail(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, p)
}
