package admin

import (
	"embed"
	"io/fs"
	"net/http"
	"time"
)

//go:embed static/*
var embeddedStatic embed.FS

var staticFS, _ = fs.Sub(embeddedStatic, "static")

func (s *Server) handleDashboardIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(staticFS, "index.html")
	if err != nil {
		http.Error(w, "dashboard not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err = w.Write(data); err != nil {
		s.logger.Warn("failed to write dashboard response", "error", err)
	}
}

// --- Dashboard API handlers ---

type dashboardChain struct {
	Chain          string `json:"chain"`
	Role           string `json:"role"`
	EndpointID     uint32 `json:"endpoint_id"`
	Active         bool   `json:"active"`
	Status         string `json:"status"`
	ProcessedCount int64  `json:"processed_count"`
	LatestSequence int64  `json:"latest_sequence"`
}

type dashboardOverviewResponse struct {
	Chains     []dashboardChain `json:"chains"`
	TotalPeers int              `json:"total_peers"`
	ServerTime string           `json:"server_time"`
}

func (s *Server) handleDashboardOverview(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		http.Error(w, `{"error":"dashboard not available"}`, http.StatusServiceUnavailable)
		return
	}

	services := s.registry.All()
	chains := make([]dashboardChain, 0, len(services))
	for _, svc := range services {
		local := svc.Local()

		processed, err := s.ledger.Count(r.Context(), local.EndpointID)
		if err != nil {
			s.logger.Error("dashboard overview: transfer count failed", "error", err, "chain", local.Name)
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			return
		}
		latest, err := s.journal.LatestSequence(r.Context(), local.EndpointID)
		if err != nil {
			s.logger.Error("dashboard overview: latest sequence failed", "error", err, "chain", local.Name)
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			return
		}

		chains = append(chains, dashboardChain{
			Chain:          local.Name,
			Role:           string(local.Role),
			EndpointID:     local.EndpointID,
			Active:         svc.IsActive(),
			Status:         string(svc.Health().Status()),
			ProcessedCount: processed,
			LatestSequence: latest,
		})
	}

	peers, err := s.peers.List(r.Context())
	if err != nil {
		s.logger.Error("dashboard overview: peer list failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, dashboardOverviewResponse{
		Chains:     chains,
		TotalPeers: len(peers),
		ServerTime: time.Now().UTC().Format(time.RFC3339),
	})
}
