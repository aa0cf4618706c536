package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rewindbitcoin/watchtower/commitment"
	"github.com/rewindbitcoin/watchtower/store"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	netID := networkID(r)
	db, ok := s.stores[netID]
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown_network", "network "+netID+" is not enabled")
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}

	if req.PushToken == "" || req.WalletID == "" || req.WalletName == "" || req.WatchtowerID == "" || len(req.Vaults) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_body", "missing required fields")
		return
	}

	locale := req.Locale
	if locale == "" {
		locale = "en"
	}

	ctx := r.Context()

	for _, v := range req.Vaults {
		if v.VaultID == "" || v.VaultNumber < 0 || len(v.TriggerTxids) == 0 {
			writeError(w, http.StatusBadRequest, "invalid_vault", "missing required vault fields")
			return
		}

		if spent, err := db.VaultSpent(ctx, v.VaultID); err != nil {
			if s.log != nil {
				s.log.Errorf("check vault spent %s: %v", v.VaultID, err)
			}
			writeError(w, http.StatusInternalServerError, "internal_error", "")
			return
		} else if spent && s.log != nil {
			s.log.Warnf("vault %s already reached irreversible and was notified; re-registering anyway", v.VaultID)
		}

		commitmentTxid := ""
		if s.withCommitments && v.Commitment != "" {
			txid, err := s.verifier.Authorize(ctx, db, netID, v.Commitment, v.VaultID)
			if err != nil {
				switch {
				case errors.Is(err, commitment.ErrUnauthorized),
					errors.Is(err, commitment.ErrCommitmentReused),
					errors.Is(err, commitment.ErrAuthorizationUnavailable):
					writeError(w, http.StatusForbidden, "commitment_rejected", err.Error())
				default:
					writeError(w, http.StatusBadRequest, "invalid_commitment", err.Error())
				}
				return
			}
			commitmentTxid = txid
		}

		reg := store.VaultRegistration{
			PushToken:      req.PushToken,
			WalletID:       req.WalletID,
			WalletName:     req.WalletName,
			WatchtowerID:   req.WatchtowerID,
			Locale:         locale,
			VaultID:        v.VaultID,
			VaultNumber:    v.VaultNumber,
			TriggerTxids:   v.TriggerTxids,
			CommitmentTxid: commitmentTxid,
		}

		if err := db.RegisterVault(ctx, reg); err != nil {
			if errors.Is(err, store.ErrCommitmentReused) {
				writeError(w, http.StatusForbidden, "commitment_rejected", err.Error())
				return
			}
			if s.log != nil {
				s.log.Errorf("register vault %s: %v", v.VaultID, err)
			}
			writeError(w, http.StatusInternalServerError, "internal_error", "")
			return
		}
	}

	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleAck(w http.ResponseWriter, r *http.Request) {
	db, ok := s.stores[networkID(r)]
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown_network", "network not enabled")
		return
	}

	var req ackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if req.PushToken == "" || req.VaultID == "" {
		writeError(w, http.StatusBadRequest, "invalid_body", "missing required fields")
		return
	}

	err := db.SetAcknowledged(r.Context(), req.PushToken, req.VaultID)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, store.ErrNotificationNotFound):
		writeError(w, http.StatusNotFound, "not_found", "")
	default:
		if s.log != nil {
			s.log.Errorf("ack %s/%s: %v", req.PushToken, req.VaultID, err)
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "")
	}
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	db, ok := s.stores[networkID(r)]
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown_network", "network not enabled")
		return
	}

	var req notificationsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if req.PushToken == "" {
		writeError(w, http.StatusBadRequest, "invalid_body", "missing pushToken")
		return
	}

	regs, err := db.NotificationsForDevice(r.Context(), req.PushToken)
	if err != nil {
		if s.log != nil && !errors.Is(err, sql.ErrNoRows) {
			s.log.Errorf("notifications for %s: %v", req.PushToken, err)
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}

	views := make([]notificationView, 0, len(regs))
	for _, reg := range regs {
		views = append(views, notificationView{
			VaultID:      reg.VaultID,
			WalletID:     reg.WalletID,
			WalletName:   reg.WalletName,
			VaultNumber:  reg.VaultNumber,
			WatchtowerID: reg.WatchtowerID,
			Txid:         reg.TriggerTxid,
			Status:       string(reg.TriggerStatus),
			AttemptCount: reg.AttemptCount,
		})
	}

	writeJSON(w, http.StatusOK, views)
}
