package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/google/uuid"

	"github.com/fusionplus-hq/coordinator/pkg/auction"
	"github.com/fusionplus-hq/coordinator/pkg/metrics"
	"github.com/fusionplus-hq/coordinator/pkg/models"
	"github.com/fusionplus-hq/coordinator/pkg/secrets"
	"github.com/fusionplus-hq/coordinator/pkg/store"
)

var orderHashRe = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// resolverHeader carries the caller's resolver address on the secret endpoint.
const resolverHeader = "X-Resolver-Address"

type createIntentRequest struct {
	models.Intent
	// Secret is the maker's plaintext secret, taken into custody until the
	// finality gate releases it. Optional at creation; nothing can be
	// revealed for an intent without one.
	Secret string `json:"secret,omitempty"`
}

func (s *Server) handleCreateIntent(w http.ResponseWriter, r *http.Request) {
	var req createIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	if !orderHashRe.MatchString(req.OrderHash) {
		writeError(w, http.StatusBadRequest, "invalid order_hash: must be 0x-prefixed 32-byte hex")
		return
	}
	// hashes are stored lowercase, the form the chain watchers report
	req.OrderHash = strings.ToLower(req.OrderHash)
	req.SecretHash = strings.ToLower(req.SecretHash)
	if req.FinalityLock == 0 {
		req.FinalityLock = s.cfg.DefaultFinalityLock
	}
	if err := models.ValidateIntent(&req.Intent); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Secret != "" {
		if err := secrets.VerifySecretHash(req.Secret, req.SecretHash); err != nil {
			writeError(w, http.StatusBadRequest, "secret does not match secret_hash: "+err.Error())
			return
		}
	}
	if _, err := s.store.FindByOrderHash(req.OrderHash); err == nil {
		writeError(w, http.StatusConflict, "an intent with this order_hash already exists")
		return
	}

	req.ID = uuid.New().String()
	req.Status = models.StatusPending
	req.Intent.Secret = ""
	req.SecretRevealedAt = 0

	if err := s.store.CreateIntent(req.Intent); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if req.Secret != "" {
		if err := s.store.AppendSecret(store.SecretRecord{
			IntentID:  req.ID,
			OrderHash: req.OrderHash,
			Secret:    req.Secret,
		}); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	created, err := s.store.GetIntent(req.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info("intent %s created for order %s (%s -> %s)",
		created.ID, created.OrderHash, created.SourceChain, created.DestinationChain)
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListIntents(w http.ResponseWriter, r *http.Request) {
	statusParam := r.URL.Query().Get("status")
	if statusParam == "" {
		intents, err := s.store.ListAll()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, intents)
		return
	}

	status := models.Status(statusParam)
	if !models.IsValidStatus(status) {
		writeError(w, http.StatusBadRequest, "unknown status "+statusParam)
		return
	}
	intents, err := s.store.ListByStatus(status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, intents)
}

func (s *Server) handleGetIntent(w http.ResponseWriter, r *http.Request) {
	in, err := s.store.GetIntent(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "intent not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, in)
}

type updateStatusRequest struct {
	Status    models.Status `json:"status"`
	SrcTxHash string        `json:"src_tx_hash,omitempty"`
	DstTxHash string        `json:"dst_tx_hash,omitempty"`
	Reason    string        `json:"reason,omitempty"`
}

type updateStatusResponse struct {
	ID             string        `json:"id"`
	PreviousStatus models.Status `json:"previous_status"`
	NewStatus      models.Status `json:"new_status"`
	ProtocolPhase  int           `json:"protocol_phase"`
}

type transitionConflictResponse struct {
	Error            string          `json:"error"`
	CurrentStatus    models.Status   `json:"current_status"`
	ValidTransitions []models.Status `json:"valid_transitions"`
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if !models.IsValidStatus(req.Status) {
		writeError(w, http.StatusBadRequest, "unknown status "+string(req.Status))
		return
	}

	var prev models.Status
	updated, err := s.store.Mutate(id, func(in *models.Intent) error {
		prev = in.Status
		if err := models.ValidateTransition(in.Status, req.Status); err != nil {
			return err
		}
		in.Status = req.Status
		if req.SrcTxHash != "" {
			in.SrcTxHash = req.SrcTxHash
		}
		if req.DstTxHash != "" {
			in.DstTxHash = req.DstTxHash
		}
		if req.Reason != "" {
			in.Message = req.Reason
		}
		return nil
	})
	if err != nil {
		var terr *models.TransitionError
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "intent not found")
		case errors.As(err, &terr):
			writeJSON(w, http.StatusConflict, transitionConflictResponse{
				Error:            terr.Error(),
				CurrentStatus:    terr.Current,
				ValidTransitions: terr.Allowed,
			})
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	metrics.StatusTransitions.WithLabelValues(string(prev), string(updated.Status)).Inc()
	s.logger.Info("intent %s moved %s -> %s", id, prev, updated.Status)
	writeJSON(w, http.StatusOK, updateStatusResponse{
		ID:             updated.ID,
		PreviousStatus: prev,
		NewStatus:      updated.Status,
		ProtocolPhase:  models.ProtocolPhase(updated.Status),
	})
}

type secretResponse struct {
	Revealed   bool          `json:"revealed"`
	Status     models.Status `json:"status"`
	Message    string        `json:"message,omitempty"`
	Secret     string        `json:"secret,omitempty"`
	SecretHash string        `json:"secret_hash,omitempty"`
	RevealedAt int64         `json:"revealed_at,omitempty"`
}

func (s *Server) handleGetSecret(w http.ResponseWriter, r *http.Request) {
	resolver := r.Header.Get(resolverHeader)
	if resolver == "" {
		writeError(w, http.StatusUnauthorized, "missing "+resolverHeader+" header")
		return
	}
	ok, err := s.store.IsWhitelisted(resolver)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusForbidden, "resolver is not whitelisted")
		return
	}

	in, err := s.store.GetIntent(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "intent not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// the plaintext only lands on the record when the gate releases it
	if in.Secret == "" {
		writeJSON(w, http.StatusOK, secretResponse{
			Revealed: false,
			Status:   in.Status,
			Message:  "secret not yet revealed, finality window still open",
		})
		return
	}

	writeJSON(w, http.StatusOK, secretResponse{
		Revealed:   true,
		Status:     in.Status,
		Secret:     in.Secret,
		SecretHash: in.SecretHash,
		RevealedAt: in.SecretRevealedAt,
	})
}

type priceResponse struct {
	IsDutchAuction bool   `json:"is_dutch_auction"`
	Rate           string `json:"rate"`
	TakingAmount   string `json:"taking_amount"`
	EvaluatedAt    int64  `json:"evaluated_at"`
}

func (s *Server) handleGetPrice(w http.ResponseWriter, r *http.Request) {
	in, err := s.store.GetIntent(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "intent not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	terms := auction.Terms{
		StartTime: time.Unix(in.AuctionStartTime, 0),
		Duration:  time.Duration(in.AuctionDuration) * time.Second,
		StartRate: in.StartRate,
		EndRate:   in.EndRate,
	}
	now := s.now()

	if !terms.IsDutchAuction() {
		writeJSON(w, http.StatusOK, priceResponse{
			IsDutchAuction: false,
			Rate:           "0",
			TakingAmount:   in.TakingAmount,
			EvaluatedAt:    now.Unix(),
		})
		return
	}

	rate, err := auction.CurrentRate(terms, now)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	taking, err := auction.TakingAmountAt(terms, in.MakingAmount, now)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, priceResponse{
		IsDutchAuction: true,
		Rate:           rate,
		TakingAmount:   taking,
		EvaluatedAt:    now.Unix(),
	})
}
