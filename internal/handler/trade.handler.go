package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"referral-service/internal/domain"
	"referral-service/internal/usecase"
	"referral-service/pkg/response"
)

func RecordTradeHandler(uc *usecase.TradeUsecase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type requestBody struct {
			UserID    string `json:"user_id"`
			Volume    string `json:"volume"`
			TokenType string `json:"token_type"`
			FeeTier   string `json:"fee_tier,omitempty"` // optional override
		}

		var body requestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
		if body.UserID == "" {
			response.Error(w, http.StatusBadRequest, "Missing user_id")
			return
		}

		var (
			receipt *usecase.TradeReceipt
			err     error
		)
		token := domain.TokenType(body.TokenType)
		if body.FeeTier != "" {
			receipt, err = uc.RecordTradeWithTier(r.Context(), body.UserID, body.Volume, body.FeeTier, token)
		} else {
			receipt, err = uc.RecordTrade(r.Context(), body.UserID, body.Volume, token)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		response.JSON(w, http.StatusCreated, receipt)
	}
}

func ProcessTradeHandler(uc *usecase.TradeUsecase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tradeID := chi.URLParam(r, "tradeID")
		if tradeID == "" {
			response.Error(w, http.StatusBadRequest, "Missing trade ID")
			return
		}

		receipt, err := uc.ProcessTrade(r.Context(), tradeID)
		if err != nil {
			writeError(w, err)
			return
		}
		response.JSON(w, http.StatusOK, receipt)
	}
}
