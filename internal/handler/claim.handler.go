package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"referral-service/internal/domain"
	"referral-service/internal/usecase"
	"referral-service/pkg/response"
)

func ClaimHandler(uc *usecase.ClaimUsecase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type requestBody struct {
			UserID    string `json:"user_id"`
			TokenType string `json:"token_type"`
		}

		var body requestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}

		result, err := uc.Claim(r.Context(), body.UserID, domain.TokenType(body.TokenType))
		if err != nil {
			writeError(w, err)
			return
		}
		response.JSON(w, http.StatusOK, result)
	}
}

func ClaimCommissionHandler(uc *usecase.ClaimUsecase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type requestBody struct {
			UserID string `json:"user_id"`
		}

		commissionID := chi.URLParam(r, "commissionID")
		var body requestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}

		result, err := uc.ClaimCommission(r.Context(), body.UserID, commissionID)
		if err != nil {
			writeError(w, err)
			return
		}
		response.JSON(w, http.StatusOK, result)
	}
}

func ClaimCashbackHandler(uc *usecase.ClaimUsecase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type requestBody struct {
			UserID string `json:"user_id"`
		}

		cashbackID := chi.URLParam(r, "cashbackID")
		var body requestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}

		result, err := uc.ClaimCashback(r.Context(), body.UserID, cashbackID)
		if err != nil {
			writeError(w, err)
			return
		}
		response.JSON(w, http.StatusOK, result)
	}
}

func ClaimableBalanceHandler(uc *usecase.ClaimUsecase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		token := domain.TokenType(r.URL.Query().Get("token_type"))

		balance, err := uc.ClaimableBalance(r.Context(), userID, token)
		if err != nil {
			writeError(w, err)
			return
		}
		response.JSON(w, http.StatusOK, balance)
	}
}
