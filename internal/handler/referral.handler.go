package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"referral-service/internal/usecase"
	"referral-service/pkg/response"
)

func RegisterUserHandler(uc *usecase.ReferralUsecase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type requestBody struct {
			FeeTier string `json:"fee_tier"`
		}

		var body requestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
		if body.FeeTier == "" {
			response.Error(w, http.StatusBadRequest, "Missing fee_tier")
			return
		}

		user, err := uc.RegisterUser(r.Context(), body.FeeTier)
		if err != nil {
			writeError(w, err)
			return
		}
		response.JSON(w, http.StatusCreated, user)
	}
}

func AssignReferralCodeHandler(uc *usecase.ReferralUsecase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		if userID == "" {
			response.Error(w, http.StatusBadRequest, "Missing user ID")
			return
		}

		code, err := uc.AssignReferralCode(r.Context(), userID)
		if err != nil {
			writeError(w, err)
			return
		}
		response.JSON(w, http.StatusOK, map[string]string{
			"user_id":       userID,
			"referral_code": code,
		})
	}
}

func AttachReferrerHandler(uc *usecase.ReferralUsecase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type requestBody struct {
			ReferralCode string `json:"referral_code"`
		}

		userID := chi.URLParam(r, "userID")
		if userID == "" {
			response.Error(w, http.StatusBadRequest, "Missing user ID")
			return
		}

		var body requestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}

		user, err := uc.AttachReferrer(r.Context(), userID, body.ReferralCode)
		if err != nil {
			writeError(w, err)
			return
		}
		response.JSON(w, http.StatusOK, user)
	}
}

func UplineHandler(uc *usecase.ReferralUsecase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		if userID == "" {
			response.Error(w, http.StatusBadRequest, "Missing user ID")
			return
		}

		chain, err := uc.UplineChain(r.Context(), userID)
		if err != nil {
			writeError(w, err)
			return
		}
		response.JSON(w, http.StatusOK, chain)
	}
}
