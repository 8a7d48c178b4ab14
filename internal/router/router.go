package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"referral-service/internal/handler"
	"referral-service/internal/usecase"
)

func New(referralUC *usecase.ReferralUsecase, tradeUC *usecase.TradeUsecase, claimUC *usecase.ClaimUsecase) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/users", handler.RegisterUserHandler(referralUC))
		r.Post("/users/{userID}/referral-code", handler.AssignReferralCodeHandler(referralUC))
		r.Post("/users/{userID}/referrer", handler.AttachReferrerHandler(referralUC))
		r.Get("/users/{userID}/upline", handler.UplineHandler(referralUC))
		r.Get("/users/{userID}/claimable", handler.ClaimableBalanceHandler(claimUC))

		r.Post("/trades", handler.RecordTradeHandler(tradeUC))
		r.Post("/trades/{tradeID}/process", handler.ProcessTradeHandler(tradeUC))

		r.Post("/claims", handler.ClaimHandler(claimUC))
		r.Post("/commissions/{commissionID}/claim", handler.ClaimCommissionHandler(claimUC))
		r.Post("/cashbacks/{cashbackID}/claim", handler.ClaimCashbackHandler(claimUC))
	})

	return r
}
