package server

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"referral-service/internal/config"
	publisher "referral-service/internal/pub"
	"referral-service/internal/repository"
	"referral-service/internal/router"
	"referral-service/internal/usecase"
)

type Server struct {
	httpServer *http.Server
	db         *pgxpool.Pool
	events     *publisher.EventPublisher
}

func New(cfg config.AppConfig, logger *zap.Logger) (*Server, error) {
	db, err := config.ConnectDB(logger)
	if err != nil {
		return nil, err
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
	})

	events := publisher.New(cfg.KafkaBrokers, cfg.KafkaTopic, logger)

	userRepo := repository.NewUserRepo(db)
	tradeRepo := repository.NewTradeRepo(db)
	ledgerRepo := repository.NewLedgerRepo(db)
	txRunner := repository.NewSerializableRunner(db, logger)

	distributor := usecase.NewDistributor(userRepo)
	referralUC := usecase.NewReferralUsecase(userRepo, txRunner, logger)
	tradeUC := usecase.NewTradeUsecase(userRepo, tradeRepo, ledgerRepo, distributor, txRunner, redisClient, events, logger)
	claimUC := usecase.NewClaimUsecase(ledgerRepo, txRunner, redisClient, events, logger)

	r := router.New(referralUC, tradeUC, claimUC)

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      r,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  30 * time.Second,
		},
		db:     db,
		events: events,
	}, nil
}

func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	defer s.db.Close()
	defer func() { _ = s.events.Close() }()
	return s.httpServer.Shutdown(ctx)
}
