package main

import (
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/tonpool/tote/internal/config"
	"github.com/tonpool/tote/internal/formula"
	"github.com/tonpool/tote/internal/notifier"
	"github.com/tonpool/tote/internal/payments"
	"github.com/tonpool/tote/internal/service/draw"
	"github.com/tonpool/tote/internal/session"
	"github.com/tonpool/tote/internal/settlement"
	"github.com/tonpool/tote/pkg/common/logger"
	"github.com/tonpool/tote/pkg/infra"
	"github.com/tonpool/tote/pkg/store/drawstore"
	"github.com/tonpool/tote/pkg/store/ticketstore"
)

// app bundles the wired components. NATS and Redis are optional: without a
// NATS URL the engine runs without payment events and notifications, without
// a Redis address sessions are process-local.
type app struct {
	cfg      *config.Config
	kv       *infra.BadgerStore
	nc       *nats.Conn
	redis    infra.RedisClient
	svc      *draw.Service
	verifier *payments.Verifier
}

func newApp(cfg *config.Config) (*app, error) {
	kv, err := infra.NewBadgerStore(cfg.Storage.BadgerDir, "tote", infra.JSON)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	a := &app{cfg: cfg, kv: kv}

	var sessions session.Store
	if cfg.Redis.Addr != "" {
		redisClient, err := infra.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password)
		if err != nil {
			a.close()
			return nil, err
		}
		a.redis = redisClient
		sessions = session.NewRedisStore(redisClient, "tote", cfg.Redis.SessionTTL)
	} else {
		logger.Warn("No Redis configured, selection sessions are process-local")
		sessions = session.NewMemoryStore(cfg.Redis.SessionTTL)
	}

	baseStake, err := cfg.Pricing.BaseStakeAmount()
	if err != nil {
		a.close()
		return nil, err
	}
	params, err := cfg.Settlement.FormulaParams()
	if err != nil {
		a.close()
		return nil, err
	}
	f, err := formula.New(formula.Name(cfg.Settlement.Formula), params)
	if err != nil {
		a.close()
		return nil, err
	}

	var notify draw.Notifier
	if cfg.NATS.URL != "" {
		nc, err := infra.GetNATSConnection(cfg.NATS.URL)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		a.nc = nc
		notify = notifier.New(nc, cfg.NATS.NotifySubjectPrefix, cfg.Pricing.Currency)
	} else {
		logger.Warn("No NATS configured, payments and notifications are disabled")
	}

	a.svc = draw.NewService(
		drawstore.New(kv),
		ticketstore.New(kv),
		sessions,
		settlement.New(f, cfg.Pricing.Currency),
		notify,
		draw.Options{
			EventsCount: cfg.Draw.EventsCount,
			BaseStake:   baseStake,
			Currency:    cfg.Pricing.Currency,
			Policy:      cfg.Pricing.PricingPolicy(),
			Rollover:    cfg.Settlement.RolloverEnabled(),
		},
	)

	if a.nc != nil {
		tolerance, err := cfg.Payments.Tolerance()
		if err != nil {
			a.close()
			return nil, err
		}
		a.verifier = payments.NewVerifier(ticketstore.New(kv), a.svc, payments.Config{
			ReceiveAddress:   cfg.Payments.ReceiveAddress,
			MinConfirmations: cfg.Payments.MinConfirmations,
			AmountTolerance:  tolerance,
		})
	}

	return a, nil
}

func (a *app) close() {
	if a.nc != nil {
		a.nc.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			logger.Error("Failed to close Redis", "err", err)
		}
	}
	if a.kv != nil {
		if err := a.kv.Close(); err != nil {
			logger.Error("Failed to close store", "err", err)
		}
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", configPath, err)
	}
	return cfg, nil
}
