package handlers

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"abode/internal/credits"
	"abode/internal/pkg/logger"
	"abode/internal/render"
)

type Deps struct {
	Service *render.Service
	Ledger  credits.Ledger
	// Pool and RDB feed the deep health check; both may be nil when the
	// process runs on the in-memory stores.
	Pool *pgxpool.Pool
	RDB  *redis.Client
	Log  *logger.Logger
}

type Handler struct {
	svc    *render.Service
	ledger credits.Ledger
	pool   *pgxpool.Pool
	rdb    *redis.Client
	log    *logger.Logger
}

func New(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	return &Handler{
		svc:    d.Service,
		ledger: d.Ledger,
		pool:   d.Pool,
		rdb:    d.RDB,
		log:    log.WithComponent("httpapi"),
	}
}
