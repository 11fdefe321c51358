package handlers

import (
	"time"

	"go.uber.org/zap"

	"github.com/rogerio-castellano/mall-billing/internal/billing"
	"github.com/rogerio-castellano/mall-billing/internal/catalog"
	"github.com/rogerio-castellano/mall-billing/internal/repo"
)

type Log interface {
	Info(string, ...zap.Field)
	Warn(string, ...zap.Field)
	Error(string, ...zap.Field)
}

// Server holds what the handlers need. One Server serves one till, so it owns one cart.
type Server struct {
	catalog   *catalog.Facade
	cart      *billing.Cart
	movements repo.MovementRepository
	log       Log
	now       func() time.Time
}

func NewServer(c *catalog.Facade, movements repo.MovementRepository, log Log) *Server {
	return &Server{
		catalog:   c,
		cart:      billing.NewCart(),
		movements: movements,
		log:       log,
		now:       time.Now,
	}
}
