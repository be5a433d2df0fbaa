package servercart

import (
	"context"
	"fmt"

	"github.com/erp/storefront/internal/domain/cart"
	"github.com/erp/storefront/internal/domain/shared"
	"go.uber.org/zap"
)

// Service is the authoritative per-user cart kept by the server
type Service struct {
	repo   cart.ServerCartRepository
	logger *zap.Logger
}

// NewService creates a new Service
func NewService(repo cart.ServerCartRepository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, logger: logger.Named("servercart")}
}

// Get returns the user's cart
func (s *Service) Get(ctx context.Context, userID string) ([]cart.Line, error) {
	if userID == "" {
		return nil, shared.ErrUnauthorized
	}
	return s.repo.Load(ctx, userID)
}

// Merge upserts lines into the user's cart by key. An incoming line replaces
// the stored line with the same key; new keys are appended in order. The
// whole batch is rejected if any line is invalid.
func (s *Service) Merge(ctx context.Context, userID string, lines []cart.Line) ([]cart.Line, error) {
	if userID == "" {
		return nil, shared.ErrUnauthorized
	}
	for i, l := range lines {
		if err := validateLine(l); err != nil {
			return nil, err.WithMessage(fmt.Sprintf("line %d: %s", i, err.Message))
		}
	}

	stored, err := s.repo.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	merged := Upsert(stored, lines)
	if err := s.repo.Save(ctx, userID, merged); err != nil {
		return nil, err
	}

	s.logger.Debug("server cart merged",
		zap.String("user_id", userID),
		zap.Int("incoming", len(lines)),
		zap.Int("lines", len(merged)),
	)
	return merged, nil
}

// Upsert replaces stored lines whose key matches an incoming line and
// appends the rest. Neither input is modified.
func Upsert(stored, incoming []cart.Line) []cart.Line {
	out := make([]cart.Line, 0, len(stored)+len(incoming))
	for _, l := range stored {
		out = append(out, l.Clone())
	}
	for _, l := range incoming {
		if i := cart.IndexOf(out, l.Key()); i >= 0 {
			out[i] = l.Clone()
			continue
		}
		out = append(out, l.Clone())
	}
	return out
}

func validateLine(l cart.Line) *shared.DomainError {
	switch {
	case !l.Key().IsValid():
		return shared.ErrInvalidInput.WithMessage("productId is required")
	case l.Quantity < 0:
		return shared.ErrInvalidInput.WithMessage("quantity must not be negative")
	case l.UnitPrice.IsNegative():
		return shared.ErrInvalidInput.WithMessage("unitPrice must not be negative")
	case l.MaxAvailable != nil && *l.MaxAvailable < 0:
		return shared.ErrInvalidInput.WithMessage("maxAvailable must not be negative")
	}
	return nil
}
