package service

import (
	"context"
	"fmt"
	"time"

	"bookflow/internal/domain"
	"bookflow/internal/models"

	"github.com/rs/zerolog"
)

// StateService mediates access to the session state repository. It stamps
// UpdatedAt on every save so the TTL-refreshed snapshot carries the last
// activity time.
type StateService struct {
	repo   domain.StateRepository
	logger zerolog.Logger
}

func NewStateService(repo domain.StateRepository, logger *zerolog.Logger) *StateService {
	return &StateService{
		repo:   repo,
		logger: logger.With().Str("component", "state").Logger(),
	}
}

func (s *StateService) GetSession(ctx context.Context, sessionID string) (*models.WizardState, error) {
	state, err := s.repo.GetState(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return state, nil
}

func (s *StateService) SaveSession(ctx context.Context, state *models.WizardState) error {
	state.UpdatedAt = time.Now()
	if err := s.repo.SetState(ctx, state); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *StateService) ClearSession(ctx context.Context, sessionID string) error {
	if err := s.repo.ClearState(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

func (s *StateService) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	allowed, err := s.repo.CheckRateLimit(ctx, key, limit, window)
	if err != nil {
		// Rate limiting is advisory; an unreachable store must not block the flow.
		s.logger.Error().Err(err).Str("key", key).Msg("Rate limit check failed, allowing request")
		return true, nil
	}
	return allowed, nil
}
