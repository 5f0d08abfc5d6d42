package ambassador

import (
	"context"

	"github.com/google/uuid"

	"github.com/loyaltyclub/backend/internal/apperrors"
	"github.com/loyaltyclub/backend/internal/models"
)

// statusTransitions lists the states each target may be entered from
var statusTransitions = map[models.AmbassadorStatus][]models.AmbassadorStatus{
	models.AmbassadorSuspended: {models.AmbassadorActive},
	models.AmbassadorActive:    {models.AmbassadorSuspended},
	models.AmbassadorBlocked:   {models.AmbassadorActive, models.AmbassadorSuspended},
}

// Suspend moves an active ambassador to suspended
func (s *Service) Suspend(ctx context.Context, id uuid.UUID) error {
	return s.SetStatus(ctx, id, models.AmbassadorSuspended)
}

// Activate reinstates a suspended ambassador
func (s *Service) Activate(ctx context.Context, id uuid.UUID) error {
	return s.SetStatus(ctx, id, models.AmbassadorActive)
}

// Block permanently stops an ambassador from earning
func (s *Service) Block(ctx context.Context, id uuid.UUID) error {
	return s.SetStatus(ctx, id, models.AmbassadorBlocked)
}

// SetStatus applies a moderation transition. Invalid transitions are
// rejected before any write.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, to models.AmbassadorStatus) error {
	from, ok := statusTransitions[to]
	if !ok {
		return apperrors.Invalid("unknown ambassador status %q", to)
	}

	changed, err := s.store.TransitionAmbassadorStatus(ctx, id, from, to)
	if err != nil {
		return err
	}
	if !changed {
		current, err := s.store.GetAmbassador(ctx, id)
		if err != nil {
			return err
		}
		return apperrors.Precondition("ambassador %s cannot move from %s to %s", id, current.Status, to)
	}

	s.logger.Info("ambassador status changed", "ambassador_id", id, "status", to)
	return nil
}
