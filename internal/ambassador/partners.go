package ambassador

import (
	"context"

	"github.com/google/uuid"

	"github.com/loyaltyclub/backend/internal/apperrors"
	"github.com/loyaltyclub/backend/internal/models"
)

// AttachPartner adds a partner venue to the ambassador's portfolio.
// Attaching an already attached partner is a no-op.
func (s *Service) AttachPartner(ctx context.Context, ambassadorID uuid.UUID, partnerChatID string) error {
	a, err := s.store.GetAmbassador(ctx, ambassadorID)
	if err != nil {
		return err
	}
	if a.Status != models.AmbassadorActive {
		return apperrors.Precondition("ambassador %s is %s", ambassadorID, a.Status)
	}

	partner, err := s.store.GetUser(ctx, partnerChatID)
	if err != nil {
		return err
	}
	if !partner.IsPartner {
		return apperrors.Precondition("user %s is not a partner", partnerChatID)
	}

	partners, err := s.store.ListPartners(ctx, ambassadorID)
	if err != nil {
		return err
	}
	for _, p := range partners {
		if p.PartnerChatID == partnerChatID {
			return nil
		}
	}
	if len(partners) >= a.MaxPartners {
		return apperrors.Precondition("ambassador %s already has %d of %d partners", ambassadorID, len(partners), a.MaxPartners)
	}

	if _, err := s.store.AttachPartner(ctx, &models.AmbassadorPartner{
		AmbassadorID:  ambassadorID,
		PartnerChatID: partnerChatID,
	}); err != nil {
		return err
	}

	s.logger.Info("partner attached", "ambassador_id", ambassadorID, "partner", partnerChatID)
	return nil
}

// DetachPartner removes a partner from the portfolio
func (s *Service) DetachPartner(ctx context.Context, ambassadorID uuid.UUID, partnerChatID string) error {
	removed, err := s.store.DetachPartner(ctx, ambassadorID, partnerChatID)
	if err != nil {
		return err
	}
	if !removed {
		return apperrors.NotFound("ambassador partner", partnerChatID)
	}
	s.logger.Info("partner detached", "ambassador_id", ambassadorID, "partner", partnerChatID)
	return nil
}

// Partners lists the attached partners in attach order
func (s *Service) Partners(ctx context.Context, ambassadorID uuid.UUID) ([]models.AmbassadorPartner, error) {
	if _, err := s.store.GetAmbassador(ctx, ambassadorID); err != nil {
		return nil, err
	}
	return s.store.ListPartners(ctx, ambassadorID)
}

// partnerWithinCap reports whether partnerChatID is attached and its mapping
// falls within the first max_partners attachments
func partnerWithinCap(partners []models.AmbassadorPartner, partnerChatID string, maxPartners int) (attached, withinCap bool) {
	for i, p := range partners {
		if p.PartnerChatID == partnerChatID {
			return true, i < maxPartners
		}
	}
	return false, false
}
