package auth

import (
	"context"
	"time"

	"skugen/internal/core/allocation"
	"skugen/internal/core/apperror"
	"skugen/pkg/logger"
)

// Service manages offline sessions. Counters are kept on uninstall so numbering
// resumes where it stopped if the shop installs the app again.
type Service struct {
	sessions allocation.SessionStore
	now      func() time.Time
}

// NewService creates a new session service.
func NewService(sessions allocation.SessionStore) *Service {
	return &Service{sessions: sessions, now: time.Now}
}

// Install stores the offline access token of shop.
func (s *Service) Install(ctx context.Context, shop, accessToken, scope string) error {
	if shop == "" || accessToken == "" {
		return apperror.NewInvalidInput("shop and access token are required")
	}
	if err := s.sessions.Put(ctx, allocation.Session{
		Shop:        shop,
		AccessToken: accessToken,
		Scope:       scope,
		UpdatedAt:   s.now().UTC(),
	}); err != nil {
		return err
	}
	logger.Info(ctx, "shop session stored", "shop", shop)
	return nil
}

// Uninstall forgets the shop's session.
func (s *Service) Uninstall(ctx context.Context, shop string) error {
	if shop == "" {
		return apperror.NewInvalidInput("shop is required")
	}
	if err := s.sessions.Delete(ctx, shop); err != nil {
		return err
	}
	logger.Info(ctx, "shop session removed", "shop", shop)
	return nil
}
