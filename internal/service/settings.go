package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/store"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

// ConfigProvider supplies the current site configuration snapshot to the
// order flow. Absence of gateway credentials is not an error here; callers
// decide what missing credentials mean for their operation.
type ConfigProvider interface {
	Get(ctx context.Context) (*models.SiteConfig, error)
}

// SettingsService is the merchant configuration provider: it caches the
// single SiteConfig record, persists edits, and supports explicit reload.
// Components receive it by injection; there is no ambient global settings
// state.
type SettingsService struct {
	repo   store.SettingsRepository
	logger *zap.Logger

	mu      sync.RWMutex
	current *models.SiteConfig
}

// NewSettingsService loads the stored configuration. When no record exists
// yet, seed is persisted as the initial configuration (seed may be nil).
func NewSettingsService(ctx context.Context, repo store.SettingsRepository, seed *models.SiteConfig) (*SettingsService, error) {
	s := &SettingsService{
		repo:   repo,
		logger: util.GetLogger(),
	}

	cfg, err := repo.GetSettings(ctx)
	var notFound *models.NotFoundError
	if errors.As(err, &notFound) {
		if seed != nil {
			seed.UpdatedAt = time.Now().UTC()
			if err := repo.SaveSettings(ctx, seed); err != nil {
				return nil, err
			}
			cfg = seed
			s.logger.Info("Site settings initialized from environment")
		} else {
			cfg = &models.SiteConfig{}
		}
	} else if err != nil {
		return nil, err
	}

	s.current = cfg
	return s, nil
}

// Get returns the cached configuration snapshot.
func (s *SettingsService) Get(ctx context.Context) (*models.SiteConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := *s.current
	return &out, nil
}

// SettingsUpdate carries a partial configuration edit. Nil fields keep the
// stored value.
type SettingsUpdate struct {
	WhatsAppNumber     *string            `json:"whatsapp_number"`
	ContactEmail       *string            `json:"contact_email"`
	SocialLinks        *map[string]string `json:"social_links"`
	GatewayAccessToken *string            `json:"gateway_access_token"`
	GatewayPublicKey   *string            `json:"gateway_public_key"`
}

// Update applies a partial edit, persists it, and refreshes the cache.
func (s *SettingsService) Update(ctx context.Context, upd SettingsUpdate) (*models.SiteConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := *s.current
	if upd.WhatsAppNumber != nil {
		cfg.WhatsAppNumber = *upd.WhatsAppNumber
	}
	if upd.ContactEmail != nil {
		cfg.ContactEmail = *upd.ContactEmail
	}
	if upd.SocialLinks != nil {
		cfg.SocialLinks = *upd.SocialLinks
	}
	if upd.GatewayAccessToken != nil {
		cfg.GatewayAccessToken = *upd.GatewayAccessToken
	}
	if upd.GatewayPublicKey != nil {
		cfg.GatewayPublicKey = *upd.GatewayPublicKey
	}
	cfg.UpdatedAt = time.Now().UTC()

	if err := s.repo.SaveSettings(ctx, &cfg); err != nil {
		return nil, err
	}

	s.current = &cfg
	s.logger.Info("Site settings updated")
	out := cfg
	return &out, nil
}

// Reload re-reads the stored configuration, discarding the cache.
func (s *SettingsService) Reload(ctx context.Context) error {
	cfg, err := s.repo.GetSettings(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.current = cfg
	s.mu.Unlock()
	return nil
}
