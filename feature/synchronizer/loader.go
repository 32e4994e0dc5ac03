package synchronizer

import (
	"github.com/gofiber/fiber/v2"
)

// Feature implements the loader.Feature interface.
type Feature struct {
	service *Service
	handler *Handler
}

// NewFeature creates a new sync feature around an existing service.
func NewFeature(service *Service, accounts []Account) *Feature {
	return &Feature{service: service, handler: NewHandler(service, accounts)}
}

// Name returns the name of the feature.
func (f *Feature) Name() string {
	return "sync"
}

// IsEnabled reports whether any account is configured.
func (f *Feature) IsEnabled() bool {
	return len(f.handler.accounts) > 0
}

// Load registers the feature's routes.
func (f *Feature) Load(app fiber.Router) error {
	f.handler.RegisterRoutes(app)
	return nil
}

// Service returns the feature's sync service.
func (f *Feature) Service() *Service {
	return f.service
}
