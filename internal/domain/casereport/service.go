package casereport

import (
	"context"
	"errors"
	"strings"
	"time"

	"cattle-case-report/internal/platform/logger"
	"cattle-case-report/internal/ports/casesapi"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrPreviewNotFound = errors.New("preview not found")
)

// Service reparte un Controller por sesión y los cierra cuando la sesión expira.
type Service struct {
	repo     SessionRepository
	backend  casesapi.Backend
	previews PreviewStore
	rules    Rules
	log      logger.Logger
	now      func() time.Time
}

type ServiceOptions struct {
	Sessions SessionRepository
	Backend  casesapi.Backend
	Previews PreviewStore
	Rules    Rules
	Logger   logger.Logger
}

func NewService(opts ServiceOptions) *Service {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo:     opts.Sessions,
		backend:  opts.Backend,
		previews: opts.Previews,
		rules:    opts.Rules,
		log:      log,
		now:      time.Now,
	}
}

// Controller devuelve el form de la sesión. Un form nuevo arranca la carga de enfermedades.
func (s *Service) Controller(ctx context.Context, sessionID string) (*Controller, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrInvalidInput
	}

	c, created, err := s.repo.GetOrCreate(ctx, sessionID, func() *Controller {
		return NewController(ControllerOptions{
			Backend:  s.backend,
			Previews: s.previews,
			Rules:    s.rules,
			Logger:   s.log.With(map[string]any{"session": shortID(sessionID)}),
			Now:      s.now,
		})
	})
	if err != nil {
		return nil, err
	}
	if created {
		c.Mount()
		s.log.Debug("form mounted", map[string]any{"session": shortID(sessionID)})
	}
	return c, nil
}

// Preview resuelve un handle vivo que pertenezca al form de la sesión.
func (s *Service) Preview(ctx context.Context, sessionID, handle string) (Preview, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" || strings.TrimSpace(sessionID) == "" {
		return Preview{}, ErrInvalidInput
	}

	c, err := s.repo.Get(ctx, sessionID)
	if err != nil || !c.HasImage(handle) {
		return Preview{}, ErrPreviewNotFound
	}
	return s.previews.Get(ctx, handle)
}

// End cierra y descarta el form de una sesión.
func (s *Service) End(ctx context.Context, sessionID string) error {
	c, err := s.repo.Delete(ctx, sessionID)
	if err != nil {
		return err
	}
	c.Close()
	return nil
}

// Sweep cierra los forms sin actividad desde hace más de idle. Devuelve cuántos cerró.
func (s *Service) Sweep(ctx context.Context, idle time.Duration) (int, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := s.now().Add(-idle)
	closed := 0
	for id, c := range all {
		// No cortamos un envío en curso.
		if !c.CloseIfIdle(cutoff) {
			continue
		}
		_, _ = s.repo.Delete(ctx, id)
		closed++
	}
	if closed > 0 {
		s.log.Info("idle forms closed", map[string]any{"count": closed})
	}
	return closed, nil
}

// Shutdown cierra todos los forms (aborta requests en vuelo).
func (s *Service) Shutdown(ctx context.Context) error {
	all, err := s.repo.List(ctx)
	if err != nil {
		return err
	}
	for id := range all {
		_ = s.End(ctx, id)
	}
	return nil
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
