package memory

import (
	"context"
	"errors"
	"strings"
	"sync"

	"cattle-case-report/internal/domain/casereport"
)

type sessionRepo struct {
	mu   sync.RWMutex
	byID map[string]*casereport.Controller
}

func NewSessionRepo() casereport.SessionRepository {
	return &sessionRepo{
		byID: make(map[string]*casereport.Controller),
	}
}

func (r *sessionRepo) GetOrCreate(ctx context.Context, sessionID string, create func() *casereport.Controller) (*casereport.Controller, bool, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, false, errors.New("session id required")
	}

	r.mu.RLock()
	c, ok := r.byID[sessionID]
	r.mu.RUnlock()
	if ok {
		return c, false, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Otro request pudo crearlo entre RUnlock y Lock.
	if c, ok := r.byID[sessionID]; ok {
		return c, false, nil
	}
	c = create()
	if c == nil {
		return nil, false, errors.New("session factory returned nil")
	}
	r.byID[sessionID] = c
	return c, true, nil
}

func (r *sessionRepo) Get(ctx context.Context, sessionID string) (*casereport.Controller, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.byID[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

func (r *sessionRepo) Delete(ctx context.Context, sessionID string) (*casereport.Controller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.byID[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	delete(r.byID, sessionID)
	return c, nil
}

func (r *sessionRepo) List(ctx context.Context) (map[string]*casereport.Controller, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]*casereport.Controller, len(r.byID))
	for id, c := range r.byID {
		out[id] = c
	}
	return out, nil
}
