package memory

import (
	"context"
	"errors"
	"strings"
	"sync"

	"cattle-case-report/internal/domain/casereport"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("not found")
)

// PreviewRepo guarda las previews de imágenes mientras su handle esté vivo.
type PreviewRepo struct {
	mu       sync.RWMutex
	byHandle map[string]casereport.Preview
}

func NewPreviewRepo() *PreviewRepo {
	return &PreviewRepo{
		byHandle: make(map[string]casereport.Preview),
	}
}

var _ casereport.PreviewStore = (*PreviewRepo)(nil)

func (r *PreviewRepo) Acquire(ctx context.Context, p casereport.Preview) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h := uuid.NewString()
	r.byHandle[h] = p
	return h, nil
}

func (r *PreviewRepo) Get(ctx context.Context, handle string) (casereport.Preview, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byHandle[strings.TrimSpace(handle)]
	if !ok {
		return casereport.Preview{}, ErrNotFound
	}
	return p, nil
}

// Release es idempotente: liberar un handle desconocido no es error.
func (r *PreviewRepo) Release(ctx context.Context, handle string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.byHandle, handle)
	return nil
}

// Len cuenta handles vivos.
func (r *PreviewRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byHandle)
}
