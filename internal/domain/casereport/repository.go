package casereport

import "context"

// PreviewStore entrega handles de preview con vida acotada a la imagen.
type PreviewStore interface {
	Acquire(ctx context.Context, p Preview) (string, error)
	Get(ctx context.Context, handle string) (Preview, error)
	Release(ctx context.Context, handle string) error
}

// SessionRepository guarda un Controller por sesión de navegador.
type SessionRepository interface {
	// GetOrCreate devuelve el controller de la sesión; si no existe lo crea con create.
	// created indica si se usó create.
	GetOrCreate(ctx context.Context, sessionID string, create func() *Controller) (c *Controller, created bool, err error)
	// Get no crea; devuelve error si la sesión no existe.
	Get(ctx context.Context, sessionID string) (*Controller, error)
	Delete(ctx context.Context, sessionID string) (*Controller, error)
	List(ctx context.Context) (map[string]*Controller, error)
}
