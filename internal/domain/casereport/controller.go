package casereport

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"cattle-case-report/internal/platform/logger"
	"cattle-case-report/internal/ports/casesapi"
)

const (
	maxNotices = 10

	msgSubmitFailed = "Submission failed, please try again"
	msgLoadFailed   = "Could not load the disease list"
)

// Controller es el dueño del estado de un form (una sesión).
// Todo cambio de estado pasa por acá; las llamadas de red nunca se hacen con el lock tomado.
type Controller struct {
	backend    casesapi.Backend
	previews   PreviewStore
	rules      Rules
	log        logger.Logger
	now        func() time.Time
	previewURL func(handle string) string

	// ctx vive lo que vive el controller; Close lo cancela y aborta requests en vuelo.
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once

	// loaded se cierra cuando termina la primera carga de enfermedades (ok o error).
	loaded     chan struct{}
	loadedOnce sync.Once

	mu         sync.Mutex
	state      FormState
	diseases   []casesapi.Disease
	notices    []Notice
	submitting bool
	closed     bool
	lastSeen   time.Time
}

type ControllerOptions struct {
	Backend  casesapi.Backend
	Previews PreviewStore
	Rules    Rules
	Logger   logger.Logger

	// PreviewURL arma la URL de una miniatura a partir del handle. Opcional.
	PreviewURL func(handle string) string
	Now        func() time.Time
}

func NewController(opts ControllerOptions) *Controller {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	previewURL := opts.PreviewURL
	if previewURL == nil {
		previewURL = func(handle string) string { return "/previews/" + handle }
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		backend:    opts.Backend,
		previews:   opts.Previews,
		rules:      opts.Rules,
		log:        log,
		now:        now,
		previewURL: previewURL,
		ctx:        ctx,
		cancel:     cancel,
		loaded:     make(chan struct{}),
		lastSeen:   now(),
	}
}

// Mount dispara la carga asíncrona del listado de enfermedades.
func (c *Controller) Mount() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		_ = c.loadDiseases(c.ctx)
	}()
}

// LoadDiseases pide el listado al backend. Si falla, el listado queda vacío,
// se loguea y se deja un aviso no bloqueante para el usuario.
func (c *Controller) LoadDiseases(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.wg.Add(1)
	c.mu.Unlock()
	defer c.wg.Done()

	return c.loadDiseases(ctx)
}

func (c *Controller) loadDiseases(ctx context.Context) error {
	// Corre después del Unlock: quien espera ya ve el listado o el aviso.
	defer c.markLoaded()

	rctx, stop := c.requestContext(ctx)
	defer stop()

	list, err := c.backend.ListDiseases(rctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		if c.closed {
			return ErrClosed
		}
		c.log.Error("load diseases failed", map[string]any{"error": err})
		c.pushLocked(NoticeWarning, remoteMessage(err, msgLoadFailed))
		return fmt.Errorf("load diseases: %w", err)
	}

	c.diseases = append([]casesapi.Disease(nil), list...)
	c.log.Debug("diseases loaded", map[string]any{"count": len(list)})
	return nil
}

// WaitLoaded espera a que termine la carga de enfermedades, o a que ctx venza.
func (c *Controller) WaitLoaded(ctx context.Context) error {
	select {
	case <-c.loaded:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) markLoaded() {
	c.loadedOnce.Do(func() { close(c.loaded) })
}

// AddImages agrega cada archivo al final, con su propio handle de preview.
// No deduplica ni filtra por tipo o tamaño.
func (c *Controller) AddImages(ctx context.Context, files []casesapi.Attachment) ([]Image, error) {
	if len(files) == 0 {
		return nil, nil
	}

	added := make([]Image, 0, len(files))
	for _, f := range files {
		h, err := c.previews.Acquire(ctx, Preview{
			Filename:    f.Filename,
			ContentType: f.ContentType,
			Data:        f.Data,
		})
		if err != nil {
			c.releaseAll(ctx, added)
			return nil, fmt.Errorf("acquire preview: %w", err)
		}
		added = append(added, Image{Handle: h, PreviewURL: c.previewURL(h), File: f})
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.releaseAll(ctx, added)
		return nil, ErrClosed
	}
	c.state.Images = append(c.state.Images, added...)
	c.touchLocked()
	c.mu.Unlock()

	return added, nil
}

// RemoveImage saca la imagen en index y corre las siguientes una posición.
// Un index fuera de rango no hace nada y devuelve false.
func (c *Controller) RemoveImage(ctx context.Context, index int) bool {
	c.mu.Lock()
	if index < 0 || index >= len(c.state.Images) {
		c.mu.Unlock()
		return false
	}
	img := c.state.Images[index]
	c.state.Images = slices.Delete(c.state.Images, index, index+1)
	c.touchLocked()
	c.mu.Unlock()

	c.releaseAll(ctx, []Image{img})
	return true
}

// SetSelectedDisease reemplaza la selección (radio: gana la última).
func (c *Controller) SetSelectedDisease(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.SelectedDiseaseID = id
	c.touchLocked()
}

func (c *Controller) Update(in FieldsInput) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if in.Phone != nil {
		c.state.Phone = *in.Phone
	}
	if in.Description != nil {
		c.state.Description = *in.Description
	}
	if in.DoctorsAdvice != nil {
		c.state.DoctorsAdvice = *in.DoctorsAdvice
	}
	if in.Diagnosis != nil {
		c.state.Diagnosis = *in.Diagnosis
	}
	if in.Treatment != nil {
		c.state.Treatment = *in.Treatment
	}
	c.touchLocked()
}

func (c *Controller) Validate() ValidationResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Validate(c.state, c.rules)
}

// Submit valida y, si corresponde, envía el reporte.
// Éxito: se limpia el form, se liberan previews y se avisa con el mensaje del servidor.
// Error: el form queda intacto para reintentar y se avisa con el mensaje del servidor.
func (c *Controller) Submit(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", ErrClosed
	}
	if c.submitting {
		c.pushLocked(NoticeError, msgInProgress)
		c.mu.Unlock()
		return "", ErrSubmitInProgress
	}
	c.touchLocked()

	res := Validate(c.state, c.rules)
	if !res.Valid() {
		c.pushLocked(NoticeError, res.message())
		c.mu.Unlock()
		c.log.Debug("submission rejected", map[string]any{"reason": string(res.Reason)})
		return "", res.Err()
	}

	sub := c.submissionLocked()
	c.submitting = true
	c.wg.Add(1)
	c.mu.Unlock()
	defer c.wg.Done()

	rctx, stop := c.requestContext(ctx)
	defer stop()

	msg, err := c.backend.SubmitCase(rctx, sub)

	c.mu.Lock()
	c.submitting = false

	if err != nil {
		if c.closed {
			c.mu.Unlock()
			return "", ErrClosed
		}
		c.pushLocked(NoticeError, remoteMessage(err, msgSubmitFailed))
		c.mu.Unlock()
		c.log.Warn("submission failed", map[string]any{"error": err, "images": len(sub.Images)})
		return "", fmt.Errorf("submit case: %w", err)
	}

	released := c.state.Images
	c.state = FormState{}
	c.pushLocked(NoticeSuccess, msg)
	c.mu.Unlock()

	c.releaseAll(context.Background(), released)
	c.log.Info("case submitted", map[string]any{"images": len(sub.Images), "disease": sub.DiseaseID})
	return msg, nil
}

// Close cancela requests en vuelo, espera que terminen y libera todas las previews.
// Se puede llamar más de una vez.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.finishClose()
}

// CloseIfIdle cierra el form solo si no hubo actividad después de cutoff y no hay
// un envío en curso. El chequeo y el cierre pasan bajo el mismo lock, así que un
// Submit no puede arrancar en el medio.
func (c *Controller) CloseIfIdle(cutoff time.Time) bool {
	c.mu.Lock()
	if c.closed || c.submitting || c.lastSeen.After(cutoff) {
		c.mu.Unlock()
		return false
	}
	c.closed = true
	c.mu.Unlock()

	c.finishClose()
	return true
}

// finishClose asume closed = true.
func (c *Controller) finishClose() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.wg.Wait()

		c.mu.Lock()
		images := c.state.Images
		c.state = FormState{}
		c.notices = nil
		c.mu.Unlock()

		c.releaseAll(context.Background(), images)
		c.markLoaded()
	})
}

// Touch registra actividad del usuario aunque no cambie el estado (p.ej. recargar la página).
func (c *Controller) Touch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touchLocked()
}

// HasImage indica si handle es la preview de una imagen de este form.
func (c *Controller) HasImage(handle string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, img := range c.state.Images {
		if img.Handle == handle {
			return true
		}
	}
	return false
}

// Snapshot devuelve una copia del estado actual.
func (c *Controller) Snapshot() FormState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

func (c *Controller) Diseases() []casesapi.Disease {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]casesapi.Disease(nil), c.diseases...)
}

// DrainNotices devuelve los avisos pendientes y los consume.
// Con kinds, solo consume esos tipos; el resto queda en cola.
func (c *Controller) DrainNotices(kinds ...NoticeKind) []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(kinds) == 0 {
		out := c.notices
		c.notices = nil
		return out
	}

	var out, keep []Notice
	for _, n := range c.notices {
		if slices.Contains(kinds, n.Kind) {
			out = append(out, n)
		} else {
			keep = append(keep, n)
		}
	}
	c.notices = keep
	return out
}

func (c *Controller) Submitting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitting
}

func (c *Controller) LastSeen() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSeen
}

func (c *Controller) submissionLocked() casesapi.Submission {
	s := c.state
	images := make([]casesapi.Attachment, 0, len(s.Images))
	for _, img := range s.Images {
		images = append(images, img.File)
	}
	return casesapi.Submission{
		UserPhone:    s.Phone,
		Description:  s.Description,
		DoctorAdvice: s.DoctorsAdvice,
		Diagnosis:    s.Diagnosis,
		Treatment:    s.Treatment,
		DiseaseID:    s.SelectedDiseaseID,
		Images:       images,
	}
}

// requestContext combina el ctx del caller con el del controller: cualquiera de los dos cancela.
func (c *Controller) requestContext(parent context.Context) (context.Context, func()) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(c.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (c *Controller) pushLocked(kind NoticeKind, msg string) {
	c.notices = append(c.notices, Notice{Kind: kind, Message: msg, At: c.now()})
	if len(c.notices) > maxNotices {
		c.notices = c.notices[len(c.notices)-maxNotices:]
	}
}

func (c *Controller) touchLocked() {
	c.lastSeen = c.now()
}

func (c *Controller) releaseAll(ctx context.Context, images []Image) {
	for _, img := range images {
		if err := c.previews.Release(ctx, img.Handle); err != nil {
			c.log.Warn("release preview failed", map[string]any{"handle": img.Handle, "error": err})
		}
	}
}

func remoteMessage(err error, fallback string) string {
	var re *casesapi.RemoteError
	if errors.As(err, &re) && re.Message != "" {
		return re.Message
	}
	return fallback
}
