package casereport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cattle-case-report/internal/middleware"
	"cattle-case-report/internal/platform/logger"
	"cattle-case-report/internal/ports/casesapi"

	"github.com/go-chi/chi/v5"
)

const (
	DefaultMaxUploadBytes = 32 << 20

	// Cuánto espera la primera carga de la página al listado de enfermedades.
	DefaultDiseasesWait = 5 * time.Second

	// parte en memoria de un multipart; el resto va a archivos temporales
	multipartMemory = 8 << 20
)

type HandlerOptions struct {
	MaxUploadBytes int64
	DiseasesWait   time.Duration
	Logger         logger.Logger
}

func RegisterRoutes(r chi.Router, svc *Service, opts HandlerOptions) {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if opts.DiseasesWait <= 0 {
		opts.DiseasesWait = DefaultDiseasesWait
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}

	r.Get("/", pageHandler(svc, opts))

	r.Route("/form", func(fr chi.Router) {
		fr.Get("/state", stateHandler(svc))
		fr.Post("/images", addImagesHandler(svc, opts))
		fr.Post("/images/{index}/remove", removeImageHandler(svc, opts))
		fr.Post("/submit", submitHandler(svc, opts))
	})

	r.Get("/previews/{handle}", previewHandler(svc))
}

type imageResponse struct {
	Index       int    `json:"index"`
	Handle      string `json:"handle"`
	PreviewURL  string `json:"preview_url"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
}

type diseaseResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type stateResponse struct {
	Phone        string            `json:"user_phone"`
	Description  string            `json:"description"`
	DoctorAdvice string            `json:"doctor_advice"`
	Diagnosis    string            `json:"diagonosis"`
	Treatment    string            `json:"treatment"`
	Disease      string            `json:"disease"`
	Images       []imageResponse   `json:"images"`
	Diseases     []diseaseResponse `json:"diseases"`
	Submitting   bool              `json:"submitting"`
}

type noticeResponse struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
	At      time.Time  `json:"at"`
}

type submitResponse struct {
	Status  string           `json:"status"`
	Reason  Reason           `json:"reason,omitempty"`
	Message string           `json:"message"`
	Notices []noticeResponse `json:"notices"`
}

func pageHandler(svc *Service, opts HandlerOptions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := sessionController(w, r, svc)
		if !ok {
			return
		}

		// La página se renderiza una sola vez: esperamos el listado (o su aviso de error).
		ctx, cancel := context.WithTimeout(r.Context(), opts.DiseasesWait)
		err := c.WaitLoaded(ctx)
		cancel()
		if err != nil {
			opts.Logger.Warn("diseases not loaded before render", map[string]any{"error": err})
		}

		d := buildPage(c.Snapshot(), c.Diseases(), c.DrainNotices(), c.Submitting())
		if err := renderPage(w, d); err != nil {
			opts.Logger.Error("render page failed", map[string]any{"error": err})
		}
	}
}

// stateHandler godoc
// @Summary      Estado del form de la sesión
// @Tags         form
// @Produce      json
// @Success      200  {object}  stateResponse
// @Router       /form/state [get]
func stateHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := sessionController(w, r, svc)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, toStateResponse(c.Snapshot(), c.Diseases(), c.Submitting()))
	}
}

// addImagesHandler godoc
// @Summary      Agrega imágenes (y guarda los campos enviados)
// @Tags         form
// @Accept       mpfd
// @Produce      json
// @Param        images  formData  file  false  "imágenes (repetible)"
// @Success      200  {object}  stateResponse
// @Failure      400  {string}  string
// @Failure      413  {string}  string
// @Router       /form/images [post]
func addImagesHandler(svc *Service, opts HandlerOptions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := sessionController(w, r, svc)
		if !ok {
			return
		}
		if !parseForm(w, r, opts.MaxUploadBytes) {
			return
		}
		if err := applyForm(r, c); err != nil {
			writeApplyError(w, err, opts.Logger)
			return
		}
		respondState(w, r, c)
	}
}

// removeImageHandler godoc
// @Summary      Quita la imagen en la posición index
// @Tags         form
// @Produce      json
// @Param        index  path  int  true  "posición (0-based)"
// @Success      200  {object}  stateResponse
// @Router       /form/images/{index}/remove [post]
func removeImageHandler(svc *Service, opts HandlerOptions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := sessionController(w, r, svc)
		if !ok {
			return
		}
		if !parseForm(w, r, opts.MaxUploadBytes) {
			return
		}

		index, err := strconv.Atoi(chi.URLParam(r, "index"))
		if err != nil {
			http.Error(w, "index must be an integer", http.StatusBadRequest)
			return
		}

		// Primero se guardan los campos, sin archivos nuevos: así los índices
		// siguen siendo los que el usuario vio.
		applyFields(r, c)

		// fuera de rango: no-op silencioso
		if !c.RemoveImage(r.Context(), index) {
			opts.Logger.Debug("remove image ignored", map[string]any{"index": index})
		}
		respondState(w, r, c)
	}
}

// submitHandler godoc
// @Summary      Valida y envía el reporte al backend de casos
// @Tags         form
// @Accept       mpfd
// @Produce      json
// @Success      200  {object}  submitResponse
// @Failure      409  {object}  submitResponse
// @Failure      422  {object}  submitResponse
// @Failure      502  {object}  submitResponse
// @Router       /form/submit [post]
func submitHandler(svc *Service, opts HandlerOptions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := sessionController(w, r, svc)
		if !ok {
			return
		}
		if !parseForm(w, r, opts.MaxUploadBytes) {
			return
		}
		if err := applyForm(r, c); err != nil {
			writeApplyError(w, err, opts.Logger)
			return
		}

		msg, err := c.Submit(r.Context())

		if !wantsJSON(r) {
			// El resultado llega al usuario como toast en la próxima carga de la página.
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}

		resp := submitResponse{Status: "ok", Message: msg}
		status := http.StatusOK
		if err != nil {
			switch {
			case errors.Is(err, ErrMissingFields):
				status, resp.Status, resp.Reason, resp.Message = http.StatusUnprocessableEntity, "invalid", ReasonMissingFields, msgMissingFields
			case errors.Is(err, ErrInvalidPhone):
				status, resp.Status, resp.Reason, resp.Message = http.StatusUnprocessableEntity, "invalid", ReasonInvalidPhone, msgInvalidPhone
			case errors.Is(err, ErrSubmitInProgress):
				status, resp.Status, resp.Message = http.StatusConflict, "busy", msgInProgress
			case errors.Is(err, ErrClosed):
				status, resp.Status, resp.Message = http.StatusServiceUnavailable, "closed", "form closed, reload the page"
			default:
				status, resp.Status, resp.Message = http.StatusBadGateway, "error", remoteMessage(err, msgSubmitFailed)
			}
		}
		// Los warnings (p.ej. fallo de enfermedades) quedan para el banner de la página.
		resp.Notices = toNoticeResponses(c.DrainNotices(NoticeSuccess, NoticeError))
		writeJSON(w, status, resp)
	}
}

func previewHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid, _ := middleware.GetSessionID(r.Context())
		p, err := svc.Preview(r.Context(), sid, chi.URLParam(r, "handle"))
		if err != nil {
			http.Error(w, "preview not found", http.StatusNotFound)
			return
		}

		ct := p.ContentType
		if ct == "" {
			ct = http.DetectContentType(p.Data)
		}
		w.Header().Set("Content-Type", ct)
		w.Header().Set("Cache-Control", "private, no-store")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(p.Data)
	}
}

func sessionController(w http.ResponseWriter, r *http.Request, svc *Service) (*Controller, bool) {
	sid, ok := middleware.GetSessionID(r.Context())
	if !ok {
		http.Error(w, "session required", http.StatusUnauthorized)
		return nil, false
	}
	c, err := svc.Controller(r.Context(), sid)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return nil, false
	}
	c.Touch()
	return c, true
}

func parseForm(w http.ResponseWriter, r *http.Request, max int64) bool {
	r.Body = http.MaxBytesReader(w, r.Body, max)

	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		err = r.ParseMultipartForm(multipartMemory)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			http.Error(w, "upload too large", http.StatusRequestEntityTooLarge)
			return false
		}
		http.Error(w, "invalid form", http.StatusBadRequest)
		return false
	}
	return true
}

// applyForm guarda en el controller lo que vino en el POST: campos, enfermedad y archivos.
func applyForm(r *http.Request, c *Controller) error {
	applyFields(r, c)

	if r.MultipartForm == nil {
		return nil
	}
	files, err := readAttachments(r.MultipartForm.File["images"])
	if err != nil {
		return err
	}
	_, err = c.AddImages(r.Context(), files)
	return err
}

func applyFields(r *http.Request, c *Controller) {
	c.Update(FieldsInput{
		Phone:         postValue(r, "user_phone"),
		Description:   postValue(r, "description"),
		DoctorsAdvice: postValue(r, "doctor_advice"),
		Diagnosis:     postValue(r, "diagonosis"),
		Treatment:     postValue(r, "treatment"),
	})
	if d := postValue(r, "disease"); d != nil {
		c.SetSelectedDisease(*d)
	}
}

// postValue devuelve nil si el campo no vino (distinto de vacío).
func postValue(r *http.Request, key string) *string {
	vs, ok := r.PostForm[key]
	if !ok || len(vs) == 0 {
		return nil
	}
	v := vs[0]
	return &v
}

func readAttachments(headers []*multipart.FileHeader) ([]casesapi.Attachment, error) {
	out := make([]casesapi.Attachment, 0, len(headers))
	for _, fh := range headers {
		// input file sin selección: el navegador manda una parte vacía sin nombre
		if fh.Filename == "" && fh.Size == 0 {
			continue
		}
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return nil, err
		}

		ct := fh.Header.Get("Content-Type")
		if ct == "" || ct == "application/octet-stream" {
			ct = http.DetectContentType(data)
		}
		out = append(out, casesapi.Attachment{Filename: fh.Filename, ContentType: ct, Data: data})
	}
	return out, nil
}

func writeApplyError(w http.ResponseWriter, err error, log logger.Logger) {
	switch {
	case errors.Is(err, ErrClosed):
		http.Error(w, "form closed, reload the page", http.StatusServiceUnavailable)
	default:
		log.Error("apply form failed", map[string]any{"error": err})
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func respondState(w http.ResponseWriter, r *http.Request, c *Controller) {
	if !wantsJSON(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, toStateResponse(c.Snapshot(), c.Diseases(), c.Submitting()))
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func toStateResponse(s FormState, diseases []casesapi.Disease, submitting bool) stateResponse {
	out := stateResponse{
		Phone:        s.Phone,
		Description:  s.Description,
		DoctorAdvice: s.DoctorsAdvice,
		Diagnosis:    s.Diagnosis,
		Treatment:    s.Treatment,
		Disease:      s.SelectedDiseaseID,
		Images:       make([]imageResponse, 0, len(s.Images)),
		Diseases:     make([]diseaseResponse, 0, len(diseases)),
		Submitting:   submitting,
	}
	for i, img := range s.Images {
		out.Images = append(out.Images, imageResponse{
			Index:       i,
			Handle:      img.Handle,
			PreviewURL:  img.PreviewURL,
			Filename:    img.File.Filename,
			ContentType: img.File.ContentType,
			Size:        len(img.File.Data),
		})
	}
	for _, d := range diseases {
		out.Diseases = append(out.Diseases, diseaseResponse{ID: d.ID, Name: d.Name})
	}
	return out
}

func toNoticeResponses(ns []Notice) []noticeResponse {
	out := make([]noticeResponse, 0, len(ns))
	for _, n := range ns {
		out = append(out, noticeResponse{Kind: n.Kind, Message: n.Message, At: n.At})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
