package casereport

import (
	"time"

	"cattle-case-report/internal/ports/casesapi"
)

// FormState es todo lo que el usuario cargó para un reporte de caso.
// Vive solo en memoria, mientras dure la sesión.
type FormState struct {
	Phone         string
	Description   string
	DoctorsAdvice string
	Diagnosis     string
	Treatment     string

	// Una sola enfermedad a la vez (radio). Vacío = ninguna.
	SelectedDiseaseID string

	// Orden de inserción; es el orden de la grilla de miniaturas.
	Images []Image
}

// Image es un adjunto con su handle de preview.
// El handle se libera cuando la imagen sale del form (remove, reset o Close).
type Image struct {
	Handle     string
	PreviewURL string
	File       casesapi.Attachment
}

// FieldsInput usa punteros para updates parciales: nil = no tocar.
type FieldsInput struct {
	Phone         *string
	Description   *string
	DoctorsAdvice *string
	Diagnosis     *string
	Treatment     *string
}

type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
	// NoticeWarning no bloquea el form (banner), p.ej. fallo al cargar enfermedades.
	NoticeWarning NoticeKind = "warning"
)

// Notice es una notificación transitoria (toast) para el usuario.
type Notice struct {
	Kind    NoticeKind
	Message string
	At      time.Time
}

// Preview es lo que un PreviewStore guarda detrás de un handle.
type Preview struct {
	Filename    string
	ContentType string
	Data        []byte
}

func (s FormState) clone() FormState {
	out := s
	out.Images = append([]Image(nil), s.Images...)
	return out
}
