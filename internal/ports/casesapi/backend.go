package casesapi

import (
	"context"
	"fmt"
)

// Backend es el servicio remoto que lista enfermedades y recibe reportes de casos.
type Backend interface {
	ListDiseases(ctx context.Context) ([]Disease, error)
	// SubmitCase devuelve el mensaje ("data") que el servidor manda en la respuesta.
	SubmitCase(ctx context.Context, s Submission) (string, error)
}

// Disease es una opción seleccionable del listado remoto.
type Disease struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Submission es un reporte de caso listo para enviar.
type Submission struct {
	UserPhone    string
	Description  string
	DoctorAdvice string
	Diagnosis    string
	Treatment    string
	DiseaseID    string

	Images []Attachment
}

// Attachment es el binario crudo de una imagen subida.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// RemoteError es un fallo del backend. Message es texto apto para mostrar al usuario.
// StatusCode es 0 cuando no hubo respuesta (red, timeout).
type RemoteError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *RemoteError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: status=%d: %s", e.Op, e.StatusCode, e.Message)
}

func (e *RemoteError) Unwrap() error { return e.Err }
