package casereport

import (
	"errors"
	"regexp"
)

var (
	ErrMissingFields    = errors.New("missing required fields")
	ErrInvalidPhone     = errors.New("invalid phone number")
	ErrSubmitInProgress = errors.New("submission already in progress")
	ErrClosed           = errors.New("form closed")
)

// Mensajes que ve el usuario.
const (
	msgMissingFields = "Please fill in all required fields"
	msgInvalidPhone  = "Invalid phone number"
	msgInProgress    = "Submission in progress, please wait"
)

// Reason es el motivo de una validación fallida. Vacío = válido.
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonMissingFields Reason = "missing_fields"
	ReasonInvalidPhone  Reason = "invalid_phone"
)

type ValidationResult struct {
	Reason Reason
}

func (v ValidationResult) Valid() bool { return v.Reason == ReasonNone }

// Err mapea el resultado al error sentinela (nil si es válido).
func (v ValidationResult) Err() error {
	switch v.Reason {
	case ReasonMissingFields:
		return ErrMissingFields
	case ReasonInvalidPhone:
		return ErrInvalidPhone
	default:
		return nil
	}
}

func (v ValidationResult) message() string {
	switch v.Reason {
	case ReasonMissingFields:
		return msgMissingFields
	case ReasonInvalidPhone:
		return msgInvalidPhone
	default:
		return ""
	}
}

// Rules configura la validación del lado cliente.
type Rules struct {
	// RequireImages exige al menos una imagen antes de enviar.
	RequireImages bool
}

// DefaultRules exige imágenes.
func DefaultRules() Rules {
	return Rules{RequireImages: true}
}

// 11 dígitos, empieza con 01 (p.ej. 01712345678).
var phonePattern = regexp.MustCompile(`^01\d{9}$`)

func IsValidPhoneNumber(phone string) bool {
	return phonePattern.MatchString(phone)
}

// Validate chequea primero campos requeridos y después el formato del teléfono.
func Validate(s FormState, rules Rules) ValidationResult {
	required := []string{
		s.Phone,
		s.Description,
		s.DoctorsAdvice,
		s.Diagnosis,
		s.Treatment,
		s.SelectedDiseaseID,
	}
	for _, v := range required {
		if v == "" {
			return ValidationResult{Reason: ReasonMissingFields}
		}
	}
	if rules.RequireImages && len(s.Images) == 0 {
		return ValidationResult{Reason: ReasonMissingFields}
	}

	if !IsValidPhoneNumber(s.Phone) {
		return ValidationResult{Reason: ReasonInvalidPhone}
	}
	return ValidationResult{}
}
