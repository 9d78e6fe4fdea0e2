package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cattle-case-report/internal/platform/httpclient"
	"cattle-case-report/internal/ports/casesapi"
)

const (
	DefaultDiseasesPath = "diseases/"
	DefaultSubmitPath   = "api/"

	fallbackSubmitMessage = "Submission failed, please try again"
	fallbackLoadMessage   = "Could not load the disease list"
	unreachableMessage    = "Could not reach the server"
)

var ErrNotConfigured = errors.New("cases api client not configured")

// Config del cliente del backend de casos.
type Config struct {
	BaseURL string

	// Opcionales; por defecto diseases/ y api/.
	DiseasesPath string
	SubmitPath   string

	Timeout time.Duration
}

// Client implementa casesapi.Backend sobre HTTP.
type Client struct {
	http         *httpclient.Client
	diseasesPath string
	submitPath   string
}

var _ casesapi.Backend = (*Client)(nil)

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, ErrNotConfigured
	}
	hc, err := httpclient.NewWithBaseURL(strings.TrimSpace(cfg.BaseURL), cfg.Timeout)
	if err != nil {
		return nil, err
	}
	return newWithHTTP(hc, cfg), nil
}

// NewWithHTTPClient permite inyectar un httpclient (p.ej. para tests).
func NewWithHTTPClient(hc *httpclient.Client, cfg Config) *Client {
	return newWithHTTP(hc, cfg)
}

func newWithHTTP(hc *httpclient.Client, cfg Config) *Client {
	dp := strings.TrimSpace(cfg.DiseasesPath)
	if dp == "" {
		dp = DefaultDiseasesPath
	}
	sp := strings.TrimSpace(cfg.SubmitPath)
	if sp == "" {
		sp = DefaultSubmitPath
	}
	return &Client{http: hc, diseasesPath: dp, submitPath: sp}
}

// envelope es el formato {data: ...} de todas las respuestas del backend.
type envelope[T any] struct {
	Data T `json:"data"`
}

// ListDiseases hace GET diseases/ → {data: [{id, name}]}.
func (c *Client) ListDiseases(ctx context.Context) ([]casesapi.Disease, error) {
	var out envelope[[]casesapi.Disease]
	if err := c.http.DoJSON(ctx, http.MethodGet, c.diseasesPath, nil, nil, &out); err != nil {
		return nil, toRemoteError("list diseases", fallbackLoadMessage, err)
	}
	if out.Data == nil {
		return []casesapi.Disease{}, nil
	}
	return out.Data, nil
}

// SubmitCase hace POST api/ multipart. Los nombres de campo son los que espera el backend
// (incluido "diagonosis").
func (c *Client) SubmitCase(ctx context.Context, s casesapi.Submission) (string, error) {
	fields := []httpclient.Field{
		{Name: "user_phone", Value: s.UserPhone},
		{Name: "description", Value: s.Description},
		{Name: "doctor_advice", Value: s.DoctorAdvice},
		{Name: "diagonosis", Value: s.Diagnosis},
		{Name: "treatment", Value: s.Treatment},
		{Name: "disease", Value: s.DiseaseID},
	}

	files := make([]httpclient.File, 0, len(s.Images))
	for i, img := range s.Images {
		name := strings.TrimSpace(img.Filename)
		if name == "" {
			name = fmt.Sprintf("image-%d", i+1)
		}
		files = append(files, httpclient.File{
			Field:       "images",
			Filename:    name,
			ContentType: img.ContentType,
			Data:        img.Data,
		})
	}

	var out envelope[string]
	if err := c.http.DoMultipart(ctx, http.MethodPost, c.submitPath, nil, fields, files, &out); err != nil {
		return "", toRemoteError("submit case", fallbackSubmitMessage, err)
	}
	return out.Data, nil
}

// toRemoteError normaliza errores del httpclient. El mensaje sale de {data: "..."} si existe.
func toRemoteError(op, fallback string, err error) error {
	// Cancelaciones se devuelven tal cual para que el caller las distinga.
	if errors.Is(err, context.Canceled) {
		return err
	}

	var he *httpclient.HTTPError
	if errors.As(err, &he) {
		msg := messageFromBody(he.Body)
		if msg == "" {
			msg = fallback
		}
		return &casesapi.RemoteError{Op: op, StatusCode: he.StatusCode, Message: msg, Err: err}
	}

	return &casesapi.RemoteError{Op: op, Message: unreachableMessage, Err: err}
}

func messageFromBody(body string) string {
	body = strings.TrimSpace(body)
	if body == "" {
		return ""
	}
	var env envelope[json.RawMessage]
	if err := json.Unmarshal([]byte(body), &env); err != nil || len(env.Data) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(env.Data, &s); err == nil {
		return strings.TrimSpace(s)
	}
	// data no es string (p.ej. errores por campo): lo mostramos compacto.
	return strings.TrimSpace(string(env.Data))
}
