package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

const (
	ActivationTemplate    = "activationEmail"
	CreationTemplate      = "creationEmail"
	PasswordResetTemplate = "passwordResetEmail"
)

//go:embed templates/*.html
var templateFS embed.FS

// TemplateData son los datos disponibles en las plantillas de correo.
type TemplateData struct {
	BaseURL       string
	Login         string
	FirstName     string
	Email         string
	LangKey       string
	ActivationKey string
	ResetKey      string
}

// Renderer resuelve plantillas embebidas por nombre.
type Renderer struct {
	templates *template.Template
}

func NewRenderer() (*Renderer, error) {
	t, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse email templates: %w", err)
	}
	return &Renderer{templates: t}, nil
}

func (r *Renderer) Render(name string, data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, name+".html", data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
