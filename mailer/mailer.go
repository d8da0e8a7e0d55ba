// Package mailer renders the clinic's transactional emails and hands them to a transport.
package mailer

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"

	"consulta-backend/metrics"
	"consulta-backend/models"

	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	subjectWelcome             = "Bienvenida al panel de %s"
	subjectContactNotification = "Nuevo mensaje de contacto: %s"
	subjectContactAck          = "Hemos recibido tu mensaje"
)

// Sender is what handlers use to send email.
type Sender interface {
	SendWelcome(ctx context.Context, toEmail, name string) error
	SendContactNotification(ctx context.Context, toEmail string, msg models.ContactMessage) error
	SendContactAcknowledgement(ctx context.Context, toEmail, name string) error
}

// Transport delivers an already rendered HTML message.
type Transport interface {
	Deliver(ctx context.Context, toEmail, subject, htmlContent string) error
}

type baseEmailData struct {
	Title   string
	Heading string
	Clinic  string
}

type welcomeEmailData struct {
	baseEmailData
	Name  string
	Email string
}

type contactNotificationData struct {
	baseEmailData
	Name    string
	Email   string
	Phone   string
	Subject string
	Message string
}

type contactAckData struct {
	baseEmailData
	Name string
}

// Mailer implements Sender on top of any Transport.
type Mailer struct {
	transport Transport
	clinic    string
	log       *zap.Logger
}

func New(transport Transport, clinic string, log *zap.Logger) *Mailer {
	return &Mailer{transport: transport, clinic: clinic, log: log}
}

func (m *Mailer) base(heading string) baseEmailData {
	return baseEmailData{Title: heading, Heading: heading, Clinic: m.clinic}
}

func (m *Mailer) SendWelcome(ctx context.Context, toEmail, name string) error {
	content, err := renderEmailTemplate("welcome.html", welcomeEmailData{
		baseEmailData: m.base("Tu cuenta está lista"),
		Name:          name,
		Email:         toEmail,
	})
	if err != nil {
		return err
	}
	return m.deliver(ctx, "welcome", toEmail, fmt.Sprintf(subjectWelcome, m.clinic), content)
}

func (m *Mailer) SendContactNotification(ctx context.Context, toEmail string, msg models.ContactMessage) error {
	content, err := renderEmailTemplate("contact_notification.html", contactNotificationData{
		baseEmailData: m.base("Nuevo mensaje de contacto"),
		Name:          msg.Name,
		Email:         msg.Email,
		Phone:         msg.Phone,
		Subject:       msg.Subject,
		Message:       msg.Message,
	})
	if err != nil {
		return err
	}
	return m.deliver(ctx, "contact_notification", toEmail, fmt.Sprintf(subjectContactNotification, msg.Name), content)
}

func (m *Mailer) SendContactAcknowledgement(ctx context.Context, toEmail, name string) error {
	content, err := renderEmailTemplate("contact_ack.html", contactAckData{
		baseEmailData: m.base("Gracias por escribirnos"),
		Name:          name,
	})
	if err != nil {
		return err
	}
	return m.deliver(ctx, "contact_ack", toEmail, subjectContactAck, content)
}

func (m *Mailer) deliver(ctx context.Context, tmpl, toEmail, subject, content string) error {
	if err := m.transport.Deliver(ctx, toEmail, subject, content); err != nil {
		metrics.EmailsSent.WithLabelValues(tmpl, "error").Inc()
		return err
	}
	metrics.EmailsSent.WithLabelValues(tmpl, "success").Inc()
	m.log.Debug("email sent", zap.String("template", tmpl), zap.String("to", toEmail))
	return nil
}

func renderEmailTemplate(name string, data any) (string, error) {
	templates := []string{"templates/base.html", "templates/" + name}
	tmpl, err := template.New("base.html").ParseFS(templateFS, templates...)
	if err != nil {
		return "", fmt.Errorf("parse email template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "email", data); err != nil {
		return "", fmt.Errorf("execute email template %s: %w", name, err)
	}
	return buf.String(), nil
}
