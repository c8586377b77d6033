package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sirupsen/logrus"

	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/core/ports"
)

//go:embed templates/*.html
var templateFS embed.FS

// AlertConfig holds the SendGrid settings for budget alerts.
type AlertConfig struct {
	SendGridAPIKey string
	FromEmail      string
	FromName       string
	To             string
}

// sender is the subset of *sendgrid.Client used here.
type sender interface {
	Send(email *mail.SGMailV3) (*restResponse, error)
}

// restResponse mirrors the fields of the SendGrid REST response we inspect.
type restResponse struct {
	StatusCode int
	Body       string
}

type sendgridSender struct{ client *sendgrid.Client }

func (s sendgridSender) Send(email *mail.SGMailV3) (*restResponse, error) {
	resp, err := s.client.Send(email)
	if err != nil {
		return nil, err
	}
	return &restResponse{StatusCode: resp.StatusCode, Body: resp.Body}, nil
}

// AlertNotifier e-mails operators when a principal crosses the budget warning threshold.
type AlertNotifier struct {
	config   *AlertConfig
	logger   *logrus.Logger
	client   sender
	template *template.Template
}

// NewAlertNotifier builds a SendGrid-backed notifier.
func NewAlertNotifier(config *AlertConfig, logger *logrus.Logger) (*AlertNotifier, error) {
	if config.SendGridAPIKey == "" || config.To == "" {
		return nil, fmt.Errorf("sendgrid api key and recipient are required")
	}
	tmpl, err := template.ParseFS(templateFS, "templates/budget_warning.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse budget warning template: %w", err)
	}
	return &AlertNotifier{
		config:   config,
		logger:   logger,
		client:   sendgridSender{client: sendgrid.NewSendClient(config.SendGridAPIKey)},
		template: tmpl,
	}, nil
}

type budgetWarningData struct {
	ports.BudgetAlert
	ThresholdPercent float64
}

// NotifyBudgetWarning renders and sends one warning e-mail.
func (n *AlertNotifier) NotifyBudgetWarning(ctx context.Context, alert ports.BudgetAlert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := n.template.Execute(&buf, budgetWarningData{BudgetAlert: alert, ThresholdPercent: alert.Threshold * 100}); err != nil {
		return fmt.Errorf("failed to render budget warning: %w", err)
	}

	subject := fmt.Sprintf("Budget warning: %s at %.0f%% of daily limit", alert.PrincipalID, alert.Threshold*100)
	from := mail.NewEmail(n.config.FromName, n.config.FromEmail)
	to := mail.NewEmail("", n.config.To)
	message := mail.NewSingleEmail(from, subject, to, "", buf.String())

	resp, err := n.client.Send(message)
	if err != nil {
		n.logger.WithFields(logrus.Fields{
			"principal": alert.PrincipalID,
			"subject":   subject,
		}).WithError(err).Error("Failed to send budget warning")
		return fmt.Errorf("failed to send email: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid rejected budget warning: status %d: %s", resp.StatusCode, resp.Body)
	}

	n.logger.WithFields(logrus.Fields{
		"principal":   alert.PrincipalID,
		"status_code": resp.StatusCode,
	}).Info("Budget warning sent")
	return nil
}
