package handlers

import (
	"fmt"
	"os"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	templates "github.com/volunteerhub/volunteerhub-api/templates/html"
)

// sendEmail sends an email using SendGrid
func sendEmail(toEmail, toName, subject, htmlContent, plainText string) error {
	from := mail.NewEmail("VolunteerHub", "no-reply@volunteerhub.org")
	to := mail.NewEmail(toName, toEmail)
	message := mail.NewSingleEmail(from, subject, to, plainText, htmlContent)
	client := sendgrid.NewSendClient(os.Getenv("SENDGRID_API_KEY"))
	response, err := client.Send(message)
	if err != nil {
		zap.S().Errorw("failed to send email", "error", err, "to", toEmail)
		return err
	}
	if response.StatusCode >= 400 {
		zap.S().Errorw("sendgrid returned error status", "status", response.StatusCode, "body", response.Body, "to", toEmail)
		return fmt.Errorf("sendgrid error: status %d", response.StatusCode)
	}
	zap.S().Infow("email sent successfully", "to", toEmail, "subject", subject)
	return nil
}

// SendOTPEmail emails a password-reset code to a user
func SendOTPEmail(toEmail, toName, otp string) error {
	subject := "Your VolunteerHub password reset code"
	plainText := fmt.Sprintf("Hi %s,\n\nYour password reset code is: %s\n\nIt expires in 10 minutes. If you did not request this, you can ignore this email.", toName, otp)
	htmlContent := templates.RenderGenericEmail(subject, plainText)
	return sendEmail(toEmail, toName, subject, htmlContent, plainText)
}
