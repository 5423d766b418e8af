package managers

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mailgun/mailgun-go/v4"
	"github.com/matcornic/hermes/v2"
	log "github.com/sirupsen/logrus"
)

// MailMgr outlines the contract for transactional mail. It covers the
// verification code sent on registration, the password reset link and the
// welcome mail after a successful verification.
type MailMgr interface {
	SendOTPMail(email, name, otp string) error
	SendPasswordResetMail(email, name, resetURL string) error
	SendConfirmationMail(email, name string) error
}

// MailManager sends mail through Mailgun, with Hermes rendering the HTML
// bodies.
type MailManager struct {
	Hermes  *hermes.Hermes
	Mailgun *mailgun.MailgunImpl
}

var from = "MediCare <noreply@medicare.example.com>"
var environment string

// SendOTPMail sends the one-time verification code a freshly registered user
// has to enter to activate their account.
func (mm *MailManager) SendOTPMail(email, name, otp string) error {
	if environment != "production" {
		log.Info("Skipping OTP mail in development mode")
		return nil
	}

	mailBody := hermes.Email{
		Body: hermes.Body{
			Name: name,
			Intros: []string{
				"Welcome to MediCare! We're very excited to have you on board.",
				"Before you can sign in, we need to make sure this email address is really yours.",
			},
			Outros: []string{
				"The code expires after 15 minutes. If you did not create an account, you can safely ignore this mail.",
			},
			Actions: []hermes.Action{
				{
					Instructions: "To verify your account, enter the following code on the verification page:",
					InviteCode:   otp,
				},
			},
		},
	}

	return mm.send(email, "Verify your account", mailBody)
}

// SendPasswordResetMail sends the password reset link. The link embeds a
// single-use token that expires after one hour.
func (mm *MailManager) SendPasswordResetMail(email, name, resetURL string) error {
	if environment != "production" {
		log.Info("Skipping password reset mail in development mode")
		return nil
	}

	mailBody := hermes.Email{
		Body: hermes.Body{
			Name: name,
			Intros: []string{
				"You have received this email because a password reset request for your account was received.",
			},
			Outros: []string{
				"The link is valid for one hour and can only be used once.",
				"If you did not request a password reset, no further action is required on your part.",
			},
			Actions: []hermes.Action{
				{
					Instructions: "Click the button below to reset your password:",
					Button: hermes.Button{
						Color: "#DC4D2F",
						Text:  "Reset your password",
						Link:  resetURL,
					},
				},
			},
		},
	}

	return mm.send(email, "Reset your password", mailBody)
}

// SendConfirmationMail sends a confirmation email after a successful account
// verification.
func (mm *MailManager) SendConfirmationMail(email, name string) error {
	if environment != "production" {
		log.Info("Skipping confirmation mail in development mode")
		return nil
	}

	mailBody := hermes.Email{
		Body: hermes.Body{
			Name: name,
			Intros: []string{
				"Your account has been successfully verified!",
				"You can now sign in and start donating or requesting medicines.",
			},
			Outros: []string{
				"Have fun using MediCare! We'll be happy to help you at any time.",
			},
		},
	}

	return mm.send(email, "Account successfully verified", mailBody)
}

func (mm *MailManager) send(email, subject string, mailBody hermes.Email) error {
	emailBody, err := mm.Hermes.GenerateHTML(mailBody)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(2*time.Second))
	defer func() {
		if err := ctx.Err(); err != nil {
			log.Debug("Context error: ", err)
		}
		cancel()
	}()

	message := mm.Mailgun.NewMessage(from, subject, "", email)
	message.SetHtml(emailBody)
	if _, _, err = mm.Mailgun.Send(ctx, message); err != nil {
		log.Warning(fmt.Sprintf("Error sending mail %q: %s", subject, err.Error()))
		return err
	}
	log.Debug("Mail sent to ", email)

	return nil
}

// NewMailManager initializes a new MailManager with configured Mailgun and
// Hermes settings. Outside production, mails are logged and skipped.
func NewMailManager() MailMgr {
	log.Info("Initializing mail manager")
	environment = os.Getenv("ENVIRONMENT")

	if environment != "production" {
		log.Info("Running in development mode, email will not be sent to users")
	}

	apiKey := os.Getenv("MAILGUN_API_KEY")
	domain := os.Getenv("MAILGUN_DOMAIN")
	mailgunInstance := mailgun.NewMailgun(domain, apiKey)
	mailgunInstance.SetAPIBase(mailgun.APIBaseEU)

	mm := &MailManager{
		Hermes: &hermes.Hermes{
			Theme:         new(hermes.Default),
			TextDirection: hermes.TDLeftToRight,
			Product: hermes.Product{
				Name:        "MediCare",
				Link:        os.Getenv("FRONTEND_URL"),
				Copyright:   "© MediCare. Share medicines, save lives.",
				TroubleText: "If you’re having trouble with the button '{ACTION}', copy and paste the URL below into your web browser.",
			},
		},
		Mailgun: mailgunInstance,
	}
	log.Info("Initialized mail manager")
	return mm
}
