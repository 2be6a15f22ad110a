package emails

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Mailer sends transactional emails. A nil Mailer means email is disabled.
type Mailer interface {
	Send(ctx context.Context, toEmail, toName, subject, contentHTML string) error
}

// SendGridClient sends emails through the SendGrid v3 API. Env: SENDGRID_API_KEY, MAIL_FROM, MAIL_FROM_NAME.
type SendGridClient struct {
	APIKey   string
	MailFrom string
	FromName string
	client   *sendgrid.Client
}

func NewSendGridClient(apiKey, mailFrom, fromName string) *SendGridClient {
	return &SendGridClient{APIKey: apiKey, MailFrom: mailFrom, FromName: fromName, client: sendgrid.NewSendClient(apiKey)}
}

func (c *SendGridClient) from() *mail.Email {
	addr := c.MailFrom
	if addr == "" {
		addr = "noreply@impactlending.app"
	}
	name := c.FromName
	if name == "" {
		name = "Impact Lending"
	}
	return mail.NewEmail(name, addr)
}

// Send wraps contentHTML in the shared layout and sends it. No-op without an API key.
func (c *SendGridClient) Send(ctx context.Context, toEmail, toName, subject, contentHTML string) error {
	if c.APIKey == "" || toEmail == "" {
		return nil
	}
	if c.client == nil {
		c.client = sendgrid.NewSendClient(c.APIKey)
	}
	msg := mail.NewSingleEmail(c.from(), subject, mail.NewEmail(toName, toEmail), StripTags(contentHTML), EmailLayout(contentHTML))
	resp, err := c.client.SendWithContext(ctx, msg)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid send failed: status %d", resp.StatusCode)
	}
	return nil
}

// MilestoneValidatedContent is the body of the milestone_validated email.
func MilestoneValidatedContent(userName, impactDescription string, milestoneNumber int, amountReleased string) string {
	return fmt.Sprintf(`
    <h1>Milestone %d validated</h1>
    <p>Hi %s,</p>
    <p>A validator confirmed milestone %d of your loan <strong>%s</strong>. <strong>%s</strong> has been released to your account.</p>
    <p>The Impact Lending Team</p>
`, milestoneNumber, EscapeHTML(userName), milestoneNumber, EscapeHTML(impactDescription), EscapeHTML(amountReleased))
}

// LoanCompletedContent is the body of the loan_completed email.
func LoanCompletedContent(userName, impactDescription string, reputationScore int) string {
	return fmt.Sprintf(`
    <h1>Loan completed</h1>
    <p>Hi %s,</p>
    <p>Every milestone of <strong>%s</strong> has been validated. Your reputation score is now <strong>%d</strong>.</p>
    <p>The Impact Lending Team</p>
`, EscapeHTML(userName), EscapeHTML(impactDescription), reputationScore)
}
