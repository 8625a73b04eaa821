package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"

	"github.com/Masterminds/sprig/v3"

	"github.com/arklim/account-auth-service/internal/core/domain"
)

//go:embed templates/*.gohtml
var templateFS embed.FS

const (
	footerDefault  = "If you didn't request this, you can safely ignore this email."
	footerSecurity = "For security reasons, reset your password if you didn't authorize this change."
)

// Composer renders the service's transactional emails.
type Composer struct {
	frontendURL string
	adminEmail  string
	pages       map[string]*template.Template
}

// NewComposer parses the embedded templates. frontendURL is used to build
// password reset links and adminEmail receives registration notices.
func NewComposer(frontendURL, adminEmail string) (*Composer, error) {
	layout, err := template.New("layout.gohtml").Funcs(sprig.HtmlFuncMap()).ParseFS(templateFS, "templates/layout.gohtml")
	if err != nil {
		return nil, fmt.Errorf("parse email layout: %w", err)
	}

	pages := make(map[string]*template.Template)
	for _, name := range []string{"verification", "password_reset", "password_changed", "welcome", "admin_registration"} {
		base, err := layout.Clone()
		if err != nil {
			return nil, fmt.Errorf("clone email layout: %w", err)
		}
		page, err := base.ParseFS(templateFS, "templates/"+name+".gohtml")
		if err != nil {
			return nil, fmt.Errorf("parse %s email: %w", name, err)
		}
		pages[name] = page
	}

	return &Composer{
		frontendURL: strings.TrimRight(frontendURL, "/"),
		adminEmail:  strings.TrimSpace(adminEmail),
		pages:       pages,
	}, nil
}

// AdminEmail returns the configured administrator address.
func (c *Composer) AdminEmail() string {
	return c.adminEmail
}

// Verification renders the email carrying an email verification code.
func (c *Composer) Verification(to, name, code string, ttl time.Duration) (domain.EmailMessage, error) {
	return c.render("verification", to, "Verify Your Email", map[string]any{
		"Heading":          "Verify Your Email",
		"Footer":           footerDefault,
		"Name":             name,
		"Code":             code,
		"ExpiresInMinutes": minutes(ttl),
	})
}

// PasswordReset renders the email carrying a reset link and code.
func (c *Composer) PasswordReset(to, name, token, code string, ttl time.Duration) (domain.EmailMessage, error) {
	return c.render("password_reset", to, "Password Reset Request", map[string]any{
		"Heading":          "Reset Your Password",
		"Footer":           footerDefault,
		"Name":             name,
		"Link":             c.ResetLink(to, token, code),
		"Code":             code,
		"ExpiresInMinutes": minutes(ttl),
	})
}

// PasswordChanged renders the notification sent after a password update.
func (c *Composer) PasswordChanged(to, name string) (domain.EmailMessage, error) {
	return c.render("password_changed", to, "Password Updated Successfully", map[string]any{
		"Heading": "Password Updated",
		"Footer":  footerSecurity,
		"Name":    name,
	})
}

// Welcome renders the greeting sent after registration.
func (c *Composer) Welcome(to, name string) (domain.EmailMessage, error) {
	return c.render("welcome", to, "Welcome to Our Platform", map[string]any{
		"Heading": "Welcome to Our Platform!",
		"Footer":  "If you didn't create this account, please contact our support team immediately.",
		"Name":    name,
	})
}

// AdminRegistration renders the administrator notice for a new account.
func (c *Composer) AdminRegistration(email, name string, at time.Time) (domain.EmailMessage, error) {
	return c.render("admin_registration", c.adminEmail, "Admin Notification: New User Registration", map[string]any{
		"Heading":      "New User Registration",
		"Footer":       "",
		"Email":        email,
		"Name":         name,
		"RegisteredAt": at,
	})
}

// ResetLink builds the web client URL that pre-fills the reset form.
func (c *Composer) ResetLink(email, token, code string) string {
	query := url.Values{}
	query.Set("token", token)
	query.Set("code", code)
	query.Set("email", email)
	return c.frontendURL + "/reset-password?" + query.Encode()
}

func (c *Composer) render(page, to, subject string, data map[string]any) (domain.EmailMessage, error) {
	tmpl, ok := c.pages[page]
	if !ok {
		return domain.EmailMessage{}, fmt.Errorf("unknown email template %q", page)
	}

	var body bytes.Buffer
	if err := tmpl.ExecuteTemplate(&body, "layout", data); err != nil {
		return domain.EmailMessage{}, fmt.Errorf("render %s email: %w", page, err)
	}

	return domain.EmailMessage{To: to, Subject: subject, HTMLBody: body.String()}, nil
}

func minutes(ttl time.Duration) int {
	m := int(ttl / time.Minute)
	if m < 1 {
		return 1
	}
	return m
}
