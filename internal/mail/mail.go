// Package mail renders and delivers transactional account emails.
package mail

import (
	"context"
	"fmt"
	"html"
	"time"
)

// Message is a rendered email ready for delivery.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers a message. Implementations must be safe for concurrent
// use; callers fire deliveries from goroutines.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// VerificationEmail builds the address-verification message. The link
// points at the frontend, which relays the token to the verify endpoint.
func VerificationEmail(to, username, token, frontendURL string, ttl time.Duration) Message {
	link := fmt.Sprintf("%s/verify-email?token=%s", frontendURL, token)
	body := fmt.Sprintf(`<html><body style="font-family: Arial, sans-serif; padding: 20px;">
<h2>Welcome to Bookly, %s!</h2>
<p>Thank you for registering. Please verify your email address by clicking the link below:</p>
<p><a href="%s">Verify Email Address</a></p>
<p>Or copy this link to your browser:</p>
<p style="color: #666; font-size: 14px;">%s</p>
<p style="color: #999; font-size: 12px;">This link will expire in %d hours.<br>
If you didn't create this account, please ignore this email.</p>
</body></html>`, html.EscapeString(username), link, link, int(ttl.Hours()))
	return Message{To: to, Subject: "Verify Your Email - Bookly", HTML: body}
}

// PasswordResetEmail builds the reset-link message.
func PasswordResetEmail(to, username, token, frontendURL string, ttl time.Duration) Message {
	link := fmt.Sprintf("%s/reset-password?token=%s", frontendURL, token)
	hours := int(ttl.Hours())
	if hours < 1 {
		hours = 1
	}
	body := fmt.Sprintf(`<html><body style="font-family: Arial, sans-serif; padding: 20px;">
<h2>Password Reset Request</h2>
<p>Hello %s,</p>
<p>We received a request to reset your password. Click the link below to set a new password:</p>
<p><a href="%s">Reset Password</a></p>
<p>Or copy this link to your browser:</p>
<p style="color: #666; font-size: 14px;">%s</p>
<p style="color: #999; font-size: 12px;">This link will expire in %d hour(s).<br>
If you didn't request this reset, please ignore this email and your password will remain unchanged.</p>
</body></html>`, html.EscapeString(username), link, link, hours)
	return Message{To: to, Subject: "Password Reset - Bookly", HTML: body}
}

// PasswordChangedEmail notifies the account that its password was changed.
func PasswordChangedEmail(to, username string) Message {
	body := fmt.Sprintf(`<html><body style="font-family: Arial, sans-serif; padding: 20px;">
<h2>Password Changed</h2>
<p>Hello %s,</p>
<p>The password for your Bookly account was just changed.</p>
<p style="color: #999; font-size: 12px;">If this wasn't you, please reset your password immediately.</p>
</body></html>`, html.EscapeString(username))
	return Message{To: to, Subject: "Password Changed - Bookly", HTML: body}
}
