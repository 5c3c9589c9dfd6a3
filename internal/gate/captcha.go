package gate

import "context"

// CaptchaVerifier checks a captcha token with a concrete provider
// (reCAPTCHA, Turnstile, ...). Out of scope here; the chat surface plugs one
// in when abuse warrants it.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token string) bool
}

// Captcha is the captcha gate. When disabled every request passes; when
// enabled a request needs a token the verifier accepts.
type Captcha struct {
	enabled  bool
	verifier CaptchaVerifier
}

// NewCaptcha builds the gate. verifier may be nil; an enabled gate then
// accepts any non-empty token (presence-only checking, matching the original
// site before a verifier was wired up).
func NewCaptcha(enabled bool, verifier CaptchaVerifier) *Captcha {
	return &Captcha{enabled: enabled, verifier: verifier}
}

// Allow reports whether a request carrying token may proceed.
func (c *Captcha) Allow(ctx context.Context, token string) bool {
	if !c.enabled {
		return true
	}
	if token == "" {
		return false
	}
	if c.verifier == nil {
		return true
	}
	return c.verifier.Verify(ctx, token)
}
