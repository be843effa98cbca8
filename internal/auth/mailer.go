package auth

import (
	"context"
	"log"
)

// Mailer delivers verification codes. Actual email transport lives outside
// this service; LogMailer is the default so local runs still surface codes.
type Mailer interface {
	SendOTP(ctx context.Context, email, code string) error
}

type LogMailer struct{}

func (LogMailer) SendOTP(_ context.Context, email, code string) error {
	log.Printf("verification code for %s: %s", email, code)
	return nil
}
