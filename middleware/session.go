package middleware

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionCookie carries the signed reference to the caller's most
// recent enrichment job, the way the original browser flow tracked the
// job between upload and download.
const SessionCookie = "leadlift_session"

// ErrNoSession is returned when the request carries no usable session.
var ErrNoSession = errors.New("no job session")

// IssueJobSession sets a signed cookie pointing at the given job.
func IssueJobSession(c *fiber.Ctx, secret []byte, jobID uuid.UUID, ttl time.Duration, secure bool) error {
	now := time.Now()
	claims := jwt.MapClaims{
		"job_id": jobID.String(),
		"iat":    now.Unix(),
		"exp":    now.Add(ttl).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return fmt.Errorf("failed to sign session token: %w", err)
	}

	c.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    signed,
		Expires:  now.Add(ttl),
		HTTPOnly: true,
		Secure:   secure,
		SameSite: "Lax",
		Path:     "/",
	})
	return nil
}

// JobIDFromSession extracts and validates the job id from the session cookie.
func JobIDFromSession(c *fiber.Ctx, secret []byte) (string, error) {
	raw := c.Cookies(SessionCookie)
	if raw == "" {
		return "", ErrNoSession
	}

	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrNoSession
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrNoSession
	}
	jobID, ok := claims["job_id"].(string)
	if !ok || jobID == "" {
		return "", ErrNoSession
	}
	if _, err := uuid.Parse(jobID); err != nil {
		return "", ErrNoSession
	}
	return jobID, nil
}
