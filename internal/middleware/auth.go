// Package middleware provides HTTP cross-cutting concerns: authentication,
// structured request logging, tracing, metrics and rate limiting.
package middleware

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// TokenIssuer and TokenAudience are the registered claims every access token must carry.
const (
	TokenIssuer   = "squadfeed-api"
	TokenAudience = "squadfeed-client"
)

var errInvalidSubject = errors.New("invalid token subject")

// Authenticator validates HMAC-signed bearer tokens issued by the account service.
type Authenticator struct {
	secret []byte
}

// NewAuthenticator returns an Authenticator for the shared signing secret.
func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// Required rejects requests without a valid bearer token and stores the
// authenticated user id in c.Locals("userID").
func (a *Authenticator) Required() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw, ok := bearerToken(c.Get("Authorization"))
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authorization header required",
			})
		}

		userID, err := a.ParseUserID(raw)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		c.Locals("userID", userID)
		c.SetUserContext(enrichContext(c))
		return c.Next()
	}
}

// Optional sets userID when a valid token is present and never rejects.
func (a *Authenticator) Optional() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if raw, ok := bearerToken(c.Get("Authorization")); ok {
			if userID, err := a.ParseUserID(raw); err == nil {
				c.Locals("userID", userID)
				c.SetUserContext(enrichContext(c))
			}
		}
		return c.Next()
	}
}

// ParseUserID validates the token and returns the numeric "sub" claim.
func (a *Authenticator) ParseUserID(raw string) (uint, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	},
		jwt.WithIssuer(TokenIssuer),
		jwt.WithAudience(TokenAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return 0, err
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return 0, errInvalidSubject
	}
	id, err := strconv.ParseUint(sub, 10, 32)
	if err != nil || id == 0 {
		return 0, errInvalidSubject
	}
	return uint(id), nil
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || scheme != "Bearer" || token == "" {
		return "", false
	}
	return token, true
}
