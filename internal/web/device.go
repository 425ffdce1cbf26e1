package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	deviceCookieName = "muse_device"
	deviceTTL        = 365 * 24 * time.Hour
)

type deviceKey struct{}

// DeviceTokens issues and verifies the signed installation cookie that
// scopes per-client state.
type DeviceTokens struct {
	secret []byte
	now    func() time.Time
}

// NewDeviceTokens creates a token issuer. An empty secret is rejected.
func NewDeviceTokens(secret string) (*DeviceTokens, error) {
	if secret == "" {
		return nil, errors.New("device token secret is empty")
	}
	return &DeviceTokens{secret: []byte(secret), now: time.Now}, nil
}

// Issue signs a token for deviceID.
func (d *DeviceTokens) Issue(deviceID string) (string, error) {
	now := d.now()
	claims := jwt.RegisteredClaims{
		Subject:   deviceID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(deviceTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(d.secret)
}

// Verify returns the device ID carried by a valid token.
func (d *DeviceTokens) Verify(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return d.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(d.now),
	)
	if err != nil {
		return "", fmt.Errorf("parsing device token: %w", err)
	}
	if !parsed.Valid {
		return "", errors.New("invalid device token")
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return "", fmt.Errorf("invalid device id in token: %w", err)
	}
	return claims.Subject, nil
}

// Middleware puts the device ID in the request context, issuing a new
// device cookie when the request has none or an invalid one.
func (d *DeviceTokens) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var deviceID string
		if c, err := r.Cookie(deviceCookieName); err == nil {
			if id, err := d.Verify(c.Value); err == nil {
				deviceID = id
			}
		}

		if deviceID == "" {
			deviceID = uuid.NewString()
			token, err := d.Issue(deviceID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, msgInternalError)
				return
			}
			http.SetCookie(w, &http.Cookie{
				Name:     deviceCookieName,
				Value:    token,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
				MaxAge:   int(deviceTTL.Seconds()),
			})
		}

		ctx := context.WithValue(r.Context(), deviceKey{}, deviceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// DeviceID returns the device ID stored by Middleware.
func DeviceID(ctx context.Context) string {
	id, _ := ctx.Value(deviceKey{}).(string)
	return id
}
