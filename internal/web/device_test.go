package web

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceTokens(t *testing.T) {
	_, err := NewDeviceTokens("")
	require.Error(t, err)

	d, err := NewDeviceTokens("secret")
	require.NoError(t, err)

	id := uuid.NewString()
	token, err := d.Issue(id)
	require.NoError(t, err)

	got, err := d.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	other, err := NewDeviceTokens("other-secret")
	require.NoError(t, err)
	_, err = other.Verify(token)
	assert.Error(t, err, "wrong key must be rejected")

	notUUID, err := d.Issue("not-a-uuid")
	require.NoError(t, err)
	_, err = d.Verify(notUUID)
	assert.Error(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: id})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = d.Verify(unsigned)
	assert.Error(t, err, "unsigned tokens must be rejected")
}

func TestDeviceTokensExpire(t *testing.T) {
	d, err := NewDeviceTokens("secret")
	require.NoError(t, err)

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return start }
	token, err := d.Issue(uuid.NewString())
	require.NoError(t, err)

	d.now = func() time.Time { return start.Add(deviceTTL + time.Hour) }
	_, err = d.Verify(token)
	assert.Error(t, err)
}

func TestDeviceMiddleware(t *testing.T) {
	d, err := NewDeviceTokens("secret")
	require.NoError(t, err)

	var seen string
	h := d.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = DeviceID(r.Context())
	}))

	// No cookie: a new device is issued.
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, seen)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, deviceCookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	first := seen

	// Valid cookie: same device, no new cookie.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, first, seen)
	assert.Empty(t, rec.Result().Cookies())

	// Tampered cookie: replaced with a fresh device.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: deviceCookieName, Value: cookies[0].Value + "x"})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.NotEqual(t, first, seen)
	assert.Len(t, rec.Result().Cookies(), 1)
}
