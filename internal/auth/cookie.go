package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"
)

// SessionCookieName is the cookie carrying the encrypted refresh token.
const SessionCookieName = "session"

// CookieCodec seals the refresh token into a tamper-proof, server-encrypted
// cookie (AES-256-GCM, random nonce prepended, base64url). A cookie that
// fails to decrypt reads as absent: clients cannot distinguish a stripped
// cookie from a corrupted one, and a tampered value never reaches the
// session registry.
type CookieCodec struct {
	aead   cipher.AEAD
	secure bool
}

// NewCookieCodec constructs a codec from a 32-byte key.
func NewCookieCodec(key []byte, secure bool) (*CookieCodec, error) {
	if len(key) != 32 {
		return nil, errors.New("auth: cookie key must be 32 bytes")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &CookieCodec{aead: aead, secure: secure}, nil
}

func (c *CookieCodec) seal(value string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(value), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (c *CookieCodec) open(encoded string) (string, bool) {
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil || len(raw) <= c.aead.NonceSize() {
		return "", false
	}
	nonce, sealed := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", false
	}
	return string(plain), true
}

// Set writes the session cookie with max-age maxAge.
func (c *CookieCodec) Set(w http.ResponseWriter, refreshToken string, maxAge time.Duration) error {
	sealed, err := c.seal(refreshToken)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sealed,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Read returns the decrypted refresh token from the request cookie, if any.
func (c *CookieCodec) Read(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return "", false
	}
	v := strings.TrimSpace(cookie.Value)
	if v == "" {
		return "", false
	}
	return c.open(v)
}

// Clear expires the session cookie.
func (c *CookieCodec) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
