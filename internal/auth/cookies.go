package auth

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"user-auth-service/internal/domain/session"
)

const (
	securePrefix      = "__Secure-"
	sessionTokenName  = "session_token"
	sessionDataName   = "session_data"
	dontRememberName  = "dont_remember"
	dontRememberValue = "true"
)

var errBadSignature = errors.New("invalid cookie signature")

// cookieNames holds the fully qualified cookie names for one configuration.
type cookieNames struct {
	token        string
	data         string
	dontRemember string
}

func newCookieNames(prefix string, secure bool) cookieNames {
	p := prefix + "."
	if secure {
		p = securePrefix + p
	}
	return cookieNames{
		token:        p + sessionTokenName,
		data:         p + sessionDataName,
		dontRemember: p + dontRememberName,
	}
}

// signValue appends an HMAC-SHA256 signature to value.
func signValue(value string, secret []byte) (string, error) {
	sig, err := jwt.SigningMethodHS256.Sign(value, secret)
	if err != nil {
		return "", err
	}
	return value + "." + base64.RawURLEncoding.EncodeToString(sig), nil
}

// verifyValue returns the payload of a signed value.
func verifyValue(signed string, secret []byte) (string, error) {
	i := strings.LastIndexByte(signed, '.')
	if i <= 0 || i == len(signed)-1 {
		return "", errBadSignature
	}
	value, encoded := signed[:i], signed[i+1:]
	sig, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", errBadSignature
	}
	if err := jwt.SigningMethodHS256.Verify(value, sig, secret); err != nil {
		return "", errBadSignature
	}
	return value, nil
}

// sessionDataClaims is the payload of the cookie cache.
type sessionDataClaims struct {
	Identity session.Identity `json:"identity"`
	jwt.RegisteredClaims
}

func encodeSessionData(ident session.Identity, now time.Time, maxAge time.Duration, secret []byte) (string, error) {
	claims := sessionDataClaims{
		Identity: ident,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ident.User.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(maxAge)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func decodeSessionData(raw string, now time.Time, secret []byte) (*session.Identity, error) {
	claims := &sessionDataClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(func() time.Time { return now }))
	if err != nil {
		return nil, err
	}
	return &claims.Identity, nil
}

// readCookie returns the named cookie from a raw header set.
func readCookie(h http.Header, name string) (string, bool) {
	c, err := (&http.Request{Header: h}).Cookie(name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func (s *Service) newCookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

// setSessionCookies writes the signed token cookie and, when enabled, the cookie cache.
func (s *Service) setSessionCookies(w http.ResponseWriter, ident *session.Identity, dontRemember bool) error {
	signed, err := signValue(ident.Session.Token, s.secret)
	if err != nil {
		return err
	}

	maxAge := int(s.cfg.SessionExpiresIn / time.Second)
	if dontRemember {
		maxAge = 0
	}
	http.SetCookie(w, s.newCookie(s.cookies.token, signed, maxAge))

	if dontRemember {
		flag, err := signValue(dontRememberValue, s.secret)
		if err != nil {
			return err
		}
		http.SetCookie(w, s.newCookie(s.cookies.dontRemember, flag, 0))
	}

	if s.cfg.CookieCacheEnabled {
		data, err := encodeSessionData(*ident, s.now(), s.cfg.CookieCacheMaxAge, s.secret)
		if err != nil {
			return err
		}
		http.SetCookie(w, s.newCookie(s.cookies.data, data, int(s.cfg.CookieCacheMaxAge/time.Second)))
	}
	return nil
}

// ClearSessionCookies expires every session cookie on the client.
func (s *Service) ClearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{s.cookies.token, s.cookies.data, s.cookies.dontRemember} {
		http.SetCookie(w, s.newCookie(name, "", -1))
	}
}

// sessionToken extracts and verifies the session token cookie.
func (s *Service) sessionToken(h http.Header) (string, bool) {
	raw, ok := readCookie(h, s.cookies.token)
	if !ok {
		return "", false
	}
	token, err := verifyValue(raw, s.secret)
	if err != nil {
		return "", false
	}
	return token, true
}

func (s *Service) dontRemember(h http.Header) bool {
	raw, ok := readCookie(h, s.cookies.dontRemember)
	if !ok {
		return false
	}
	v, err := verifyValue(raw, s.secret)
	return err == nil && v == dontRememberValue
}
