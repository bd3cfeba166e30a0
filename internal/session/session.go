// Package session keeps the logged-in identity and the pending cart in a
// signed cookie.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"teamorders/internal/core"
)

const (
	CookieName = "teamorders_session"
	DefaultTTL = 12 * time.Hour
	issuer     = "teamorders"
)

var (
	ErrNoSession     = errors.New("no session")
	ErrInvalidToken  = errors.New("invalid session token")
	ErrWeakSecret    = errors.New("session secret must be at least 16 bytes")
	errUnexpectedAlg = errors.New("unexpected signing method")
)

// State is everything kept between requests.
type State struct {
	Identity core.Identity
	Cart     Cart
}

// LoggedIn reports whether the state names a member.
func (s State) LoggedIn() bool {
	return s.Identity.Valid()
}

type claims struct {
	jwt.RegisteredClaims
	Identity core.Identity `json:"id"`
	Cart     Cart          `json:"cart,omitempty"`
}

// Manager signs and verifies session cookies with HS256.
type Manager struct {
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

// NewManager returns a manager for secret. secure marks cookies HTTPS-only.
func NewManager(secret string, ttl time.Duration, secure bool) (*Manager, error) {
	if len(secret) < 16 {
		return nil, ErrWeakSecret
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{secret: []byte(secret), ttl: ttl, secure: secure, now: time.Now}, nil
}

// Encode signs state into a token.
func (m *Manager) Encode(s State) (string, error) {
	now := m.now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   s.Identity.Member,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		Identity: s.Identity,
		Cart:     s.Cart,
	})
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return signed, nil
}

// Decode verifies a token and returns its state.
func (m *Manager) Decode(token string) (State, error) {
	c := &claims{}
	parsed, err := jwt.ParseWithClaims(token, c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: %v", errUnexpectedAlg, t.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return State{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return State{}, ErrInvalidToken
	}
	return State{Identity: c.Identity, Cart: c.Cart}, nil
}

// Load reads the session cookie of r.
func (m *Manager) Load(r *http.Request) (State, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return State{}, ErrNoSession
	}
	return m.Decode(cookie.Value)
}

// Save writes state as the session cookie.
func (m *Manager) Save(w http.ResponseWriter, s State) error {
	token, err := m.Encode(s)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.ttl / time.Second),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Clear expires the session cookie.
func (m *Manager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

type contextKey struct{}

// NewContext returns ctx carrying s.
func NewContext(ctx context.Context, s State) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the request's session state; the zero State when absent.
func FromContext(ctx context.Context) State {
	s, _ := ctx.Value(contextKey{}).(State)
	return s
}

// Middleware decodes the cookie once per request. Missing or invalid
// cookies yield an anonymous state.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := m.Load(r)
		if err != nil && !errors.Is(err, ErrNoSession) {
			m.Clear(w)
		}
		next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), s)))
	})
}
