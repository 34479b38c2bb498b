package security

import (
	"crypto/sha256"
	"net/http"
	"sync"

	"golang.org/x/crypto/bcrypt"

	applog "flota/internal/log"
)

// PasswordGate protects the API with one shared password, checked against
// a bcrypt hash. Clients send it as the HTTP Basic password; the user name
// is ignored.
type PasswordGate struct {
	hash   []byte
	exempt map[string]bool
	logger *applog.Logger

	// Digests of passwords that already matched, so bcrypt runs once per
	// distinct password rather than once per request.
	mu       sync.RWMutex
	accepted map[[32]byte]bool
}

// NewPasswordGate returns nil when hash is empty; a nil gate lets every
// request through.
func NewPasswordGate(hash string, logger *applog.Logger, exemptPaths ...string) *PasswordGate {
	if hash == "" {
		return nil
	}
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	exempt := make(map[string]bool, len(exemptPaths))
	for _, p := range exemptPaths {
		exempt[p] = true
	}
	return &PasswordGate{
		hash:     []byte(hash),
		exempt:   exempt,
		logger:   logger.WithComponent(applog.ComponentSecurity),
		accepted: make(map[[32]byte]bool),
	}
}

// Check reports whether password matches the configured hash.
func (g *PasswordGate) Check(password string) bool {
	digest := sha256.Sum256([]byte(password))
	g.mu.RLock()
	ok := g.accepted[digest]
	g.mu.RUnlock()
	if ok {
		return true
	}
	if bcrypt.CompareHashAndPassword(g.hash, []byte(password)) != nil {
		return false
	}
	g.mu.Lock()
	g.accepted[digest] = true
	g.mu.Unlock()
	return true
}

func (g *PasswordGate) Middleware(next http.Handler) http.Handler {
	if g == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.exempt[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}
		_, password, ok := r.BasicAuth()
		if !ok || !g.Check(password) {
			g.logger.WarnContext(r.Context(), "Rejected request without valid password",
				applog.FieldPath, r.URL.Path,
				applog.FieldMethod, r.Method)
			w.Header().Set("WWW-Authenticate", `Basic realm="flota"`)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
