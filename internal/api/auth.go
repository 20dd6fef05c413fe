package api

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"cop-sim/internal/config"
	"cop-sim/internal/metrics"
)

// Realm is announced in WWW-Authenticate challenges.
const Realm = "cop-sim"

// Principal is an authenticated API caller.
type Principal struct {
	Username string
	Role     string
}

type account struct {
	hash []byte
	role string
}

// Authenticator checks HTTP basic credentials against bcrypt hashes of the
// configured users.
type Authenticator struct {
	accounts map[string]account
	// compared against for unknown users so both paths cost one bcrypt run
	dummy []byte
}

// NewAuthenticator hashes every configured password with the given bcrypt
// cost. Usernames must be unique.
func NewAuthenticator(users []config.User, cost int) (*Authenticator, error) {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	a := &Authenticator{accounts: make(map[string]account, len(users))}
	for _, u := range users {
		if _, dup := a.accounts[u.Username]; dup {
			return nil, fmt.Errorf("duplicate user %q", u.Username)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), cost)
		if err != nil {
			return nil, fmt.Errorf("hash password for %q: %w", u.Username, err)
		}
		a.accounts[u.Username] = account{hash: hash, role: u.Role}
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("cop-sim"), cost)
	if err != nil {
		return nil, fmt.Errorf("hash dummy password: %w", err)
	}
	a.dummy = dummy
	return a, nil
}

// Verify returns the principal for valid credentials.
func (a *Authenticator) Verify(username, password string) (Principal, bool) {
	acct, known := a.accounts[username]
	hash := a.dummy
	if known {
		hash = acct.hash
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil || !known {
		return Principal{}, false
	}
	return Principal{Username: username, Role: acct.role}, true
}

// Middleware rejects requests without valid basic credentials with 401 and
// stores the principal in the request context otherwise.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok {
			challenge(w)
			return
		}
		p, valid := a.Verify(user, pass)
		if !valid {
			metrics.AuthFailures.Inc()
			challenge(w)
			return
		}
		if info := requestInfoFrom(r.Context()); info != nil {
			info.user = p.Username
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey{}, p)))
	})
}

func challenge(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Basic realm=%q, charset="UTF-8"`, Realm))
	w.WriteHeader(http.StatusUnauthorized)
}

type principalKey struct{}

// PrincipalFromContext returns the authenticated caller, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
