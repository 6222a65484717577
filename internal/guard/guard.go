// Package guard decides whether a client navigation may proceed or must be
// redirected, given the state of the session.
package guard

import (
	"log"
	"strings"
	"sync"

	"otp_auth/internal/session"
)

const (
	SignInRoute  = "/auth/signin"
	LandingRoute = "/dashboard"
	authPrefix   = "/auth/"
)

type RouteClass int

const (
	Protected RouteClass = iota
	Public
	Auth
)

func (c RouteClass) String() string {
	switch c {
	case Public:
		return "public"
	case Auth:
		return "auth"
	default:
		return "protected"
	}
}

type State int

const (
	Loading State = iota
	Unauthenticated
	Authenticated
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Authenticated:
		return "authenticated"
	default:
		return "loading"
	}
}

// Rules classifies routes and picks redirect targets.
type Rules struct {
	// PublicPaths are open to everyone in addition to "/".
	PublicPaths []string
	SignIn      string
	Landing     string
}

// DefaultRules treats "/" as the only public page besides the auth routes.
var DefaultRules = Rules{SignIn: SignInRoute, Landing: LandingRoute}

// Classify uses DefaultRules.
func Classify(path string) RouteClass { return DefaultRules.Classify(path) }

// Evaluate uses DefaultRules.
func Evaluate(state State, path string) (string, bool) { return DefaultRules.Evaluate(state, path) }

func (r Rules) Classify(path string) RouteClass {
	path = cleanPath(path)
	if strings.HasPrefix(path, authPrefix) {
		return Auth
	}
	if path == "/" {
		return Public
	}
	for _, p := range r.PublicPaths {
		if path == p {
			return Public
		}
	}
	return Protected
}

// Evaluate returns the redirect target and true when navigating to path in
// state must be redirected. Nothing is redirected while loading.
func (r Rules) Evaluate(state State, path string) (string, bool) {
	switch class := r.Classify(path); {
	case state == Unauthenticated && class == Protected:
		return r.SignIn, true
	case state == Authenticated && class == Auth:
		return r.Landing, true
	}
	return "", false
}

func cleanPath(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	return path
}

// Decision is the outcome of the latest evaluation.
type Decision struct {
	Path     string
	State    State
	Redirect string
}

// Allowed reports whether the page at Path may be shown.
func (d Decision) Allowed() bool {
	return d.State != Loading && d.Redirect == ""
}

// Sessions is the part of session.Manager the guard watches.
type Sessions interface {
	Loading() bool
	Current() *session.Session
	Subscribe(fn func(*session.Session)) func()
}

// Option configures a Guard.
type Option func(*Guard)

// WithRules replaces DefaultRules.
func WithRules(r Rules) Option {
	return func(g *Guard) { g.rules = r }
}

// OnRedirect is called with every decision that carries a redirect.
func OnRedirect(fn func(Decision)) Option {
	return func(g *Guard) { g.onRedirect = fn }
}

// Guard tracks the current path and re-evaluates it on every navigation and
// every session change.
type Guard struct {
	rules       Rules
	sessions    Sessions
	onRedirect  func(Decision)
	unsubscribe func()

	mu   sync.Mutex
	path string
	last Decision
}

// New returns a Guard positioned at path. Call Close to stop watching the
// session.
func New(sessions Sessions, path string, opts ...Option) *Guard {
	g := &Guard{rules: DefaultRules, sessions: sessions, path: cleanPath(path)}
	for _, opt := range opts {
		opt(g)
	}
	g.last = g.evaluate(g.path, sessions.Current())
	g.unsubscribe = sessions.Subscribe(func(s *session.Session) {
		g.mu.Lock()
		path := g.path
		g.mu.Unlock()
		g.update(path, s)
	})
	return g
}

// Navigate moves to path and returns the decision for it.
func (g *Guard) Navigate(path string) Decision {
	path = cleanPath(path)
	g.mu.Lock()
	g.path = path
	g.mu.Unlock()
	return g.update(path, g.sessions.Current())
}

// Decision returns the latest decision.
func (g *Guard) Decision() Decision {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last
}

// Close stops watching the session.
func (g *Guard) Close() {
	if g.unsubscribe != nil {
		g.unsubscribe()
	}
}

func (g *Guard) update(path string, s *session.Session) Decision {
	d := g.evaluate(path, s)
	g.mu.Lock()
	g.last = d
	g.mu.Unlock()
	if d.Redirect != "" {
		log.Printf("INFO: redirecting %s from %s to %s", d.State, d.Path, d.Redirect)
		if g.onRedirect != nil {
			g.onRedirect(d)
		}
	}
	return d
}

func (g *Guard) evaluate(path string, s *session.Session) Decision {
	state := Unauthenticated
	switch {
	case g.sessions.Loading():
		state = Loading
	case s != nil:
		state = Authenticated
	}
	d := Decision{Path: path, State: state}
	if state != Loading {
		d.Redirect, _ = g.rules.Evaluate(state, path)
	}
	return d
}
