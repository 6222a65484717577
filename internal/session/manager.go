package session

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"otp_auth/internal/client"
)

// API is the part of the HTTP client the manager needs.
type API interface {
	Login(ctx context.Context, identifier, code string) (*client.LoginResult, error)
	LookupByIdentifier(ctx context.Context, identifier string) (json.RawMessage, error)
	LookupByID(ctx context.Context, id int64) (json.RawMessage, error)
	Me(ctx context.Context, token string) (json.RawMessage, error)
}

// provisionalKey marks a stored session whose id is a placeholder. It holds
// the identifier the placeholder was derived from and is stripped on load.
const provisionalKey = "_provisional"

// Session is the signed-in user held in memory.
type Session struct {
	Record Record
	// Provisional is set when the id was not read from the canonical field.
	// It survives a reload through the store.
	Provisional bool
	// Identifier is the email or phone used to resolve the record.
	Identifier string
}

// ID returns the record's id, or 0.
func (s *Session) ID() int64 {
	if s == nil {
		return 0
	}
	id, _ := positiveID(s.Record[idField])
	return id
}

// Name returns the derived display name, or "".
func (s *Session) Name() string {
	if s == nil {
		return ""
	}
	return stringField(s.Record, "name")
}

// Token returns the bearer token saved at sign-in, or "".
func (s *Session) Token() string {
	if s == nil {
		return ""
	}
	return stringField(s.Record, "token")
}

// Manager owns the current session. It starts in the loading state until
// Hydrate has read the store. All methods are safe for concurrent use.
type Manager struct {
	api   API
	store Store

	// commitMu serializes writes of the session to the store and to current.
	commitMu sync.Mutex

	mu      sync.Mutex
	current *Session
	// gen changes on every sign-in, bootstrap and logout. A lookup started
	// under an older gen is dropped instead of committed.
	gen         uint64
	loading     bool
	nextSubID   int
	subscribers map[int]func(*Session)
}

// NewManager returns a Manager in the loading state.
func NewManager(api API, store Store) *Manager {
	return &Manager{
		api:         api,
		store:       store,
		loading:     true,
		subscribers: make(map[int]func(*Session)),
	}
}

// Hydrate restores the session saved in the store. A value that cannot be
// decoded is removed. Loading is false afterwards whatever the outcome.
func (m *Manager) Hydrate(ctx context.Context) *Session {
	var s *Session
	raw, err := m.store.Load(ctx, SessionKey)
	switch {
	case err != nil:
		log.Printf("WARN: failed to read stored session: %v", err)
	case raw != nil:
		rec, provisionalFor, decodeErr := decodeStored(raw)
		if decodeErr != nil {
			log.Printf("WARN: discarding unreadable stored session: %v", decodeErr)
			if err := m.store.Clear(ctx, SessionKey); err != nil {
				log.Printf("WARN: failed to clear stored session: %v", err)
			}
			break
		}
		s = &Session{Record: rec, Identifier: contactOf(rec)}
		if provisionalFor != "" {
			s.Provisional, s.Identifier = true, provisionalFor
		}
	}

	m.mu.Lock()
	m.current = s
	m.loading = false
	m.mu.Unlock()
	m.notify(s)
	return s
}

// SignIn verifies code for identifier and bootstraps the session. A
// verification failure is returned as is. A nil session with a nil error
// means the code was accepted but the user record could not be resolved.
func (m *Manager) SignIn(ctx context.Context, identifier, code string) (*Session, error) {
	gen := m.bump()
	res, err := m.api.Login(ctx, identifier, code)
	if err != nil {
		return nil, err
	}
	return m.bootstrap(ctx, gen, identifier, Record{"token": res.Token}), nil
}

// Bootstrap resolves identifier to its canonical record, reconciles it with
// the cached session and persists the result. extra holds client-side fields
// to add to the fresh record. Any failure is logged and yields nil, leaving
// the current session as it was.
func (m *Manager) Bootstrap(ctx context.Context, identifier string, extra Record) *Session {
	return m.bootstrap(ctx, m.bump(), identifier, extra)
}

func (m *Manager) bootstrap(ctx context.Context, gen uint64, identifier string, extra Record) *Session {
	raw, err := m.api.LookupByIdentifier(ctx, identifier)
	if err != nil {
		log.Printf("WARN: session bootstrap for %q failed: %v", identifier, err)
		return nil
	}
	return m.reconcile(ctx, gen, raw, identifier, extra)
}

// Refresh refetches the current user and reconciles it. A provisional
// session is looked up by identifier since its placeholder id may belong to
// someone else server side. Otherwise the saved token is used, and the id
// only when no token was saved. A Logout or Bootstrap that lands while the
// lookup is in flight wins and the refresh returns nil.
func (m *Manager) Refresh(ctx context.Context) *Session {
	m.mu.Lock()
	cur, gen := m.current, m.gen
	m.mu.Unlock()
	if cur == nil {
		return nil
	}

	var (
		raw json.RawMessage
		err error
	)
	switch id := cur.ID(); {
	case cur.Provisional || id <= 0:
		raw, err = m.api.LookupByIdentifier(ctx, cur.Identifier)
	case cur.Token() != "":
		raw, err = m.api.Me(ctx, cur.Token())
	default:
		raw, err = m.api.LookupByID(ctx, id)
	}
	if err != nil {
		log.Printf("WARN: session refresh for user %d failed: %v", cur.ID(), err)
		return nil
	}
	return m.reconcile(ctx, gen, raw, cur.Identifier, nil)
}

// Logout drops the session from memory and from the store. The in-memory
// session is cleared even when the store fails.
func (m *Manager) Logout(ctx context.Context) error {
	m.commitMu.Lock()
	m.bump()
	err := m.store.Clear(ctx, SessionKey)
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()
	m.commitMu.Unlock()

	m.notify(nil)
	return err
}

// Current returns the session, or nil when signed out.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Loading reports whether Hydrate has not finished yet.
func (m *Manager) Loading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loading
}

// Subscribe registers fn to run after every change of the session. The
// returned func removes it.
func (m *Manager) Subscribe(fn func(*Session)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = fn
	return func() {
		m.mu.Lock()
		delete(m.subscribers, id)
		m.mu.Unlock()
	}
}

// reconcile commits raw as the session unless gen is stale.
func (m *Manager) reconcile(ctx context.Context, gen uint64, raw json.RawMessage, identifier string, extra Record) *Session {
	fresh, provisional, err := Decode(raw, identifier)
	if err != nil {
		log.Printf("WARN: session reconcile for %q failed: %v", identifier, err)
		return nil
	}
	delete(fresh, provisionalKey)
	for k, v := range extra {
		fresh[k] = v
	}

	m.commitMu.Lock()
	m.mu.Lock()
	stale := m.gen != gen
	m.mu.Unlock()
	if stale {
		m.commitMu.Unlock()
		log.Printf("INFO: dropping session result for %q, superseded while in flight", identifier)
		return nil
	}

	merged := fresh
	if cached, cachedProvisional := m.cachedRecord(ctx); cached != nil &&
		cachedProvisional == provisional && sameUser(cached, fresh) {
		merged = Merge(cached, fresh)
	}
	if name, ok := DisplayName(merged); ok {
		merged["name"] = name
	}

	provisionalFor := ""
	if provisional {
		provisionalFor = identifier
	}
	blob, err := encodeStored(merged, provisionalFor)
	if err != nil {
		m.commitMu.Unlock()
		log.Printf("WARN: session reconcile for %q failed: %v", identifier, err)
		return nil
	}
	if err := m.store.Save(ctx, SessionKey, blob); err != nil {
		m.commitMu.Unlock()
		log.Printf("WARN: failed to persist session for %q: %v", identifier, err)
		return nil
	}

	s := &Session{Record: merged, Provisional: provisional, Identifier: identifier}
	m.mu.Lock()
	m.current = s
	m.mu.Unlock()
	m.commitMu.Unlock()

	m.notify(s)
	return s
}

func (m *Manager) bump() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	return m.gen
}

// cachedRecord returns the stored session, falling back to the in-memory one
// when the store cannot be read.
func (m *Manager) cachedRecord(ctx context.Context) (Record, bool) {
	raw, err := m.store.Load(ctx, SessionKey)
	if err == nil {
		if raw == nil {
			return nil, false
		}
		if rec, provisionalFor, err := decodeStored(raw); err == nil {
			return rec, provisionalFor != ""
		}
	}
	if cur := m.Current(); cur != nil {
		return cur.Record, cur.Provisional
	}
	return nil, false
}

// encodeStored marshals rec for the store. A non-empty provisionalFor tags
// the record as provisional for that identifier.
func encodeStored(rec Record, provisionalFor string) ([]byte, error) {
	if provisionalFor == "" {
		return json.Marshal(rec)
	}
	tagged := make(Record, len(rec)+1)
	for k, v := range rec {
		tagged[k] = v
	}
	tagged[provisionalKey] = provisionalFor
	return json.Marshal(tagged)
}

// decodeStored is the inverse of encodeStored.
func decodeStored(raw []byte) (Record, string, error) {
	rec, err := decodeObject(raw)
	if err != nil {
		return nil, "", err
	}
	provisionalFor, _ := rec[provisionalKey].(string)
	delete(rec, provisionalKey)
	return rec, provisionalFor, nil
}

func (m *Manager) notify(s *Session) {
	m.mu.Lock()
	fns := make([]func(*Session), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn(s)
	}
}

func sameUser(a, b Record) bool {
	idA, okA := positiveID(a[idField])
	idB, okB := positiveID(b[idField])
	return okA && okB && idA == idB
}

func contactOf(rec Record) string {
	if email := stringField(rec, "email"); email != "" {
		return email
	}
	return stringField(rec, "phone")
}
