package services

import (
	"clinic-auth/internal/models"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

// In-memory collaborators for service tests. They honor the same contracts
// as the Postgres and Redis implementations, including the nil-on-no-rows
// and redis.Nil conventions.

type fakeIdentityRepo struct {
	mu         sync.Mutex
	identities map[string]*models.Identity
	byEmail    map[string]string
	lastLogins map[string]time.Time
	lookupErr  error
}

func newFakeIdentityRepo() *fakeIdentityRepo {
	return &fakeIdentityRepo{
		identities: make(map[string]*models.Identity),
		byEmail:    make(map[string]string),
		lastLogins: make(map[string]time.Time),
	}
}

func (f *fakeIdentityRepo) CreateIdentity(identity *models.Identity, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return err
	}
	identity.PasswordHash = string(hash)
	f.identities[identity.ID] = identity
	f.byEmail[identity.Email] = identity.ID
	return nil
}

func (f *fakeIdentityRepo) GetIdentityByID(id string) (*models.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	identity, ok := f.identities[id]
	if !ok {
		return nil, fmt.Errorf("identity %s not found", id)
	}
	return identity, nil
}

func (f *fakeIdentityRepo) GetIdentityByEmail(email string) (*models.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	id, ok := f.byEmail[email]
	if !ok {
		return nil, nil
	}
	return f.identities[id], nil
}

func (f *fakeIdentityRepo) GetAllIdentities(limit, offset int) ([]*models.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.Identity, 0, len(f.identities))
	for _, identity := range f.identities {
		out = append(out, identity)
	}
	return out, nil
}

func (f *fakeIdentityRepo) UpdateLastLogin(id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLogins[id] = at
	return nil
}

func (f *fakeIdentityRepo) SetActive(id string, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	identity, ok := f.identities[id]
	if !ok {
		return fmt.Errorf("identity %s not found", id)
	}
	identity.IsActive = active
	return nil
}

func (f *fakeIdentityRepo) UpdatePassword(id, newPassword string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	identity, ok := f.identities[id]
	if !ok {
		return fmt.Errorf("identity %s not found", id)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.MinCost)
	if err != nil {
		return err
	}
	identity.PasswordHash = string(hash)
	return nil
}

func (f *fakeIdentityRepo) CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

type fakeTwoFactorRepo struct {
	mu      sync.Mutex
	configs map[string]*models.TwoFactorConfig
}

func newFakeTwoFactorRepo() *fakeTwoFactorRepo {
	return &fakeTwoFactorRepo{configs: make(map[string]*models.TwoFactorConfig)}
}

func (f *fakeTwoFactorRepo) GetConfig(ctx context.Context, identityID string) (*models.TwoFactorConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cfg, ok := f.configs[identityID]
	if !ok {
		return nil, nil
	}
	copied := *cfg
	return &copied, nil
}

func (f *fakeTwoFactorRepo) UpsertConfig(ctx context.Context, cfg *models.TwoFactorConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *cfg
	f.configs[cfg.IdentityID] = &copied
	return nil
}

func (f *fakeTwoFactorRepo) DeleteConfig(ctx context.Context, identityID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.configs, identityID)
	return nil
}

type storedCode struct {
	code      string
	expiresAt time.Time
}

// fakeCodeStore keeps one-time codes with real TTL semantics driven by an
// injectable clock so tests can step past expiry.
type fakeCodeStore struct {
	mu       sync.Mutex
	codes    map[string]storedCode
	attempts map[string]int
	now      func() time.Time
}

func newFakeCodeStore(now func() time.Time) *fakeCodeStore {
	return &fakeCodeStore{
		codes:    make(map[string]storedCode),
		attempts: make(map[string]int),
		now:      now,
	}
}

func (f *fakeCodeStore) PutCode(ctx context.Context, identityID, code string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes[identityID] = storedCode{code: code, expiresAt: f.now().Add(ttl)}
	return nil
}

func (f *fakeCodeStore) GetCode(ctx context.Context, identityID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.codes[identityID]
	if !ok || !f.now().Before(entry.expiresAt) {
		return "", redis.Nil
	}
	return entry.code, nil
}

func (f *fakeCodeStore) DeleteCode(ctx context.Context, identityID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.codes, identityID)
	return nil
}

func (f *fakeCodeStore) IncrAttempts(ctx context.Context, identityID string, window time.Duration) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts[identityID]++
	return f.attempts[identityID], nil
}

func (f *fakeCodeStore) ClearAttempts(ctx context.Context, identityID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.attempts, identityID)
	return nil
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
	byHash   map[string]string
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{
		sessions: make(map[string]*models.Session),
		byHash:   make(map[string]string),
	}
}

func (f *fakeSessionRepo) CreateSession(ctx context.Context, session *models.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *session
	f.sessions[session.ID] = &copied
	f.byHash[session.TokenHash] = session.ID
	return nil
}

func (f *fakeSessionRepo) GetSessionByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byHash[tokenHash]
	if !ok {
		return nil, nil
	}
	copied := *f.sessions[id]
	return &copied, nil
}

func (f *fakeSessionRepo) TouchActivity(ctx context.Context, sessionID string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[sessionID]
	if !ok || !session.IsActive || !at.Before(session.ExpiresAt) {
		return false, nil
	}
	session.LastActivityAt = at
	return true, nil
}

func (f *fakeSessionRepo) Deactivate(ctx context.Context, sessionID string, loggedOutAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[sessionID]
	if !ok {
		return nil
	}
	session.IsActive = false
	if session.LoggedOutAt == nil {
		session.LoggedOutAt = loggedOutAt
	}
	return nil
}

func (f *fakeSessionRepo) DeactivateAllForIdentity(ctx context.Context, identityID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, session := range f.sessions {
		if session.IdentityID == identityID && session.IsActive {
			session.IsActive = false
			logoutAt := at
			session.LoggedOutAt = &logoutAt
		}
	}
	return nil
}

func (f *fakeSessionRepo) GetIdentitySessions(ctx context.Context, identityID string, activeOnly bool) ([]*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Session
	for _, session := range f.sessions {
		if session.IdentityID != identityID {
			continue
		}
		if activeOnly && !session.IsActive {
			continue
		}
		copied := *session
		out = append(out, &copied)
	}
	return out, nil
}

type fakeIPAllowRepo struct {
	mu      sync.Mutex
	entries []*models.IPAllowEntry
	nextID  int
}

func (f *fakeIPAllowRepo) CreateEntry(entry *models.IPAllowEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	entry.ID = f.nextID
	entry.CreatedAt = time.Now()
	copied := *entry
	f.entries = append(f.entries, &copied)
	return nil
}

func (f *fakeIPAllowRepo) GetEntryByID(id int) (*models.IPAllowEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, entry := range f.entries {
		if entry.ID == id {
			copied := *entry
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeIPAllowRepo) GetEntries(activeOnly bool) ([]*models.IPAllowEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.IPAllowEntry
	for _, entry := range f.entries {
		if activeOnly && !entry.IsActive {
			continue
		}
		copied := *entry
		out = append(out, &copied)
	}
	return out, nil
}

func (f *fakeIPAllowRepo) UpdateEntry(entry *models.IPAllowEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, existing := range f.entries {
		if existing.ID == entry.ID {
			copied := *entry
			f.entries[i] = &copied
			return nil
		}
	}
	return fmt.Errorf("entry %d not found", entry.ID)
}

func (f *fakeIPAllowRepo) DeleteEntry(id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, entry := range f.entries {
		if entry.ID == id {
			f.entries = append(f.entries[:i], f.entries[i+1:]...)
			return nil
		}
	}
	return nil
}

// recordingEmitter captures audit events for assertions.
type recordingEmitter struct {
	mu     sync.Mutex
	events []models.AuditEvent
}

func (r *recordingEmitter) Emit(ctx context.Context, event models.AuditEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingEmitter) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, event := range r.events {
		out = append(out, event.Action)
	}
	return out
}

// recordingDispatcher captures the last SMS code handed out.
type recordingDispatcher struct {
	mu       sync.Mutex
	phone    string
	lastCode string
	sent     int
}

func (r *recordingDispatcher) DispatchCode(ctx context.Context, phoneNumber, code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phone = phoneNumber
	r.lastCode = code
	r.sent++
}
