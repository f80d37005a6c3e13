package auth

import (
	"context"
	"net/mail"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Account is a stored credential record
type Account struct {
	bun.BaseModel  `bun:"table:accounts,alias:acc"`
	ID             uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	Username       string     `bun:"username,notnull,unique" json:"username"`
	Email          string     `bun:"email,notnull,unique" json:"email"`
	Name           string     `bun:"name,notnull" json:"name"`
	Role           Role       `bun:"role,notnull" json:"role"`
	PasswordHash   string     `bun:"password_hash,notnull" json:"-"`
	LoginAttempts  int        `bun:"login_attempts,notnull,default:0" json:"-"`
	LoginAttemptAt *time.Time `bun:"login_attempt_at,nullzero" json:"-"`
	LoggedInAt     *time.Time `bun:"loggedin_at,nullzero" json:"loggedin_at,omitempty"`
	CreatedAt      time.Time  `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt      time.Time  `bun:"updated_at,notnull" json:"updated_at"`
}

// Profile returns the display data for the account
func (a *Account) Profile() Profile {
	return Profile{
		Name:     a.Name,
		Username: a.Username,
		Email:    a.Email,
	}
}

// AccountStore reads and writes credential records. Identifiers are
// matched case-insensitively. Usernames and emails share one namespace:
// Create fails with ErrDuplicateIdentifier when the new username or email
// equals any stored username or email.
type AccountStore interface {
	GetByIdentifier(ctx context.Context, identifier string) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	Create(ctx context.Context, account *Account) (*Account, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	TrackAttemptedLogin(ctx context.Context, account *Account) error
	TrackSuccessfulLogin(ctx context.Context, account *Account) error
}

// NormalizeIdentifier trims and lowercases usernames and emails
func NormalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

// UsernameFromEmail returns the local part of an email address
func UsernameFromEmail(email string) string {
	email = NormalizeIdentifier(email)
	if i := strings.Index(email, "@"); i > 0 {
		return email[:i]
	}
	return email
}

func isEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil && strings.Contains(email, "@")
}

// identifiersOf lists the values record can be looked up by. Usernames and
// emails share one namespace.
func identifiersOf(record *Account) []string {
	if record.Email == "" || record.Email == record.Username {
		return []string{record.Username}
	}
	return []string{record.Username, record.Email}
}

func prepareAccountDefaults(record *Account) {
	if record == nil {
		return
	}

	record.Username = NormalizeIdentifier(record.Username)
	record.Email = NormalizeIdentifier(record.Email)
	record.Name = strings.TrimSpace(record.Name)

	if record.Username == "" {
		record.Username = UsernameFromEmail(record.Email)
	}

	if record.Role == "" {
		record.Role = RoleUser
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
}

// MemoryAccounts is a mutex guarded account list, used for demos and tests
type MemoryAccounts struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]*Account
}

// NewMemoryAccounts creates a store holding seed
func NewMemoryAccounts(seed ...*Account) (*MemoryAccounts, error) {
	m := &MemoryAccounts{accounts: make(map[uuid.UUID]*Account)}
	for _, acc := range seed {
		if _, err := m.Create(context.Background(), acc); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *MemoryAccounts) GetByIdentifier(ctx context.Context, identifier string) (*Account, error) {
	id := NormalizeIdentifier(identifier)
	if id == "" {
		return nil, ErrAccountNotFound
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, acc := range m.accounts {
		if acc.Username == id || (isEmail(id) && acc.Email == id) {
			c := *acc
			return &c, nil
		}
	}

	return nil, ErrAccountNotFound.Clone().
		WithMetadata(map[string]any{"identifier": id})
}

func (m *MemoryAccounts) GetByEmail(ctx context.Context, email string) (*Account, error) {
	email = NormalizeIdentifier(email)

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, acc := range m.accounts {
		if email != "" && acc.Email == email {
			c := *acc
			return &c, nil
		}
	}

	return nil, ErrAccountNotFound.Clone().
		WithMetadata(map[string]any{"email": email})
}

func (m *MemoryAccounts) Create(ctx context.Context, account *Account) (*Account, error) {
	record := *account
	prepareAccountDefaults(&record)

	m.mu.Lock()
	defer m.mu.Unlock()

	taken := identifiersOf(&record)
	for _, acc := range m.accounts {
		if slices.Contains(taken, acc.Username) || slices.Contains(taken, acc.Email) {
			return nil, ErrDuplicateIdentifier.Clone().
				WithMetadata(map[string]any{"username": record.Username})
		}
	}

	m.accounts[record.ID] = &record

	c := record
	return &c, nil
}

func (m *MemoryAccounts) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	acc, ok := m.accounts[id]
	if !ok {
		return ErrAccountNotFound.Clone().
			WithMetadata(map[string]any{"id": id.String()})
	}

	acc.PasswordHash = passwordHash
	acc.LoginAttempts = 0
	acc.LoginAttemptAt = nil
	acc.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryAccounts) TrackAttemptedLogin(ctx context.Context, account *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	acc, ok := m.accounts[account.ID]
	if !ok {
		return ErrAccountNotFound
	}

	now := time.Now().UTC()
	acc.LoginAttempts++
	acc.LoginAttemptAt = &now
	return nil
}

func (m *MemoryAccounts) TrackSuccessfulLogin(ctx context.Context, account *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	acc, ok := m.accounts[account.ID]
	if !ok {
		return ErrAccountNotFound
	}

	now := time.Now().UTC()
	acc.LoggedInAt = &now
	acc.LoginAttempts = 0
	acc.LoginAttemptAt = nil
	return nil
}

// DemoAccounts returns the fixture accounts user, admin and agent. Each
// password equals the username.
func DemoAccounts() ([]*Account, error) {
	demo := []struct {
		name string
		role Role
	}{
		{"Demo User", RoleUser},
		{"Demo Admin", RoleAdmin},
		{"Demo Agent", RoleAgent},
	}

	out := make([]*Account, 0, len(demo))
	for _, d := range demo {
		username := string(d.role)
		hash, err := HashPassword(username)
		if err != nil {
			return nil, err
		}
		out = append(out, &Account{
			Username:     username,
			Email:        username + "@gmail.com",
			Name:         d.name,
			Role:         d.role,
			PasswordHash: hash,
		})
	}
	return out, nil
}

// SeedDemoAccounts creates the demo accounts that are missing from store
func SeedDemoAccounts(ctx context.Context, store AccountStore, logger Logger) error {
	logger = normalizeLogger(logger)

	accounts, err := DemoAccounts()
	if err != nil {
		return err
	}

	for _, acc := range accounts {
		if _, err := store.GetByIdentifier(ctx, acc.Username); err == nil {
			continue
		} else if !IsAccountNotFound(err) {
			return err
		}

		if _, err := store.Create(ctx, acc); err != nil && !IsDuplicateIdentifier(err) {
			return err
		}
		logger.Info("seeded demo account", "username", acc.Username, "role", acc.Role)
	}

	return nil
}
