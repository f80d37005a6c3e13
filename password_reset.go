package auth

import (
	"context"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DefaultResetTokenTTL is how long a reset token stays valid
const DefaultResetTokenTTL = 24 * time.Hour

const (
	// ResetRequestedStatus is the status of a fresh reset
	ResetRequestedStatus = "requested"
	// ResetChangedStatus is the status after the password was changed
	ResetChangedStatus = "changed"
	// ResetExpiredStatus marks a reset that can no longer be used
	ResetExpiredStatus = "expired"
)

// PasswordReset is a pending or finished password reset. The ID is the
// token sent to the user.
type PasswordReset struct {
	bun.BaseModel `bun:"table:password_resets,alias:pwdr"`
	ID            uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	AccountID     uuid.UUID  `bun:"account_id,notnull,type:uuid" json:"account_id"`
	Email         string     `bun:"email,notnull" json:"email"`
	Status        string     `bun:"status,notnull" json:"status"`
	CreatedAt     time.Time  `bun:"created_at,notnull" json:"created_at"`
	ResetAt       *time.Time `bun:"reset_at,nullzero" json:"reset_at,omitempty"`
}

// ResetStore keeps password reset records
type ResetStore interface {
	Create(ctx context.Context, reset *PasswordReset) (*PasswordReset, error)
	GetByID(ctx context.Context, id uuid.UUID) (*PasswordReset, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
}

// ResetNotifier delivers the reset token to the account owner
type ResetNotifier interface {
	NotifyPasswordReset(ctx context.Context, account *Account, reset *PasswordReset) error
}

// ResetNotifierFunc adapts a function to ResetNotifier
type ResetNotifierFunc func(ctx context.Context, account *Account, reset *PasswordReset) error

// NotifyPasswordReset implements ResetNotifier
func (f ResetNotifierFunc) NotifyPasswordReset(ctx context.Context, account *Account, reset *PasswordReset) error {
	return f(ctx, account, reset)
}

// ResetLink is the portal path that completes a reset
func ResetLink(reset *PasswordReset) string {
	return "/reset-password/" + reset.ID.String()
}

// LogResetNotifier writes the reset link to the logger. Used until mail
// delivery exists.
type LogResetNotifier struct {
	Logger Logger
}

// NotifyPasswordReset implements ResetNotifier
func (n LogResetNotifier) NotifyPasswordReset(_ context.Context, account *Account, reset *PasswordReset) error {
	normalizeLogger(n.Logger).Info("password reset link issued",
		"email", account.Email,
		"link", ResetLink(reset),
		"expires_at", reset.CreatedAt.Add(DefaultResetTokenTTL).Format(time.RFC3339),
	)
	return nil
}

func prepareResetDefaults(reset *PasswordReset) {
	if reset.ID == uuid.Nil {
		reset.ID = uuid.New()
	}
	if reset.Status == "" {
		reset.Status = ResetRequestedStatus
	}
	if reset.CreatedAt.IsZero() {
		reset.CreatedAt = time.Now().UTC()
	}
}

// MemoryResets keeps reset records in a map
type MemoryResets struct {
	mu     sync.Mutex
	resets map[uuid.UUID]*PasswordReset
}

// NewMemoryResets creates an empty store
func NewMemoryResets() *MemoryResets {
	return &MemoryResets{resets: make(map[uuid.UUID]*PasswordReset)}
}

func (m *MemoryResets) Create(_ context.Context, reset *PasswordReset) (*PasswordReset, error) {
	record := *reset
	prepareResetDefaults(&record)

	m.mu.Lock()
	m.resets[record.ID] = &record
	m.mu.Unlock()

	c := record
	return &c, nil
}

func (m *MemoryResets) GetByID(_ context.Context, id uuid.UUID) (*PasswordReset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.resets[id]
	if !ok {
		return nil, ErrTokenInvalid
	}
	c := *r
	return &c, nil
}

func (m *MemoryResets) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.resets[id]
	if !ok {
		return ErrTokenInvalid
	}

	r.Status = status
	if status == ResetChangedStatus {
		now := time.Now().UTC()
		r.ResetAt = &now
	}
	return nil
}

// PasswordResets is the bun backed ResetStore
type PasswordResets struct {
	repository.Repository[*PasswordReset]
	db *bun.DB
}

var _ ResetStore = (*PasswordResets)(nil)

// NewPasswordResetsRepository creates a reset store over db
func NewPasswordResetsRepository(db *bun.DB) *PasswordResets {
	handlers := repository.ModelHandlers[*PasswordReset]{
		NewRecord: func() *PasswordReset {
			return &PasswordReset{}
		},
		GetID: func(record *PasswordReset) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *PasswordReset, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "email"
		},
	}

	return &PasswordResets{
		Repository: repository.NewRepository(db, handlers),
		db:         db,
	}
}

func (p *PasswordResets) Create(ctx context.Context, reset *PasswordReset) (*PasswordReset, error) {
	record := *reset
	prepareResetDefaults(&record)

	created, err := p.Repository.CreateTx(ctx, p.db, &record)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create password reset")
	}
	return created, nil
}

func (p *PasswordResets) GetByID(ctx context.Context, id uuid.UUID) (*PasswordReset, error) {
	record, err := p.Repository.GetByID(ctx, id.String())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrTokenInvalid
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not retrieve password reset request")
	}
	return record, nil
}

// UpdateStatus only touches the status and, for a finished reset, reset_at
func (p *PasswordResets) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	if _, err := p.GetByID(ctx, id); err != nil {
		return err
	}

	record := &PasswordReset{ID: id, Status: status}
	if status == ResetChangedStatus {
		now := time.Now().UTC()
		record.ResetAt = &now
	}

	_, err := p.Repository.UpdateTx(ctx, p.db, record,
		repository.UpdateByID(id.String()),
		repository.UpdateSkipZeroValues(),
	)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update password reset status")
	}
	return nil
}
