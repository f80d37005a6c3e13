package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var ResetAccountPasswordSQL = `UPDATE "accounts" AS "acc"
SET
	"password_hash" = ?,
	"login_attempts" = 0,
	"login_attempt_at" = NULL,
	"updated_at" = ?
WHERE
	"acc"."id" = ?
RETURNING *;`

// Accounts is the bun backed AccountStore
type Accounts struct {
	repository.Repository[*Account]
	db *bun.DB
}

var _ AccountStore = (*Accounts)(nil)

// NewAccountsRepository creates an account store over db. Lookups by
// identifier on the embedded repository use the email column.
func NewAccountsRepository(db *bun.DB) *Accounts {
	repo := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &Accounts{
		Repository: repo,
		db:         db,
	}
}

type identifierOption struct {
	column string
	value  string
}

func resolveAccountIdentifier(identifier string) []identifierOption {
	id := NormalizeIdentifier(identifier)
	if id == "" {
		return nil
	}

	options := make([]identifierOption, 0, 2)
	if isEmail(id) {
		options = append(options, identifierOption{column: "email", value: id})
	}

	return append(options, identifierOption{column: "username", value: id})
}

func (a *Accounts) GetByIdentifier(ctx context.Context, identifier string) (*Account, error) {
	return a.GetByIdentifierTx(ctx, a.db, identifier)
}

func (a *Accounts) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*Account, error) {
	for _, opt := range resolveAccountIdentifier(identifier) {
		record := &Account{}
		q := tx.NewSelect().Model(record)

		for _, c := range criteria {
			q.Apply(c)
		}

		err := q.
			Where(fmt.Sprintf("?TableAlias.%s = ?", opt.column), opt.value).
			Limit(1).
			Scan(ctx)

		if err != nil {
			if repository.IsRecordNotFound(err) {
				continue
			}
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to query account")
		}

		return record, nil
	}

	return nil, ErrAccountNotFound.Clone().
		WithMetadata(map[string]any{"identifier": NormalizeIdentifier(identifier)})
}

func (a *Accounts) GetByEmail(ctx context.Context, email string) (*Account, error) {
	email = NormalizeIdentifier(email)
	if email == "" {
		return nil, ErrAccountNotFound
	}

	record, err := a.Repository.GetByIdentifierTx(ctx, a.db, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrAccountNotFound.Clone().
				WithMetadata(map[string]any{"email": email})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to query account")
	}

	return record, nil
}

func (a *Accounts) Create(ctx context.Context, account *Account) (*Account, error) {
	return a.CreateTx(ctx, a.db, account)
}

// CreateTx inserts account. Usernames and emails share one namespace, so
// the username may not equal any stored email and the email may not equal
// any stored username.
func (a *Accounts) CreateTx(ctx context.Context, tx bun.IDB, account *Account, criteria ...repository.InsertCriteria) (*Account, error) {
	record := *account
	prepareAccountDefaults(&record)

	taken := bun.In(identifiersOf(&record))
	exists, err := tx.NewSelect().
		Model((*Account)(nil)).
		Where("?TableAlias.username IN (?)", taken).
		WhereOr("?TableAlias.email IN (?)", taken).
		Exists(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check existing account")
	}

	if exists {
		return nil, ErrDuplicateIdentifier.Clone().
			WithMetadata(map[string]any{"username": record.Username})
	}

	created, err := a.Repository.CreateTx(ctx, tx, &record, criteria...)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateIdentifier.Clone().
				WithMetadata(map[string]any{"username": record.Username})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create account")
	}

	return created, nil
}

func (a *Accounts) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return a.UpdatePasswordTx(ctx, a.db, id, passwordHash)
}

func (a *Accounts) UpdatePasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	res, err := a.Repository.RawTx(ctx, tx, ResetAccountPasswordSQL, passwordHash, time.Now().UTC(), id.String())
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update password")
	}

	if len(res) == 0 {
		return ErrAccountNotFound.Clone().
			WithMetadata(map[string]any{"id": id.String()})
	}

	return nil
}

func (a *Accounts) TrackAttemptedLogin(ctx context.Context, account *Account) error {
	return a.TrackAttemptedLoginTx(ctx, a.db, account)
}

func (a *Accounts) TrackAttemptedLoginTx(ctx context.Context, tx bun.IDB, account *Account) error {
	_, err := tx.NewUpdate().
		Model((*Account)(nil)).
		Set("login_attempts = login_attempts + 1").
		Set("login_attempt_at = ?", time.Now().UTC()).
		Where("id = ?", account.ID).
		Exec(ctx)
	return err
}

func (a *Accounts) TrackSuccessfulLogin(ctx context.Context, account *Account) error {
	return a.TrackSuccessfulLoginTx(ctx, a.db, account)
}

func (a *Accounts) TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, account *Account) error {
	// the ORM update skips zero values, so the counter reset is raw SQL
	_, err := tx.NewRaw(`
		UPDATE "accounts" AS "acc"
		SET
			"loggedin_at" = ?,
			"login_attempt_at" = NULL,
			"login_attempts" = 0
		WHERE
			("acc".id = ?);
	`, time.Now().UTC(), account.ID).Exec(ctx)

	return err
}

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key")
}
