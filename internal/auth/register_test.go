package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/dalgayunus/iTicket/internal/wallet"
	"github.com/dalgayunus/iTicket/pkg/config"
	"github.com/dalgayunus/iTicket/pkg/db/models"
	"github.com/dalgayunus/iTicket/pkg/enums"
	pkgerrors "github.com/dalgayunus/iTicket/pkg/errors"
	"github.com/dalgayunus/iTicket/pkg/outbox"
	"github.com/dalgayunus/iTicket/pkg/security"
)

func TestRegisterCreatesUserWalletAndEvent(t *testing.T) {
	t.Parallel()

	db := newRegisterTestDB(t)
	svc := newRegisterTestService(t, db)

	resp, err := svc.Register(context.Background(), RegisterRequest{
		FirstName: "Leyla",
		LastName:  "Customer",
		Email:     "  Leyla@Example.com ",
		Password:  "correct-horse",
	})
	require.NoError(t, err)
	require.Equal(t, "leyla@example.com", resp.User.Email)
	require.Equal(t, enums.UserRoleCustomer, resp.User.Role)
	require.True(t, resp.User.IsActive)

	var user models.User
	require.NoError(t, db.Where("email = ?", "leyla@example.com").First(&user).Error)
	valid, err := security.VerifyPassword("correct-horse", user.PasswordHash)
	require.NoError(t, err)
	require.True(t, valid)

	var w models.Wallet
	require.NoError(t, db.Where("user_id = ?", user.ID).First(&w).Error)
	require.True(t, w.Balance.IsZero())

	var events int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).
		Where("event_type = ? AND aggregate_id = ?", enums.EventUserRegistered, user.ID).
		Count(&events).Error)
	require.Equal(t, int64(1), events)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	t.Parallel()

	db := newRegisterTestDB(t)
	svc := newRegisterTestService(t, db)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{
		FirstName: "First",
		LastName:  "Taker",
		Email:     "taken@example.com",
		Password:  "password-one",
	})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterRequest{
		FirstName: "Second",
		LastName:  "Taker",
		Email:     "TAKEN@example.com",
		Password:  "password-two",
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeConflict, typed.Code())

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestRegisterRequiresEmail(t *testing.T) {
	t.Parallel()

	db := newRegisterTestDB(t)
	svc := newRegisterTestService(t, db)

	_, err := svc.Register(context.Background(), RegisterRequest{
		FirstName: "No",
		LastName:  "Email",
		Email:     "   ",
		Password:  "irrelevant",
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

type gormTxRunner struct {
	db *gorm.DB
}

func (g gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return g.db.WithContext(ctx).Transaction(fn)
}

func newRegisterTestService(t *testing.T, db *gorm.DB) RegisterService {
	t.Helper()
	walletSvc, err := wallet.NewService(wallet.NewRepository(db))
	require.NoError(t, err)
	svc, err := NewRegisterService(RegisterServiceParams{
		DB:             gormTxRunner{db: db},
		Wallets:        walletSvc,
		Outbox:         outbox.NewService(outbox.NewRepository(db), nil),
		PasswordConfig: config.PasswordConfig{},
	})
	require.NoError(t, err)
	return svc
}

func newRegisterTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:auth_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	for _, ddl := range []string{
		`CREATE TABLE users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL,
			phone TEXT,
			role TEXT NOT NULL DEFAULT 'customer',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			last_login_at DATETIME,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE wallets (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL UNIQUE,
			balance NUMERIC NOT NULL DEFAULT 0,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE outbox_events (
			id TEXT PRIMARY KEY,
			event_type TEXT NOT NULL,
			aggregate_type TEXT NOT NULL,
			aggregate_id TEXT NOT NULL,
			payload TEXT NOT NULL,
			created_at DATETIME,
			published_at DATETIME,
			attempt_count INTEGER NOT NULL DEFAULT 0,
			last_error TEXT
		)`,
	} {
		require.NoError(t, db.Exec(ddl).Error)
	}
	return db
}
