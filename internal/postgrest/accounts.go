package postgrest

import (
	"context"
	"net/url"
	"time"

	"github.com/BradenHooton/farmgate/internal/models"
)

const accountSelect = "user_account_id,email,phone_number,password_hash,status,failed_login_attempts,last_login_at,full_name,created_at,updated_at"

type accountRow struct {
	ID                  int64      `json:"user_account_id"`
	Email               *string    `json:"email"`
	PhoneNumber         *string    `json:"phone_number"`
	PasswordHash        string     `json:"password_hash"`
	Status              string     `json:"status"`
	FailedLoginAttempts *int       `json:"failed_login_attempts"`
	LastLoginAt         *timestamp `json:"last_login_at"`
	FullName            *string    `json:"full_name"`
	CreatedAt           *timestamp `json:"created_at"`
	UpdatedAt           *timestamp `json:"updated_at"`
}

func (r accountRow) toModel() *models.Account {
	a := &models.Account{
		ID:           r.ID,
		PasswordHash: r.PasswordHash,
		Status:       r.Status,
		LastLoginAt:  r.LastLoginAt.ptr(),
		CreatedAt:    r.CreatedAt.value(),
		UpdatedAt:    r.UpdatedAt.ptr(),
	}
	if r.Email != nil {
		a.Email = *r.Email
	}
	if r.PhoneNumber != nil {
		a.PhoneNumber = *r.PhoneNumber
	}
	if r.FullName != nil {
		a.FullName = *r.FullName
	}
	if r.FailedLoginAttempts != nil {
		a.FailedLoginAttempts = *r.FailedLoginAttempts
	}
	return a
}

// AccountStore reads and updates auth.user_account
type AccountStore struct {
	client *Client
}

func NewAccountStore(client *Client) *AccountStore {
	return &AccountStore{client: client}
}

func (s *AccountStore) getOne(ctx context.Context, query url.Values) (*models.Account, error) {
	query.Set("select", accountSelect)
	query.Set("order", "user_account_id.asc")
	query.Set("limit", "1")

	var rows []accountRow
	if err := s.client.Get(ctx, "auth", "user_account", query, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, models.ErrNotFound
	}
	return rows[0].toModel(), nil
}

// GetByIdentifier matches the identifier against email or phone number
func (s *AccountStore) GetByIdentifier(ctx context.Context, identifier string) (*models.Account, error) {
	return s.getOne(ctx, url.Values{"or": {anyColumnEq(identifier, "email", "phone_number")}})
}

func (s *AccountStore) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	return s.getOne(ctx, url.Values{"email": {eq(email)}})
}

func (s *AccountStore) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	return s.getOne(ctx, url.Values{"user_account_id": {eqInt(id)}})
}

// IncrementFailedLogins writes the caller's counter plus one. PostgREST has
// no atomic increment, so concurrent failures may collapse into one.
func (s *AccountStore) IncrementFailedLogins(ctx context.Context, account *models.Account) (int, error) {
	next := account.FailedLoginAttempts + 1
	updated, err := s.update(ctx, account.ID, map[string]interface{}{
		"failed_login_attempts": next,
		"updated_at":            formatTime(time.Now()),
	})
	if err != nil {
		return 0, err
	}
	account.FailedLoginAttempts = updated.FailedLoginAttempts
	return updated.FailedLoginAttempts, nil
}

func (s *AccountStore) RecordSuccessfulLogin(ctx context.Context, id int64, at time.Time) error {
	_, err := s.update(ctx, id, map[string]interface{}{
		"failed_login_attempts": 0,
		"last_login_at":         formatTime(at),
		"updated_at":            formatTime(time.Now()),
	})
	return err
}

func (s *AccountStore) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	_, err := s.update(ctx, id, map[string]interface{}{
		"password_hash":         passwordHash,
		"failed_login_attempts": 0,
		"updated_at":            formatTime(time.Now()),
	})
	return err
}

func (s *AccountStore) ResetFailedLogins(ctx context.Context, id int64) error {
	_, err := s.update(ctx, id, map[string]interface{}{
		"failed_login_attempts": 0,
		"updated_at":            formatTime(time.Now()),
	})
	return err
}

func (s *AccountStore) update(ctx context.Context, id int64, body map[string]interface{}) (*models.Account, error) {
	filter := url.Values{
		"user_account_id": {eqInt(id)},
		"select":          {accountSelect},
	}

	var rows []accountRow
	if err := s.client.Update(ctx, "auth", "user_account", filter, body, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, models.ErrNotFound
	}
	return rows[0].toModel(), nil
}
