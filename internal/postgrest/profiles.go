package postgrest

import (
	"context"
	"net/url"

	"github.com/BradenHooton/farmgate/internal/models"
)

type ProfileStore struct {
	client *Client
}

func NewProfileStore(client *Client) *ProfileStore {
	return &ProfileStore{client: client}
}

// GetFullName returns the profile's full name, or ErrNotFound without a profile
func (s *ProfileStore) GetFullName(ctx context.Context, accountID int64) (string, error) {
	var rows []struct {
		FullName *string `json:"full_name"`
	}
	query := url.Values{
		"select":          {"full_name"},
		"user_account_id": {eqInt(accountID)},
		"limit":           {"1"},
	}
	if err := s.client.Get(ctx, "core", "user_profile", query, &rows); err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", models.ErrNotFound
	}
	if rows[0].FullName == nil {
		return "", nil
	}
	return *rows[0].FullName, nil
}
