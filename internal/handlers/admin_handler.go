package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/BradenHooton/farmgate/internal/auth"
	"github.com/BradenHooton/farmgate/internal/models"
	pkghttp "github.com/BradenHooton/farmgate/pkg/http"
	"github.com/go-chi/chi/v5"
)

// AdminServiceInterface defines the admin service contract.
type AdminServiceInterface interface {
	UnlockAccount(ctx context.Context, actorID, accountID int64) (*models.Account, error)
}

// AdminHandler handles operator HTTP requests.
type AdminHandler struct {
	service AdminServiceInterface
}

func NewAdminHandler(service AdminServiceInterface) *AdminHandler {
	return &AdminHandler{service: service}
}

// UnlockResponse is returned after a successful unlock.
type UnlockResponse struct {
	Message             string `json:"message"`
	AccountID           int64  `json:"user_account_id"`
	FailedLoginAttempts int    `json:"failed_login_attempts"`
}

// UnlockAccount handles POST /admin/accounts/{id}/unlock
func (h *AdminHandler) UnlockAccount(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaimsFromContext(r.Context())
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	accountID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || accountID <= 0 {
		pkghttp.WriteBadRequest(w, "Invalid account id")
		return
	}

	account, err := h.service.UnlockAccount(r.Context(), claims.AccountID, accountID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Account not found")
		default:
			pkghttp.WriteInternalError(w, msgInternalError)
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, UnlockResponse{
		Message:             "Account unlocked",
		AccountID:           account.ID,
		FailedLoginAttempts: account.FailedLoginAttempts,
	})
}
