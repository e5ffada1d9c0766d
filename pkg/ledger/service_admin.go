package ledger

import "context"

// ListAccounts returns accounts for the administrative view, newest first.
// Authorization is the caller's responsibility; the ledger performs none.
func (service *Service) ListAccounts(ctx context.Context, limit int) ([]Account, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	return service.store.ListAccounts(ctx, limit)
}

// SetAccountStatus moves an account between active, suspended, and banned.
func (service *Service) SetAccountStatus(ctx context.Context, accountID string, status AccountStatus) error {
	operationError := func() error {
		if err := status.Validate(); err != nil {
			return err
		}
		return service.store.UpdateAccountStatus(ctx, accountID, status)
	}()
	service.logOperation(ctx, OperationLog{
		Operation: operationSetStatus,
		AccountID: accountID,
		Error:     operationError,
	})
	return operationError
}

// SetAccountRole promotes or demotes an account between player and admin.
func (service *Service) SetAccountRole(ctx context.Context, accountID string, role AccountRole) error {
	operationError := func() error {
		if err := role.Validate(); err != nil {
			return err
		}
		return service.store.UpdateAccountRole(ctx, accountID, role)
	}()
	service.logOperation(ctx, OperationLog{
		Operation: operationSetRole,
		AccountID: accountID,
		Error:     operationError,
	})
	return operationError
}
