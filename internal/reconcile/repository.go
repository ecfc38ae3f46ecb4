package reconcile

import (
	"context"

	"github.com/cleared-dev/recon/internal/model"
)

// Repository stores detection records. Implementations upsert by
// (user, merchant) and refine an existing record rather than append.
//
//go:generate mockgen -destination=mocks/mock_repository.go -source=repository.go Repository
type Repository interface {
	UpsertSubscription(ctx context.Context, rec model.SubscriptionRecord) error
	UpsertBill(ctx context.Context, rec model.BillRecord) error
	ListSubscriptions(ctx context.Context, userID string) ([]model.SubscriptionRecord, error)
	ListBills(ctx context.Context, userID string) ([]model.BillRecord, error)
}
