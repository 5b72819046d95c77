package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"barangay/internal/gateway"
	dbm "barangay/internal/models/db_models"
	"barangay/internal/repositories"
	mem "barangay/pkg/memcache"
	"barangay/pkg/utils"
)

// RequestLockKey serialises every payment-affecting operation on a request.
func RequestLockKey(requestID uint) string {
	return fmt.Sprintf("payment:request:%d", requestID)
}

func lockRequest(ctx context.Context, locker mem.RequestLocker, wait time.Duration, requestID uint) (func(), error) {
	lctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	unlock, err := locker.Lock(lctx, RequestLockKey(requestID))
	if err != nil {
		if errors.Is(err, mem.ErrLockTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return nil, utils.NewConflictError("another payment operation is in progress for this request")
		}
		return nil, fmt.Errorf("acquire request lock: %w", err)
	}
	return unlock, nil
}

// cancelCheckout cancels a gateway checkout after its ledger row has been
// closed. Failures are logged; the ledger already holds the final state.
func cancelCheckout(ctx context.Context, gw gateway.PaymentGateway, timeout time.Duration, log *zap.Logger, payment *dbm.Payment) {
	if gw == nil || !payment.IsGateway() {
		return
	}
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := gw.Cancel(cctx, *payment.GatewayReference); err != nil {
		log.Warn("cancel gateway checkout",
			zap.String("transaction_reference", payment.TransactionReference),
			zap.Error(err))
	}
}

// cancelPending moves the request's active PENDING payment to CANCELLED
// inside the caller's transaction. Any other active row is only deactivated.
// It returns the change when a row was cancelled.
func cancelPending(ctx context.Context, payments repositories.PaymentRepository, requestID, actor uint, source string, payload map[string]interface{}) (*PaymentChange, error) {
	active, err := payments.FindActiveByRequest(ctx, requestID)
	if err != nil {
		return nil, utils.NewDatabaseError(err)
	}
	if active == nil {
		return nil, nil
	}
	if active.PaymentStatus != dbm.PaymentPending {
		if err := payments.DeactivateActive(ctx, requestID); err != nil {
			return nil, utils.NewDatabaseError(err)
		}
		return nil, nil
	}
	ok, err := payments.UpdateStatus(ctx, active.ID, dbm.PaymentPending, map[string]interface{}{
		"payment_status": dbm.PaymentCancelled,
		"is_active":      false,
	})
	if err != nil {
		return nil, utils.NewDatabaseError(err)
	}
	if !ok {
		return nil, utils.NewConflictError("payment %s was modified by another operation", active.TransactionReference)
	}
	if err := payments.AppendEvent(ctx, &dbm.PaymentEvent{
		PaymentID:  active.ID,
		FromStatus: dbm.PaymentPending,
		ToStatus:   dbm.PaymentCancelled,
		Source:     source,
		ActorID:    &actor,
		Payload:    payload,
	}); err != nil {
		return nil, utils.NewDatabaseError(err)
	}
	active.PaymentStatus = dbm.PaymentCancelled
	active.IsActive = false
	return &PaymentChange{Payment: active, From: dbm.PaymentPending, To: dbm.PaymentCancelled, Source: source}, nil
}
