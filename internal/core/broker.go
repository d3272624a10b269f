package core

import (
	"context"
	"errors"
	"fmt"

	"orchidcore/pkg/domain"
)

// requestRandomness opens one oracle round-trip inside the active
// transaction. A subject may have at most one pending request per purpose.
func (s *Service) requestRandomness(tx Transaction, purpose domain.RequestPurpose, subjectID, seed uint64) (RandomnessRequest, error) {
	for _, r := range tx.Snapshot().ListRequests() {
		if r.Pending() && r.Purpose == purpose && r.SubjectID == subjectID {
			return RandomnessRequest{}, fmt.Errorf("randomness: subject %d already has pending %s request %s: %w", subjectID, purpose, r.ID, domain.ErrDuplicateRequest)
		}
	}
	return tx.CreateRequest(RandomnessRequest{
		Purpose:   purpose,
		SubjectID: subjectID,
		UserSeed:  seed,
		Status:    domain.RequestPending,
	})
}

// continuationError marks a failure inside a fulfillment continuation, as
// opposed to a failure validating the request itself. The distinction drives
// the terminal-rejection protocol.
type continuationError struct {
	err error
}

func (e continuationError) Error() string { return e.err.Error() }
func (e continuationError) Unwrap() error { return e.err }

// FulfillRandomness delivers oracle randomness for a pending request and runs
// its continuation synchronously in the same transaction. Replays of
// fulfilled or rejected requests fail with AlreadyFulfilled. When the
// continuation fails, its effects are rolled back and the request is
// committed as rejected in a follow-up transaction; rejected requests are
// never retried.
func (s *Service) FulfillRandomness(ctx context.Context, caller Address, requestID string, random uint64) (Result, error) {
	var res Result
	err := s.instrument(ctx, "fulfill_randomness", domain.EntityRequest, requestID, func(ctx context.Context) error {
		if caller != s.cfg.Oracle {
			return fmt.Errorf("fulfill %s: %w", requestID, domain.ErrUnauthorized)
		}
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			request, ok := tx.Snapshot().FindRequest(requestID)
			if !ok {
				return fmt.Errorf("fulfill %s: %w", requestID, domain.ErrUnknownRequest)
			}
			if !request.Pending() {
				return fmt.Errorf("fulfill %s (status %s): %w", requestID, request.Status, domain.ErrAlreadyFulfilled)
			}
			if _, err := tx.UpdateRequest(requestID, func(r *RandomnessRequest) error {
				r.Status = domain.RequestFulfilled
				r.ResolvedAt = tx.Now()
				return nil
			}); err != nil {
				return err
			}
			if err := s.dispatchContinuation(tx, request, random); err != nil {
				return continuationError{err: err}
			}
			return nil
		})
		if cerr, ok := asContinuationError(err); ok {
			if rejectErr := s.rejectRequest(ctx, requestID); rejectErr != nil {
				s.logger.Error("failed to mark request rejected", "request_id", requestID, "error", rejectErr.Error())
			}
			return cerr.err
		}
		return err
	})
	return res, err
}

func asContinuationError(err error) (continuationError, bool) {
	var cerr continuationError
	ok := errors.As(err, &cerr)
	return cerr, ok
}

// rejectRequest commits the terminal rejected status after a continuation
// failure rolled back the fulfillment transaction.
func (s *Service) rejectRequest(ctx context.Context, requestID string) error {
	_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.UpdateRequest(requestID, func(r *RandomnessRequest) error {
			r.Status = domain.RequestRejected
			r.ResolvedAt = tx.Now()
			return nil
		})
		return err
	})
	return err
}

// dispatchContinuation routes the fulfillment to the purpose-tagged
// continuation.
func (s *Service) dispatchContinuation(tx Transaction, request RandomnessRequest, random uint64) error {
	switch request.Purpose {
	case domain.PurposeGermination:
		return s.completeGermination(tx, request, random)
	case domain.PurposeWinnerSelection:
		return s.completeWinnerSelection(tx, request, random)
	default:
		return fmt.Errorf("request %s has unknown purpose %q", request.ID, request.Purpose)
	}
}

// completeGermination assigns species and planting time to the orchid that
// opened the request. Both fields are immutable from here on.
func (s *Service) completeGermination(tx Transaction, request RandomnessRequest, random uint64) error {
	tokenID := TokenID(request.SubjectID)
	orchid, ok := tx.Snapshot().FindOrchid(tokenID)
	if !ok {
		return fmt.Errorf("germination %s: orchid %d not found", request.ID, tokenID)
	}
	if orchid.PendingRequestID != request.ID {
		return fmt.Errorf("germination %s: orchid %d expects request %q", request.ID, tokenID, orchid.PendingRequestID)
	}
	if orchid.Germinated() {
		return fmt.Errorf("germination %s: orchid %d already germinated", request.ID, tokenID)
	}
	species, err := domain.AssignSpecies(domain.NormalizeDraw(random))
	if err != nil {
		return fmt.Errorf("germination %s: %v", request.ID, err)
	}
	_, err = tx.UpdateOrchid(tokenID, func(o *Orchid) error {
		o.Species = species
		o.PlantedAt = tx.Now()
		o.WaterLevel = 0
		o.PendingRequestID = ""
		return nil
	})
	return err
}

// completeWinnerSelection draws the winner uniformly from the cycle entries.
func (s *Service) completeWinnerSelection(tx Transaction, request RandomnessRequest, random uint64) error {
	cycle := tx.Snapshot().Cycle()
	if cycle.ID != request.SubjectID {
		return fmt.Errorf("winner selection %s: cycle %d superseded by %d", request.ID, request.SubjectID, cycle.ID)
	}
	if cycle.PendingSelectionRequestID != request.ID {
		return fmt.Errorf("winner selection %s: cycle expects request %q", request.ID, cycle.PendingSelectionRequestID)
	}
	if len(cycle.Entries) == 0 {
		return fmt.Errorf("winner selection %s: cycle %d has no entries", request.ID, cycle.ID)
	}
	winner := cycle.Entries[random%uint64(len(cycle.Entries))].Address
	_, err := tx.UpdateCycle(func(c *PromotionCycle) error {
		c.Winner = winner
		c.PendingSelectionRequestID = ""
		return nil
	})
	return err
}
