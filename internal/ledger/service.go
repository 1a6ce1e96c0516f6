package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/shiftledger/internal/shifts"
	"github.com/angelmondragon/shiftledger/pkg/db/models"
	"github.com/angelmondragon/shiftledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/shiftledger/pkg/errors"
	"github.com/angelmondragon/shiftledger/pkg/outbox/payloads"
)

// Service mirrors shift cash movements into the store's general ledger.
type Service interface {
	MirrorMovement(ctx context.Context, event payloads.CashMovementRecordedEvent) (*MirrorResult, error)
}

// MirrorResult reports the ledger entry for a movement. Duplicate is true when
// the entry already existed and nothing was written.
type MirrorResult struct {
	Entry     *models.LedgerEntry
	Duplicate bool
}

type service struct {
	repo Repository
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) MirrorMovement(ctx context.Context, event payloads.CashMovementRecordedEvent) (*MirrorResult, error) {
	if event.MovementID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "movement id is required")
	}
	if strings.TrimSpace(event.StoreID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id is required")
	}
	if !event.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid cash movement type %q", event.Type))
	}
	if !event.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be greater than zero")
	}

	entry := &models.LedgerEntry{
		StoreID:     event.StoreID,
		Type:        event.Type,
		Amount:      event.Amount,
		Description: event.LedgerDescription,
		Category:    event.LedgerCategory,
		Source:      enums.LedgerSourcePOSShift,
		RefID:       event.MovementID,
		OccurredAt:  event.Date,
	}
	// Events queued before the ledger fields existed carry only the raw movement.
	if entry.Description == "" {
		entry.Description = shifts.LedgerDescription(event.Reason, event.ShiftID)
	}
	if entry.Category == "" {
		entry.Category = shifts.LedgerCategory(event.Type, event.Category)
	}

	created, err := s.repo.Create(ctx, entry)
	if err != nil {
		return nil, err
	}
	if created {
		return &MirrorResult{Entry: entry}, nil
	}
	existing, err := s.repo.FindByRefID(ctx, event.MovementID)
	if err != nil {
		return nil, err
	}
	return &MirrorResult{Entry: existing, Duplicate: true}, nil
}
