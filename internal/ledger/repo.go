package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shiftledger/pkg/db"
	"github.com/angelmondragon/shiftledger/pkg/db/models"
	pkgerrors "github.com/angelmondragon/shiftledger/pkg/errors"
)

// Repository manages persistence for general ledger entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	// Create inserts the entry. It returns false without error when an entry
	// with the same ref_id already exists.
	Create(ctx context.Context, entry *models.LedgerEntry) (bool, error)
	FindByRefID(ctx context.Context, refID uuid.UUID) (*models.LedgerEntry, error)
	// ListByStore returns the newest entries first. A zero since lists from
	// the beginning.
	ListByStore(ctx context.Context, storeID string, since time.Time, limit int) ([]models.LedgerEntry, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{db: conn}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *models.LedgerEntry) (bool, error) {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		if db.IsUniqueViolation(err, "") {
			return false, nil
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeWrite, err, "create ledger entry")
	}
	return true, nil
}

func (r *repository) FindByRefID(ctx context.Context, refID uuid.UUID) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	if err := r.db.WithContext(ctx).Where("ref_id = ?", refID).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "ledger entry not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeWrite, err, "load ledger entry")
	}
	return &entry, nil
}

func (r *repository) ListByStore(ctx context.Context, storeID string, since time.Time, limit int) ([]models.LedgerEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	q := r.db.WithContext(ctx).Where("store_id = ?", storeID)
	if !since.IsZero() {
		q = q.Where("occurred_at >= ?", since.UTC())
	}
	var entries []models.LedgerEntry
	err := q.
		Order("occurred_at DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeWrite, err, "list ledger entries")
	}
	return entries, nil
}
