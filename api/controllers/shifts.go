package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shiftledger/api/middleware"
	"github.com/angelmondragon/shiftledger/api/responses"
	"github.com/angelmondragon/shiftledger/api/validators"
	"github.com/angelmondragon/shiftledger/internal/shifts"
	"github.com/angelmondragon/shiftledger/pkg/db/models"
	"github.com/angelmondragon/shiftledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/shiftledger/pkg/errors"
	"github.com/angelmondragon/shiftledger/pkg/logger"
	"github.com/angelmondragon/shiftledger/pkg/outbox"
)

// ShiftEngine is the slice of the shift engine the HTTP layer drives.
type ShiftEngine interface {
	OpenShift(ctx context.Context, in shifts.OpenShiftInput) (*models.Shift, error)
	RecordCashMovement(ctx context.Context, shiftID uuid.UUID, in shifts.CashMovementInput) (*shifts.MovementResult, error)
	UpdateShiftStats(ctx context.Context, shiftID uuid.UUID, in shifts.SaleInput) (*shifts.SaleResult, error)
	EndShift(ctx context.Context, shiftID uuid.UUID, in shifts.EndShiftInput) (*models.Shift, error)
	TerminateShift(ctx context.Context, shiftID uuid.UUID, notes string) (*models.Shift, error)
	ActiveShift(ctx context.Context, storeID string) (*models.Shift, error)
	GetShift(ctx context.Context, shiftID uuid.UUID) (*models.Shift, error)
	ListMovements(ctx context.Context, shiftID uuid.UUID) ([]models.CashMovement, error)
}

type openShiftRequest struct {
	InitialCash decimal.Decimal `json:"initial_cash" validate:"money"`
	CashierName string          `json:"cashier_name" validate:"omitempty,max=120"`
}

type splitPartRequest struct {
	Method string          `json:"method" validate:"required,max=32"`
	Amount decimal.Decimal `json:"amount" validate:"decimal_gte0,money"`
}

type saleRequest struct {
	SaleID        string             `json:"sale_id" validate:"omitempty,max=128"`
	Amount        decimal.Decimal    `json:"amount" validate:"decimal_gte0,money"`
	PaymentMethod string             `json:"payment_method" validate:"required,max=32"`
	Discount      decimal.Decimal    `json:"discount" validate:"decimal_gte0,money"`
	Split         []splitPartRequest `json:"split" validate:"omitempty,dive"`
}

type movementRequest struct {
	Type     string          `json:"type" validate:"required,oneof=in out"`
	Amount   decimal.Decimal `json:"amount" validate:"decimal_gt0,money"`
	Reason   string          `json:"reason" validate:"required,max=500"`
	Category string          `json:"category" validate:"omitempty,max=100"`
}

type closeShiftRequest struct {
	FinalCash    decimal.Decimal `json:"final_cash" validate:"decimal_gte0,money"`
	FinalNonCash decimal.Decimal `json:"final_non_cash" validate:"decimal_gte0,money"`
	Notes        string          `json:"notes" validate:"max=1000"`
}

type saleResponse struct {
	Shift     *models.Shift `json:"shift"`
	Duplicate bool          `json:"duplicate"`
}

type movementResponse struct {
	Movement *models.CashMovement `json:"movement"`
	Shift    *models.Shift        `json:"shift"`
}

// OpenShift starts a shift for the token's store. The cashier is the caller.
func OpenShift(engine ShiftEngine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req openShiftRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		name := validators.SanitizeString(req.CashierName, 120)
		if name == "" {
			name = middleware.UserNameFromContext(r.Context())
		}

		shift, err := engine.OpenShift(actorContext(r), shifts.OpenShiftInput{
			StoreID:     middleware.StoreIDFromContext(r.Context()),
			CashierID:   middleware.UserIDFromContext(r.Context()),
			CashierName: name,
			InitialCash: req.InitialCash,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, shift)
	}
}

// ActiveShift returns the store's active shift, or null when none is open.
func ActiveShift(engine ShiftEngine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shift, err := engine.ActiveShift(r.Context(), middleware.StoreIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, shift)
	}
}

func GetShift(engine ShiftEngine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shift, err := loadStoreShift(r, engine)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, shift)
	}
}

// RecordSale folds one completed sale into the shift totals.
func RecordSale(engine ShiftEngine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shift, err := loadStoreShift(r, engine)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req saleRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		in := shifts.SaleInput{
			SaleID:        strings.TrimSpace(req.SaleID),
			Amount:        req.Amount,
			PaymentMethod: enums.ParsePaymentMethod(req.PaymentMethod),
			Discount:      req.Discount,
		}
		for _, part := range req.Split {
			in.Split = append(in.Split, shifts.SplitPart{
				Method: enums.ParsePaymentMethod(part.Method),
				Amount: part.Amount,
			})
		}

		result, err := engine.UpdateShiftStats(actorContext(r), shift.ID, in)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, saleResponse{Shift: result.Shift, Duplicate: result.Duplicate})
	}
}

// RecordCashMovement stores a manual cash in/out against the shift.
func RecordCashMovement(engine ShiftEngine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shift, err := loadStoreShift(r, engine)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req movementRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		kind, err := enums.ParseCashMovementType(req.Type)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid movement type"))
			return
		}

		result, err := engine.RecordCashMovement(actorContext(r), shift.ID, shifts.CashMovementInput{
			Type:     kind,
			Amount:   req.Amount,
			Reason:   validators.SanitizeString(req.Reason, 500),
			Category: validators.SanitizeString(req.Category, 100),
			Cashier:  middleware.UserNameFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, movementResponse{Movement: result.Movement, Shift: result.Shift})
	}
}

func ListCashMovements(engine ShiftEngine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shift, err := loadStoreShift(r, engine)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		movements, err := engine.ListMovements(r.Context(), shift.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, movements)
	}
}

// CloseShift reconciles the declared drawer count and closes the shift.
func CloseShift(engine ShiftEngine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shift, err := loadStoreShift(r, engine)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req closeShiftRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		closed, err := engine.EndShift(actorContext(r), shift.ID, shifts.EndShiftInput{
			FinalCash:    req.FinalCash,
			FinalNonCash: req.FinalNonCash,
			Notes:        validators.SanitizeString(req.Notes, 1000),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, closed)
	}
}

// loadStoreShift resolves {shiftId} and hides shifts owned by other stores.
func loadStoreShift(r *http.Request, engine ShiftEngine) (*models.Shift, error) {
	shiftID, err := shiftIDParam(r)
	if err != nil {
		return nil, err
	}
	shift, err := engine.GetShift(r.Context(), shiftID)
	if err != nil {
		return nil, err
	}
	if shift.StoreID != middleware.StoreIDFromContext(r.Context()) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shift not found")
	}
	return shift, nil
}

func shiftIDParam(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "shiftId"))
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shift id")
	}
	return id, nil
}

func actorContext(r *http.Request) context.Context {
	ctx := r.Context()
	return shifts.WithActor(ctx, outbox.ActorRef{
		UserID:  middleware.UserIDFromContext(ctx),
		StoreID: middleware.StoreIDFromContext(ctx),
		Role:    middleware.RoleFromContext(ctx),
	})
}
