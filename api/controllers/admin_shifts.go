package controllers

import (
	"net/http"

	"github.com/angelmondragon/shiftledger/api/responses"
	"github.com/angelmondragon/shiftledger/api/validators"
	"github.com/angelmondragon/shiftledger/pkg/logger"
)

type terminateShiftRequest struct {
	Notes string `json:"notes" validate:"max=1000"`
}

// AdminTerminateShift force-closes a shift without reconciliation.
func AdminTerminateShift(engine ShiftEngine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shiftID, err := shiftIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req terminateShiftRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		shift, err := engine.TerminateShift(actorContext(r), shiftID, validators.SanitizeString(req.Notes, 1000))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, shift)
	}
}
