package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/slotbook-backend/api/responses"
	"github.com/angelmondragon/slotbook-backend/api/validators"
	"github.com/angelmondragon/slotbook-backend/internal/reconcile"
	pkgerrors "github.com/angelmondragon/slotbook-backend/pkg/errors"
	"github.com/angelmondragon/slotbook-backend/pkg/logger"
)

const defaultReconcileDays = 7

// Reconcile recomputes reserved counters for ?days days from today. Runs go
// through the job runner so an HTTP trigger and the CLI never overlap.
func Reconcile(svc Reconciler, runner JobRunner, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || runner == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconciliation unavailable"))
			return
		}

		days, err := validators.ParseQueryInt(r, "days", defaultReconcileDays, 1, svc.MaxDays())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var report *reconcile.Report
		err = runner.Do(r.Context(), reconcile.JobName, func(ctx context.Context) error {
			var runErr error
			report, runErr = svc.Reconcile(ctx, days)
			return runErr
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}
