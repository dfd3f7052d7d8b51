package handlers

import (
	"net/http"

	"github.com/trackline/cmdb/internal/pkg/errors"
	"github.com/trackline/cmdb/internal/pkg/utils"
)

// writeServiceError maps a service error onto the wire, falling back to a
// generic internal error for anything that is not an AppError.
func writeServiceError(w http.ResponseWriter, err error, fallback string) {
	if appErr, ok := err.(*errors.AppError); ok {
		utils.WriteError(w, appErr)
		return
	}
	utils.WriteError(w, errors.Internal(fallback, err))
}

// clientIDFromQuery reads the tenant from the query string.
func clientIDFromQuery(r *http.Request) string {
	return r.URL.Query().Get("clientid")
}
