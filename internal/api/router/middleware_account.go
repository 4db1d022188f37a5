package router

import (
	"net/http"
	"strings"

	"github.com/fieldserve/dispatch-ai-platform/internal/tenancy"
)

const accountHeader = "X-Account-Id"

// requireAccountID middleware enforces multi-tenancy headers for API requests.
func requireAccountID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accountID := strings.TrimSpace(r.Header.Get(accountHeader))
		if accountID == "" {
			http.Error(w, "missing X-Account-Id", http.StatusBadRequest)
			return
		}
		ctx := tenancy.WithAccountID(r.Context(), accountID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
