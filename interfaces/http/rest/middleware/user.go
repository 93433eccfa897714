package middleware

import (
	"net/http"

	"github.com/nicobenz/flowpertoire/pkg/common"
	pkgerrors "github.com/nicobenz/flowpertoire/pkg/errors"
)

// User puts the acting user into the request context. Without
// authentication every request belongs to the default user unless
// allowHeader lets X-User-ID pick another one.
func User(allowHeader bool, errors *pkgerrors.ErrorHandler) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := common.ResolveUserID(r, allowHeader)
			if err != nil {
				errors.Handle(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(common.WithUserID(r.Context(), userID)))
		})
	}
}
