package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/formbricks/similarity/internal/api/response"
)

// Recover turns a panic in the handler chain into 500 {"error":"Internal server error"}
// and logs it with the stack. http.ErrAbortHandler is re-panicked so net/http aborts the connection.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(rec)
			}

			slog.ErrorContext(r.Context(), "panic serving request",
				"panic", rec,
				"method", r.Method,
				"path", r.URL.Path,
				"stack", string(debug.Stack()),
			)

			response.RespondInternalServerError(w, response.MessageInternalError)
		}()

		next.ServeHTTP(w, r)
	})
}
