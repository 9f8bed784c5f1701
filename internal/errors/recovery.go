package errors

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/copyleftdev/darwin/internal/logging"
)

// RecoveryMiddleware returns a middleware that turns handler panics into a
// 500 JSON response and logs them with their stack.
func RecoveryMiddleware(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				err := FromPanic(rec).WithOperation(r.Method + " " + r.URL.Path)
				logger.Error("Recovered from panic", map[string]interface{}{
					"error": err.Error(),
					"stack": strings.Join(err.StackTrace(), "\n"),
					"query": r.URL.RawQuery,
				})

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error": http.StatusText(http.StatusInternalServerError),
				})
			}()

			next.ServeHTTP(w, r)
		})
	}
}
