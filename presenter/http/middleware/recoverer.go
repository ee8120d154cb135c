package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/xbridge/bridge-coordinator/logging"
)

// Recoverer turns a handler panic into a 500 response and logs the stack.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil || rec == http.ErrAbortHandler {
				if rec != nil {
					panic(rec)
				}
				return
			}
			err, ok := rec.(error)
			if !ok {
				err = fmt.Errorf("%v", rec)
			}
			logging.LoggerFromContext(r.Context()).WithField("stack", string(debug.Stack())).
				WithError(err).Error("recovered panic from the http handler")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}()
		next.ServeHTTP(w, r)
	})
}
