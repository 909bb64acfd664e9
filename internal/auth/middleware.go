package auth

import (
	"log/slog"
	"net/http"

	"github.com/tailorhub/tailorhub/internal/access"
	"github.com/tailorhub/tailorhub/internal/shared"
)

// LoadPrincipal attaches the signed-in user's principal to the request
// context. Requests without a signed-in session pass through anonymously;
// sessions whose account vanished or was disabled are destroyed.
func LoadPrincipal(loader PrincipalLoader, sessions *shared.SessionManager, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := shared.SessionFromContext(r.Context())
			if sess == nil || sess.User() == "" {
				next.ServeHTTP(w, r)
				return
			}
			p, err := loader.LoadPrincipal(r.Context(), sess.User())
			if err != nil {
				if shared.IsClientError(err) {
					sessions.Destroy(sess)
				} else {
					logger.Error("load principal failed", slog.String("user_id", sess.User()), slog.Any("error", err))
				}
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(access.WithPrincipal(r.Context(), p)))
		})
	}
}
