package auth

import (
	"net/http"
	"net/url"

	"github.com/JonMunkholm/shipbroker/internal/store"
)

// Restore attaches the caller's session, if any, to the request context.
// The provider access token travels with it so the supabase store can act
// as the signed-in user.
func (m *Manager) Restore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := m.FromRequest(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		ctx := WithSession(r.Context(), s)
		if s.AccessToken != "" {
			ctx = store.WithAccessToken(ctx, s.AccessToken)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireUser sends anonymous page requests to the sign-in page and
// rejects anonymous API requests with 401.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := SessionFrom(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}
		if r.Method != http.MethodGet {
			http.Error(w, ErrNoSession.Error(), http.StatusUnauthorized)
			return
		}
		http.Redirect(w, r, "/sign-in?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusSeeOther)
	})
}

// SafeNext returns target if it is a local path, otherwise fallback.
func SafeNext(target, fallback string) string {
	if target == "" || target[0] != '/' || (len(target) > 1 && (target[1] == '/' || target[1] == '\\')) {
		return fallback
	}
	return target
}
