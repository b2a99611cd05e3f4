package i18n

import (
	"net/http"

	"github.com/nicksnyder/go-i18n/v2/i18n"
)

// Middleware injects a localizer into every request context. The deploy
// language is the default; a request may override it with ?lang= or the
// Accept-Language header.
func Middleware(defaultLang string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			langs := []string{defaultLang}
			if q := r.URL.Query().Get("lang"); q != "" {
				langs = append([]string{q}, langs...)
			} else if al := r.Header.Get("Accept-Language"); al != "" {
				langs = append([]string{al}, langs...)
			}
			loc := i18n.NewLocalizer(bundle, langs...)
			ctx := WithLocalizer(r.Context(), loc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
