// internal/middleware/i18n.go
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/idsee/registry-backend/internal/i18n"
)

// I18nMiddleware picks the first supported language from Accept-Language
// (or the ?lang= query parameter) and stores it under "lang".
func I18nMiddleware(defaultLang string) gin.HandlerFunc {
	return func(c *gin.Context) {
		lang := resolveLanguage(c.Query("lang"), c.GetHeader("Accept-Language"), defaultLang)
		c.Set("lang", lang)
		c.Next()
	}
}

func resolveLanguage(query, header, defaultLang string) string {
	supported := i18n.GetSupportedLanguages()

	candidates := []string{query}
	for _, part := range strings.Split(header, ",") {
		candidates = append(candidates, strings.Split(part, ";")[0])
	}

	for _, candidate := range candidates {
		// Handle cases like "nl-NL,nl;q=0.9,en;q=0.8"
		base := strings.ToLower(strings.TrimSpace(candidate))
		if idx := strings.IndexAny(base, "-_"); idx > 0 {
			base = base[:idx]
		}
		for _, lang := range supported {
			if base == lang {
				return lang
			}
		}
	}
	return defaultLang
}
