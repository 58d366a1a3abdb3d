package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS allows the UI process to reach the host's HTTP endpoints. The UI
// is served from a custom app scheme or a localhost dev server, neither
// of which shares an origin with the host, so the policy is permissive
// on origin but narrow on methods: the mutating surface lives on the
// WebSocket bridge, not on HTTP.
func CORS() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "OPTIONS"},
		AllowHeaders: []string{
			"Content-Type",
			"Accept",
			"Origin",
			"Cache-Control",
		},
		MaxAge: 12 * time.Hour,
	})
}
