package middleware

import (
	"github.com/go-chi/cors"
)

// CORS returns cors.Options for the admin API. With no configured
// origins the API is assumed private and only same-host tools use it.
func CORS(allowedOrigins []string) cors.Options {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:8080"}
	}

	allowCreds := true
	for _, o := range allowedOrigins {
		if o == "*" {
			// Browsers reject Allow-Credentials with a wildcard origin.
			allowCreds = false
			break
		}
	}

	return cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: allowCreds,
		MaxAge:           300,
	}
}
