package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/form3tech-oss/jwt-go"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/inkwell-app/inkwell/backend/journal"
	"github.com/inkwell-app/inkwell/backend/mood"
	contextKey "github.com/inkwell-app/inkwell/backend/server/context_key"
	"github.com/inkwell-app/inkwell/backend/streak"
)

// Server bundles the services the HTTP surface exposes.
type Server struct {
	Journals *journal.Service
	Moods    *mood.Aggregator
	Streaks  *streak.Tracker
}

// jwtMiddleware reads the bearer token from the Authorization header and, if
// it verifies against the signing key, injects the user's id into the
// request context. Parse errors land in the context too; the handlers turn
// a missing user id into a 401, so unauthenticated requests pass through
// here untouched.
func jwtMiddleware(signingKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader != "" {
			splitToken := strings.Split(authHeader, "Bearer ")
			if len(splitToken) == 2 {
				token, err := jwt.Parse(splitToken[1], func(token *jwt.Token) (interface{}, error) {
					if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
						return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
					}
					return []byte(signingKey), nil
				})
				if err != nil {
					ctx := context.WithValue(r.Context(), contextKey.JwtErrorKey, err)
					r = r.WithContext(ctx)
				} else if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
					ctx := context.WithValue(r.Context(), contextKey.UserIDKey, claims["id"])
					r = r.WithContext(ctx)
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

// recoveryMiddleware recovers from panics and provides a generic error
// message to the client.
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("Panic recovered: %s\n", err)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Start initializes and runs the REST server on the host of serverURL.
func (s *Server) Start(serverURL, signingKey string) error {
	r := mux.NewRouter()
	s.registerRoutes(r)

	var handler http.Handler = r
	handler = jwtMiddleware(signingKey, handler)
	handler = recoveryMiddleware(handler)

	// Apply the CORS middleware to the router
	corsOrigins := handlers.AllowedOrigins([]string{"*"})
	corsMethods := handlers.AllowedMethods([]string{"GET", "HEAD", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"})
	corsHeaders := handlers.AllowedHeaders([]string{"X-Requested-With", "Content-Type", "Authorization"})
	handler = handlers.CORS(corsOrigins, corsMethods, corsHeaders)(handler)

	// Apply the logging middleware
	handler = handlers.LoggingHandler(os.Stdout, handler)

	u, err := url.Parse(serverURL)
	if err != nil {
		return fmt.Errorf("invalid server url: %w", err)
	}

	server := &http.Server{
		Handler:      handler,
		Addr:         u.Host,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	return server.ListenAndServe()
}
