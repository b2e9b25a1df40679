// Package auth provides authentication for lostify-gateway.
//
// # JWT Tokens
//
// API callers authenticate with HS256 JWTs signed with the configured
// jwt_secret. The "sub" claim is the caller's participant id in decimal and
// "exp" is required:
//
//	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
//	token, err := verifier.Generate(participantID, 24*time.Hour)
//
// # HTTP Middleware
//
// HTTPAuthMiddleware verifies the bearer token, confirms the participant
// exists, and attaches an AuthContext to the request context. Handlers read
// it once with CallerID and pass the id explicitly from then on.
//
// Failures are answered with a JSON body {"error": "..."}: 401 for missing,
// malformed or unknown credentials and 500 if the lookup itself fails.
package auth
