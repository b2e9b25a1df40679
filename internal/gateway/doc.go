// Package gateway orchestrates the lostify-gateway server components.
//
// # Overview
//
// The Gateway owns the SQLite store, the conversation service, the JWT
// verifier and the HTTP server. New wires them together; Run serves until
// its context is canceled; Shutdown stops the server and closes the store.
//
// # Listeners
//
// By default the server listens on server.http_addr. With tailscale.enabled
// the gateway joins the tailnet through tsnet instead and serves on :80, on
// :443 with tailnet certificates (tailscale.https), or publicly through
// Funnel (tailscale.funnel).
//
// # HTTP API
//
// All /api routes require a Bearer JWT whose subject is a participant id:
//
//	POST /api/messages/conversation             start or get a conversation
//	POST /api/messages/send                     send a message
//	GET  /api/messages/conversations            list the caller's conversations
//	GET  /api/messages/conversation/{id}/messages
//	POST /api/messages/conversation/{id}/read   mark the other side's messages read
//
// Errors are returned as {"error": "..."} with 400, 403, 404 or 500.
//
// # Health
//
//	GET /health        liveness, always 200
//	GET /health/ready  200 when the store answers a ping, 503 otherwise
package gateway
