// Package conversation provides the caller-facing conversation service.
//
// # Overview
//
// The conversation package sits between the HTTP handlers and the store,
// turning an authenticated caller plus a (counterpart, item) reference into
// a single canonical conversation and operating on its messages.
//
// # Service
//
//	svc := conversation.New(store, store, store, logger)
//
// Key operations:
//
//   - StartOrGetConversation(ctx, caller, other, item): Find or create the thread
//   - SendMessage(ctx, caller, receiver, item, content): Append to the thread
//   - ListConversationsFor(ctx, caller): Summaries, most recent first
//   - GetMessages(ctx, conversationID, caller): Ordered history
//   - MarkRead(ctx, conversationID, caller): Clear the caller's unread count
//
// The caller's identity is always an explicit argument. Nothing is read
// from the context except cancellation.
//
// # Errors
//
// Every error returned wraps one of ErrNotFound, ErrForbidden,
// ErrInvalidInput or ErrInternal, or is the context's own error. Storage
// failures are logged with the operation name and ids and surface only as
// ErrInternal.
package conversation
