// Package store provides persistent storage for the gateway using SQLite.
//
// # Architecture
//
// The store package uses an interface-driven architecture with one
// interface per concern:
//
//   - ConversationStore: Conversation identity (find-or-create, merge, summaries)
//   - MessageLog: Append-only ordered messages per conversation
//   - ReadTracker: Unread counts and bulk mark-read
//   - DirectoryStore: Local participant and item directory
//
// SQLiteStore implements all of them behind the composite Store interface.
//
// # Conversation Identity
//
// A conversation is keyed by (participant_low, participant_high, item_id),
// where the two participant ids are put in ascending order by CanonicalPair.
// A unique index on that key is the only creation concurrency control: a
// losing insert re-reads the winner's row instead of failing.
//
// Databases from earlier deployments may contain several rows per key. They
// are merged into the earliest-created row, either on first lookup or by
// RepairDuplicateConversations, which also runs at startup before the unique
// index is created. Merging renumbers the combined message sequence.
//
// # Transactions
//
// Every multi-step write runs in a single BEGIN IMMEDIATE transaction, so
// concurrent writers from any number of processes are serialized by SQLite.
// Reads run on a separate query_only pool:
//
//	store, err := store.NewSQLiteStore("/var/lib/lostify/gateway.db")
//	conv, err := store.FindOrCreateConversation(ctx, 5, 2, 42)
//	msg, err := store.AppendMessage(ctx, conv.ID, 5, "Is this your wallet?")
//
// # Timestamps
//
// Times are stored as fixed-width UTC TEXT so that ORDER BY on the column
// is chronological.
package store
