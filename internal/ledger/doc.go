// Package ledger defines the narrow interfaces pubflow consumes from the
// distributed ledger and the binary asset store.
//
// The coordination core never talks to a network directly. Everything it
// needs from the outside world is expressed here:
//
//   - Client: submit a message to a topic, create a topic, read the latest
//     or first message of a topic.
//   - BinaryStore: upload a large binary asset and get back a reference.
//   - Signer: the authorization context a session must hold before any
//     submission is attempted.
//
// Implementations live elsewhere: internal/store provides a local
// SQLite-backed ledger for offline use and integration tests, and
// ledgertest provides a scripted fake with fault injection.
//
// # Error contract
//
// Implementations must report a user-declined authorization by returning an
// error for which IsUserRejected reports true (wrap ErrUserRejected or
// include the canonical rejection text). Transient wallet desynchronization
// is reported through error text matched by the safeop package; it is a
// collaborator-facing contract, not something implementations need to
// construct deliberately.
package ledger
