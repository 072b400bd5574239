// Package tours is the domain core of the tour booking service: tours,
// reviews, bookings and the user accounts that own them, plus the
// authentication lifecycle around those accounts.
//
// Authentication:
//   - Auther issues HS256 tokens for verified credentials and checks incoming
//     tokens through a pipeline: present, verify, resolve the user, reject
//     tokens issued before the last password change. Check adds a role gate.
//   - Stored user roles are authoritative; the role claim is informational.
//
// Account commands:
//   - RegisterUserHandler, InitializePasswordResetHandler,
//     FinalizePasswordResetHandler and UpdatePasswordHandler run inside a
//     repository transaction and emit activity events on success.
//   - Reset tokens are random, mailed in clear and stored hashed with a ten
//     minute expiry. They are single use.
//
// Activity sinks:
//   - ActivitySink is a best-effort audit emitter. Sink errors are logged and
//     never fail the operation that produced the event.
//
// Storage:
//   - RepositoryManager groups the Bun repositories for users, tours, reviews
//     and bookings. Creating or removing a review recalculates the tour's
//     rating aggregates in the same transaction.
package tours
