// Package users implements the identity core of the users service: account
// registration with deferred email verification, login with signed bearer
// tokens, password recovery and profile management.
//
// Accounts:
//   - Account is the bun model. Its BeforeAppendModel hook hashes any pending
//     plaintext password, so no write path persists a raw password.
//   - Profile is the public projection returned by every read. Password hashes
//     and token fingerprints never leave the package.
//
// Single use secrets:
//   - Verification and reset secrets are random, only their SHA-256
//     fingerprint is stored and they expire after TokenWindow. Redemption is a
//     single conditional update, so a secret can be consumed once.
//
// Notifications and activity:
//   - Notifier delivers verification and reset links. The service calls it
//     with a context detached from the request and treats failures as
//     non fatal.
//   - ActivitySink receives audit events. Sink errors are logged and never
//     fail the operation that emitted them.
//
// HTTP:
//   - AccountController exposes the operations on fiber. Protected routes run
//     behind the gate in middleware/jwtware, which stores the resolved
//     Profile in the request locals and the user context.
package users
