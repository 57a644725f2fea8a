// Package auth implements email/password accounts with JWT access tokens,
// stored refresh tokens and emailed password resets.
//
// Accounts:
//   - CredentialStore creates users and verifies credentials. Unknown emails
//     and wrong passwords fail with the same ErrInvalidCredentials value.
//   - Passwords are hashed through User.SetPassword only, so profile
//     updates never touch the hash.
//
// Tokens:
//   - TokenService signs short lived HS256 access tokens and long lived
//     refresh tokens with separate secrets. Only the HMAC digest of a refresh
//     token is persisted, one row per issued token.
//   - Refresh rotates the presented token, Logout removes it, and a password
//     reset removes every stored token of the user.
//   - Password reset tokens are "value.secret" pairs. The stored digest is
//     HMAC-SHA256(secret, value) and expires after Config.ResetTokenTTL.
//
// HTTP:
//   - RegisterAuthRoutes mounts the account routes on any go-router Router, and
//     NewErrorHandler renders every failure as {"error","error_description"}.
//   - middleware/jwtware verifies bearer tokens and stores the Identity in
//     the request context.
//
// Activity sinks:
//   - ActivitySink receives signup, login, refresh, logout and reset events.
//     Sinks run best-effort, errors are logged and never fail the request.
package auth
