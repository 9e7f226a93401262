// Package auth provides stateless authentication for an HTTP API: a
// credential store, bcrypt password hashing, HS256 bearer tokens and the
// fiber middleware that guards protected routes.
//
// Registration and login:
//   - Auther normalizes email (trimmed, lowercased) and trims the
//     phone before validating, and checks the phone against ^[6-9]\d{9}$
//     and the configured region before and looking up identities, so uniqueness is case
//     insensitive. New identities always get the OWNER role.
//   - Login answers an unknown email and a wrong password with the same
//     InvalidCredentials error, and still runs a bcrypt comparison for
//     unknown emails. An optional LoginThrottle (Redis or in-process) locks
//     an email out after repeated failures.
//
// Tokens:
//   - TokenServiceImpl signs {sub, role, iat, exp, jti} with HS256 and
//     classifies verification failures as Malformed, InvalidSignature or
//     Expired. The signature is always checked before the expiry. Verify
//     also accepts a roles claim (string or list) alongside role.
//
// HTTP:
//   - NewApp wires the routes, the jwtware middleware and ErrorResponder,
//     which renders every rejection as {status, error, message, fields}.
//     Server faults are logged and answered with a generic message.
//
// Activity sinks:
//   - ActivitySink receives register and login events. Sinks run best-effort
//     (errors are logged) and events never carry passwords or hashes.
package auth
