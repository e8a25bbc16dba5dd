// Package auth is the authentication, session and permission engine of the
// learning platform backend.
//
// Credentials:
//   - CredentialVerifier checks local email and password logins. Unknown
//     emails and wrong passwords are indistinguishable to the caller.
//   - IdentityReconciler maps an external provider identity onto exactly one
//     Account keyed on (provider, provider id). Accounts never merge on email.
//
// Sessions:
//   - TokenService signs HS256 bearer tokens. CredentialIssuer registers each
//     issued token in the SessionRegistry, an in-process sharded store that
//     is the source of truth for revocation. A validly signed token absent
//     from the registry is rejected.
//
// Permissions:
//   - Effective capabilities are (role capabilities ∪ grants) − blocks. A
//     block always wins. PermissionResolver loads the data and applies the
//     pure functions in resolver.go on every call.
//
// Requests:
//   - RequestGate runs token extraction, signature check, registry lookup,
//     account load, session pruning and capability checks in that order, and
//     is mounted through Protect and Require.
package auth
