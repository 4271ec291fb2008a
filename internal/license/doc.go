// Package license implements the license key lifecycle for remote client
// processes such as game-server plugins.
//
// # Architecture Overview
//
// The package consists of several components:
//
//   - Record: the persisted state of one license key
//   - Store: the read-modify-write persistence contract
//   - KeyGenerator: random uppercase alphanumeric keys
//   - Lifecycle: Verify and Release, the binding/heartbeat state machine
//   - Admin: privileged create/extend/expire/unbind/rename/delete/export
//
// # Verification Flow
//
// Verify evaluates, in order, each step acting as a hard gate:
//
//  1. Lookup the key
//  2. Check the product scope (case-insensitive)
//  3. Check expiry (invalid strictly after ExpiresAt)
//  4. Reclaim a binding whose heartbeat is older than the timeout
//  5. Claim an unbound key for the caller
//  6. Refresh the heartbeat when the caller already holds the key
//  7. Otherwise report the key as in use by another client
//
// The whole sequence runs inside a single Store.Update call, so two clients
// racing for a fresh key can never both be bound.
//
// # Heartbeats
//
// Bound clients re-verify periodically. There is no background timer:
// a stale binding is reclaimed by whichever Verify call touches the key next.
//
//	result, err := lifecycle.Verify(ctx, license.VerifyRequest{
//		Key:      "K7Q2M9X4ZL3P8R1T",
//		ClientID: "srv1",
//		Scope:    "myplugin",
//	})
//
// # Error Handling
//
// Business denials of Verify are reported through VerifyResult.Reason.
// All other denials are sentinel errors (ErrKeyNotFound, ErrUnauthorized,
// ErrInvalidInput, ErrKeyConflict, ...) matched with errors.Is. Store failures
// wrap ErrStoreUnavailable and are the only fatal class.
package license
