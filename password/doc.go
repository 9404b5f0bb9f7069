// Package password implements credential hashing and verification with
// Argon2id.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// # Architecture boundaries
//
// This package owns hashing and verification only. The stored hash lives in
// the origin repository and never enters a cache tier; only the login path
// reads it.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords — callers supply plaintext and receive
//     hashes.
//   - Import any other identity package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
