// Package auth issues and verifies devicehub API bearer tokens.
//
// Tokens are HS256 JWTs carrying a subject and one of two roles:
//   - reader: may query devices and data
//   - writer: may also register and update devices and add data
//
// There are no user accounts. Tokens are minted offline with
// "devicehub token" and checked by signature only.
package auth
