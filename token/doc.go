// Package token mints and verifies the signed access/refresh token pair bound
// to an admin session. Access and refresh tokens are signed with disjoint
// secrets so a leaked refresh token can never be replayed as an access token.
package token
