package credential

import (
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// jwtExpiry extracts the exp claim from a bearer token that happens to be
// a JWT. The signature is NOT verified: the expiry is only used to decide
// when to re-resolve, never to trust the token's contents. Returns false
// for opaque tokens or JWTs without an exp claim.
func jwtExpiry(accessToken string) (time.Time, bool) {
	parser := jwtlib.NewParser()
	claims := jwtlib.MapClaims{}
	if _, _, err := parser.ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
