package bridge

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const jwtIssuer = "fiberhost"

// generateJWT issues a bearer token for c, signed with secret. The
// signing key is just secret: there is no per-client
// password-change/logout-time component to mix in, since a Client has
// no session state to invalidate against.
func generateJWT(secret []byte, c Client) (string, error) {
	claims := jwt.MapClaims{
		"iss": jwtIssuer,
		"sub": c.ID.String(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	return tok.SignedString(secret)
}

// validateAndLookupClient parses and verifies tok, then resolves its
// subject claim against store (server/token.go's
// validateAndLookupJWTUser, adapted to a Client lookup instead of a
// dao.User one).
func validateAndLookupClient(tok string, secret []byte, store *ClientStore) (Client, error) {
	var client Client

	_, err := jwt.Parse(tok, func(t *jwt.Token) (interface{}, error) {
		subj, err := t.Claims.GetSubject()
		if err != nil {
			return nil, fmt.Errorf("cannot get subject: %w", err)
		}

		id, err := uuid.Parse(subj)
		if err != nil {
			return nil, fmt.Errorf("cannot parse subject UUID: %w", err)
		}

		var ok bool
		client, ok = store.GetByID(id)
		if !ok {
			return nil, fmt.Errorf("subject does not exist")
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}), jwt.WithIssuer(jwtIssuer), jwt.WithLeeway(time.Minute))

	if err != nil {
		return Client{}, err
	}
	return client, nil
}

// getBearerToken extracts a "Bearer <token>" Authorization header, the
// same parsing server/token.go's getJWT does.
func getBearerToken(req *http.Request) (string, error) {
	authHeader := strings.TrimSpace(req.Header.Get("Authorization"))
	if authHeader == "" {
		return "", fmt.Errorf("no authorization header present")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("authorization header not in Bearer format")
	}

	scheme := strings.TrimSpace(strings.ToLower(parts[0]))
	if scheme != "bearer" {
		return "", fmt.Errorf("authorization header not in Bearer format")
	}
	return strings.TrimSpace(parts[1]), nil
}
