/**
 * @description
 * This file provides authentication middleware for the marketplace-service.
 * It validates JWTs issued by the external auth provider by fetching the
 * provider's public keys from its JWKS endpoint, and guards internal
 * server-to-server endpoints with a shared API key.
 *
 * Key features:
 * - JWT validation using RS256 and key lookup by `kid`.
 * - Issuer and audience claim checks driven by configuration.
 * - Injects the token's `sub` claim into the request context for handlers.
 *
 * @dependencies
 * - github.com/golang-jwt/jwt/v5: For JWT parsing and validation.
 * - crypto/rsa, encoding/base64, math/big: For JWKS key reconstruction.
 */

package api

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// contextKey is a private type for context keys defined in this package.
type contextKey string

// AuthSubjectContextKey is the key used to store the auth subject in the
// request context.
const AuthSubjectContextKey = contextKey("authSubject")

// AuthMiddleware validates bearer JWTs against the provider's JWKS and
// injects the token subject into the request context. Issuer and audience
// checks are skipped when the corresponding value is empty.
func AuthMiddleware(jwksURL, issuer, audience string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
				return
			}

			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}

				kid, ok := token.Header["kid"].(string)
				if !ok {
					return nil, fmt.Errorf("kid not found in token header")
				}

				publicKey, err := getPublicKeyFromJWKS(jwksURL, kid)
				if err != nil {
					return nil, fmt.Errorf("failed to get public key: %w", err)
				}

				return publicKey, nil
			})
			if err != nil {
				http.Error(w, fmt.Sprintf("Invalid token: %v", err), http.StatusUnauthorized)
				return
			}

			if !token.Valid {
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				http.Error(w, "Invalid token claims", http.StatusUnauthorized)
				return
			}

			if audience != "" {
				if aud, ok := claims["aud"].(string); !ok || aud != audience {
					http.Error(w, "Invalid audience", http.StatusUnauthorized)
					return
				}
			}
			if issuer != "" {
				if iss, ok := claims["iss"].(string); !ok || iss != issuer {
					http.Error(w, "Invalid issuer", http.StatusUnauthorized)
					return
				}
			}

			subject, ok := claims["sub"].(string)
			if !ok {
				http.Error(w, "User ID not found in token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), AuthSubjectContextKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// InternalAuthMiddleware validates the shared API key for server-to-server
// calls. An empty configured key disables the check.
func InternalAuthMiddleware(requiredKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if requiredKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			provided := r.Header.Get("X-Internal-API-Key")
			if provided == "" || provided != requiredKey {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// getPublicKeyFromJWKS fetches the JWKS and returns the public key matching kid.
func getPublicKeyFromJWKS(jwksURL, kid string) (interface{}, error) {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(jwksURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var jwks struct {
		Keys []struct {
			Kid string `json:"kid"`
			Kty string `json:"kty"`
			Use string `json:"use"`
			N   string `json:"n"`
			E   string `json:"e"`
		} `json:"keys"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return nil, err
	}

	for _, key := range jwks.Keys {
		if key.Kid == kid {
			return parseRSAPublicKey(key.N, key.E)
		}
	}

	return nil, fmt.Errorf("key with kid %s not found", kid)
}

// parseRSAPublicKey parses RSA public key from modulus and exponent
func parseRSAPublicKey(n, e string) (interface{}, error) {
	nb, err := base64.RawURLEncoding.DecodeString(n)
	if err != nil {
		return nil, fmt.Errorf("failed to decode modulus: %w", err)
	}
	eb, err := base64.RawURLEncoding.DecodeString(e)
	if err != nil {
		return nil, fmt.Errorf("failed to decode exponent: %w", err)
	}

	var exp uint64
	if len(eb) == 3 {
		exp = uint64(eb[0])<<16 | uint64(eb[1])<<8 | uint64(eb[2])
	} else {
		for _, b := range eb {
			exp = (exp << 8) | uint64(b)
		}
	}

	nInt := new(big.Int).SetBytes(nb)
	pub := &rsa.PublicKey{N: nInt, E: int(exp)}
	return pub, nil
}

// GetAuthSubject retrieves the authenticated subject from the request context.
func GetAuthSubject(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(AuthSubjectContextKey).(string)
	return subject, ok
}
