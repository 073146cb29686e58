package rooms

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTTL is how long a minted access token stays valid.
const TokenTTL = 24 * time.Hour

// Grant describes what a token's holder may do inside a room.
type Grant struct {
	Room         string `json:"room,omitempty"`
	RoomJoin     bool   `json:"room_join,omitempty"`
	RoomAdmin    bool   `json:"room_admin,omitempty"`
	CanPublish   bool   `json:"can_publish,omitempty"`
	CanSubscribe bool   `json:"can_subscribe,omitempty"`
}

// tokenClaims is the JWT payload understood by the provider.
type tokenClaims struct {
	jwt.RegisteredClaims
	Grant    Grant  `json:"grant"`
	Metadata string `json:"metadata,omitempty"`
}

// TokenIssuer mints and validates HMAC-SHA256 access tokens for the
// provider. Validity of a token presented to the provider is ultimately
// the provider's call; Validate only checks signature and expiry.
type TokenIssuer struct {
	apiKey    string
	apiSecret string
}

func NewTokenIssuer(apiKey, apiSecret string) *TokenIssuer {
	return &TokenIssuer{apiKey: apiKey, apiSecret: apiSecret}
}

// Mint issues a join token scoped to (room, identity) with publish and
// subscribe capability, expiring after TokenTTL.
func (i *TokenIssuer) Mint(room, identity string, metadata map[string]any) (string, time.Time, error) {
	return i.mint(identity, Grant{
		Room:         room,
		RoomJoin:     true,
		CanPublish:   true,
		CanSubscribe: true,
	}, metadata)
}

// MintAdmin issues a token for management RPCs.
func (i *TokenIssuer) MintAdmin() (string, error) {
	tok, _, err := i.mint("", Grant{RoomAdmin: true}, nil)
	return tok, err
}

func (i *TokenIssuer) mint(identity string, grant Grant, metadata map[string]any) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(TokenTTL)
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.apiKey,
			Subject:   identity,
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Grant: grant,
	}
	if len(metadata) > 0 {
		b, err := json.Marshal(metadata)
		if err != nil {
			return "", time.Time{}, fmt.Errorf("marshal token metadata: %w", err)
		}
		claims.Metadata = string(b)
	}

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(i.apiSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return tok, expiresAt, nil
}

// Validate reports whether the token was signed with our secret and has
// not expired.
func (i *TokenIssuer) Validate(token string) bool {
	parsed, err := jwt.ParseWithClaims(token, &tokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(i.apiSecret), nil
	})
	return err == nil && parsed.Valid
}

// ParseIdentity extracts the participant identity from a valid token.
func (i *TokenIssuer) ParseIdentity(token string) (string, error) {
	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(i.apiSecret), nil
	})
	if err != nil {
		return "", err
	}
	if !parsed.Valid {
		return "", fmt.Errorf("invalid token")
	}
	return claims.Subject, nil
}
