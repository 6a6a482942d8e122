package artifacts

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// URLSigner issues short-lived access tokens for stored artifacts. Token
// expiry is an access concept only; it never touches retention expiry.
type URLSigner struct {
	secret  []byte
	baseURL string
}

func NewURLSigner(secret []byte, baseURL string) (*URLSigner, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("signed url secret is required")
	}
	return &URLSigner{secret: secret, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

type urlClaims struct {
	Key  string `json:"key"`
	Hash string `json:"hash"`
	jwt.RegisteredClaims
}

// Sign returns a single-purpose URL granting access to one artifact until
// the computed expiry.
func (s *URLSigner) Sign(key, hash string, ttl time.Duration, now time.Time) (string, time.Time, error) {
	if ttl <= 0 {
		return "", time.Time{}, fmt.Errorf("signed url ttl must be positive")
	}
	expiresAt := now.UTC().Add(ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, urlClaims{
		Key:  key,
		Hash: hash,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now.UTC()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign url token: %w", err)
	}

	u := fmt.Sprintf("%s/artifacts/download?token=%s", s.baseURL, url.QueryEscape(signed))
	return u, expiresAt, nil
}

// Verify parses a token and returns the artifact key and hash it grants
// access to. Expired or tampered tokens fail.
func (s *URLSigner) Verify(tokenString string) (key, hash string, err error) {
	claims := &urlClaims{}
	_, err = jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return "", "", err
	}
	return claims.Key, claims.Hash, nil
}
