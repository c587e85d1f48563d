package jwtx

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Signer is our interface for anything that can sign access tokens.
type Signer interface {
	Alg() string
	Sign(Claims) (string, error)
	Validate() error
}

// NewSignerHS256 creates an HS256 signer from raw key bytes.
func NewSignerHS256(key []byte) (Signer, error) {
	s := &hs256Signer{key: key}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

type hs256Signer struct {
	key []byte
}

func (s *hs256Signer) Alg() string { return "HS256" }

func (s *hs256Signer) Sign(c Claims) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)

	signed, err := tok.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("jwtx: failed to sign token: %w", err)
	}
	return signed, nil
}

func (s *hs256Signer) Validate() error {
	if len(s.key) == 0 {
		return errors.New("jwtx: signing key is empty")
	}
	return nil
}
