package app

import (
	"fmt"
	"time"

	"github.com/form3tech-oss/jwt-go"
)

const resumeTokenIssuer = "mesa"

// ResumeClaims bind a user to the room they may reconnect to.
type ResumeClaims struct {
	RoomID string `json:"rid"`
	jwt.StandardClaims
}

// ResumeTokens issues and verifies HS256 reconnection tokens.
type ResumeTokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewResumeTokens(secret string, ttl time.Duration) *ResumeTokens {
	return &ResumeTokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for userID in roomID.
func (s *ResumeTokens) Issue(userID, roomID string) (string, error) {
	if s == nil || len(s.secret) == 0 {
		return "", fmt.Errorf("resume tokens are not configured")
	}
	if userID == "" || roomID == "" {
		return "", fmt.Errorf("user and room are required")
	}
	now := s.now()
	claims := ResumeClaims{
		RoomID: roomID,
		StandardClaims: jwt.StandardClaims{
			Issuer:    resumeTokenIssuer,
			Subject:   userID,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(s.ttl).Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify checks the signature and expiry and returns the claims.
func (s *ResumeTokens) Verify(raw string) (*ResumeClaims, error) {
	if s == nil || len(s.secret) == 0 {
		return nil, fmt.Errorf("resume tokens are not configured")
	}
	claims := &ResumeClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid resume token: %w", err)
	}
	if !token.Valid || claims.Issuer != resumeTokenIssuer || claims.RoomID == "" {
		return nil, fmt.Errorf("invalid resume token")
	}
	return claims, nil
}
