package services

import (
	"errors"
	"fmt"
	"time"

	"sketchroom/internal/core/domain"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrUnauthorized = errors.New("unauthorized")
)

// AuthService issues room scoped tokens: owner tokens guard the room admin
// API, guest tokens are the invites required to join a private room.
type AuthService interface {
	GenerateToken(roomID domain.RoomID, role domain.RoomRole) (string, error)
	ValidateToken(tokenString string) (*Claims, error)
	CheckRoomPermission(claims *Claims, roomID domain.RoomID, requiredRole domain.RoomRole) error
	IssueInvite(roomID domain.RoomID) (string, error)
	VerifyInvite(tokenString string, roomID domain.RoomID) error
}

type Claims struct {
	RoomID domain.RoomID   `json:"room_id"`
	Role   domain.RoomRole `json:"role"`
	jwt.RegisteredClaims
}

type authService struct {
	jwtSecret []byte
	ownerTTL  time.Duration
	inviteTTL time.Duration
	issuer    string
}

func NewAuthService(jwtSecret string, ownerTTL, inviteTTL time.Duration) AuthService {
	return &authService{
		jwtSecret: []byte(jwtSecret),
		ownerTTL:  ownerTTL,
		inviteTTL: inviteTTL,
		issuer:    "sketchroom",
	}
}

func (s *authService) GenerateToken(roomID domain.RoomID, role domain.RoomRole) (string, error) {
	ttl := s.inviteTTL
	if role == domain.RoleOwner {
		ttl = s.ownerTTL
	}

	now := time.Now()
	claims := &Claims{
		RoomID: roomID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   string(roomID),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (s *authService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.jwtSecret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, ErrInvalidToken
}

func (s *authService) CheckRoomPermission(claims *Claims, roomID domain.RoomID, requiredRole domain.RoomRole) error {
	if claims == nil || claims.RoomID != roomID {
		return ErrUnauthorized
	}
	if roleLevel(claims.Role) < roleLevel(requiredRole) {
		return ErrUnauthorized
	}
	return nil
}

func roleLevel(role domain.RoomRole) int {
	switch role {
	case domain.RoleOwner:
		return 2
	case domain.RoleGuest:
		return 1
	}
	return 0
}

func (s *authService) IssueInvite(roomID domain.RoomID) (string, error) {
	return s.GenerateToken(roomID, domain.RoleGuest)
}

// VerifyInvite accepts guest and owner tokens scoped to roomID.
func (s *authService) VerifyInvite(tokenString string, roomID domain.RoomID) error {
	if tokenString == "" {
		return domain.ErrInvalidInvite
	}
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInvite, err)
	}
	if err := s.CheckRoomPermission(claims, roomID, domain.RoleGuest); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInvite, err)
	}
	return nil
}
