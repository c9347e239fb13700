package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Role is the caller's role as issued by the identity provider.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleTeamLead Role = "team_lead"
)

// Claims defines the structured data we store in the JWT
type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	Role   Role      `json:"role"`
	// TeamLeadID is set for team lead callers and confines them to their team.
	TeamLeadID *uuid.UUID `json:"team_lead_id,omitempty"`
	jwt.RegisteredClaims
}

// CanManageLive reports whether the caller may move or refresh the live window.
func (c *Claims) CanManageLive() bool {
	return c.Role == RoleAdmin || c.Role == RoleManager
}

// TeamScope returns the only team the caller may read, or nil for all teams.
func (c *Claims) TeamScope() *uuid.UUID {
	if c.Role == RoleTeamLead {
		if c.TeamLeadID != nil {
			return c.TeamLeadID
		}
		// A team lead token without a team sees its own id as the team.
		return &c.UserID
	}
	return nil
}

type TokenManager struct {
	secretKey []byte
	ttl       time.Duration
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenManager{secretKey: []byte(secret), ttl: ttl}
}

// GenerateToken creates a new JWT access token
func (tm *TokenManager) GenerateToken(userID uuid.UUID, role Role, teamLeadID *uuid.UUID) (string, error) {
	expirationTime := time.Now().Add(tm.ttl)
	claims := &Claims{
		UserID:     userID,
		Role:       role,
		TeamLeadID: teamLeadID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   userID.String(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tm.secretKey)
}

// ValidateToken parses and validates the token string
func (tm *TokenManager) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secretKey, nil
	})

	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	switch claims.Role {
	case RoleAdmin, RoleManager, RoleTeamLead:
	default:
		return nil, errors.New("unknown role")
	}

	return claims, nil
}
