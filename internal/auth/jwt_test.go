package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenManager_UsesConfiguredTTL(t *testing.T) {
	ttl := 2 * time.Hour
	tm := NewTokenManager("test-secret", ttl)

	userID := uuid.New()
	start := time.Now()

	token, err := tm.GenerateToken(userID, RoleManager, nil)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := tm.ValidateToken(token)
	require.NoError(t, err)
	require.NotNil(t, claims.ExpiresAt)

	expectedExpiry := start.Add(ttl)
	assert.WithinDuration(t, expectedExpiry, claims.ExpiresAt.Time, 2*time.Second)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, RoleManager, claims.Role)
}

func TestTokenManager_RejectsForeignTokens(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)

	t.Run("wrong secret", func(t *testing.T) {
		token, err := NewTokenManager("other-secret", time.Hour).GenerateToken(uuid.New(), RoleAdmin, nil)
		require.NoError(t, err)
		_, err = tm.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		claims := &Claims{
			UserID: uuid.New(),
			Role:   RoleAdmin,
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
		require.NoError(t, err)
		_, err = tm.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("unknown role", func(t *testing.T) {
		token, err := tm.GenerateToken(uuid.New(), Role("agent"), nil)
		require.NoError(t, err)
		_, err = tm.ValidateToken(token)
		assert.Error(t, err)
	})
}

func TestClaims_Scope(t *testing.T) {
	lead := uuid.New()
	user := uuid.New()

	manager := &Claims{UserID: user, Role: RoleManager}
	assert.Nil(t, manager.TeamScope())
	assert.True(t, manager.CanManageLive())

	scoped := &Claims{UserID: user, Role: RoleTeamLead, TeamLeadID: &lead}
	require.NotNil(t, scoped.TeamScope())
	assert.Equal(t, lead, *scoped.TeamScope())
	assert.False(t, scoped.CanManageLive())

	self := &Claims{UserID: user, Role: RoleTeamLead}
	assert.Equal(t, user, *self.TeamScope())
}
