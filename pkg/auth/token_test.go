package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/slotbook-backend/pkg/config"
	"github.com/angelmondragon/slotbook-backend/pkg/enums"
)

func testTokens() *Tokens {
	return NewTokens(config.JWTConfig{
		Secret:            "secret",
		Issuer:            "slotbook",
		ExpirationMinutes: 30,
		Leeway:            time.Second,
	})
}

func TestIssueAndVerify(t *testing.T) {
	tokens := testTokens()

	raw, err := tokens.Issue("ops@bakery", enums.StaffRoleAdmin)
	require.NoError(t, err)

	claims, err := tokens.Verify(raw)
	require.NoError(t, err)
	require.Equal(t, "ops@bakery", claims.Subject)
	require.Equal(t, enums.StaffRoleAdmin, claims.Role)
	require.Equal(t, "slotbook", claims.Issuer)
	require.NotEmpty(t, claims.ID)
}

func TestIssueValidatesInput(t *testing.T) {
	tokens := testTokens()

	_, err := tokens.Issue("x", "shopper")
	require.ErrorIs(t, err, ErrInvalidRole)

	_, err = tokens.Issue(" ", enums.StaffRolePayments)
	require.Error(t, err)

	_, err = NewTokens(config.JWTConfig{Issuer: "slotbook", ExpirationMinutes: 1}).Issue("x", enums.StaffRolePayments)
	require.ErrorIs(t, err, ErrMissingSecret)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	issuedAt := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	tokens := testTokens().WithClock(func() time.Time { return issuedAt })
	raw, err := tokens.Issue("x", enums.StaffRoleAdmin)
	require.NoError(t, err)

	later := tokens.WithClock(func() time.Time { return issuedAt.Add(31 * time.Minute) })
	_, err = later.Verify(raw)
	require.True(t, errors.Is(err, jwt.ErrTokenExpired), "got %v", err)

	withinLeeway := tokens.WithClock(func() time.Time { return issuedAt.Add(30*time.Minute + 500*time.Millisecond) })
	_, err = withinLeeway.Verify(raw)
	require.NoError(t, err)
}

func TestVerifyRejectsForeignIssuer(t *testing.T) {
	foreign := NewTokens(config.JWTConfig{Secret: "secret", Issuer: "someone-else", ExpirationMinutes: 30})
	raw, err := foreign.Issue("x", enums.StaffRoleAdmin)
	require.NoError(t, err)

	_, err = testTokens().Verify(raw)
	require.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)
}

func TestVerifyRejectsUnsignedToken(t *testing.T) {
	claims := Claims{
		Role: enums.StaffRoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "slotbook",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = testTokens().Verify(signed)
	require.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
}

func TestBearerToken(t *testing.T) {
	cases := map[string]struct {
		header string
		token  string
		ok     bool
	}{
		"bearer":       {"Bearer abc.def", "abc.def", true},
		"lowercase":    {"bearer  abc ", "abc", true},
		"missing":      {"", "", false},
		"other scheme": {"Basic abc", "", false},
		"no token":     {"Bearer ", "", false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			token, ok := BearerToken(tc.header)
			require.Equal(t, tc.ok, ok)
			require.Equal(t, tc.token, token)
		})
	}
}
