package utils

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword("pw1", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEqual(t, "pw1", hash)
	assert.True(t, VerifyPassword(hash, "pw1"))
	assert.False(t, VerifyPassword(hash, "PW1"))
	assert.False(t, VerifyPassword(hash, "wrong"))
}

func TestHashPassword_OutOfRangeCostUsesDefault(t *testing.T) {
	hash, err := HashPassword("pw", 1)
	require.NoError(t, err)
	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, cost)
}

func TestAccessToken_RoundTrip(t *testing.T) {
	tok, err := NewAccessToken("secret", "u1", "ADMIN", 5)
	require.NoError(t, err)

	claims, err := ParseAccessToken("secret", tok.Token)
	require.NoError(t, err)
	assert.Equal(t, Claims{MemberID: "u1", Role: "ADMIN"}, claims)
}

func TestParseAccessToken_Rejects(t *testing.T) {
	good, err := NewAccessToken("secret", "u1", "MEMBER", 5)
	require.NoError(t, err)
	expired, err := NewAccessToken("secret", "u1", "MEMBER", -5)
	require.NoError(t, err)
	noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": good.Exp.Unix()}).SignedString([]byte("secret"))
	require.NoError(t, err)

	cases := map[string]struct{ secret, raw string }{
		"wrong secret": {"other", good.Token},
		"expired":      {"secret", expired.Token},
		"garbage":      {"secret", "not-a-jwt"},
		"no subject":   {"secret", noSub},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseAccessToken(tc.secret, tc.raw)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "Ramen", CleanText("  <b>Ramen</b> "))
	assert.Equal(t, "", CleanText("<script>alert(1)</script>"))
	assert.Equal(t, "김치볶음밥", CleanText("김치볶음밥"))
	assert.Equal(t, "Fish & Chips", CleanText("Fish & Chips"))
	assert.Equal(t, "O'Brien", CleanText("O'Brien"))
	assert.Equal(t, `Say "hi"`, CleanText(`<i>Say "hi"</i>`))
}

func TestCleanImageURL(t *testing.T) {
	got, err := CleanImageURL(" https://cdn.example/img.png?w=200&h=200 ")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/img.png?w=200&h=200", got)

	got, err = CleanImageURL("")
	require.NoError(t, err)
	assert.Empty(t, got)

	for _, in := range []string{"javascript:alert(1)", "/img/a.png", "ftp://cdn.example/a.png", "https://", "http://%zz"} {
		_, err := CleanImageURL(in)
		assert.ErrorIs(t, err, ErrInvalidImageURL, in)
	}
}
