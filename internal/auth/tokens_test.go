package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"nanochat/internal/identity"
)

var (
	testAccessSecret  = []byte("access-secret-0123456789abcdef-0")
	testRefreshSecret = []byte("refresh-secret-0123456789abcdef0")
)

func mustTokenManager(t *testing.T) *TokenManager {
	t.Helper()
	tm, err := NewTokenManager(testAccessSecret, testRefreshSecret, 15*time.Minute, 30*24*time.Hour)
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}
	return tm
}

func testUser() identity.AuthenticatedUser {
	return identity.AuthenticatedUser{
		ID:        uuid.MustParse("5f2b8dfc-9d33-4b6f-9a44-28c41e2b6f10"),
		Username:  "navid",
		KDFSalt:   "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff",
		CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestNewTokenManager_RejectsBadConfig(t *testing.T) {
	t.Parallel()

	if _, err := NewTokenManager(nil, testRefreshSecret, time.Minute, time.Hour); err == nil {
		t.Fatalf("empty access secret accepted")
	}
	if _, err := NewTokenManager(testAccessSecret, testAccessSecret, time.Minute, time.Hour); err == nil {
		t.Fatalf("identical secrets accepted")
	}
	if _, err := NewTokenManager(testAccessSecret, testRefreshSecret, 0, time.Hour); err == nil {
		t.Fatalf("zero TTL accepted")
	}
}

func TestTokenManager_RoundTrip(t *testing.T) {
	t.Parallel()

	tm := mustTokenManager(t)
	user := testUser()
	now := time.Now().UTC()

	access, err := tm.IssueAccess(user, now)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	got, err := tm.VerifyAccess(access)
	if err != nil {
		t.Fatalf("VerifyAccess: %v", err)
	}
	if got.ID != user.ID || got.Username != user.Username || got.KDFSalt != user.KDFSalt {
		t.Fatalf("VerifyAccess returned %+v, want %+v", got, user)
	}

	refresh, err := tm.IssueRefresh(user, now)
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	got, err = tm.VerifyRefresh(refresh)
	if err != nil {
		t.Fatalf("VerifyRefresh: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("VerifyRefresh returned user %s, want %s", got.ID, user.ID)
	}
}

func TestTokenManager_EveryMintIsUnique(t *testing.T) {
	t.Parallel()

	tm := mustTokenManager(t)
	user := testUser()
	now := time.Now().UTC()

	// Same user, same instant: the tokens must still differ, or rotation
	// would replace a token with itself and concurrent sign-ins would
	// collide in the session registry.
	a, err := tm.IssueRefresh(user, now)
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	b, err := tm.IssueRefresh(user, now)
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	if a == b {
		t.Fatalf("two refresh tokens minted at the same instant are identical")
	}

	a, err = tm.IssueAccess(user, now)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	b, err = tm.IssueAccess(user, now)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if a == b {
		t.Fatalf("two access tokens minted at the same instant are identical")
	}
}

func TestTokenManager_KeysAreNotInterchangeable(t *testing.T) {
	t.Parallel()

	tm := mustTokenManager(t)
	now := time.Now().UTC()

	access, err := tm.IssueAccess(testUser(), now)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := tm.VerifyRefresh(access); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("access token verified as refresh: err = %v", err)
	}

	refresh, err := tm.IssueRefresh(testUser(), now)
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	if _, err := tm.VerifyAccess(refresh); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("refresh token verified as access: err = %v", err)
	}
}

func TestTokenManager_Expiry(t *testing.T) {
	t.Parallel()

	tm := mustTokenManager(t)

	// Issued far enough in the past that the 15 minute TTL has elapsed.
	access, err := tm.IssueAccess(testUser(), time.Now().UTC().Add(-2*time.Hour))
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := tm.VerifyAccess(access); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expired token: err = %v, want ErrTokenExpired", err)
	}
}

func TestTokenManager_RejectsTamperedToken(t *testing.T) {
	t.Parallel()

	tm := mustTokenManager(t)

	access, err := tm.IssueAccess(testUser(), time.Now().UTC())
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	tampered := access[:len(access)-2] + "xx"
	if _, err := tm.VerifyAccess(tampered); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("tampered token: err = %v, want ErrTokenInvalid", err)
	}

	if _, err := tm.VerifyAccess("not.a.jwt"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("garbage token: err = %v, want ErrTokenInvalid", err)
	}
}

func TestTokenManager_RejectsForeignAlgorithms(t *testing.T) {
	t.Parallel()

	tm := mustTokenManager(t)

	claims := Claims{
		User: testUser(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwt.NewNumericDate(time.Now().UTC().Add(time.Hour)),
		},
	}

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign with none: %v", err)
	}
	if _, err := tm.VerifyAccess(unsigned); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("alg=none token: err = %v, want ErrTokenInvalid", err)
	}

	// A sibling HMAC variant under the correct key is still not HS256.
	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(testAccessSecret)
	if err != nil {
		t.Fatalf("sign with HS512: %v", err)
	}
	if _, err := tm.VerifyAccess(hs512); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("HS512 token: err = %v, want ErrTokenInvalid", err)
	}
}
