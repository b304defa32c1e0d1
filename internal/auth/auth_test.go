package auth

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"sufragio.org/internal/ledger"
)

func withSecret(t *testing.T, value string) {
	t.Helper()
	ResetSecretForTests()
	t.Setenv(secretEnvVariable, value)
	t.Cleanup(ResetSecretForTests)
}

func TestGenerateAndValidate(t *testing.T) {
	withSecret(t, "unit-test-secret")

	account := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	token, err := GenerateToken(account, 30*time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := ParseAndValidate(token)
	if err != nil {
		t.Fatalf("ParseAndValidate: %v", err)
	}
	if claims.Issuer != issuer {
		t.Fatalf("unexpected issuer: %s", claims.Issuer)
	}
	got, err := claims.Account()
	if err != nil {
		t.Fatalf("Account: %v", err)
	}
	if got != account {
		t.Fatalf("subject round-trip: got %s, want %s", got.Hex(), account.Hex())
	}
	if claims.ID == "" {
		t.Fatalf("expected a token id")
	}
}

func TestGenerateTokenRejectsBadInput(t *testing.T) {
	withSecret(t, "unit-test-secret")

	if _, err := GenerateToken(common.Address{1}, 0); err == nil {
		t.Fatalf("expected error for non-positive ttl")
	}
}

func TestParseRejectsTamperedToken(t *testing.T) {
	withSecret(t, "unit-test-secret")

	token, err := GenerateToken(common.Address{1}, time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	if _, err := ParseAndValidate(token + "x"); err == nil {
		t.Fatalf("expected tampered token to fail")
	}
	if _, err := ParseAndValidate(""); err == nil {
		t.Fatalf("expected empty token to fail")
	}

	// A token signed under one secret must not verify under another.
	withSecret(t, "different-secret")
	if _, err := ParseAndValidate(token); err == nil {
		t.Fatalf("expected cross-secret token to fail")
	}
}

func TestMissingSecret(t *testing.T) {
	withSecret(t, "")

	if _, err := GenerateToken(common.Address{1}, time.Minute); err == nil {
		t.Fatalf("expected missing-secret error")
	}
}

func TestContextHelpers(t *testing.T) {
	account := common.HexToAddress("0x0000000000000000000000000000000000000007")

	ctx := context.Background()
	if _, ok := AccountFromContext(ctx); ok {
		t.Fatalf("empty context should carry no account")
	}

	ctx = ContextWithAccount(ctx, ledger.AccountID(account))
	got, ok := AccountFromContext(ctx)
	if !ok || got != account {
		t.Fatalf("account round-trip: got %s, ok=%v", got.Hex(), ok)
	}

	ctx = ContextWithToken(ctx, "bearer-value")
	tok, ok := TokenFromContext(ctx)
	if !ok || tok != "bearer-value" {
		t.Fatalf("token round-trip: got %q, ok=%v", tok, ok)
	}
}
