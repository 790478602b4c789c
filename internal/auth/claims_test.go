package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-key-for-jwt-signing"

func TestGenerateAndParseToken(t *testing.T) {
	token, err := GenerateToken("sensor-gateway", RoleWriter, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	if token == "" {
		t.Fatal("GenerateToken() returned empty token")
	}

	claims, err := ParseToken(token, testSecret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Subject != "sensor-gateway" {
		t.Errorf("Subject = %q, want %q", claims.Subject, "sensor-gateway")
	}
	if claims.Role != RoleWriter {
		t.Errorf("Role = %q, want %q", claims.Role, RoleWriter)
	}
	if claims.Issuer != "devicehub" {
		t.Errorf("Issuer = %q, want devicehub", claims.Issuer)
	}
	if claims.ID == "" {
		t.Error("JTI (ID) should not be empty")
	}
}

func TestGenerateToken_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		role    Role
		secret  string
		wantErr error
	}{
		{"empty secret", "svc", RoleReader, "", ErrNoSecret},
		{"empty subject", "", RoleReader, testSecret, ErrTokenInvalid},
		{"unknown role", "svc", Role("admin"), testSecret, ErrInvalidRole},
		{"empty role", "svc", Role(""), testSecret, ErrInvalidRole},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := GenerateToken(tt.subject, tt.role, tt.secret, time.Hour)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("GenerateToken() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestGenerateToken_DefaultTTL(t *testing.T) {
	token, err := GenerateToken("svc", RoleReader, testSecret, 0)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	claims, err := ParseToken(token, testSecret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}

	diff := claims.ExpiresAt.Time.Sub(time.Now().Add(24 * time.Hour))
	if diff < -time.Minute || diff > time.Minute {
		t.Errorf("default TTL should be ~24h, got expiry diff of %v", diff)
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	token, err := GenerateToken("svc", RoleReader, "correct-secret", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	_, err = ParseToken(token, "wrong-secret")
	if !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("ParseToken() error = %v, want ErrTokenInvalid", err)
	}
}

// sign builds a token with arbitrary claims and method for negative tests.
func sign(t *testing.T, method jwt.SigningMethod, claims CustomClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("signing: %v", err)
	}
	return s
}

func TestParseToken_Invalid(t *testing.T) {
	now := time.Now()
	valid := func() CustomClaims {
		return CustomClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "devicehub",
				Subject:   "svc",
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			},
			Role: RoleReader,
		}
	}

	expired := valid()
	expired.ExpiresAt = jwt.NewNumericDate(now.Add(-time.Minute))

	noExpiry := valid()
	noExpiry.ExpiresAt = nil

	wrongIssuer := valid()
	wrongIssuer.Issuer = "someone-else"

	noSubject := valid()
	noSubject.Subject = ""

	badRole := valid()
	badRole.Role = "owner"

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-valid-jwt"},
		{"two segments", "abc.def"},
		{"expired", sign(t, jwt.SigningMethodHS256, expired)},
		{"no expiry", sign(t, jwt.SigningMethodHS256, noExpiry)},
		{"wrong issuer", sign(t, jwt.SigningMethodHS256, wrongIssuer)},
		{"no subject", sign(t, jwt.SigningMethodHS256, noSubject)},
		{"unknown role", sign(t, jwt.SigningMethodHS256, badRole)},
		{"HS384", sign(t, jwt.SigningMethodHS384, valid())},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseToken(tt.token, testSecret)
			if !errors.Is(err, ErrTokenInvalid) {
				t.Errorf("ParseToken() error = %v, want ErrTokenInvalid", err)
			}
		})
	}

	if _, err := ParseToken(sign(t, jwt.SigningMethodHS256, valid()), testSecret); err != nil {
		t.Errorf("control token rejected: %v", err)
	}
}
