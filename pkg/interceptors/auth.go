package interceptors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/common"
)

type deviceIDKey struct{}


// NewAuthMiddleware requires an HS256 bearer token signed with secret on every path
// except publicPaths. The token subject is the device id.
func NewAuthMiddleware(secret []byte, publicPaths ...string) Middleware {
	public := make(map[string]struct{}, len(publicPaths))
	for _, p := range publicPaths {
		public[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := public[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			deviceID, err := authenticate(r.Header.Get("Authorization"), secret)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="capture"`)
				http.Error(w, common.ErrUnauthenticated.Error(), http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), deviceIDKey{}, deviceID)))
		})
	}
}

// authenticate returns the device id. Every error wraps common.ErrUnauthenticated.
func authenticate(header string, secret []byte) (string, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("%w: missing bearer token", common.ErrUnauthenticated)
	}
	if len(secret) == 0 {
		return "", fmt.Errorf("%w: secret not configured", common.ErrUnauthenticated)
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(strings.TrimSpace(raw), claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrUnauthenticated, err)
	}
	if !token.Valid || claims.Subject == "" {
		return "", fmt.Errorf("%w: token has no subject", common.ErrUnauthenticated)
	}
	return claims.Subject, nil
}

// IssueDeviceToken signs a token for deviceID valid for ttl.
func IssueDeviceToken(secret []byte, deviceID string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("secret is required")
	}
	if deviceID == "" {
		return "", errors.New("device id is required")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   deviceID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// GetDeviceIDFromContext returns the authenticated device id.
func GetDeviceIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(deviceIDKey{}).(string)
	return id, ok
}
