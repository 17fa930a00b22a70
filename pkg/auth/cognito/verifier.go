package cognito

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"medichat-be/internal/pkg/apperror"

	"github.com/golang-jwt/jwt/v5"
	gocache "github.com/patrickmn/go-cache"
)

// Identity is the verified caller extracted from a bearer token. Subject
// is the provider's stable user id; Email may be empty if the pool omits
// the claim.
type Identity struct {
	Subject string
	Email   string
}

type claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// Verifier validates Cognito-issued RS256 tokens against the pool's
// published signing-key set. Keys are cached by kid; the cache is
// populated lazily and re-fetched on an unknown kid, rate-limited so a
// flood of bad tokens cannot hammer the endpoint.
type Verifier struct {
	issuer   string
	audience string
	jwksURL  string

	client *http.Client
	keys   *gocache.Cache

	mu          sync.Mutex
	lastRefresh time.Time
	minRefresh  time.Duration
}

// NewVerifier derives the issuer and JWKS URLs from the pool's region and
// id, the way Cognito publishes them.
func NewVerifier(region, userPoolId, clientId string, minRefresh time.Duration) *Verifier {
	issuer := fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", region, userPoolId)
	return &Verifier{
		issuer:   issuer,
		audience: clientId,
		jwksURL:  issuer + "/.well-known/jwks.json",
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		keys:       gocache.New(24*time.Hour, time.Hour),
		minRefresh: minRefresh,
	}
}

// WithEndpoints overrides the derived issuer and JWKS URLs. Used by tests
// and non-AWS deployments fronted by a compatible identity provider.
func (v *Verifier) WithEndpoints(issuer, jwksURL string) *Verifier {
	v.issuer = issuer
	v.jwksURL = jwksURL
	return v
}

// Verify checks the token's signature and standard claims and returns the
// caller identity. Pure function of (token, cached keys, configuration)
// apart from the key-cache population.
func (v *Verifier) Verify(ctx context.Context, tokenStr string) (*Identity, error) {
	kid, err := v.unverifiedKid(tokenStr)
	if err != nil {
		return nil, apperror.InvalidClaims("malformed token", err)
	}

	key, err := v.signingKey(ctx, kid)
	if err != nil {
		return nil, err
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithAudience(v.audience),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
	)

	var c claims
	_, err = parser.ParseWithClaims(tokenStr, &c, func(t *jwt.Token) (interface{}, error) {
		return key, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, apperror.InvalidSignature(err)
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, apperror.InvalidClaims("expired", err)
		case errors.Is(err, jwt.ErrTokenInvalidAudience):
			return nil, apperror.InvalidClaims("wrong audience", err)
		case errors.Is(err, jwt.ErrTokenInvalidIssuer):
			return nil, apperror.InvalidClaims("wrong issuer", err)
		default:
			return nil, apperror.InvalidClaims("token rejected", err)
		}
	}

	return &Identity{
		Subject: c.Subject,
		Email:   c.Email,
	}, nil
}

// unverifiedKid reads the token header without checking the signature;
// the kid selects which cached key to verify against.
func (v *Verifier) unverifiedKid(tokenStr string) (string, error) {
	token, _, err := jwt.NewParser().ParseUnverified(tokenStr, jwt.MapClaims{})
	if err != nil {
		return "", err
	}
	kid, ok := token.Header["kid"].(string)
	if !ok || kid == "" {
		return "", fmt.Errorf("token header has no kid")
	}
	return kid, nil
}

func (v *Verifier) signingKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if key, found := v.keys.Get(kid); found {
		return key.(*rsa.PublicKey), nil
	}

	// Unknown kid: the pool may have rotated its keys. Re-fetch, bounded
	// by minRefresh.
	if _, err := v.refresh(ctx); err != nil {
		return nil, apperror.UpstreamUnavailable("identity provider key endpoint unreachable", err)
	}

	if key, found := v.keys.Get(kid); found {
		return key.(*rsa.PublicKey), nil
	}

	return nil, apperror.UnknownSigningKey(kid)
}

// refresh re-fetches the JWKS unless a refresh ran within minRefresh.
// Returns false when skipped due to the rate bound.
func (v *Verifier) refresh(ctx context.Context) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.lastRefresh.IsZero() && time.Since(v.lastRefresh) < v.minRefresh {
		return false, nil
	}

	doc, err := fetchJWKS(ctx, v.client, v.jwksURL)
	if err != nil {
		return false, err
	}
	v.lastRefresh = time.Now()

	for _, k := range doc.Keys {
		pub, err := k.toPublicKey()
		if err != nil {
			continue
		}
		v.keys.Set(k.Kid, pub, gocache.DefaultExpiration)
	}

	return true, nil
}
