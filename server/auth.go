package server

import (
	"bytes"
	"crypto/sha256"
	"sync"

	"github.com/valyala/fasthttp"
	"golang.org/x/crypto/bcrypt"

	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/types"
)

const apiKeyHeader = "X-API-Key"

var bearerPrefix = []byte("Bearer ")

// TokenAuth checks the admin API key against a bcrypt hash. A verified key
// is remembered by digest so repeat requests skip the bcrypt cost.
type TokenAuth struct {
	hash     []byte
	enabled  bool
	mu       sync.RWMutex
	verified map[[sha256.Size]byte]struct{}
}

func NewTokenAuth(config *types.AuthConfig) (*TokenAuth, error) {
	auth := &TokenAuth{verified: make(map[[sha256.Size]byte]struct{})}
	if config == nil || !config.Enabled {
		return auth, nil
	}

	if _, err := bcrypt.Cost([]byte(config.TokenHash)); err != nil {
		return nil, types.Errorf(types.ErrConfigValidateFailed, "server.auth.token_hash: %v", err)
	}

	auth.enabled = true
	auth.hash = []byte(config.TokenHash)
	return auth, nil
}

func (a *TokenAuth) Enabled() bool {
	return a.enabled
}

func (a *TokenAuth) Allow(ctx *fasthttp.RequestCtx) bool {
	if !a.enabled {
		return true
	}

	token := ctx.Request.Header.Peek(apiKeyHeader)
	if len(token) == 0 {
		if authorization := ctx.Request.Header.Peek(fasthttp.HeaderAuthorization); bytes.HasPrefix(authorization, bearerPrefix) {
			token = authorization[len(bearerPrefix):]
		}
	}
	if len(token) == 0 {
		return false
	}

	return a.Verify(token)
}

func (a *TokenAuth) Verify(token []byte) bool {
	digest := sha256.Sum256(token)

	a.mu.RLock()
	_, ok := a.verified[digest]
	a.mu.RUnlock()
	if ok {
		return true
	}

	if bcrypt.CompareHashAndPassword(a.hash, token) != nil {
		return false
	}

	a.mu.Lock()
	a.verified[digest] = struct{}{}
	a.mu.Unlock()
	return true
}

// HashToken produces the value expected in server.auth.token_hash.
func HashToken(token string) (string, error) {
	if token == "" {
		return "", types.Errorf(types.ErrInvalidParameter, "token is empty")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", types.WrapError(err, "failed to hash token")
	}
	return string(hash), nil
}
