package transport

import (
	"context"

	"golang.org/x/oauth2"
)

// Credentials supplies the bearer token for a request. An empty token
// sends no Authorization header.
type Credentials interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed bearer token.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) { return string(t), nil }

// NoCredentials sends anonymous requests.
type NoCredentials struct{}

func (NoCredentials) Token(context.Context) (string, error) { return "", nil }

// TokenSource adapts an oauth2.TokenSource. Tokens are cached until expiry.
type TokenSource struct{ src oauth2.TokenSource }

func NewTokenSource(src oauth2.TokenSource) TokenSource {
	return TokenSource{src: oauth2.ReuseTokenSource(nil, src)}
}

func (t TokenSource) Token(context.Context) (string, error) {
	tok, err := t.src.Token()
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}
