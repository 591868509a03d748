package connect

import (
	"context"
	"crypto/subtle"
	"net/http"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
)

const (
	// AdminTokenHeader is the header name for admin authentication token.
	AdminTokenHeader = "X-Admin-Token"
)

var errBadToken = errors.New("missing or invalid admin token")

// AuthInterceptor validates the admin token on unary and streaming calls.
type AuthInterceptor struct {
	token string
}

// NewAdminAuthInterceptor creates an interceptor accepting only requests that carry token.
func NewAdminAuthInterceptor(token string) *AuthInterceptor {
	return &AuthInterceptor{token: token}
}

var _ connect.Interceptor = (*AuthInterceptor)(nil)

func (i *AuthInterceptor) check(h http.Header) error {
	got := h.Get(AdminTokenHeader)
	if got == "" || i.token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(i.token)) != 1 {
		return connect.NewError(connect.CodeUnauthenticated, errBadToken)
	}
	return nil
}

// WrapUnary checks the token before running a unary handler.
func (i *AuthInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if err := i.check(req.Header()); err != nil {
			return nil, err
		}
		return next(ctx, req)
	}
}

// WrapStreamingClient leaves client streams untouched.
func (i *AuthInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

// WrapStreamingHandler checks the token before running a streaming handler.
func (i *AuthInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		if err := i.check(conn.RequestHeader()); err != nil {
			return err
		}
		return next(ctx, conn)
	}
}
