package auth

import (
	"net/http"
	"strconv"

	stratahttp "github.com/strata-go/framework/http"
)

const sessionUserIDKey = "auth.user_id"

// Login records the authenticated user id in the session.
func Login(ctx *stratahttp.Context, userID int) {
	s := ctx.Session()
	if s == nil {
		panic(stratahttp.HTTPError{Status: http.StatusInternalServerError, Message: "Session is not enabled"})
	}
	s.Put(sessionUserIDKey, userID)
}

// Logout clears the authenticated user id from the session.
func Logout(ctx *stratahttp.Context) {
	s := ctx.Session()
	if s == nil {
		return
	}
	s.Forget(sessionUserIDKey)
}

// UserID returns the authenticated user id, if any.
func UserID(ctx *stratahttp.Context) (int, bool) {
	s := ctx.Session()
	if s == nil {
		return 0, false
	}
	return ParseUserID(s.Get(sessionUserIDKey))
}

// ParseUserID coerces a session value into a user id. Session stores
// round-tripping through JSON deliver numbers as float64.
func ParseUserID(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int64:
		return int(x), true
	case float64:
		return int(x), true
	case string:
		n, err := strconv.Atoi(x)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// RequireAuth rejects unauthenticated requests with 401 without invoking
// the inner chain.
func RequireAuth() stratahttp.Middleware {
	return func(next stratahttp.HandlerFunc) stratahttp.HandlerFunc {
		return func(ctx *stratahttp.Context) {
			if _, ok := UserID(ctx); !ok {
				panic(stratahttp.HTTPError{Status: http.StatusUnauthorized, Message: "Unauthenticated"})
			}
			next(ctx)
		}
	}
}
