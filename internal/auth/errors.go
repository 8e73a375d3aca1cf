package auth

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindRateLimited
	KindInvalidCredentials
	KindAccountDeactivated
	KindInvalidToken
	KindNotRefreshable
	KindUserNotFound
	KindUserAlreadyExists
	KindInvalidInput
)

func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindAccountDeactivated:
		return "account_deactivated"
	case KindInvalidToken:
		return "invalid_token"
	case KindNotRefreshable:
		return "not_refreshable"
	case KindUserNotFound:
		return "user_not_found"
	case KindUserAlreadyExists:
		return "user_already_exists"
	case KindInvalidInput:
		return "invalid_input"
	default:
		return "internal"
	}
}

var messages = map[Kind]string{
	KindInternal:           "internal error",
	KindRateLimited:        "too many failed attempts",
	KindInvalidCredentials: "invalid username or password",
	KindAccountDeactivated: "account is deactivated",
	KindInvalidToken:       "invalid or expired token",
	KindNotRefreshable:     "token cannot be refreshed",
	KindUserNotFound:       "user not found",
	KindUserAlreadyExists:  "user already exists",
	KindInvalidInput:       "invalid request",
}

// Failure is the only error type returned by Service. The wrapped cause is there for logs; Error never includes it,
// so it is safe to hand Error to a client.
type Failure struct {
	Kind              Kind
	RetryAfterSeconds int64

	cause error
}

// Sentinels for errors.Is. They match any Failure of the same kind.
var (
	ErrRateLimited        = &Failure{Kind: KindRateLimited}
	ErrInvalidCredentials = &Failure{Kind: KindInvalidCredentials}
	ErrAccountDeactivated = &Failure{Kind: KindAccountDeactivated}
	ErrInvalidToken       = &Failure{Kind: KindInvalidToken}
	ErrNotRefreshable     = &Failure{Kind: KindNotRefreshable}
	ErrUserNotFound       = &Failure{Kind: KindUserNotFound}
	ErrUserAlreadyExists  = &Failure{Kind: KindUserAlreadyExists}
	ErrInvalidInput       = &Failure{Kind: KindInvalidInput}
	ErrInternal           = &Failure{Kind: KindInternal}
)

func fail(kind Kind, cause error) *Failure {
	return &Failure{Kind: kind, cause: cause}
}

func rateLimited(retryAfterSeconds int64) *Failure {
	return &Failure{Kind: KindRateLimited, RetryAfterSeconds: retryAfterSeconds}
}

func (f *Failure) Error() string {
	if f.Kind == KindRateLimited {
		return fmt.Sprintf("auth: %s, retry after %d seconds", messages[f.Kind], f.RetryAfterSeconds)
	}
	return "auth: " + messages[f.Kind]
}

// Message is the client facing text without the package prefix.
func (f *Failure) Message() string {
	return messages[f.Kind]
}

func (f *Failure) Unwrap() error {
	return f.cause
}

func (f *Failure) Is(target error) bool {
	other, ok := target.(*Failure)
	return ok && other.Kind == f.Kind
}

// KindOf returns the kind of the first Failure in err's chain, or KindInternal if there is none.
func KindOf(err error) Kind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return KindInternal
}
