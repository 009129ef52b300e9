package callback

import "fmt"

// Kind classifies a failed callback run.
type Kind int

const (
	// KindProviderError means the provider redirected back with an error.
	KindProviderError Kind = iota + 1
	// KindMissingCode means the redirect carried neither code, token nor error.
	KindMissingCode
	// KindExchangeHTTP means the exchange request failed or returned non-2xx.
	KindExchangeHTTP
	// KindMalformedResponse means the exchange response had no usable token.
	KindMalformedResponse
	// KindAbandoned means the run was cancelled before it could complete.
	KindAbandoned
	// KindCodeReused means the code was already exchanged by an earlier run.
	KindCodeReused
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindProviderError:
		return "provider_error"
	case KindMissingCode:
		return "missing_code"
	case KindExchangeHTTP:
		return "exchange_http_error"
	case KindMalformedResponse:
		return "exchange_response_malformed"
	case KindAbandoned:
		return "abandoned"
	case KindCodeReused:
		return "code_reused"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Failure is the terminal error of a callback run. Message is shown to the user.
type Failure struct {
	Kind    Kind
	Message string
	Cause   error
}

func (f *Failure) Error() string {
	return f.Message
}

func (f *Failure) Unwrap() error {
	return f.Cause
}

func newFailure(kind Kind, msg string, cause error) *Failure {
	return &Failure{Kind: kind, Message: msg, Cause: cause}
}
