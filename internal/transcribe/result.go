package transcribe

// Kind classifies a transcription outcome.
type Kind string

const (
	KindNone           Kind = "none"
	KindAuthentication Kind = "authentication"
	KindRateLimit      Kind = "rate_limit"
	KindInvalidRequest Kind = "invalid_request"
	KindNetwork        Kind = "network"
	KindServerError    Kind = "server_error"
	KindUnknown        Kind = "unknown"
)

// Retryable reports whether another attempt may succeed.
func (k Kind) Retryable() bool {
	switch k {
	case KindNone, KindAuthentication, KindInvalidRequest:
		return false
	default:
		return true
	}
}

// Result is the outcome of one Transcribe call, including retries.
type Result struct {
	Text     string
	Kind     Kind
	Err      string
	Attempts int
}

// OK reports a successful transcription.
func (r Result) OK() bool {
	return r.Kind == KindNone
}

// UserMessage renders a failure for display.
func (r Result) UserMessage() string {
	switch r.Kind {
	case KindAuthentication:
		return "Invalid API key. Please check your settings."
	case KindRateLimit:
		return "Rate limit exceeded. Please wait and try again."
	case KindInvalidRequest:
		return "Invalid request: " + r.Err
	case KindNetwork:
		return "Network error. Please check your connection."
	case KindServerError:
		return "OpenAI server error. Please try again later."
	}
	if r.Err != "" {
		return r.Err
	}
	return "Unknown error occurred"
}

func failure(kind Kind, msg string) Result {
	return Result{Kind: kind, Err: msg}
}

// kindForStatus maps a non-2xx HTTP status onto a Kind.
func kindForStatus(code int) Kind {
	switch code {
	case 401:
		return KindAuthentication
	case 429:
		return KindRateLimit
	case 400:
		return KindInvalidRequest
	case 500, 502, 503, 504:
		return KindServerError
	default:
		return KindUnknown
	}
}
