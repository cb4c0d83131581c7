package capability

import "fmt"

// DenialReason is a structured, stable explanation for a rejected check.
// Code is a dotted path (`host.secrets.required[API_TOKEN]`,
// `capabilities.http.domains[foo.example]`) that automated tests and
// operators can match on; Message is for humans. Rejections always carry the
// complete list of reasons, never a single aggregate.
type DenialReason struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (r DenialReason) String() string {
	return fmt.Sprintf("%s: %s", r.Code, r.Message)
}

func deny(code, format string, args ...any) DenialReason {
	return DenialReason{Code: code, Message: fmt.Sprintf(format, args...)}
}
