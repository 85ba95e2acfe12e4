package model

// FailureReason classifies a terminal task failure.
type FailureReason string

const (
	// FailureDownload means the delegate kept failing until the retry
	// budget ran out.
	FailureDownload FailureReason = "download_failed"

	// FailureUnexpected means the delegate failed in a way retrying cannot
	// fix (bad request, filesystem error, programming error).
	FailureUnexpected FailureReason = "unexpected"

	// FailureCanceled means the surrounding context was canceled before
	// the task could finish.
	FailureCanceled FailureReason = "canceled"
)

// Outcome is the terminal result of processing one Request. Exactly one
// Outcome is produced per Request, by the worker that processed it.
type Outcome struct {
	URL      string
	Kind     MediaKind
	Path     string        // produced file path, set on success
	Attempts int           // delegate invocations consumed
	Reason   FailureReason // empty on success
	Message  string        // human readable failure detail
}

// OK reports whether the task succeeded.
func (o Outcome) OK() bool {
	return o.Reason == ""
}

// Succeeded builds a success outcome for the given request.
func Succeeded(r Request, path string, attempts int) Outcome {
	return Outcome{URL: r.URL, Kind: r.Kind, Path: path, Attempts: attempts}
}

// Failed builds a failure outcome for the given request.
func Failed(r Request, reason FailureReason, message string, attempts int) Outcome {
	return Outcome{URL: r.URL, Kind: r.Kind, Reason: reason, Message: message, Attempts: attempts}
}
