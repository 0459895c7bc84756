package queryparams

import (
	"fmt"
	"strings"
)

// NoticeKind names a category of non-fatal notice
type NoticeKind string

const (
	// UnknownProviderParameterNotice is raised for parameters carrying an unknown provider prefix
	UnknownProviderParameterNotice NoticeKind = "UnknownProviderQueryParameter"

	// UnsupportedParameterNotice is raised for recognized parameters this server does not honour
	UnsupportedParameterNotice NoticeKind = "QueryParamNotUsed"
)

// Notice is an advisory produced while checking query parameters. It never aborts a request.
type Notice struct {
	Kind   NoticeKind
	Params []string
}

// Message returns the human readable notice text
func (n Notice) Message() string {
	if n.Kind == UnsupportedParameterNotice {
		return fmt.Sprintf(
			"The query parameter(s) '%s' are not supported by this server and have been ignored.",
			formatNames(n.Params),
		)
	}
	return fmt.Sprintf("The query parameter(s) '%s' are unrecognised and have been ignored.", formatNames(n.Params))
}

// NoticeSink receives notices in the order they are emitted
type NoticeSink interface {
	Notify(Notice)
}

// NoticeFunc adapts a function to the NoticeSink interface
type NoticeFunc func(Notice)

// Notify calls f(n)
func (f NoticeFunc) Notify(n Notice) {
	f(n)
}

// NoticeCollector is a NoticeSink that keeps every notice it receives
type NoticeCollector struct {
	Notices []Notice
}

// Notify appends n
func (c *NoticeCollector) Notify(n Notice) {
	c.Notices = append(c.Notices, n)
}

// formatNames renders names as a bracketed list of single-quoted items: ['a', 'b']
func formatNames(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = "'" + n + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
