// Package warn accumulates non-fatal warnings raised during a fit (a
// high null-share column, a zero-variance column, and the like) and
// forwards each one to a logrus sink as it is recorded, so an operator
// tailing logs sees problems as they happen rather than only at the end
// of a (possibly very long) fit. The accumulated list is also returned
// to the caller alongside a successful Pipeline.Fit.
//
// Adapted from auth.AuditMethod's wrap-and-forward-to-sink shape: a
// Warner plays the same role for fit-time warnings that an AuditMethod
// plays for authentication/query events.
package warn

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Code identifies a warning kind. Kept as a small closed set rather
// than a free-form string so callers can switch on it.
type Code string

const (
	// HighNullShare fires when a numerical or categorical column used
	// in an aggregation has an unusually high fraction of null values.
	HighNullShare Code = "high_null_share"
	// ZeroVariance fires when a numerical column is constant across all
	// rows seen at fit time, making it useless as a split candidate.
	ZeroVariance Code = "zero_variance"
	// AllNullTarget would ordinarily be a plausibility error, but a
	// sub-target used only by a deeper sub-ensemble is allowed to be
	// all-null (it simply contributes no signal); that case is
	// downgraded to a warning instead of failing the whole fit.
	AllNullTarget Code = "all_null_target"
	// UnseenCategoryAtTransform fires once per column the first time a
	// transform call encounters a string the fitted encoding never saw.
	UnseenCategoryAtTransform Code = "unseen_category_at_transform"
)

// Warning is one recorded event.
type Warning struct {
	Code    Code
	Message string
	Fields  map[string]interface{}
}

// Warner accumulates warnings for the duration of one fit or transform
// call. It is not safe to reuse across unrelated calls — callers should
// construct one per operation, the same way a *logrus.Entry is scoped
// to one request.
type Warner struct {
	log *logrus.Entry

	mu   sync.Mutex
	list []Warning
}

// New creates a Warner that forwards to log (or logrus.StandardLogger()
// if log is nil).
func New(log *logrus.Logger) *Warner {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Warner{log: logrus.NewEntry(log)}
}

// Record appends a warning and immediately logs it at Warn level.
func (w *Warner) Record(code Code, message string, fields map[string]interface{}) {
	w.mu.Lock()
	w.list = append(w.list, Warning{Code: code, Message: message, Fields: fields})
	w.mu.Unlock()

	entry := w.log.WithField("warning_code", string(code))
	if len(fields) > 0 {
		entry = entry.WithFields(logrus.Fields(fields))
	}
	entry.Warn(message)
}

// List returns a copy of the warnings recorded so far.
func (w *Warner) List() []Warning {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Warning, len(w.list))
	copy(out, w.list)
	return out
}

// Empty reports whether no warnings have been recorded.
func (w *Warner) Empty() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.list) == 0
}
