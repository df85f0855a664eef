package repo

import (
	"context"
	"errors"

	"github.com/aegisops/aegis/internal/models"
)

// MultiLog fans records out to several logs. Every log is attempted; the
// errors of failing logs are joined.
type MultiLog struct {
	logs []PersistentLog
}

// NewMultiLog skips nil entries.
func NewMultiLog(logs ...PersistentLog) *MultiLog {
	m := &MultiLog{}
	for _, l := range logs {
		if l != nil {
			m.logs = append(m.logs, l)
		}
	}
	return m
}

// AppendAttempt implements PersistentLog.
func (m *MultiLog) AppendAttempt(ctx context.Context, attempt models.HealingAttempt) error {
	var errs []error
	for _, l := range m.logs {
		if err := l.AppendAttempt(ctx, attempt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AppendAlert implements PersistentLog.
func (m *MultiLog) AppendAlert(ctx context.Context, alert models.Alert) error {
	var errs []error
	for _, l := range m.logs {
		if err := l.AppendAlert(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
