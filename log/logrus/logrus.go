// Package logrus adapts a *logrus.Entry to revcache.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/revcache"
)

var _ revcache.Logger = Logger{}

type Logger struct{ E *logrus.Entry }

// New tags every entry with component=revcache.
func New(l *logrus.Logger) Logger {
	return Logger{E: l.WithField("component", "revcache")}
}

func (l Logger) Debug(msg string, f revcache.Fields) { l.with(f).Debug(msg) }
func (l Logger) Info(msg string, f revcache.Fields)  { l.with(f).Info(msg) }
func (l Logger) Warn(msg string, f revcache.Fields)  { l.with(f).Warn(msg) }
func (l Logger) Error(msg string, f revcache.Fields) { l.with(f).Error(msg) }

// with moves an "err" field under logrus.ErrorKey.
func (l Logger) with(f revcache.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	lf := make(logrus.Fields, len(f))
	for k, v := range f {
		if err, ok := v.(error); ok && k == "err" {
			lf[logrus.ErrorKey] = err
			continue
		}
		lf[k] = v
	}
	return l.E.WithFields(lf)
}
