package log

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/go-logr/logr"
)

// WatermillAdapter routes watermill router and pub/sub logs into the global logr logger.
type WatermillAdapter struct {
	l logr.Logger
}

// NewWatermillAdapter returns an adapter bound to the current global logger.
func NewWatermillAdapter() *WatermillAdapter {
	return &WatermillAdapter{l: logger.WithName("watermill")}
}

func (a *WatermillAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.l.Error(err, msg, flatten(fields)...)
}

func (a *WatermillAdapter) Info(msg string, fields watermill.LogFields) {
	a.l.Info(msg, flatten(fields)...)
}

func (a *WatermillAdapter) Debug(msg string, fields watermill.LogFields) {
	a.l.V(1).Info(msg, flatten(fields)...)
}

func (a *WatermillAdapter) Trace(msg string, fields watermill.LogFields) {
	a.l.V(2).Info(msg, flatten(fields)...)
}

func (a *WatermillAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &WatermillAdapter{l: a.l.WithValues(flatten(fields)...)}
}

func flatten(fields watermill.LogFields) []interface{} {
	kv := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		kv = append(kv, k, v)
	}
	return kv
}
