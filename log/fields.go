package log

import "go.uber.org/zap"

var (
	String   = zap.String
	Strings  = zap.Strings
	Int      = zap.Int
	Uint     = zap.Uint
	Bool     = zap.Bool
	Float    = zap.Float64
	Duration = zap.Duration
	Time     = zap.Time
	Any      = zap.Any
	Stringer = zap.Stringer
)

func ErrorField(err error) Field {
	return zap.Error(err)
}
