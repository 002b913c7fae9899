package control

import (
	"bytes"
	"fmt"
	"strings"
)

type LogLevel uint

const (
	LogLevelAll LogLevel = iota
	LogLevelTrace
	LogLevelDebug
	LogLevelInfo
	LogLevelWarn
	LogLevelError
	LogLevelNone
)

var DefaultLogLevel = LogLevelInfo

func LogLevelFromString(want string) (LogLevel, error) {
	switch strings.ToLower(want) {
	case `all`:
		return LogLevelAll, nil
	case `trace`:
		return LogLevelTrace, nil
	case `debug`:
		return LogLevelDebug, nil
	case `info`:
		return LogLevelInfo, nil
	case `warn`:
		return LogLevelWarn, nil
	case `error`:
		return LogLevelError, nil
	case `none`:
		return LogLevelNone, nil
	}
	return DefaultLogLevel, fmt.Errorf(`level "%s" is invalid`, want)
}

func (level LogLevel) String() string {
	text := `invalid`
	switch level {
	case LogLevelAll:
		text = `all`
	case LogLevelTrace:
		text = `trace`
	case LogLevelDebug:
		text = `debug`
	case LogLevelInfo:
		text = `info`
	case LogLevelWarn:
		text = `warn`
	case LogLevelError:
		text = `error`
	case LogLevelNone:
		text = `none`
	}
	return text
}

type Logger interface {
	Level() LogLevel
	SetLevel(LogLevel)
	SetLevelFromString(string) error

	Trace(string, ...any)
	Debug(string, ...any)
	Info(string, ...any)
	Warn(string, ...any)
	Error(string, ...any)
	Audit(string, ...any)
	Serve(string, ...any)
	Fatal(string, ...any)
}

// HttpLogWriter routes http.Server error logs into a Logger.
type HttpLogWriter struct {
	logger Logger
}

func NewHttpLogWriter(logger Logger) HttpLogWriter {
	writer := HttpLogWriter{
		logger: logger,
	}
	return writer
}

func (writer HttpLogWriter) Write(message []byte) (int, error) {
	size := len(message)
	message = bytes.TrimSpace(message)
	switch {
	case bytes.HasSuffix(message, []byte(`golang.org/issue/25192`)),
		bytes.Contains(message, []byte(`broken pipe`)),
		bytes.Contains(message, []byte(`connection reset by peer`)):
		writer.logger.Trace(`%s`, string(message))
	default:
		writer.logger.Serve(`%s`, string(message))
	}
	return size, nil
}
