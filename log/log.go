package log

import (
	"context"
	"errors"
	"os"
	"runtime"

	log "github.com/sirupsen/logrus"
)

var (
	logger = log.New()
)

type contextKey int

const commitIDKey contextKey = iota

// ContextWithCommitID returns a context that carries the id of the commit
// currently being dispatched. All log records emitted with that context
// contain a "commit_id" field.
func ContextWithCommitID(ctx context.Context, commitID string) context.Context {
	return context.WithValue(ctx, commitIDKey, commitID)
}

// InitializeLogger creates a default logger whose output format and log level
// differ depending on whether the developer mode flag is enabled or disabled.
func InitializeLogger(developerModeFlag bool) {
	logger = log.New()

	if developerModeFlag {
		customFormatter := new(log.TextFormatter)
		customFormatter.FullTimestamp = true
		customFormatter.TimestampFormat = "2006-01-02 15:04:05"
		logger.Level = log.DebugLevel
		logger.Formatter = customFormatter
	} else {
		customFormatter := new(log.JSONFormatter)
		customFormatter.TimestampFormat = "2006-01-02 15:04:05"
		customFormatter.DisableTimestamp = false
		logger.Level = log.InfoLevel
		logger.Formatter = customFormatter
	}

	logger.Out = os.Stdout
}

// NewCustomizedLogger creates a custom logger specifying the desired log level
// and the developer mode flag. Returns the logger object and the error.
func NewCustomizedLogger(level string, developerModeFlag bool) (*log.Logger, error) {
	logger := log.New()

	lv, err := log.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	logger.Level = lv

	if developerModeFlag {
		customFormatter := new(log.TextFormatter)
		customFormatter.FullTimestamp = true
		customFormatter.TimestampFormat = "2006-01-02 15:04:05"
		logger.Formatter = customFormatter
	} else {
		customFormatter := new(log.JSONFormatter)
		customFormatter.TimestampFormat = "2006-01-02 15:04:05"
		customFormatter.DisableTimestamp = false
		logger.Formatter = customFormatter
	}

	logger.Out = os.Stdout

	return logger, nil
}

// Logger returns the current logger object.
func Logger() *log.Logger {
	return logger
}

// Error logs an error message that might contain the following attributes:
// pid, commit id if provided by the context, file location of the caller,
// line that called the log Error function and the function name. Moreover, we
// can use the parameter fields to add additional attributes to the output
// message. Likewise format and args are used to print a detailed message with
// the reasons of the error log.
func Error(ctx context.Context, fields map[string]interface{}, format string, args ...interface{}) {
	if logger.Level >= log.ErrorLevel {
		entry := logger.WithField("pid", os.Getpid())

		file, line, fName, err := extractCallerDetails()
		if err == nil {
			entry = entry.WithField("file", file).WithField("line", line).WithField("func", fName)
		}

		if ctx != nil {
			entry = withCommitID(entry, ctx)
		}

		if len(args) > 0 {
			entry.WithFields(fields).Errorf(format, args...)
		} else {
			entry.WithFields(fields).Errorln(format)
		}
	}
}

// Warn logs a warning message that might contain the following attributes:
// commit id if provided by the context, the file and the function name that
// invoked the Warn() function. In this function, we can use the parameter
// fields to add additional attributes to the output of this message. Likewise
// format and args are used to print a detailed message with the reasons of
// the warning log.
func Warn(ctx context.Context, fields map[string]interface{}, format string, args ...interface{}) {
	if logger.Level >= log.WarnLevel {
		entry := log.NewEntry(logger)

		file, _, fName, err := extractCallerDetails()
		if err == nil {
			entry = entry.WithField("file", file).WithField("func", fName)
		}

		if ctx != nil {
			entry = withCommitID(entry, ctx)
		}

		if len(args) > 0 {
			entry.WithFields(fields).Warnf(format, args...)
		} else {
			entry.WithFields(fields).Warnln(format)
		}
	}
}

// Info logs an info message that might contain the commit id if provided by
// the context. In this function, the parameter fields enables additional
// attributes to the message. The format and args input arguments are used to
// print detailed information about the reasons of this log.
func Info(ctx context.Context, fields map[string]interface{}, format string, args ...interface{}) {
	if logger.Level >= log.InfoLevel {
		entry := log.NewEntry(logger)

		if ctx != nil {
			entry = withCommitID(entry, ctx)
		}

		if len(args) > 0 {
			entry.WithFields(fields).Infof(format, args...)
		} else {
			entry.WithFields(fields).Infoln(format)
		}
	}
}

// Panic logs a panic message that might contain the following attributes:
// the commit id if provided by the context and the pid. In this function, the
// parameter fields enables additional attributes to the message. The format
// and args input arguments are used to print detailed information about the
// reasons of this log.
func Panic(ctx context.Context, fields map[string]interface{}, format string, args ...interface{}) {
	if logger.Level >= log.ErrorLevel {
		entry := logger.WithField("pid", os.Getpid())

		if ctx != nil {
			entry = withCommitID(entry, ctx)
		}

		if len(args) > 0 {
			entry.WithFields(fields).Panicf(format, args...)
		} else {
			entry.WithFields(fields).Panicln(format)
		}
	}
}

// Debug logs a debug message that might contain the commit id if provided by
// the context. In this function, the parameter fields enables additional
// attributes to the message. The format and args input arguments are used to
// print detailed information about the reasons of this log.
func Debug(ctx context.Context, fields map[string]interface{}, format string, args ...interface{}) {
	if logger.Level >= log.DebugLevel {
		entry := log.NewEntry(logger)

		if ctx != nil {
			entry = withCommitID(entry, ctx)
		}

		if len(args) > 0 {
			entry.WithFields(fields).Debugf(format, args...)
		} else {
			entry.WithFields(fields).Debugln(format)
		}
	}
}

// withCommitID adds the commit id carried by the context, if any.
func withCommitID(entry *log.Entry, ctx context.Context) *log.Entry {
	if commitID, ok := ctx.Value(commitIDKey).(string); ok && commitID != "" {
		return entry.WithField("commit_id", commitID)
	}
	return entry
}

// extractCallerDetails gets information about the file, line and function that
// called a certain logging method such as Error, Info, Debug, Warn and Panic.
func extractCallerDetails() (string, int, string, error) {
	if pc, file, line, ok := runtime.Caller(2); ok {
		fName := runtime.FuncForPC(pc).Name()
		return file, line, fName, nil
	}

	return "", 0, "", errors.New("unable to extract the caller details")
}
