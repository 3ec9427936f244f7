package logger

import (
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type logrusLogger struct {
	logger *logrus.Logger
	entry  *logrus.Entry
}

// NewLogrusLogger builds the service logger from config.
func NewLogrusLogger(config *Config) Logger {
	log := logrus.New()
	log.SetLevel(toLogrusLevel(config.Level))
	log.SetFormatter(formatterFor(config.Format))
	log.SetOutput(outputFor(config))

	fields := logrus.Fields{}
	for k, v := range config.Fields {
		fields[k] = v
	}

	return &logrusLogger{
		logger: log,
		entry:  logrus.NewEntry(log).WithFields(fields),
	}
}

func toLogrusLevel(level Level) logrus.Level {
	switch level {
	case LevelDebug:
		return logrus.DebugLevel
	case LevelWarn:
		return logrus.WarnLevel
	case LevelError:
		return logrus.ErrorLevel
	case LevelFatal:
		return logrus.FatalLevel
	default:
		return logrus.InfoLevel
	}
}

func formatterFor(format string) logrus.Formatter {
	switch format {
	case "json":
		return &logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		}
	case "text":
		return &logrus.TextFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
			FullTimestamp:   true,
			DisableColors:   true,
		}
	default:
		return &logrus.TextFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
			FullTimestamp:   true,
			ForceColors:     true,
		}
	}
}

func outputFor(config *Config) io.Writer {
	switch config.Output {
	case "stderr":
		return os.Stderr
	case "file":
		if config.FilePath == "" {
			return os.Stdout
		}
		return &lumberjack.Logger{
			Filename:   config.FilePath,
			MaxSize:    config.MaxSize,
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAge,
			Compress:   config.Compress,
		}
	default:
		return os.Stdout
	}
}

func (l *logrusLogger) Debug(msg string)                  { l.entry.Debug(msg) }
func (l *logrusLogger) Debugf(format string, args ...any) { l.entry.Debugf(format, args...) }
func (l *logrusLogger) Info(msg string)                   { l.entry.Info(msg) }
func (l *logrusLogger) Infof(format string, args ...any)  { l.entry.Infof(format, args...) }
func (l *logrusLogger) Warn(msg string)                   { l.entry.Warn(msg) }
func (l *logrusLogger) Warnf(format string, args ...any)  { l.entry.Warnf(format, args...) }
func (l *logrusLogger) Error(msg string)                  { l.entry.Error(msg) }
func (l *logrusLogger) Errorf(format string, args ...any) { l.entry.Errorf(format, args...) }
func (l *logrusLogger) Fatal(msg string)                  { l.entry.Fatal(msg) }
func (l *logrusLogger) Fatalf(format string, args ...any) { l.entry.Fatalf(format, args...) }

func (l *logrusLogger) WithField(key string, value any) Logger {
	return &logrusLogger{logger: l.logger, entry: l.entry.WithField(key, value)}
}

func (l *logrusLogger) WithFields(fields Fields) Logger {
	return &logrusLogger{logger: l.logger, entry: l.entry.WithFields(logrus.Fields(fields))}
}

func (l *logrusLogger) WithContext(ctx context.Context) Logger {
	return &logrusLogger{logger: l.logger, entry: l.entry.WithContext(ctx)}
}

func (l *logrusLogger) SetLevel(level Level) {
	l.logger.SetLevel(toLogrusLevel(level))
}

func (l *logrusLogger) SetOutput(output io.Writer) {
	l.logger.SetOutput(output)
}
