package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/slonegd/otdissect/internal/config"
)

// Logger интерфейс для логирования пакетов всех уровней OSI
type Logger interface {
	Debug(format string, v ...any)
	Info(format string, v ...any)
	Warn(format string, v ...any)
	Error(format string, v ...any)
}

var root = logrus.New()

// Init настраивает корневой логгер процесса: уровень, формат и вывод.
// stdout используется всегда, файл с ротацией по настройке.
func Init(cfg config.LogConfig) error {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	writers := []io.Writer{os.Stdout}
	if cfg.Outputs.File.Enabled {
		w, err := createFileWriter(cfg.Outputs.File)
		if err != nil {
			return fmt.Errorf("failed to create file output: %w", err)
		}
		writers = append(writers, w)
	}

	var formatter logrus.Formatter
	switch strings.ToLower(cfg.Format) {
	case "json":
		formatter = &logrus.JSONFormatter{}
	case "text":
		formatter = &logrus.TextFormatter{FullTimestamp: true, DisableColors: true}
	default:
		return fmt.Errorf("unsupported log format: %s (must be json or text)", cfg.Format)
	}

	root.SetLevel(level)
	root.SetFormatter(formatter)
	root.SetOutput(io.MultiWriter(writers...))
	return nil
}

func createFileWriter(fc config.FileOutputConfig) (io.Writer, error) {
	if fc.Path == "" {
		return nil, fmt.Errorf("file output requires 'path' field")
	}
	return &lumberjack.Logger{
		Filename:   fc.Path,
		MaxSize:    fc.Rotation.MaxSizeMB,
		MaxBackups: fc.Rotation.MaxBackups,
		MaxAge:     fc.Rotation.MaxAgeDays,
		Compress:   fc.Rotation.Compress,
	}, nil
}

// entryLogger реализует Logger поверх logrus
type entryLogger struct {
	entry *logrus.Entry
}

// NewLogger создает новый логгер с указанной категорией
func NewLogger(category string) Logger {
	entry := logrus.NewEntry(root)
	if category != "" {
		entry = entry.WithField("category", category)
	}
	return &entryLogger{entry: entry}
}

// With возвращает логгер с дополнительным полем
func With(l Logger, key string, value any) Logger {
	if el, ok := l.(*entryLogger); ok {
		return &entryLogger{entry: el.entry.WithField(key, value)}
	}
	return l
}

func (l *entryLogger) Debug(format string, v ...any) { l.entry.Debugf(format, v...) }
func (l *entryLogger) Info(format string, v ...any)  { l.entry.Infof(format, v...) }
func (l *entryLogger) Warn(format string, v ...any)  { l.entry.Warnf(format, v...) }
func (l *entryLogger) Error(format string, v ...any) { l.entry.Errorf(format, v...) }

type nopLogger struct{}

// Nop возвращает логгер, который ничего не выводит
func Nop() Logger { return nopLogger{} }

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
