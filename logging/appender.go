package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// DefaultTimeFormatStr is the timestamp layout used by the console appenders.
const DefaultTimeFormatStr = "2006-01-02T15:04:05.000Z0700"

// Appender is an output for log entries. A `zapcore.Core` satisfies this interface.
type Appender interface {
	Write(zapcore.Entry, []zapcore.Field) error
	Sync() error
}

// ConsoleAppender writes tab separated log lines to a writer, usually stdout.
type ConsoleAppender struct {
	out io.Writer
}

// NewStdoutAppender creates a ConsoleAppender that writes to stdout.
func NewStdoutAppender() ConsoleAppender {
	return ConsoleAppender{os.Stdout}
}

// NewWriterAppender creates a ConsoleAppender that writes to the given writer.
func NewWriterAppender(w io.Writer) ConsoleAppender {
	return ConsoleAppender{w}
}

// FileAppender writes console formatted log lines to a size rotated file.
type FileAppender struct {
	ConsoleAppender
	file *lumberjack.Logger
}

// NewFileAppender creates a FileAppender writing to path. The file is rotated once it reaches
// maxSizeMB megabytes and at most two compressed backups are kept.
func NewFileAppender(path string, maxSizeMB int) *FileAppender {
	file := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: 2,
		Compress:   true,
	}
	return &FileAppender{ConsoleAppender{file}, file}
}

// Close closes the underlying file.
func (appender *FileAppender) Close() error {
	return appender.file.Close()
}

// Write outputs the log entry.
func (appender ConsoleAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	_, err := fmt.Fprintln(appender.out, formatEntry(entry, fields))
	return err
}

// Sync is a no-op.
func (appender ConsoleAppender) Sync() error {
	return nil
}

type testAppender struct {
	tb testing.TB
}

// NewTestAppender returns an appender that logs through `tb.Log` so that log lines are
// associated with the test that produced them.
func NewTestAppender(tb testing.TB) Appender {
	return &testAppender{tb}
}

func (tapp *testAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	tapp.tb.Helper()
	tapp.tb.Log(formatEntry(entry, fields))
	return nil
}

func (tapp *testAppender) Sync() error {
	return nil
}

func formatEntry(entry zapcore.Entry, fields []zapcore.Field) string {
	toPrint := []string{
		entry.Time.Format(DefaultTimeFormatStr),
		strings.ToUpper(entry.Level.String()),
		entry.LoggerName,
	}
	if entry.Caller.Defined {
		toPrint = append(toPrint, entry.Caller.TrimmedPath())
	}
	toPrint = append(toPrint, entry.Message)
	if len(fields) == 0 {
		return strings.Join(toPrint, "\t")
	}

	// The json encoder keeps fields in the order they were logged.
	jsonEncoder := zapcore.NewJSONEncoder(zapcore.EncoderConfig{SkipLineEnding: true})
	buf, err := jsonEncoder.EncodeEntry(zapcore.Entry{}, fields)
	if err != nil {
		return strings.Join(toPrint, "\t")
	}
	toPrint = append(toPrint, buf.String())
	return strings.Join(toPrint, "\t")
}
