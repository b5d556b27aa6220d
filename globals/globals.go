// Package globals holds the process-wide ambient state shared by every
// channel and proxy: the logger, the command-line arguments of whichever
// binary is embedding the bridge, and the zap/logr wiring that turns the
// engine's diagnostic log calls into structured output.
package globals

import (
	"fmt"
	"io"
	"runtime/debug"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var StartTime = time.Now()

// Logger is used by every package in this module. It defaults to discarding
// all output so that embedding the bridge in a program that never calls
// InitializeLog produces no surprise output.
var Logger logr.Logger = logr.Discard()

// Arguments holds whatever a host binary's command-line parser produced
// (docopt.Parse and friends return exactly this shape: map[string]interface{}).
// The bridge core never reads this map; only cmd/bridgecli does.
var Arguments = map[string]interface{}{}

// Log_Level_Console and Log_Level_File control verbosity independently for
// the two log sinks InitializeLog wires up. Positive levels are progressively
// quieter (zap convention: 0 is info, -1 is debug).
var Log_Level_Console = zap.NewAtomicLevelAt(zapcore.Level(0))
var Log_Level_File = zap.NewAtomicLevelAt(zapcore.Level(-1))

// removeCallerCore strips caller info from the console sink, which otherwise
// makes interactive output noisy, while keeping it in the structured file sink.
type removeCallerCore struct {
	zapcore.Core
}

func (c *removeCallerCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Core.Check(entry, nil) == nil {
		return ce
	}
	return ce.AddCore(entry, c)
}
func (c *removeCallerCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	entry.Caller = zapcore.EntryCaller{}
	return c.Core.Write(entry, fields)
}
func (c *removeCallerCore) With(fields []zap.Field) zapcore.Core {
	return &removeCallerCore{c.Core.With(fields)}
}

// InitializeLog wires Logger to a console sink and a file sink. If
// Arguments["--debug"] is true, the console sink drops to debug level.
func InitializeLog(console, logfile io.Writer) {
	if v, ok := Arguments["--debug"].(bool); ok && v {
		Log_Level_Console = zap.NewAtomicLevelAt(zapcore.Level(-1))
	}

	zf := zap.NewDevelopmentEncoderConfig()
	zc := zap.NewDevelopmentEncoderConfig()
	zc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	zc.EncodeTime = zapcore.TimeEncoderOfLayout("02/01 15:04:05")

	file_encoder := zapcore.NewJSONEncoder(zf)
	console_encoder := zapcore.NewConsoleEncoder(zc)

	core_console := zapcore.NewCore(console_encoder, zapcore.AddSync(console), Log_Level_Console)
	removecore := &removeCallerCore{core_console}
	core := zapcore.NewTee(
		removecore,
		zapcore.NewCore(file_encoder, zapcore.AddSync(logfile), Log_Level_File),
	)

	zcore := zap.New(core, zap.AddCaller())
	Logger = zapr.NewLogger(zcore)
}

// Recover turns a panic into an error and logs it at the given verbosity
// level, for use in deferred recovery around user callbacks invoked by the
// engine (signal handlers, method-invocation callbacks).
func Recover(level int) (err error) {
	if r := recover(); r != nil {
		err = fmt.Errorf("recovered panic: %+v", r)
		Logger.V(level).Error(nil, "recovered from panic", "panic", r, "stack", StackTrace())
	}
	return
}

func StackTrace() string {
	return string(debug.Stack())
}
