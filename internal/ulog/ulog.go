// Package ulog provides structured logging for ulpatch using zap.
package ulog

import (
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger with ulpatch-specific helpers for each core phase.
type Logger struct {
	*zap.Logger
	onEvent func(pid int, phase, detail string)
}

var (
	// L is the global logger instance.
	L    *Logger
	once sync.Once
)

// Init initializes the global logger with the given configuration.
// Safe to call multiple times; only the first call takes effect.
func Init(debug bool) {
	once.Do(func() {
		L = New(debug)
	})
}

// New creates a new Logger instance.
func New(debug bool) *Logger {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		logger = zap.NewNop()
	}

	return &Logger{Logger: logger}
}

// NewNop creates a no-op logger for testing.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// SetOnEvent sets a callback invoked alongside every phase log, used by the
// CLI adapter's --status view to collect a rolling operation history.
func (l *Logger) SetOnEvent(fn func(pid int, phase, detail string)) {
	l.onEvent = fn
}

func (l *Logger) event(pid int, phase, detail string) {
	if l.onEvent != nil {
		l.onEvent(pid, phase, detail)
	}
}

// Attach logs a ptrace attach.
func (l *Logger) Attach(pid int, detail string) {
	l.event(pid, "attach", detail)
	l.Debug("attach", zap.Int("pid", pid), zap.String("detail", detail))
}

// Detach logs the matching detach.
func (l *Logger) Detach(pid int, detail string) {
	l.event(pid, "detach", detail)
	l.Debug("detach", zap.Int("pid", pid), zap.String("detail", detail))
}

// Syscall logs one remote syscall injection.
func (l *Logger) Syscall(pid int, name string, args [6]uint64, ret int64, err error) {
	l.event(pid, "syscall", name)
	fields := []zap.Field{
		zap.Int("pid", pid),
		zap.String("name", name),
		zap.Int64("ret", ret),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
		l.Warn("remote syscall", fields...)
		return
	}
	l.Debug("remote syscall", fields...)
}

// Relocate logs one applied relocation.
func (l *Logger) Relocate(pid int, symbol string, relType uint32, addr uint64) {
	l.event(pid, "relocate", symbol)
	l.Debug("relocate",
		zap.Int("pid", pid),
		zap.String("symbol", symbol),
		zap.Uint32("type", relType),
		Addr(addr),
	)
}

// Install logs a branch/trampoline install.
func (l *Logger) Install(pid int, callSite uint64, dst uint64, trampoline bool) {
	l.event(pid, "install", Hex(callSite))
	l.Info("install",
		zap.Int("pid", pid),
		Ptr("call_site", callSite),
		Ptr("dst", dst),
		zap.Bool("trampoline", trampoline),
	)
}

// WithPID returns a logger with the pid field preset.
func (l *Logger) WithPID(pid int) *Logger {
	return &Logger{
		Logger:  l.Logger.With(zap.Int("pid", pid)),
		onEvent: l.onEvent,
	}
}

// CombineCleanup aggregates independent cleanup errors from an unwind path
// (e.g. byte restore failing alongside register restore) so neither is lost
// behind the other.
func CombineCleanup(errs ...error) error {
	return multierr.Combine(errs...)
}

// Hex formats a uint64 as a 0x-prefixed hex string for logging.
func Hex(addr uint64) string {
	return "0x" + hexString(addr)
}

func hexString(v uint64) string {
	const digits = "0123456789abcdef"
	if v == 0 {
		return "0"
	}
	buf := make([]byte, 16)
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = digits[v&0xf]
		v >>= 4
	}
	return string(buf[i:])
}

// Addr creates an address field.
func Addr(addr uint64) zap.Field {
	return zap.String("addr", Hex(addr))
}

// Ptr creates a named pointer field.
func Ptr(name string, ptr uint64) zap.Field {
	return zap.String(name, Hex(ptr))
}
