package vm

import "go.uber.org/zap"

// Logger wraps zap for the VM's runtime diagnostic stream: task lifecycle
// events at Info, recoverable faults (queue full, a task's VMError) at
// Warn. Compile-time diagnostics stay on internal/diag and are never
// routed through here.
type Logger struct {
	s *zap.SugaredLogger
}

func NewLogger() (*Logger, error) {
	zl, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return &Logger{s: zl.Sugar()}, nil
}

func NewNopLogger() *Logger {
	return &Logger{s: zap.NewNop().Sugar()}
}

func (l *Logger) TaskStarted(name string, id uint32) {
	l.s.Infow("task started", "task", name, "id", id)
}

func (l *Logger) TaskStopped(name string, id uint32, err error) {
	if err != nil {
		l.s.Warnw("task stopped with error", "task", name, "id", id, "error", err)
		return
	}
	l.s.Infow("task stopped", "task", name, "id", id)
}

func (l *Logger) QueueFull(name string) {
	l.s.Warnw("message queue full, dropping send", "queue", name)
}

func (l *Logger) Breakpoint(taskName string, pc uint32) {
	l.s.Infow("breakpoint hit", "task", taskName, "pc", pc)
}

func (l *Logger) Sync() { _ = l.s.Sync() }
