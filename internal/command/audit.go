package command

import "go.uber.org/zap"

// NewAuditListener logs every dispatch: pre-process at debug, post-process
// at info (warn for non-success) and exceptions at error.
func NewAuditListener(logger *zap.Logger) Listener {
	return &auditListener{logger: logger.Named("command")}
}

type auditListener struct {
	logger *zap.Logger
}

func (a *auditListener) OnPreProcess(e *PreProcessEvent) {
	a.logger.Debug("dispatching command",
		zap.String("dispatch_id", e.ID),
		zap.String("sender", senderName(e.Sender)),
		zap.String("command", e.Command.Name()),
		zap.Any("args", e.Args),
		zap.Any("flags", e.Flags))
}

func (a *auditListener) OnPostProcess(e *PostProcessEvent) {
	fields := []zap.Field{
		zap.String("dispatch_id", e.ID),
		zap.String("sender", senderName(e.Sender)),
		zap.Stringer("outcome", e.Outcome),
		zap.Duration("elapsed", e.Finished.Sub(e.Started)),
	}
	if e.Command != nil {
		fields = append(fields, zap.String("command", e.Command.Name()))
	}
	if e.Err != nil {
		fields = append(fields, zap.Error(e.Err))
	}
	if e.Outcome == OutcomeSuccess {
		a.logger.Info("command processed", fields...)
		return
	}
	a.logger.Warn("command processed", fields...)
}

func (a *auditListener) OnException(e *ExceptionEvent) {
	a.logger.Error("command raised an exception",
		zap.String("dispatch_id", e.ID),
		zap.String("sender", senderName(e.Sender)),
		zap.String("command", e.Command.Name()),
		zap.Error(e.Err))
}

func senderName(s Sender) string {
	if s == nil {
		return ""
	}
	return s.Name()
}
