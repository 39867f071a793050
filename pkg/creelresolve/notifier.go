// Package creelresolve implements the identification engine.
package creelresolve

import (
	"go.uber.org/zap"

	"github.com/mmilitzer/creel/pkg/creelartifact"
)

// Notifier is the abstract event sink consumed by the engine, the conflict
// resolver and the installer. A null object default is provided by
// NopNotifier.
type Notifier interface {
	Info(msg string)
	Warn(msg string)
	Error(msg string)
	Progress(artifact *creelartifact.Artifact, bytesDone, bytesTotal int64)
}

type nopNotifier struct{}

// NopNotifier is the null-object Notifier default.
func NopNotifier() Notifier { return nopNotifier{} }

func (nopNotifier) Info(string)                                            {}
func (nopNotifier) Warn(string)                                            {}
func (nopNotifier) Error(string)                                           {}
func (nopNotifier) Progress(*creelartifact.Artifact, int64, int64) {}

type zapNotifier struct {
	logger *zap.Logger
}

// NewZapNotifier adapts a *zap.Logger to Notifier, logging structured
// debug/info events around repository and artifact interactions.
func NewZapNotifier(logger *zap.Logger) Notifier {
	return &zapNotifier{logger: logger}
}

func (n *zapNotifier) Info(msg string)  { n.logger.Info(msg) }
func (n *zapNotifier) Warn(msg string)  { n.logger.Warn(msg) }
func (n *zapNotifier) Error(msg string) { n.logger.Error(msg) }
func (n *zapNotifier) Progress(artifact *creelartifact.Artifact, bytesDone, bytesTotal int64) {
	n.logger.Debug("progress",
		zap.String("file", artifact.FilePath),
		zap.Int64("bytes_done", bytesDone),
		zap.Int64("bytes_total", bytesTotal),
	)
}
