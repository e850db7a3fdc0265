package usecases

import (
	"context"
	"log/slog"

	"github.com/Guymer/gft/internal/core/domain"
	"github.com/Guymer/gft/internal/core/ports"
)

// SinkFunc adapts a function to the FrameSink port.
type SinkFunc func(ctx context.Context, frame *domain.Frame) error

// EmitFrame calls the function.
func (f SinkFunc) EmitFrame(ctx context.Context, frame *domain.Frame) error {
	return f(ctx, frame)
}

// FanoutSink delivers every frame to all its sinks. A required sink error
// aborts the emit; optional sink errors are logged and swallowed, so a
// flaky broker never kills a run.
type FanoutSink struct {
	Required []ports.FrameSink
	Optional []ports.FrameSink
	Logger   *slog.Logger
}

// EmitFrame fans the frame out, required sinks first.
func (f *FanoutSink) EmitFrame(ctx context.Context, frame *domain.Frame) error {
	for _, sink := range f.Required {
		if err := sink.EmitFrame(ctx, frame); err != nil {
			return err
		}
	}
	logger := f.Logger
	if logger == nil {
		logger = slog.Default()
	}
	for _, sink := range f.Optional {
		if err := sink.EmitFrame(ctx, frame); err != nil {
			logger.Warn("optional frame sink failed",
				"step", frame.Step, "error", err)
		}
	}
	return nil
}
