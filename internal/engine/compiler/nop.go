package compiler

import (
	"context"

	"go.trai.ch/tsl/internal/core/ports"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}

func (nopLogger) Info(string, ...any) {}

func (nopLogger) Warn(string, ...any) {}

func (nopLogger) Error(error) {}

type nopTracer struct{}

func (nopTracer) Start(ctx context.Context, _ string) (context.Context, ports.Span) {
	return ctx, nopSpan{}
}

type nopSpan struct{}

func (nopSpan) End() {}

func (nopSpan) RecordError(error) {}

func (nopSpan) SetAttribute(string, any) {}
