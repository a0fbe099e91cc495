package main

import (
	"context"
	"io"

	"go.uber.org/zap"
)

// drainer espera el trabajo en curso hasta que ctx expire.
type drainer interface {
	Close(ctx context.Context) error
}

type shutdownStep struct {
	name string
	fn   func(ctx context.Context) error
}

// shutdownParts son los recursos que se liberan al parar. Los nil se omiten.
type shutdownParts struct {
	Emitter      drainer
	Engine       drainer
	StopRecorder func(ctx context.Context) error
	Transport    io.Closer
	DeliveryLog  io.Closer
	Store        func(ctx context.Context) error
	Cache        io.Closer
}

// shutdownPlan: primero se drena lo que aún publica o entrega, después el transporte
// de eventos y por último el almacenamiento que esos drenajes todavía usan.
func shutdownPlan(p shutdownParts) []shutdownStep {
	return []shutdownStep{
		{name: "best-effort publisher", fn: drain(p.Emitter)},
		{name: "delivery engine", fn: drain(p.Engine)},
		{name: "delivery recorder", fn: p.StopRecorder},
		{name: "event transport", fn: closer(p.Transport)},
		{name: "delivery log", fn: closer(p.DeliveryLog)},
		{name: "store", fn: p.Store},
		{name: "cache", fn: closer(p.Cache)},
	}
}

// runShutdown ejecuta los pasos en orden. Un fallo se registra y no detiene los siguientes.
func runShutdown(ctx context.Context, steps []shutdownStep, log *zap.Logger) {
	for _, s := range steps {
		if s.fn == nil {
			continue
		}
		if err := s.fn(ctx); err != nil {
			log.Warn("Shutdown step failed", zap.String("step", s.name), zap.Error(err))
		}
	}
}

func drain(d drainer) func(context.Context) error {
	if d == nil {
		return nil
	}
	return d.Close
}

func closer(c io.Closer) func(context.Context) error {
	if c == nil {
		return nil
	}
	return func(context.Context) error { return c.Close() }
}
