package gojaprerender

import (
	"github.com/joeycumines/logiface"
)

// consolePrinter routes console output to a logger.
type consolePrinter struct {
	logger *logiface.Logger[logiface.Event]
}

func (p *consolePrinter) Log(s string) { p.logger.Info().Str(`source`, `console`).Log(s) }

func (p *consolePrinter) Info(s string) { p.logger.Info().Str(`source`, `console`).Log(s) }

func (p *consolePrinter) Debug(s string) { p.logger.Debug().Str(`source`, `console`).Log(s) }

func (p *consolePrinter) Warn(s string) { p.logger.Warning().Str(`source`, `console`).Log(s) }

func (p *consolePrinter) Error(s string) { p.logger.Err().Str(`source`, `console`).Log(s) }
