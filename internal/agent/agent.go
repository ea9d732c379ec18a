// Package agent runs the device loop: read the sensors, buffer the
// readings and drain the buffer over the sensor stream.
package agent

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/afroash/flaura/internal/client"
	"github.com/afroash/flaura/internal/models"
)

// Source produces readings until its context ends
type Source interface {
	Start(ctx context.Context) error
	Readings() <-chan *models.Reading
}

// Sender delivers batches to the server
type Sender interface {
	Run(ctx context.Context) error
	IsConnected() bool
	SendBatch(readings []*models.Reading) error
}

// Config controls batching
type Config struct {
	BatchSize     int
	FlushInterval time.Duration
}

// Agent wires a Source to a Sender through a Buffer
type Agent struct {
	cfg    Config
	source Source
	buffer *client.Buffer
	sender Sender
	logger zerolog.Logger
}

func New(cfg Config, source Source, buffer *client.Buffer, sender Sender, logger zerolog.Logger) *Agent {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	return &Agent{
		cfg:    cfg,
		source: source,
		buffer: buffer,
		sender: sender,
		logger: logger.With().Str("component", "agent").Logger(),
	}
}

// Run blocks until ctx is cancelled or a component fails
func (a *Agent) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.source.Start(ctx) })
	g.Go(func() error { return a.sender.Run(ctx) })
	g.Go(func() error { return a.collect(ctx) })
	g.Go(func() error { return a.flushLoop(ctx) })

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	a.logger.Info().Int("unsent", a.buffer.Size()).Msg("Agent stopped")
	return err
}

func (a *Agent) collect(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r := <-a.source.Readings():
			if !a.buffer.Push(r) {
				a.logger.Warn().Str("buffer", a.buffer.String()).Msg("Buffer full, reading dropped")
			}
		}
	}
}

func (a *Agent) flushLoop(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if sent, err := a.Flush(); err != nil {
				a.logger.Warn().Err(err).Int("sent", sent).Msg("Flush interrupted")
			}
		}
	}
}

// Flush sends buffered readings in batches while the stream is up. A
// batch that fails is put back at the front of the buffer.
func (a *Agent) Flush() (int, error) {
	sent := 0
	for a.sender.IsConnected() {
		batch := a.buffer.PopBatch(a.cfg.BatchSize)
		if len(batch) == 0 {
			break
		}
		if err := a.sender.SendBatch(batch); err != nil {
			a.buffer.Requeue(batch)
			return sent, err
		}
		sent += len(batch)
	}

	if sent > 0 {
		a.logger.Info().Int("sent", sent).Int("remaining", a.buffer.Size()).Msg("Flushed readings")
	}
	return sent, nil
}
