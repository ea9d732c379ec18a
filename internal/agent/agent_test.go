package agent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/afroash/flaura/internal/client"
	"github.com/afroash/flaura/internal/models"
)

type chanSource struct {
	ch chan *models.Reading
}

func (s *chanSource) Start(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (s *chanSource) Readings() <-chan *models.Reading { return s.ch }

type fakeSender struct {
	mu        sync.Mutex
	connected bool
	failNext  bool
	batches   [][]*models.Reading
}

func (f *fakeSender) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeSender) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeSender) SendBatch(rs []*models.Reading) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return errors.New("write: broken pipe")
	}
	f.batches = append(f.batches, rs)
	return nil
}

func (f *fakeSender) sent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

func fill(buf *client.Buffer, n int) {
	for i := 0; i < n; i++ {
		buf.Push(models.NewReading("pi", float64(20+i), 50, 30))
	}
}

func TestAgent_FlushBatches(t *testing.T) {
	buf := client.NewBuffer(100, client.DropOldest)
	fill(buf, 7)
	sender := &fakeSender{connected: true}
	a := New(Config{BatchSize: 3}, &chanSource{}, buf, sender, zerolog.Nop())

	sent, err := a.Flush()
	if err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if sent != 7 || len(sender.batches) != 3 {
		t.Errorf("sent %d in %d batches, want 7 in 3", sent, len(sender.batches))
	}
	if !buf.IsEmpty() {
		t.Error("buffer should be drained")
	}
}

func TestAgent_FlushDisconnected(t *testing.T) {
	buf := client.NewBuffer(10, client.DropOldest)
	fill(buf, 4)
	a := New(Config{BatchSize: 2}, &chanSource{}, buf, &fakeSender{}, zerolog.Nop())

	if sent, err := a.Flush(); sent != 0 || err != nil {
		t.Errorf("Flush() = %d, %v; want 0, nil", sent, err)
	}
	if buf.Size() != 4 {
		t.Errorf("Size = %d, want 4", buf.Size())
	}
}

func TestAgent_FlushFailureRequeues(t *testing.T) {
	buf := client.NewBuffer(10, client.DropOldest)
	fill(buf, 4)
	sender := &fakeSender{connected: true, failNext: true}
	a := New(Config{BatchSize: 2}, &chanSource{}, buf, sender, zerolog.Nop())

	if _, err := a.Flush(); err == nil {
		t.Fatal("Flush() should report the send failure")
	}
	if buf.Size() != 4 {
		t.Fatalf("Size = %d, want 4 after requeue", buf.Size())
	}
	if first := buf.Peek(1)[0]; first.Temperature != 20 {
		t.Errorf("oldest reading = %v, want 20", first.Temperature)
	}

	if sent, err := a.Flush(); sent != 4 || err != nil {
		t.Errorf("retry Flush() = %d, %v", sent, err)
	}
}

func TestAgent_Run(t *testing.T) {
	src := &chanSource{ch: make(chan *models.Reading)}
	buf := client.NewBuffer(10, client.DropOldest)
	sender := &fakeSender{connected: true}
	a := New(Config{BatchSize: 5, FlushInterval: 20 * time.Millisecond}, src, buf, sender, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	for i := 0; i < 3; i++ {
		src.ch <- models.NewReading("pi", 21, 55, 40)
	}

	deadline := time.Now().Add(2 * time.Second)
	for sender.sent() < 3 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if sender.sent() != 3 {
		t.Fatalf("sent = %d, want 3", sender.sent())
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() = %v, want nil on cancel", err)
	}
}
