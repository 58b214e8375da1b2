// Command loadtest opens many chat channels at once, has each emit a batch of
// messages and reports how many "new-message" events came back.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/johndosdos/pagewidgets/internal/channel"
	"github.com/johndosdos/pagewidgets/internal/config"
	"github.com/johndosdos/pagewidgets/internal/logging"
)

var errConnClosed = errors.New("connection closed before the run finished")

type result struct {
	sent     int64
	received int64
	elapsed  time.Duration
}

func main() {
	clients := flag.Int("clients", 10, "concurrent channels")
	messages := flag.Int("messages", 20, "messages per channel")
	settle := flag.Duration("settle", 2*time.Second, "time to wait for deliveries after the last emit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("%v", err)
	}
	logging.New(os.Stderr, cfg.LogFormat, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := run(ctx, cfg.ChatURL, *clients, *messages, *settle)
	if err != nil {
		log.Fatalf("load test failed: %v", err)
	}

	fmt.Printf("clients=%d sent=%d received=%d elapsed=%s\n",
		*clients, res.sent, res.received, res.elapsed)
}

func run(ctx context.Context, url string, clients, messages int, settle time.Duration) (result, error) {
	var sent, received atomic.Int64
	start := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	for i := range clients {
		g.Go(func() error {
			ws, err := channel.Dial(ctx, url)
			if err != nil {
				return err
			}
			defer ws.Close()

			ws.On(channel.EventNewMessage, func(string) { received.Add(1) })

			runCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			readErr := make(chan error, 1)
			go func() { readErr <- ws.Run(runCtx) }()

			for n := range messages {
				if err := ws.Emit(ctx, channel.EventMessage, fmt.Sprintf("client %d message %d", i, n)); err != nil {
					return err
				}
				sent.Add(1)
			}

			select {
			case <-time.After(settle):
			case <-ctx.Done():
			case err := <-readErr:
				// The socket died before the deliveries settled.
				return fmt.Errorf("client %d: %w", i, errOrClosed(err))
			}

			cancel()
			if err := <-readErr; err != nil {
				return fmt.Errorf("client %d: %w", i, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return result{}, err
	}

	return result{
		sent:     sent.Load(),
		received: received.Load(),
		elapsed:  time.Since(start),
	}, nil
}

func errOrClosed(err error) error {
	if err == nil {
		return errConnClosed
	}
	return err
}
