package alert

import (
	"bufio"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/stressguard/internal/errors"
	"github.com/felixgeelhaar/stressguard/internal/log"
)

// maxLine bounds a single JSON alert
const maxLine = 64 * 1024

// Handler is called for every decoded alert, from the connection's goroutine
type Handler func(ctx context.Context, a Alert)

// Receiver accepts TCP connections carrying newline-delimited JSON readings
type Receiver struct {
	addr        string
	handler     Handler
	logger      *log.Logger
	readTimeout time.Duration
	now         func() time.Time

	count atomic.Int64
	wg    sync.WaitGroup
}

// ReceiverOption configures a Receiver
type ReceiverOption func(*Receiver)

// WithLogger sets the logger
func WithLogger(l *log.Logger) ReceiverOption {
	return func(r *Receiver) { r.logger = l }
}

// WithReadTimeout closes connections idle for longer than d
func WithReadTimeout(d time.Duration) ReceiverOption {
	return func(r *Receiver) { r.readTimeout = d }
}

// NewReceiver creates a receiver that passes alerts to h
func NewReceiver(addr string, h Handler, opts ...ReceiverOption) *Receiver {
	if addr == "" {
		addr = DefaultAddr
	}
	r := &Receiver{
		addr:        addr,
		handler:     h,
		logger:      log.DefaultLogger(),
		readTimeout: 30 * time.Second,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Count returns the number of alerts received so far
func (r *Receiver) Count() int64 {
	return r.count.Load()
}

// ListenAndServe listens on the configured address until ctx is cancelled
func (r *Receiver) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", r.addr)
	if err != nil {
		return errors.Wrap(errors.ErrCodeAlertNetwork, "listen on "+r.addr, err).
			WithSuggestion("Check that no other receiver is already running on this port")
	}
	return r.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then waits for
// in-flight connections to finish
func (r *Receiver) Serve(ctx context.Context, ln net.Listener) error {
	r.logger.Info("alert receiver listening", "addr", ln.Addr().String())

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	defer r.wg.Wait()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if stderrors.Is(err, net.ErrClosed) {
				return nil
			}
			r.logger.WithError(err).Warn("accept failed")
			continue
		}

		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.handle(ctx, conn)
		}()
	}
}

func (r *Receiver) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	source := conn.RemoteAddr().String()

	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, 0, 4096), maxLine)
	for {
		if r.readTimeout > 0 {
			_ = conn.SetReadDeadline(r.now().Add(r.readTimeout))
		}
		if !sc.Scan() {
			if err := sc.Err(); err != nil && !stderrors.Is(err, io.EOF) {
				r.logger.Debug("alert connection closed", "source", source, "error", err.Error())
			}
			return
		}
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}

		var reading Reading
		if err := json.Unmarshal(line, &reading); err != nil {
			r.logger.WithError(errors.Wrap(errors.ErrCodeAlertDecode, "decode alert", err)).
				Warn("dropping malformed alert", "source", source)
			return
		}

		a := Classify(reading)
		a.ID = uuid.New().String()
		a.Seq = r.count.Add(1)
		a.Source = source
		a.ReceivedAt = r.now()

		r.logger.Info("stress alert received",
			"seq", a.Seq,
			"bvp", reading.BVP,
			"eda", reading.EDA,
			"temp", reading.Temp,
			"zone", string(a.Zone))

		if r.handler != nil {
			r.handler(ctx, a)
		}
	}
}
