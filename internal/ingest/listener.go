// Package ingest receives framed packets from the capture process over UDP
// and feeds them to the sniffer engine.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/albionradar/sniffer/internal/config"
	"github.com/albionradar/sniffer/internal/metrics"
	"github.com/albionradar/sniffer/internal/protocol"
)

// Frame results recorded in metrics.
const (
	resultOK       = "ok"
	resultRejected = "rejected"
	resultFailed   = "failed"
)

// FrameHandler consumes one wire frame.
type FrameHandler interface {
	HandleFrame(ctx context.Context, frame []byte) error
}

// Listener reads one frame per datagram. Frames are handled in arrival order
// on the read goroutine so a key update always precedes the packets after it.
type Listener struct {
	cfg     config.IngestConfig
	handler FrameHandler

	mu    sync.Mutex
	conn  *net.UDPConn
	ready chan struct{}

	received atomic.Uint64
	rejected atomic.Uint64
	failed   atomic.Uint64

	logger zerolog.Logger
}

// NewListener creates a listener that hands frames to handler.
func NewListener(cfg config.IngestConfig, handler FrameHandler, logger zerolog.Logger) *Listener {
	if cfg.Listen == "" {
		cfg.Listen = config.DefaultIngestListen
	}
	if cfg.MaxFrameSize <= 0 || cfg.MaxFrameSize > protocol.MaxFrameSize {
		cfg.MaxFrameSize = protocol.MaxFrameSize
	}
	return &Listener{
		cfg:     cfg,
		handler: handler,
		ready:   make(chan struct{}),
		logger:  logger,
	}
}

// Start binds the socket and reads until ctx is cancelled.
func (l *Listener) Start(ctx context.Context) error {
	lc := listenConfig()
	pc, err := lc.ListenPacket(ctx, "udp", l.cfg.Listen)
	if err != nil {
		return fmt.Errorf("failed to start ingest listener on %s: %w", l.cfg.Listen, err)
	}
	conn := pc.(*net.UDPConn)

	l.mu.Lock()
	l.conn = conn
	l.mu.Unlock()
	close(l.ready)

	l.logger.Info().Str("listen", conn.LocalAddr().String()).Msg("ingest listener started")

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	// One extra byte detects datagrams larger than the limit.
	buf := make([]byte, l.cfg.MaxFrameSize+1)
	for {
		n, remote, err := conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				l.logger.Info().Msg("ingest listener stopping")
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			l.logger.Error().Err(err).Msg("UDP read error")
			continue
		}

		l.received.Add(1)
		if n > l.cfg.MaxFrameSize {
			l.reject(remote, fmt.Errorf("frame exceeds %d bytes", l.cfg.MaxFrameSize))
			continue
		}

		if err := l.handler.HandleFrame(ctx, buf[:n]); err != nil {
			if errors.Is(err, protocol.ErrMalformedPacket) {
				l.reject(remote, err)
				continue
			}
			l.failed.Add(1)
			metrics.IngestFramesTotal.WithLabelValues(resultFailed).Inc()
			l.logger.Warn().Err(err).Msg("frame handling failed")
			continue
		}
		metrics.IngestFramesTotal.WithLabelValues(resultOK).Inc()
	}
}

func (l *Listener) reject(remote *net.UDPAddr, err error) {
	l.rejected.Add(1)
	metrics.IngestFramesTotal.WithLabelValues(resultRejected).Inc()
	ev := l.logger.Debug().Err(err)
	if remote != nil {
		ev = ev.Str("remote", remote.String())
	}
	ev.Msg("frame rejected")
}

// Ready is closed once the socket is bound.
func (l *Listener) Ready() <-chan struct{} {
	return l.ready
}

// Addr returns the bound address, or nil before Start binds.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr()
}

// Stop closes the socket.
func (l *Listener) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn != nil {
		return l.conn.Close()
	}
	return nil
}

// Stats reports frame counters.
type Stats struct {
	Received uint64 `json:"received"`
	Rejected uint64 `json:"rejected"`
	Failed   uint64 `json:"failed"`
}

func (l *Listener) Stats() Stats {
	return Stats{
		Received: l.received.Load(),
		Rejected: l.rejected.Load(),
		Failed:   l.failed.Load(),
	}
}
