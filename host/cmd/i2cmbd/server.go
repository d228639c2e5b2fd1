package main

import (
	"errors"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"

	"i2cmb/protocol"
)

// server feeds bytes from the port through the device-side transport and
// writes each reply frame back. Blocks are handled one at a time.
type server struct {
	port      io.ReadWriteCloser
	transport *protocol.Transport
	out       *protocol.ScratchOutput
	fifo      *protocol.FifoBuffer
	logger    *zap.Logger

	writeErr error

	stopOnce sync.Once
	stopped  chan struct{}
	closeErr error
}

func newServer(port io.ReadWriteCloser, handler protocol.BlockHandler, logger *zap.Logger) *server {
	s := &server{
		port:    port,
		out:     protocol.NewScratchOutput(),
		fifo:    protocol.NewFifoBuffer(2 * protocol.MessageMax),
		logger:  logger,
		stopped: make(chan struct{}),
	}
	s.transport = protocol.NewTransport(s.out, handler)
	s.transport.SetFlushCallback(s.flush)
	return s
}

func (s *server) flush() {
	if _, err := s.port.Write(s.out.Result()); err != nil && s.writeErr == nil {
		s.writeErr = err
	}
	s.out.Reset()
}

// serve runs until stop is called or the port fails.
func (s *server) serve() error {
	buf := make([]byte, 256)
	for {
		n, err := s.port.Read(buf)
		if n > 0 {
			if w := s.fifo.Write(buf[:n]); w < n {
				s.logger.Warn("input overrun", zap.Int("dropped", n-w))
			}
			before, _, _ := s.transport.Stats()
			s.transport.Receive(s.fifo)
			if s.writeErr != nil {
				return s.writeErr
			}
			if frames, dropped, panics := s.transport.Stats(); frames != before {
				s.logger.Debug("handled frames",
					zap.Uint32("frames", frames),
					zap.Uint32("dropped", dropped),
					zap.Uint32("panics", panics))
			}
		}
		if err != nil {
			select {
			case <-s.stopped:
				return nil
			default:
			}
			if errors.Is(err, io.EOF) {
				// Read timeout on an idle serial line.
				continue
			}
			if errors.Is(err, os.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
				return nil
			}
			return err
		}
	}
}

// stop closes the port, which ends serve. It is safe to call repeatedly.
func (s *server) stop() error {
	s.stopOnce.Do(func() {
		close(s.stopped)
		s.closeErr = s.port.Close()
	})
	return s.closeErr
}
