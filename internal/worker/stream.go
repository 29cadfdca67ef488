package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/dshills/contentsearch/internal/logging"
	"github.com/dshills/contentsearch/pkg/types"
)

// Stream is a Worker client speaking newline-delimited JSON over a
// bidirectional byte stream. Requests are tagged with IDs so several batches
// can be outstanding at once; responses may arrive in any order.
type Stream struct {
	conn   io.ReadWriteCloser
	logger *slog.Logger

	wmu sync.Mutex
	enc *json.Encoder

	mu      sync.Mutex
	pending map[uint64]chan reply
	nextID  uint64
	closed  bool
	readErr error

	done chan struct{} // closed when the read loop exits
}

// reply is what a pending request receives: a response or a stream failure
type reply struct {
	resp Response
	err  error
}

// NewStream starts a client on conn. The caller must Close it.
func NewStream(conn io.ReadWriteCloser, logger *slog.Logger) *Stream {
	s := &Stream{
		conn:    conn,
		logger:  logging.OrDiscard(logger),
		enc:     json.NewEncoder(conn),
		pending: make(map[uint64]chan reply),
		done:    make(chan struct{}),
	}
	go s.readLoop()
	return s
}

func (s *Stream) Search(ctx context.Context, req Request) ([]types.FileMatch, error) {
	ch := make(chan reply, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if s.readErr != nil {
		err := s.readErr
		s.mu.Unlock()
		return nil, err
	}
	s.nextID++
	req.ID = s.nextID
	s.pending[req.ID] = ch
	s.mu.Unlock()

	s.wmu.Lock()
	err := s.enc.Encode(req)
	s.wmu.Unlock()
	if err != nil {
		s.forget(req.ID)
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		if r.resp.Error != "" {
			return nil, &RemoteError{Message: r.resp.Error}
		}
		return r.resp.Matches, nil
	case <-ctx.Done():
		s.forget(req.ID)
		return nil, ctx.Err()
	}
}

// Close closes the connection and fails pending requests with ErrClosed
func (s *Stream) Close() error {
	if !s.markClosed() {
		return nil
	}
	err := s.conn.Close()
	<-s.done
	return err
}

// markClosed flips the closed flag, reporting whether this call did it
func (s *Stream) markClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	return true
}

// Done is closed once the connection is gone
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

func (s *Stream) forget(id uint64) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}

func (s *Stream) readLoop() {
	defer close(s.done)

	dec := json.NewDecoder(bufio.NewReader(s.conn))
	for {
		var resp Response
		if err := dec.Decode(&resp); err != nil {
			s.fail(err)
			return
		}

		s.mu.Lock()
		ch, ok := s.pending[resp.ID]
		delete(s.pending, resp.ID)
		s.mu.Unlock()

		if !ok {
			// requester gave up (context canceled)
			s.logger.Debug("dropping response for unknown request", "id", resp.ID)
			continue
		}
		ch <- reply{resp: resp}
	}
}

// fail records why the stream ended and rejects every pending request
func (s *Stream) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		err = ErrClosed
	} else if errors.Is(err, io.EOF) {
		err = fmt.Errorf("worker exited: %w", io.ErrUnexpectedEOF)
	} else {
		err = fmt.Errorf("worker connection failed: %w", err)
	}
	s.readErr = err

	for id, ch := range s.pending {
		ch <- reply{err: err}
		delete(s.pending, id)
	}
}
