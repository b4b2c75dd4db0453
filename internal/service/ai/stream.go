package ai

import (
	"errors"
	"io"
	"strings"
	"sync"
)

// fragmentStream adapts a provider SDK iterator to Stream. Empty fragments are
// skipped. commit runs once with the full reply when the iterator reaches EOF;
// rollback runs once when it fails.
type fragmentStream struct {
	next     func() (string, error)
	close    func() error
	commit   func(reply string)
	rollback func()

	reply     strings.Builder
	err       error
	closeOnce sync.Once
	closeErr  error
}

func (s *fragmentStream) Recv() (string, error) {
	if s.err != nil {
		return "", s.err
	}

	for {
		fragment, err := s.next()
		if errors.Is(err, io.EOF) {
			s.err = io.EOF
			if s.commit != nil {
				s.commit(s.reply.String())
			}
			return "", io.EOF
		}
		if err != nil {
			s.err = err
			if s.rollback != nil {
				s.rollback()
			}
			return "", err
		}
		if fragment == "" {
			continue
		}
		s.reply.WriteString(fragment)
		return fragment, nil
	}
}

func (s *fragmentStream) Close() error {
	s.closeOnce.Do(func() {
		if s.err == nil {
			s.err = errStreamClosed
			if s.rollback != nil {
				s.rollback()
			}
		}
		if s.close != nil {
			s.closeErr = s.close()
		}
	})
	return s.closeErr
}

var errStreamClosed = errors.New("stream closed")
