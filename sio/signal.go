package sio

import (
	"sync"
	"time"
)

// WaitSignal is a binary semaphore signalled from interrupt context.
//
// Give never blocks and coalesces: several gives before a take leave one
// token. Take is for task context only and may return true spuriously, so
// callers re-check their condition after every wake.
type WaitSignal interface {
	Give()
	Take(timeout time.Duration) bool
}

// ChanSignal is a WaitSignal over a one-slot channel.
type ChanSignal struct {
	c chan struct{}
}

func NewChanSignal() *ChanSignal { return &ChanSignal{c: make(chan struct{}, 1)} }

func (s *ChanSignal) Give() {
	select {
	case s.c <- struct{}{}:
	default:
	}
}

func (s *ChanSignal) Take(timeout time.Duration) bool {
	switch {
	case timeout == 0:
		select {
		case <-s.c:
			return true
		default:
			return false
		}
	case timeout < 0:
		<-s.c
		return true
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-s.c:
		return true
	case <-t.C:
		return false
	}
}

// C exposes the underlying channel for select-based waiters.
func (s *ChanSignal) C() <-chan struct{} { return s.c }

// CondSignal is a WaitSignal over a condition variable and a flag. Give
// takes a mutex, so use it only where the interrupt side is a goroutine
// (host simulation, pumped transports); ChanSignal is the default.
type CondSignal struct {
	mu   sync.Mutex
	cond *sync.Cond
	set  bool
}

func NewCondSignal() *CondSignal {
	s := &CondSignal{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *CondSignal) Give() {
	s.mu.Lock()
	s.set = true
	s.mu.Unlock()
	s.cond.Broadcast()
}

func (s *CondSignal) Take(timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timeout == 0 || s.set {
		got := s.set
		s.set = false
		return got
	}
	var expired bool
	if timeout > 0 {
		t := time.AfterFunc(timeout, func() {
			s.mu.Lock()
			expired = true
			s.mu.Unlock()
			s.cond.Broadcast()
		})
		defer t.Stop()
	}
	for !s.set && !expired {
		s.cond.Wait()
	}
	got := s.set
	s.set = false
	return got
}
