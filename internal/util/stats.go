package util

import (
	"fmt"
	"sync/atomic"
)

// Stats is the process-wide session counter, reported once at exit.
var Stats = &stats{}

type stats struct {
	CallsStarted atomic.Int64 // calls this client initiated
	CallsJoined  atomic.Int64 // calls this client answered
	MessagesSent atomic.Int64 // chat messages appended to the room log
}

func (s *stats) AddCallStarted() { s.CallsStarted.Add(1) }
func (s *stats) AddCallJoined()  { s.CallsJoined.Add(1) }
func (s *stats) AddMessage()     { s.MessagesSent.Add(1) }

// Summary renders the counters for the end-of-session line.
func (s *stats) Summary() string {
	return fmt.Sprintf("sent %d messages, started %d calls, joined %d calls",
		s.MessagesSent.Load(), s.CallsStarted.Load(), s.CallsJoined.Load())
}
