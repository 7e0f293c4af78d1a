package devapi

import (
	"strings"
	"sync"

	"github.com/gofiber/fiber/v2"
)

// Request is one recorded call, with the path relative to Prefix.
type Request struct {
	Method        string
	Path          string
	Query         string
	Authorization string
}

type fault struct {
	status  int
	message string
}

// hold parks matching requests until ch closes. after holds the response
// instead, once the handler has read the data.
type hold struct {
	ch    chan struct{}
	after bool
}

// faults holds one-shot failures and request holds keyed by "METHOD /path".
type faults struct {
	mu      sync.Mutex
	fail    map[string][]fault
	holds   map[string]hold
	waiting map[string]int
}

func newFaults() *faults {
	return &faults{
		fail:    make(map[string][]fault),
		holds:   make(map[string]hold),
		waiting: make(map[string]int),
	}
}

func faultKey(method, path string) string {
	return strings.ToUpper(method) + " " + path
}

// FailNext makes the next request to method and path (relative to Prefix)
// answer status with {"error": message}. Calls queue up.
func (s *Server) FailNext(method, path string, status int, message string) {
	if message == "" {
		message = "Injected failure"
	}
	s.fault.mu.Lock()
	defer s.fault.mu.Unlock()
	k := faultKey(method, path)
	s.fault.fail[k] = append(s.fault.fail[k], fault{status: status, message: message})
}

// Hold blocks requests to method and path until the returned release is
// called. Release is idempotent.
func (s *Server) Hold(method, path string) (release func()) {
	return s.hold(method, path, false)
}

// HoldResponse lets requests to method and path be served, then holds the
// responses until release. A held response carries the data as it was when
// the request was served.
func (s *Server) HoldResponse(method, path string) (release func()) {
	return s.hold(method, path, true)
}

// Waiting returns how many requests to method and path are parked by a hold.
func (s *Server) Waiting(method, path string) int {
	s.fault.mu.Lock()
	defer s.fault.mu.Unlock()
	return s.fault.waiting[faultKey(method, path)]
}

func (s *Server) hold(method, path string, after bool) func() {
	h := hold{ch: make(chan struct{}), after: after}
	k := faultKey(method, path)
	s.fault.mu.Lock()
	s.fault.holds[k] = h
	s.fault.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.fault.mu.Lock()
			if s.fault.holds[k].ch == h.ch {
				delete(s.fault.holds, k)
			}
			s.fault.mu.Unlock()
			close(h.ch)
		})
	}
}

func (s *Server) wait(c *fiber.Ctx, k string, ch chan struct{}) error {
	s.fault.mu.Lock()
	s.fault.waiting[k]++
	s.fault.mu.Unlock()
	defer func() {
		s.fault.mu.Lock()
		s.fault.waiting[k]--
		s.fault.mu.Unlock()
	}()

	select {
	case <-ch:
		return nil
	case <-c.UserContext().Done():
		return fiber.NewError(fiber.StatusServiceUnavailable, "Request abandoned")
	}
}

func (s *Server) injectFaults(c *fiber.Ctx) error {
	k := faultKey(c.Method(), apiPath(c))

	s.fault.mu.Lock()
	h, held := s.fault.holds[k]
	var injected *fault
	if queue := s.fault.fail[k]; len(queue) > 0 {
		injected = &queue[0]
		s.fault.fail[k] = queue[1:]
	}
	s.fault.mu.Unlock()

	if held && !h.after {
		if err := s.wait(c, k, h.ch); err != nil {
			return err
		}
	}
	if injected != nil {
		return fiber.NewError(injected.status, injected.message)
	}
	if held && h.after {
		err := c.Next()
		if werr := s.wait(c, k, h.ch); werr != nil {
			return werr
		}
		return err
	}
	return c.Next()
}

func (s *Server) record(c *fiber.Ctx) error {
	if strings.HasPrefix(c.Path(), Prefix+"/") {
		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method:        c.Method(),
			Path:          apiPath(c),
			Query:         string(c.Request().URI().QueryString()),
			Authorization: c.Get(fiber.HeaderAuthorization),
		})
		s.mu.Unlock()
	}
	return c.Next()
}

// Requests returns the recorded API calls in arrival order.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Count returns how many recorded calls match method and path.
func (s *Server) Count(method, path string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == strings.ToUpper(method) && r.Path == path {
			n++
		}
	}
	return n
}

// ResetRequests clears the recorder.
func (s *Server) ResetRequests() {
	s.mu.Lock()
	s.requests = nil
	s.mu.Unlock()
}
