package internal

import (
	"sync"

	"github.com/vento-lexops/ventoagent/lexnet"
)

// FakeSession is a scripted lexnet.Session for tests. It records how
// often it was closed so tests can assert that no pass ever leaks a
// live session.
type FakeSession struct {
	AuthErr     error
	ListItems   []*lexnet.Notification
	ListErr     error
	RetrieveFn  func(items []*lexnet.Notification) ([]lexnet.ItemResult, error)
	RetrieveErr error

	mu         sync.Mutex
	CloseCalls int
}

func (s *FakeSession) Authenticate() error {
	return s.AuthErr
}

func (s *FakeSession) ListPending() ([]*lexnet.Notification, error) {
	return s.ListItems, s.ListErr
}

func (s *FakeSession) Retrieve(items []*lexnet.Notification) ([]lexnet.ItemResult, error) {
	if s.RetrieveErr != nil {
		return nil, s.RetrieveErr
	}

	if s.RetrieveFn != nil {
		return s.RetrieveFn(items)
	}

	results := make([]lexnet.ItemResult, 0, len(items))
	for _, n := range items {
		results = append(results, lexnet.ItemResult{ID: n.ID})
	}
	return results, nil
}

func (s *FakeSession) Close() {
	s.mu.Lock()
	s.CloseCalls++
	s.mu.Unlock()
}

func (s *FakeSession) Closed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CloseCalls
}

// FakeFactory hands out scripted sessions keyed by identity. Unknown
// identities get Err, or a fresh empty session when Err is nil.
type FakeFactory struct {
	Sessions map[string]*FakeSession
	Err      error

	mu     sync.Mutex
	Opened []*lexnet.SessionConfig
}

func (f *FakeFactory) NewSession(cfg *lexnet.SessionConfig) (lexnet.Session, error) {
	f.mu.Lock()
	f.Opened = append(f.Opened, cfg)
	f.mu.Unlock()

	if sess, ok := f.Sessions[cfg.Identity.Key()]; ok {
		return sess, nil
	}

	if f.Err != nil {
		return nil, f.Err
	}

	return &FakeSession{}, nil
}

// AllClosed reports whether every scripted session was closed at least
// once.
func (f *FakeFactory) AllClosed() bool {
	for _, s := range f.Sessions {
		if s.Closed() == 0 {
			return false
		}
	}
	return true
}
