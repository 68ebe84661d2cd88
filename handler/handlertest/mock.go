package handlertest

import (
	"errors"
	"net/http"

	"github.com/skuid/tenantsql/handler"
)

// MockSessionProvider can be used to test handlers that are wrapped with authorizers.
type MockSessionProvider struct {
	User             *handler.User
	Error            error
	RequireUserCalls int
	LastRequest      *http.Request
}

// RequireUser returns the error stored in MockSessionProvider, or its user, and records the call
func (m *MockSessionProvider) RequireUser(r *http.Request) (*handler.User, error) {
	m.RequireUserCalls++
	m.LastRequest = r
	if m.Error != nil {
		return nil, m.Error
	}
	return m.User, nil
}

// MultiMockSessionProvider can be used to string together a series of sessions
type MultiMockSessionProvider struct {
	Mocks []MockSessionProvider
	index int
}

// Returns the next mock in the series of mocks
func (multi *MultiMockSessionProvider) next() (*MockSessionProvider, error) {
	currentIndex := multi.index
	if len(multi.Mocks) > currentIndex {
		multi.index = multi.index + 1
		return &multi.Mocks[currentIndex], nil
	}
	return nil, errors.New("Mock Function was called but not expected")
}

// RequireUser delegates to the next mock in the series
func (multi *MultiMockSessionProvider) RequireUser(r *http.Request) (*handler.User, error) {
	next, err := multi.next()
	if err != nil {
		return nil, err
	}
	return next.RequireUser(r)
}
