package handlertest_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/skuid/tenantsql/handler"
	"github.com/skuid/tenantsql/handler/handlertest"
	"github.com/stretchr/testify/assert"
)

func ok(r *http.Request) (interface{}, error) {
	return handler.UserFromContext(r.Context()), nil
}

func TestMockRequireUser(t *testing.T) {
	testCases := []struct {
		description string
		giveUser    *handler.User
		giveError   error
		wantStatus  int
	}{
		{
			"Should return error if present, regardless of user set",
			&handler.User{ID: "1"},
			errors.New("Some error"),
			http.StatusUnauthorized,
		},
		{
			"Should return set user",
			&handler.User{ID: "1", Role: 3},
			nil,
			http.StatusOK,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			assert := assert.New(t)

			sessions := &handlertest.MockSessionProvider{
				User:  tc.giveUser,
				Error: tc.giveError,
			}
			h := handler.NewWrapper(sessions, nil).Wrap(ok, handler.AnyUser)

			r := httptest.NewRequest("GET", "/", nil)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)

			assert.Equal(tc.wantStatus, w.Code)
			assert.Equal(1, sessions.RequireUserCalls)
			assert.Equal(r.URL.Path, sessions.LastRequest.URL.Path)
		})
	}
}

func TestMultiMockRequireUser(t *testing.T) {
	assert := assert.New(t)

	sessions := &handlertest.MultiMockSessionProvider{
		Mocks: []handlertest.MockSessionProvider{
			{User: &handler.User{ID: "1", Role: 1}},
			{User: &handler.User{ID: "2", Role: 2}},
		},
	}
	h := handler.NewWrapper(sessions, nil).Wrap(ok, handler.Roles{1})

	statuses := []int{}
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
		statuses = append(statuses, w.Code)
	}

	// the third call has no mock left and is treated as an unauthenticated request
	assert.Equal([]int{http.StatusOK, http.StatusForbidden, http.StatusUnauthorized}, statuses)
}
