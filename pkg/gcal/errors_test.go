package gcal

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

func TestClassify(t *testing.T) {
	t.Run("nil passes through", func(t *testing.T) {
		assert.NoError(t, classify(nil))
	})

	t.Run("429 is a rate limit", func(t *testing.T) {
		err := classify(&googleapi.Error{Code: http.StatusTooManyRequests})
		assert.True(t, IsRateLimit(err))
	})

	t.Run("403 rateLimitExceeded is a rate limit", func(t *testing.T) {
		err := classify(&googleapi.Error{
			Code:   http.StatusForbidden,
			Errors: []googleapi.ErrorItem{{Reason: "rateLimitExceeded"}},
		})
		assert.True(t, IsRateLimit(err))
	})

	t.Run("403 userRateLimitExceeded is a rate limit", func(t *testing.T) {
		err := classify(&googleapi.Error{
			Code:   http.StatusForbidden,
			Errors: []googleapi.ErrorItem{{Reason: "userRateLimitExceeded"}},
		})
		assert.True(t, IsRateLimit(err))
	})

	t.Run("403 for other reasons is permanent", func(t *testing.T) {
		err := classify(&googleapi.Error{
			Code:   http.StatusForbidden,
			Errors: []googleapi.ErrorItem{{Reason: "insufficientPermissions"}},
		})
		assert.False(t, IsRateLimit(err))
		var rerr *RemoteError
		require.ErrorAs(t, err, &rerr)
		assert.Equal(t, http.StatusForbidden, rerr.Status)
	})

	t.Run("500 is permanent and keeps the status", func(t *testing.T) {
		err := classify(&googleapi.Error{Code: http.StatusInternalServerError, Body: "boom"})
		var rerr *RemoteError
		require.ErrorAs(t, err, &rerr)
		assert.Equal(t, http.StatusInternalServerError, rerr.Status)
		assert.Equal(t, "boom", rerr.Body)
	})

	t.Run("plain errors become remote errors", func(t *testing.T) {
		cause := errors.New("connection reset")
		err := classify(cause)
		var rerr *RemoteError
		require.ErrorAs(t, err, &rerr)
		assert.ErrorIs(t, err, cause)
		assert.False(t, IsRateLimit(err))
	})
}
