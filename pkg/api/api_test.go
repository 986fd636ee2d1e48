package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/absmach/fedavg/pkg/api"
	pkgerrors "github.com/absmach/fedavg/pkg/errors"
	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeError(t *testing.T) {
	cases := []struct {
		desc   string
		err    error
		status int
	}{
		{desc: "not found", err: pkgerrors.ErrNotFound, status: http.StatusNotFound},
		{desc: "wrapped not found", err: errors.Join(errors.New("round 4"), pkgerrors.ErrNotFound), status: http.StatusNotFound},
		{desc: "validation", err: errors.Join(apiutil.ErrValidation, apiutil.ErrMissingID), status: http.StatusBadRequest},
		{desc: "empty key", err: pkgerrors.ErrEmptyKey, status: http.StatusBadRequest},
		{desc: "unknown", err: errors.New("boom"), status: http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			rec := httptest.NewRecorder()
			api.EncodeError(context.Background(), tc.err, rec)

			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, api.ContentType, rec.Header().Get("Content-Type"))

			var body map[string]string
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tc.err.Error(), body["error"])
		})
	}
}
