package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"granpix/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *ChallongeClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		ChallongeBaseURL:  srv.URL,
		ChallongeUsername: "granpix",
		ChallongeAPIKey:   "test-key",
	}
	return NewChallongeClient(cfg, zerolog.Nop())
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(&StatusError{Status: StatusTransient}))
	assert.True(t, IsTransient(errors.New("connection refused")))
	assert.False(t, IsTransient(&StatusError{Status: http.StatusUnprocessableEntity}))
	assert.False(t, IsTransient(&StatusError{Status: http.StatusNotFound}))
	assert.False(t, IsTransient(nil))
}

func TestCreateTournamentSendsFormAndAuth(t *testing.T) {
	var gotAuth, gotContentType, gotName, gotSlug, gotType string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		gotName = r.PostFormValue("tournament[name]")
		gotSlug = r.PostFormValue("tournament[url]")
		gotType = r.PostFormValue("tournament[tournament_type]")
		w.Write([]byte(`{"tournament":{"id":42,"name":"Etapa 1","url":"granpix_e1_abc","state":"pending"}}`))
	})

	tournament, err := client.CreateTournament(context.Background(), "Etapa 1", "granpix_e1_abc")
	require.NoError(t, err)
	assert.Equal(t, int64(42), tournament.ID)

	// Basic base64("granpix:test-key")
	assert.Equal(t, "Basic Z3JhbnBpeDp0ZXN0LWtleQ==", gotAuth)
	assert.Equal(t, "application/x-www-form-urlencoded", gotContentType)
	assert.Equal(t, "Etapa 1", gotName)
	assert.Equal(t, "granpix_e1_abc", gotSlug)
	assert.Equal(t, "single elimination", gotType)
}

func TestNonSuccessStatusBecomesStatusError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":["URL is invalid"]}`, http.StatusUnprocessableEntity)
	})

	_, err := client.CreateTournament(context.Background(), "Etapa 1", "bad slug")
	require.Error(t, err)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnprocessableEntity, se.Status)
	assert.Contains(t, se.Body, "URL is invalid")
}

func TestTransientStatusIsRetried(t *testing.T) {
	attempts := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(StatusTransient)
			return
		}
		w.Write([]byte(`[]`))
	})

	matches, err := client.ListMatches(context.Background(), "granpix_e1_abc")
	require.NoError(t, err)
	assert.Empty(t, matches)
	assert.Equal(t, 2, attempts)
}

func TestDeleteTournamentDoesNotRetry(t *testing.T) {
	attempts := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(StatusTransient)
	})

	err := client.DeleteTournament(context.Background(), "granpix_e1_abc")
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}
