package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flitsinc/taskplex-monitor/internal/api"
	"github.com/flitsinc/taskplex-monitor/internal/monitor"
	"github.com/flitsinc/taskplex-monitor/internal/testutil"
)

func TestHealthCommand(t *testing.T) {
	db, closeFn := testutil.OpenTestDB(t)
	defer closeFn()
	logger := testutil.QuietLogger()
	srv := httptest.NewServer((&api.Server{Monitor: monitor.New(db, monitor.Options{Logger: logger}), Logger: logger}).Handler())
	defer srv.Close()

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"health", "--url", srv.URL + "/"})
	require.NoError(t, root.Execute())
	assert.Equal(t, "status=ok events=0 runs=0\n", out.String())
}

func TestHealthCommandFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := fetchHealth(srv.Client(), srv.URL)
	assert.ErrorContains(t, err, "status 503")
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Equal(t, version+"\n", out.String())
}
