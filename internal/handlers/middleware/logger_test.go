package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	mu   sync.Mutex
	msgs []string
	args [][]any
}

func (l *recordingLogger) Info(msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append(l.msgs, msg)
	l.args = append(l.args, args)
}

func TestLoggerMiddleware(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	})

	l := &recordingLogger{}
	srv := httptest.NewServer(LoggerMiddleware(l)(handler))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/teapot")
	require.NoError(t, err)
	defer resp.Body.Close() // nolint:errcheck
	require.Equal(t, http.StatusTeapot, resp.StatusCode)

	require.Len(t, l.msgs, 1, "exactly one log line per request")
	require.Equal(t, "got HTTP request", l.msgs[0])

	// args are key-value pairs, collect them to assert on interesting ones
	kv := map[string]any{}
	args := l.args[0]
	for i := 0; i+1 < len(args); i += 2 {
		kv[args[i].(string)] = args[i+1]
	}

	require.Equal(t, http.MethodGet, kv["method"])
	require.Equal(t, "/teapot", kv["uri"])
	require.Equal(t, http.StatusTeapot, kv["status"])
	require.Equal(t, len("short and stout"), kv["size"])
}
