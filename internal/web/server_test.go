package web_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"textbridge/internal/bridge"
	"textbridge/internal/metrics"
	"textbridge/internal/web"
)

type stubSender struct {
	mu    sync.Mutex
	texts []string
	body  string
	err   error
}

func (s *stubSender) Send(_ context.Context, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.texts = append(s.texts, text)
	if s.err != nil {
		return "", s.err
	}
	return s.body, nil
}

func (s *stubSender) calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

func newTestServer(t *testing.T, sender bridge.Sender, gatherer prometheus.Gatherer) *httptest.Server {
	t.Helper()

	h, err := web.NewRouter(web.Options{
		Sender:   sender,
		Endpoint: "https://example.test/post",
		Gatherer: gatherer,
		Log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	return srv
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()

	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return string(b)
}

func TestNewRouterRequiresSender(t *testing.T) {
	_, err := web.NewRouter(web.Options{})
	require.Error(t, err)
}

func TestIndexRendersForm(t *testing.T) {
	srv := newTestServer(t, &stubSender{}, nil)

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)

	body := readBody(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	require.Contains(t, body, `action="/submit"`)
	require.Contains(t, body, "https://example.test/post")
}

func TestSubmit(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		sender     *stubSender
		wantStatus int
		wantBody   []string
		wantCalls  int
	}{
		{
			name:       "Success",
			text:       "hello",
			sender:     &stubSender{body: `{"translated":"HI"}`},
			wantStatus: http.StatusOK,
			wantBody:   []string{"Your Submitted Text:", "hello", "{&#34;translated&#34;:&#34;HI&#34;}"},
			wantCalls:  1,
		},
		{
			name:       "Links in response",
			text:       "where",
			sender:     &stubSender{body: "see https://example.org/a?b=1&c=2 now"},
			wantStatus: http.StatusOK,
			wantBody:   []string{`<a href="https://example.org/a?b=1&amp;c=2"`},
			wantCalls:  1,
		},
		{
			name:       "Markup in response is escaped",
			text:       "x",
			sender:     &stubSender{body: "<script>alert(1)</script>"},
			wantStatus: http.StatusOK,
			wantBody:   []string{"&lt;script&gt;alert(1)&lt;/script&gt;"},
			wantCalls:  1,
		},
		{
			name:       "Blank text",
			text:       "   \n\t",
			sender:     &stubSender{},
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   []string{"Please enter some text!"},
			wantCalls:  0,
		},
		{
			name: "Status failure",
			text: "hello",
			sender: &stubSender{err: &bridge.Error{
				Kind:       bridge.KindStatus,
				Op:         "post",
				StatusCode: http.StatusInternalServerError,
				Status:     "500 Internal Server Error",
			}},
			wantStatus: http.StatusBadGateway,
			wantBody:   []string{"status", "500 Internal Server Error"},
			wantCalls:  1,
		},
		{
			name:       "Canceled",
			text:       "hello",
			sender:     &stubSender{err: &bridge.Error{Kind: bridge.KindCanceled, Op: "do request", Err: context.DeadlineExceeded}},
			wantStatus: http.StatusGatewayTimeout,
			wantBody:   []string{"canceled"},
			wantCalls:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.sender, nil)

			resp, err := http.PostForm(srv.URL+"/submit", url.Values{"text": {tt.text}})
			require.NoError(t, err)

			body := readBody(t, resp)
			require.Equal(t, tt.wantStatus, resp.StatusCode)
			for _, want := range tt.wantBody {
				require.Contains(t, body, want)
			}
			require.Len(t, tt.sender.calls(), tt.wantCalls)
		})
	}
}

func TestSubmitForwardsTextUnchanged(t *testing.T) {
	sender := &stubSender{body: "ok"}
	srv := newTestServer(t, sender, nil)

	text := "  leading and trailing  \n"
	resp, err := http.PostForm(srv.URL+"/submit", url.Values{"text": {text}})
	require.NoError(t, err)
	readBody(t, resp)

	require.Equal(t, []string{text}, sender.calls())
}

func TestAPISend(t *testing.T) {
	tests := []struct {
		name       string
		payload    string
		sender     *stubSender
		wantStatus int
		wantKind   string
		wantBody   string
		wantCode   int
	}{
		{
			name:       "Success",
			payload:    `{"text":"hello"}`,
			sender:     &stubSender{body: `{"translated":"HI"}`},
			wantStatus: http.StatusOK,
			wantBody:   `{"translated":"HI"}`,
		},
		{
			name:       "Empty text is forwarded",
			payload:    `{"text":""}`,
			sender:     &stubSender{body: "empty"},
			wantStatus: http.StatusOK,
			wantBody:   "empty",
		},
		{
			name:       "Missing text",
			payload:    `{}`,
			sender:     &stubSender{},
			wantStatus: http.StatusBadRequest,
			wantKind:   "invalid_request",
		},
		{
			name:       "Unknown field",
			payload:    `{"text":"a","extra":1}`,
			sender:     &stubSender{},
			wantStatus: http.StatusBadRequest,
			wantKind:   "invalid_request",
		},
		{
			name:       "Malformed JSON",
			payload:    `{"text":`,
			sender:     &stubSender{},
			wantStatus: http.StatusBadRequest,
			wantKind:   "invalid_request",
		},
		{
			name:    "Status failure",
			payload: `{"text":"hello"}`,
			sender: &stubSender{err: &bridge.Error{
				Kind:       bridge.KindStatus,
				Op:         "post",
				StatusCode: http.StatusNotFound,
				Status:     "404 Not Found",
			}},
			wantStatus: http.StatusBadGateway,
			wantKind:   "status",
			wantCode:   http.StatusNotFound,
		},
		{
			name:       "Transport failure",
			payload:    `{"text":"hello"}`,
			sender:     &stubSender{err: &bridge.Error{Kind: bridge.KindTransport, Op: "do request", Err: io.ErrUnexpectedEOF}},
			wantStatus: http.StatusBadGateway,
			wantKind:   "transport",
		},
		{
			name:       "Canceled",
			payload:    `{"text":"hello"}`,
			sender:     &stubSender{err: &bridge.Error{Kind: bridge.KindCanceled, Op: "do request", Err: context.Canceled}},
			wantStatus: http.StatusGatewayTimeout,
			wantKind:   "canceled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.sender, nil)

			resp, err := http.Post(srv.URL+"/api/send", "application/json", strings.NewReader(tt.payload))
			require.NoError(t, err)
			defer resp.Body.Close()

			require.Equal(t, tt.wantStatus, resp.StatusCode)
			require.Equal(t, "application/json", resp.Header.Get("Content-Type"))

			var got struct {
				Body  string `json:"body"`
				Error *struct {
					Kind    string `json:"kind"`
					Message string `json:"message"`
					Status  int    `json:"status"`
				} `json:"error"`
			}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))

			if tt.wantKind == "" {
				require.Nil(t, got.Error)
				require.Equal(t, tt.wantBody, got.Body)
				return
			}

			require.NotNil(t, got.Error)
			require.Equal(t, tt.wantKind, got.Error.Kind)
			require.NotEmpty(t, got.Error.Message)
			require.Equal(t, tt.wantCode, got.Error.Status)
		})
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &stubSender{}, nil)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"status":"ok"}`, readBody(t, resp))
}

func TestMetricsRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewBridgeMetrics(reg)
	sender := metrics.Instrument(&stubSender{body: "ok"}, m)

	srv := newTestServer(t, sender, reg)

	resp, err := http.Post(srv.URL+"/api/send", "application/json", strings.NewReader(`{"text":"hi"}`))
	require.NoError(t, err)
	readBody(t, resp)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)

	body := readBody(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, `bridge_requests_total{outcome="success"} 1`)
}

func TestMetricsRouteDisabledWithoutGatherer(t *testing.T) {
	srv := newTestServer(t, &stubSender{}, nil)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	readBody(t, resp)

	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
