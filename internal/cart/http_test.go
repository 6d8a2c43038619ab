package cart

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func newCartTS(t *testing.T) *httptest.Server {
	t.Helper()

	s := &Server{
		Engine:         NewEngine(NewMemStore(), zap.NewNop(), nil),
		Log:            zap.NewNop(),
		DefaultSession: "default",
	}

	r := chi.NewRouter()
	r.Mount("/api/cart", s.Routes())
	r.Mount("/api/sessions/{sessionID}/cart", s.Routes())

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts
}

func call(t *testing.T, method, url, body string, headers map[string]string) (int, cartResponse) {
	t.Helper()

	var rd io.Reader
	if body != "" {
		rd = bytes.NewBufferString(body)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}

	var out cartResponse
	if resp.StatusCode == http.StatusOK {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("decode: %v body=%s", err, raw)
		}
	}
	return resp.StatusCode, out
}

func TestHTTP_ImplicitSessionFlow(t *testing.T) {
	ts := newCartTS(t)

	code, c := call(t, http.MethodGet, ts.URL+"/api/cart", "", nil)
	if code != http.StatusOK || c.SessionID != "default" || len(c.Items) != 0 {
		t.Fatalf("get status=%d cart=%+v", code, c)
	}

	code, c = call(t, http.MethodPost, ts.URL+"/api/cart/add", `{"id":1,"name":"Widget","price":10,"quantity":2}`, nil)
	if code != http.StatusOK || len(c.Items) != 1 || c.Items[0].Quantity != 2 || c.Total != 20 {
		t.Fatalf("add status=%d cart=%+v", code, c)
	}

	code, c = call(t, http.MethodPost, ts.URL+"/api/cart/remove", `{"id":1}`, nil)
	if code != http.StatusOK || c.Items[0].Quantity != 1 {
		t.Fatalf("single-unit remove status=%d cart=%+v", code, c)
	}

	code, c = call(t, http.MethodPost, ts.URL+"/api/cart/delete", `{"id":"1"}`, nil)
	if code != http.StatusOK || len(c.Items) != 0 {
		t.Fatalf("delete status=%d cart=%+v", code, c)
	}
}

func TestHTTP_PathSessionAndBulkRemove(t *testing.T) {
	ts := newCartTS(t)
	base := ts.URL + "/api/sessions/abc/cart"

	code, _ := call(t, http.MethodPost, base+"/add", `{"items":[{"id":"a","name":"A","price":1,"quantity":4},{"id":"b","quantity":1}]}`, nil)
	if code != http.StatusOK {
		t.Fatalf("add status=%d", code)
	}

	code, c := call(t, http.MethodPost, base+"/remove", `{"items":[{"id":"a","quantity":3},{"id":"b","quantity":5}]}`, nil)
	if code != http.StatusOK {
		t.Fatalf("remove status=%d", code)
	}
	if c.SessionID != "abc" || len(c.Items) != 1 || c.Items[0].ID != "a" || c.Items[0].Quantity != 1 {
		t.Fatalf("cart=%+v", c)
	}

	_, other := call(t, http.MethodGet, ts.URL+"/api/cart", "", nil)
	if len(other.Items) != 0 {
		t.Fatalf("default session should be untouched: %+v", other)
	}
}

func TestHTTP_EnvelopeResolvesSession(t *testing.T) {
	ts := newCartTS(t)

	body := `{"message":{"call":{"id":"call-7"},"toolCalls":[{"id":"tc","function":{"arguments":{"quantity":2,"description":"Row 3"}}}]}}`
	code, c := call(t, http.MethodPost, ts.URL+"/api/cart/seats/purchase", body, nil)
	if code != http.StatusOK || c.SessionID != "call-7" {
		t.Fatalf("status=%d cart=%+v", code, c)
	}
	if len(c.Items) != 1 || c.Items[0].ID != "seat-purchase" || c.Items[0].Quantity != 2 || c.Items[0].Description != "Row 3" {
		t.Fatalf("items=%+v", c.Items)
	}

	code, c = call(t, http.MethodPost, ts.URL+"/api/sessions/call-7/cart/seats/upgrade", "", nil)
	if code != http.StatusOK || len(c.Items) != 2 {
		t.Fatalf("upgrade status=%d cart=%+v", code, c)
	}
}

func TestHTTP_HeaderSession(t *testing.T) {
	ts := newCartTS(t)
	h := map[string]string{sessionHeader: "hdr"}

	call(t, http.MethodPost, ts.URL+"/api/cart/add", `{"id":"z","quantity":1}`, h)
	_, c := call(t, http.MethodGet, ts.URL+"/api/cart", "", h)
	if c.SessionID != "hdr" || len(c.Items) != 1 {
		t.Fatalf("cart=%+v", c)
	}
}

func TestHTTP_ValidationIsBadRequest(t *testing.T) {
	ts := newCartTS(t)

	cases := map[string]string{
		"/add":    `{"id":"a","quantity":"many"}`,
		"/delete": `{}`,
		"/remove": `{"items":[]}`,
	}
	for path, body := range cases {
		code, _ := call(t, http.MethodPost, ts.URL+"/api/cart"+path, body, nil)
		if code != http.StatusBadRequest {
			t.Fatalf("%s status=%d want=%d", path, code, http.StatusBadRequest)
		}
	}
}

func TestHTTP_StorageFailureIsOpaque500(t *testing.T) {
	s := &Server{
		Engine:         NewEngine(&failingStore{saveErr: io.ErrUnexpectedEOF}, zap.NewNop(), nil),
		DefaultSession: "default",
	}
	ts := httptest.NewServer(s.Routes())
	t.Cleanup(ts.Close)

	resp, err := http.Post(ts.URL+"/add", "application/json", bytes.NewBufferString(`{"id":"a","quantity":1}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status=%d want=500", resp.StatusCode)
	}
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "server error" {
		t.Fatalf("error=%q", body.Error)
	}
}
