package testhelpers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/mux"
)

// RecordedCall is one request the fake backend received.
type RecordedCall struct {
	Method string
	Path   string
	Body   []byte
	Header http.Header
}

// BackendBehavior controls how FakeBackend answers. Zero status values mean
// 200.
type BackendBehavior struct {
	QuotaAllowed    bool
	QuotaStatus     int
	CreateStatus    int
	CreateResponse  map[string]any
	TicketStatus    int
	PutStatus       int
	ConfirmStatus   int
	RemoveStatus    int
	HealthStatus    int
	DropCreateReply bool
}

// FakeBackend is an in-process stand-in for the profile backend and its
// object storage, routed with gorilla/mux.
type FakeBackend struct {
	Server *httptest.Server

	mu                  sync.Mutex
	behavior            BackendBehavior
	calls               []RecordedCall
	uploadedBytes       []byte
	uploadedContentType string
	ticketCount         int
}

func NewFakeBackend() *FakeBackend {
	f := &FakeBackend{behavior: BackendBehavior{
		QuotaAllowed:   true,
		CreateResponse: map[string]any{"_id": "subj-1"},
	}}

	r := mux.NewRouter()
	r.Use(f.record)
	r.HandleFunc("/health", f.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/usage/{action}", f.handleUsage).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/profiles/birth-details", f.handleCreate).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/profiles/birth-details/unknown-time", f.handleCreate).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/profiles/{subjectId}/photo/upload-url", f.handleTicket).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/profiles/{subjectId}/photo/confirm", f.handleConfirm).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/profiles/{subjectId}/photo", f.handleRemove).Methods(http.MethodDelete)
	r.HandleFunc("/storage/{key}", f.handlePut).Methods(http.MethodPut)

	f.Server = httptest.NewServer(r)
	return f
}

func (f *FakeBackend) URL() string { return f.Server.URL }
func (f *FakeBackend) Close()      { f.Server.Close() }

// Configure mutates the behaviour under the lock.
func (f *FakeBackend) Configure(fn func(b *BackendBehavior)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(&f.behavior)
}

func (f *FakeBackend) Calls() []RecordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RecordedCall(nil), f.calls...)
}

// CallCount counts requests matching method and path exactly.
func (f *FakeBackend) CallCount(method, path string) int {
	n := 0
	for _, c := range f.Calls() {
		if c.Method == method && c.Path == path {
			n++
		}
	}
	return n
}

// LastBody returns the JSON body of the most recent request to path.
func (f *FakeBackend) LastBody(path string) map[string]any {
	calls := f.Calls()
	for i := len(calls) - 1; i >= 0; i-- {
		if calls[i].Path == path {
			var out map[string]any
			_ = json.Unmarshal(calls[i].Body, &out)
			return out
		}
	}
	return nil
}

func (f *FakeBackend) Uploaded() ([]byte, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uploadedBytes, f.uploadedContentType
}

func (f *FakeBackend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))
		f.mu.Lock()
		f.calls = append(f.calls, RecordedCall{Method: r.Method, Path: r.URL.Path, Body: body, Header: r.Header.Clone()})
		f.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (f *FakeBackend) snapshot() BackendBehavior {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.behavior
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if status >= 300 {
		_ = json.NewEncoder(w).Encode(map[string]string{"message": http.StatusText(status)})
		return
	}
	_ = json.NewEncoder(w).Encode(body)
}

func (f *FakeBackend) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, f.snapshot().HealthStatus, map[string]string{"status": "OK"})
}

func (f *FakeBackend) handleUsage(w http.ResponseWriter, _ *http.Request) {
	b := f.snapshot()
	used, limit := 0, 3
	if !b.QuotaAllowed {
		used = limit
	}
	writeJSON(w, b.QuotaStatus, map[string]any{"allowed": b.QuotaAllowed, "used": used, "limit": limit})
}

func (f *FakeBackend) handleCreate(w http.ResponseWriter, _ *http.Request) {
	b := f.snapshot()
	if b.DropCreateReply {
		// The subject exists server-side but the caller never hears back.
		hj, ok := w.(http.Hijacker)
		if ok {
			if conn, _, err := hj.Hijack(); err == nil {
				_ = conn.Close()
				return
			}
		}
	}
	status := b.CreateStatus
	if status == 0 {
		status = http.StatusCreated
	}
	writeJSON(w, status, b.CreateResponse)
}

func (f *FakeBackend) handleTicket(w http.ResponseWriter, r *http.Request) {
	b := f.snapshot()
	var req struct {
		MimeType string `json:"mimeType"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	f.mu.Lock()
	f.ticketCount++
	key := "photos/" + mux.Vars(r)["subjectId"] + "/" + strconv.Itoa(f.ticketCount)
	f.mu.Unlock()

	writeJSON(w, b.TicketStatus, map[string]any{
		"uploadUrl":   f.Server.URL + "/storage/" + strings.ReplaceAll(key, "/", "_"),
		"photoKey":    key,
		"contentType": req.MimeType,
	})
}

func (f *FakeBackend) handlePut(w http.ResponseWriter, r *http.Request) {
	b := f.snapshot()
	body, _ := io.ReadAll(r.Body)
	if b.PutStatus == 0 || b.PutStatus < 300 {
		f.mu.Lock()
		f.uploadedBytes = body
		f.uploadedContentType = r.Header.Get("Content-Type")
		f.mu.Unlock()
	}
	status := b.PutStatus
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
}

func (f *FakeBackend) handleConfirm(w http.ResponseWriter, r *http.Request) {
	b := f.snapshot()
	var req struct {
		PhotoKey string `json:"photoKey"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	writeJSON(w, b.ConfirmStatus, map[string]any{
		"profilePhotoUrl": "https://cdn.example.test/" + req.PhotoKey,
		"profilePhotoKey": req.PhotoKey,
	})
}

func (f *FakeBackend) handleRemove(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, f.snapshot().RemoveStatus, map[string]bool{"ok": true})
}
