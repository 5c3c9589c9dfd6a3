package lead

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func sampleLead() Lead {
	return Lead{
		Name:      "Juan Pérez",
		Email:     "juan@example.com",
		Phone:     "+54 11 5555-1234",
		Project:   "necesito una tienda online con pagos",
		Summary:   "Visitante interesado en una tienda online.",
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestLeadValidate(t *testing.T) {
	if err := sampleLead().Validate(); err != nil {
		t.Errorf("valid lead rejected: %v", err)
	}

	l := sampleLead()
	l.Email = ""
	l.Project = ""
	err := l.Validate()
	if err == nil {
		t.Fatal("lead missing email+project validated")
	}
	for _, want := range []string{"email", "project"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestNewIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewID()
		if len(id) != 32 {
			t.Fatalf("NewID() = %q, want 32 hex chars", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

// ── file store ──

func TestFileStoreRoundTrip(t *testing.T) {
	fs := NewFileStore(filepath.Join(t.TempDir(), "leads.jsonl"))
	ctx := context.Background()

	first := sampleLead()
	id1, err := fs.Record(ctx, first)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if id1 == "" {
		t.Fatal("Record assigned no ID")
	}

	second := sampleLead()
	second.Name = "Ana Gómez"
	second.Email = "ana@example.com"
	if _, err := fs.Record(ctx, second); err != nil {
		t.Fatalf("Record: %v", err)
	}

	leads, err := fs.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(leads) != 2 {
		t.Fatalf("got %d leads, want 2", len(leads))
	}
	if leads[0].ID != id1 || leads[0].Name != "Juan Pérez" {
		t.Errorf("first lead = %+v", leads[0])
	}
	if leads[1].Name != "Ana Gómez" {
		t.Errorf("insertion order not preserved: %+v", leads[1])
	}
}

func TestFileStoreKeepsExplicitID(t *testing.T) {
	fs := NewFileStore(filepath.Join(t.TempDir(), "leads.jsonl"))

	l := sampleLead()
	l.ID = "fixed-id"
	id, err := fs.Record(context.Background(), l)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if id != "fixed-id" {
		t.Errorf("Record overwrote explicit ID: %q", id)
	}
}

func TestFileStoreListMissingFile(t *testing.T) {
	fs := NewFileStore(filepath.Join(t.TempDir(), "nope.jsonl"))
	leads, err := fs.List(context.Background())
	if err != nil {
		t.Fatalf("List on missing file: %v", err)
	}
	if len(leads) != 0 {
		t.Errorf("got %d leads from missing file", len(leads))
	}
}

// ── webhook notifier ──

func TestWebhookNotify(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("bad payload: %v", err)
		}
	}))
	defer srv.Close()

	l := sampleLead()
	l.ID = "abc123"
	l.Transcript = []string{"Customer: hola"}

	n := NewWebhookNotifier(srv.URL, srv.Client())
	if err := n.Notify(context.Background(), l); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if got.ID != "abc123" || got.Email != "juan@example.com" {
		t.Errorf("payload = %+v", got)
	}
}

func TestWebhookNotifyBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, srv.Client())
	if err := n.Notify(context.Background(), sampleLead()); err == nil {
		t.Error("Notify on 502: want error, got nil")
	}
}

// ── delivery composite ──

type stubStore struct {
	err   error
	calls int
}

func (s *stubStore) Record(_ context.Context, l Lead) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return "stored-1", nil
}

type stubNotifier struct {
	err   error
	calls int
}

func (n *stubNotifier) Notify(context.Context, Lead) error {
	n.calls++
	return n.err
}

func TestDeliverySuccess(t *testing.T) {
	st := &stubStore{}
	no := &stubNotifier{}
	d := NewDelivery(st, no)

	res := d.Record(context.Background(), sampleLead())
	if !res.Success {
		t.Fatalf("Success = false: %+v", res)
	}
	if res.ID != "stored-1" || res.Note != "" || res.Error != "" {
		t.Errorf("result = %+v", res)
	}
	if st.calls != 1 || no.calls != 1 {
		t.Errorf("store calls = %d, notifier calls = %d", st.calls, no.calls)
	}
}

func TestDeliveryPartialFailure(t *testing.T) {
	d := NewDelivery(&stubStore{}, &stubNotifier{err: errors.New("smtp down")})

	res := d.Record(context.Background(), sampleLead())
	if !res.Success {
		t.Fatal("notifier failure must not fail the delivery")
	}
	if res.Note == "" || !strings.Contains(res.Note, "delayed") {
		t.Errorf("Note = %q, want partial-failure diagnostic", res.Note)
	}
}

func TestDeliveryStoreFailure(t *testing.T) {
	no := &stubNotifier{}
	d := NewDelivery(&stubStore{err: errors.New("disk full")}, no)

	res := d.Record(context.Background(), sampleLead())
	if res.Success {
		t.Fatal("store failure reported success")
	}
	if res.Error == "" {
		t.Error("Error empty on store failure")
	}
	if no.calls != 0 {
		t.Error("notifier ran despite store failure")
	}
}

func TestDeliveryInvalidLead(t *testing.T) {
	st := &stubStore{}
	d := NewDelivery(st)

	res := d.Record(context.Background(), Lead{Name: "X"})
	if res.Success {
		t.Fatal("invalid lead delivered")
	}
	if st.calls != 0 {
		t.Error("store called for invalid lead")
	}
}
