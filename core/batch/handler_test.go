package batch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/darsuna/storefront/api/weberr"
	"github.com/darsuna/storefront/backend"
)

func newBatchBackend(t *testing.T, batches string) *backend.Client {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/batch/get" {
			t.Errorf("unexpected backend call: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(batches))
	}))
	t.Cleanup(srv.Close)

	c, err := backend.New(backend.Config{URL: srv.URL})
	if err != nil {
		t.Fatalf("building client: %v", err)
	}
	return c
}

func TestHandleList(t *testing.T) {
	bc := newBatchBackend(t, `[
		{"batch_num":2,"class_type":"beginner","active":true,"start_date":"2099-03-01","max_students":20,"students":5},
		{"batch_num":1,"class_type":"beginner","active":true,"start_date":"2099-01-01","max_students":20,"students":20},
		{"batch_num":3,"class_type":"advanced","active":false,"start_date":"2099-02-01","max_students":20}
	]`)

	h := HandleList(bc)
	r := httptest.NewRequest(http.MethodGet, "/batches", nil)
	w := httptest.NewRecorder()

	if err := h(context.Background(), w, r); err != nil {
		t.Fatalf("handler: %v", err)
	}

	var got []struct {
		BatchNum  int `json:"batch_num"`
		Remaining int `json:"remaining"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding body: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("batches: got %d, want 2 (inactive dropped)", len(got))
	}
	if got[0].BatchNum != 1 || got[1].BatchNum != 2 {
		t.Errorf("order: got %d, %d", got[0].BatchNum, got[1].BatchNum)
	}
	if got[0].Remaining != 0 || got[1].Remaining != 15 {
		t.Errorf("remaining: got %d, %d", got[0].Remaining, got[1].Remaining)
	}
}

func TestHandleListNext(t *testing.T) {
	bc := newBatchBackend(t, `[
		{"batch_num":1,"class_type":"beginner","active":true,"start_date":"2099-01-01","max_students":20,"students":20},
		{"batch_num":2,"class_type":"beginner","active":true,"start_date":"2099-03-01","max_students":20,"students":5},
		{"batch_num":3,"class_type":"beginner","active":true,"start_date":"2099-05-01","max_students":20}
	]`)

	h := HandleList(bc)
	r := httptest.NewRequest(http.MethodGet, "/batches?next=beginner", nil)
	w := httptest.NewRecorder()

	if err := h(context.Background(), w, r); err != nil {
		t.Fatalf("handler: %v", err)
	}

	var got struct {
		BatchNum  int `json:"batch_num"`
		Remaining int `json:"remaining"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if got.BatchNum != 2 {
		t.Fatalf("next batch: got %d, want 2 (earliest joinable, full one skipped)", got.BatchNum)
	}
	if got.Remaining != 15 {
		t.Errorf("remaining: got %d, want 15", got.Remaining)
	}
}

func TestHandleListNextNoneJoinable(t *testing.T) {
	bc := newBatchBackend(t, `[
		{"batch_num":1,"class_type":"beginner","active":true,"start_date":"2099-01-01","max_students":20,"students":20}
	]`)

	h := HandleList(bc)
	r := httptest.NewRequest(http.MethodGet, "/batches?next=advanced", nil)
	w := httptest.NewRecorder()

	err := h(context.Background(), w, r)
	if err == nil {
		t.Fatal("expected an error when no batch is joinable")
	}
	if _, status, ok := weberr.Response(err); !ok || status != http.StatusNotFound {
		t.Fatalf("expected a 404 response error, got %v", err)
	}
}
