package remote_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"babylog/internal/babylog"
	"babylog/internal/model"
	"babylog/internal/remote"
	"babylog/internal/testutil"
)

// recordedSleep captures the waits between rate-limited attempts without sleeping.
type recordedSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordedSleep) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return nil
}

func (s *recordedSleep) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*remote.Client, *testutil.RecordingNotifier, *recordedSleep) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	notifier := testutil.NewRecordingNotifier()
	sleeper := &recordedSleep{}
	client := remote.NewClient(remote.Config{
		APIURL:     ts.URL,
		BaseID:     "appBase",
		Table:      "Events",
		Token:      "pat.secret",
		HTTPClient: ts.Client(),
		Sleep:      sleeper.sleep,
		Notifier:   notifier,
	})
	return client, notifier, sleeper
}

func TestClient_Create(t *testing.T) {
	var got struct {
		Fields   map[string]any `json:"fields"`
		Typecast bool           `json:"typecast"`
	}
	client, notifier, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/appBase/Events" {
			t.Errorf("path = %s, want /appBase/Events", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer pat.secret" {
			t.Errorf("Authorization = %q, want bearer token", auth)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Write([]byte(`{"id":"recNEW","createdTime":"2024-01-15T10:30:00.000Z","fields":{"Type":"Feeding","Timestamp":"2024-01-15T10:30:00Z","Side":"Left","StartTime":"2024-01-15T10:27:55Z","Duration":125}}`))
	})

	end := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	created, err := client.Create(context.Background(), &model.Record{
		Type:            model.EventFeeding,
		Timestamp:       end,
		Side:            model.SideLeft,
		StartTime:       end.Add(-125 * time.Second),
		DurationSeconds: 125,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if !got.Typecast {
		t.Error("typecast = false, want true")
	}
	if got.Fields["Type"] != "feeding" || got.Fields["Side"] != "left" || got.Fields["Duration"] != float64(125) {
		t.Errorf("fields = %v, want feeding/left/125", got.Fields)
	}
	if _, ok := got.Fields["Temperature"]; ok {
		t.Error("feeding request carries a Temperature column")
	}

	if created.ID != "recNEW" || created.Type != model.EventFeeding || created.Side != model.SideLeft {
		t.Errorf("created = %+v, want recNEW left feeding", created)
	}
	if created.DurationSeconds != 125 {
		t.Errorf("DurationSeconds = %d, want 125", created.DurationSeconds)
	}
	if len(notifier.Messages()) != 0 {
		t.Errorf("notifications = %v, want none", notifier.Messages())
	}
}

func TestClient_List(t *testing.T) {
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		want := map[string]string{
			"filterByFormula":    "AND(NOT(IS_BEFORE({Timestamp}, '2024-01-15T00:00:00Z')), IS_BEFORE({Timestamp}, '2024-01-16T00:00:00Z'))",
			"pageSize":           "100",
			"offset":             "itrA",
			"sort[0][field]":     "Timestamp",
			"sort[0][direction]": "desc",
		}
		for k, v := range want {
			if got := q.Get(k); got != v {
				t.Errorf("query %s = %q, want %q", k, got, v)
			}
		}
		w.Write([]byte(`{"records":[
			{"id":"rec1","fields":{"Type":"pee","Timestamp":"2024-01-15T09:00:00Z"}},
			{"id":"rec2","createdTime":"2024-01-15T08:00:00.000Z","fields":{"Type":"Temperature","Temperature":36.9}}
		],"offset":"itrB"}`))
	})

	day := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	page, err := client.List(context.Background(), babylog.ListQuery{
		Since:      day,
		Until:      day.Add(24 * time.Hour),
		Descending: true,
		PageSize:   100,
		PageToken:  "itrA",
	})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if page.NextPageToken != "itrB" {
		t.Errorf("NextPageToken = %q, want %q", page.NextPageToken, "itrB")
	}
	if len(page.Records) != 2 {
		t.Fatalf("len(Records) = %d, want 2", len(page.Records))
	}
	temp := page.Records[1]
	if temp.Type != model.EventTemperature || temp.Temperature != 36.9 {
		t.Errorf("Records[1] = %+v, want a 36.9 temperature", temp)
	}
	if want := time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC); !temp.Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v, want createdTime %v", temp.Timestamp, want)
	}
}

func TestClient_Delete(t *testing.T) {
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/appBase/Events/rec42" {
			t.Errorf("request = %s %s, want DELETE /appBase/Events/rec42", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{"id":"rec42","deleted":true}`))
	})

	if err := client.Delete(context.Background(), "rec42"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
}

func TestClient_RateLimit(t *testing.T) {
	t.Run("gives up after two retries", func(t *testing.T) {
		var calls int
		client, notifier, sleeper := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"errors":[{"error":"RATE_LIMIT_REACHED"}]}`))
		})

		_, err := client.List(context.Background(), babylog.ListQuery{})
		if err == nil {
			t.Fatal("List() expected error")
		}
		if calls != 3 {
			t.Errorf("requests = %d, want 3", calls)
		}
		delays := sleeper.Delays()
		if len(delays) != 2 || delays[0] != 30*time.Second || delays[1] != 30*time.Second {
			t.Errorf("delays = %v, want [30s 30s]", delays)
		}
		if !remote.IsRateLimited(err) {
			t.Errorf("IsRateLimited(%v) = false, want true", err)
		}
		if msgs := notifier.Messages(); len(msgs) != 1 || msgs[0] != "Error 429" {
			t.Errorf("notifications = %v, want [Error 429]", msgs)
		}
	})

	t.Run("succeeds after one retry", func(t *testing.T) {
		var calls int
		client, notifier, sleeper := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls++
			if calls == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			w.Write([]byte(`{"records":[]}`))
		})

		if _, err := client.List(context.Background(), babylog.ListQuery{}); err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if calls != 2 || len(sleeper.Delays()) != 1 {
			t.Errorf("requests = %d, sleeps = %d; want 2, 1", calls, len(sleeper.Delays()))
		}
		if len(notifier.Messages()) != 0 {
			t.Errorf("notifications = %v, want none", notifier.Messages())
		}
	})
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
		check   func(error) bool
	}{
		{
			name:    "unauthorized",
			status:  http.StatusUnauthorized,
			body:    `{"error":{"type":"AUTHENTICATION_REQUIRED","message":"Authentication required"}}`,
			wantMsg: "Invalid API token. Check your settings.",
			check:   remote.IsUnauthorized,
		},
		{
			name:    "structured message",
			status:  http.StatusUnprocessableEntity,
			body:    `{"error":{"type":"INVALID_VALUE_FOR_COLUMN","message":"Field \"Duration\" cannot accept the provided value"}}`,
			wantMsg: `Field "Duration" cannot accept the provided value`,
		},
		{
			name:    "string error",
			status:  http.StatusNotFound,
			body:    `{"error":"NOT_FOUND"}`,
			wantMsg: "NOT_FOUND",
		},
		{
			name:    "no body",
			status:  http.StatusInternalServerError,
			wantMsg: "Error 500",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int
			client, notifier, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				calls++
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			err := client.Delete(context.Background(), "rec1")
			if err == nil {
				t.Fatal("Delete() expected error")
			}
			if calls != 1 {
				t.Errorf("requests = %d, want 1", calls)
			}
			if tt.check != nil && !tt.check(err) {
				t.Errorf("error = %v, wrong kind", err)
			}
			if msgs := notifier.Messages(); len(msgs) != 1 || msgs[0] != tt.wantMsg {
				t.Errorf("notifications = %v, want [%s]", msgs, tt.wantMsg)
			}
		})
	}
}

func TestClient_ConnectionError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	notifier := testutil.NewRecordingNotifier()
	client := remote.NewClient(remote.Config{
		APIURL:   url,
		BaseID:   "appBase",
		Table:    "Events",
		Token:    "pat.secret",
		Notifier: notifier,
	})

	_, err := client.Create(context.Background(), &model.Record{Type: model.EventPee, Timestamp: time.Now()})
	if !remote.IsConnection(err) {
		t.Fatalf("Create() error = %v, want connection error", err)
	}
	if msgs := notifier.Messages(); len(msgs) != 1 || msgs[0] != "Connection error. Check your internet connection." {
		t.Errorf("notifications = %v", msgs)
	}
}

func TestClient_NotConfigured(t *testing.T) {
	var calls int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls++ }))
	defer ts.Close()

	notifier := testutil.NewRecordingNotifier()
	client := remote.NewClient(remote.Config{
		APIURL:   ts.URL,
		BaseID:   "appBase",
		Table:    "Events",
		Notifier: notifier,
	})

	if client.Configured() {
		t.Fatal("Configured() = true without a token")
	}
	_, err := client.List(context.Background(), babylog.ListQuery{})
	if !errors.Is(err, remote.ErrNotConfigured) {
		t.Errorf("List() error = %v, want ErrNotConfigured", err)
	}
	if calls != 0 {
		t.Errorf("requests = %d, want 0", calls)
	}
	if notifier.CredentialRequests() != 1 {
		t.Errorf("CredentialRequests() = %d, want 1", notifier.CredentialRequests())
	}
	if len(notifier.Messages()) != 0 {
		t.Errorf("notifications = %v, want none", notifier.Messages())
	}
}

func TestClient_RefreshUnauthorizedTodayNotifiesOnce(t *testing.T) {
	client, notifier, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("filterByFormula") != "" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":{"type":"AUTHENTICATION_REQUIRED"}}`))
			return
		}
		// The history page answers after the today call has failed.
		select {
		case <-r.Context().Done():
			return
		case <-time.After(100 * time.Millisecond):
		}
		w.Write([]byte(`{"records":[{"id":"rec1","fields":{"Type":"Pee","Timestamp":"2024-01-14T08:00:00Z"}}]}`))
	})
	syncer := babylog.NewSyncer(client, testutil.FixedClock(), time.UTC, babylog.NewNopLogger())

	if _, err := syncer.Refresh(context.Background()); err == nil {
		t.Fatal("Refresh() expected error")
	}
	msgs := notifier.Messages()
	if len(msgs) != 1 || msgs[0] != "Invalid API token. Check your settings." {
		t.Errorf("notifications = %q, want one invalid token message", msgs)
	}
	if syncer.History().Len() != 1 {
		t.Errorf("history Len() = %d, want 1", syncer.History().Len())
	}
}
