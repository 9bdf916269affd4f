package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	timesheet "github.com/adiazcan/timesheet-speck-kit-sub001"
	"github.com/adiazcan/timesheet-speck-kit-sub001/action"
	"github.com/adiazcan/timesheet-speck-kit-sub001/api"
	"github.com/adiazcan/timesheet-speck-kit-sub001/deletion"
	"github.com/adiazcan/timesheet-speck-kit-sub001/engine"
	"github.com/adiazcan/timesheet-speck-kit-sub001/id"
	"github.com/adiazcan/timesheet-speck-kit-sub001/store/memory"
	"github.com/adiazcan/timesheet-speck-kit-sub001/submission"
)

var t0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func newServer(t *testing.T) (*engine.Engine, *httptest.Server) {
	t.Helper()
	hr := action.ExecutorFunc(func(context.Context, action.Request) (action.Result, error) {
		return action.Result{Success: true, StatusCode: 200}, nil
	})
	eraser := deletion.ExecutorFunc(func(context.Context, string) (int, error) { return 0, nil })

	eng, err := engine.Build(timesheet.DefaultConfig(), memory.New(),
		engine.WithActionExecutor(action.KindClockIn, hr),
		engine.WithActionExecutor(action.KindClockOut, hr),
		engine.WithDeletionExecutor(eraser),
		engine.WithClock(timesheet.NewManualClock(t0)),
	)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	srv := httptest.NewServer(api.New(eng).Handler())
	t.Cleanup(srv.Close)
	return eng, srv
}

func get(t *testing.T, srv *httptest.Server, path string, out any) int {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return resp.StatusCode
}

func seed(t *testing.T, eng *engine.Engine) *deletion.Request {
	t.Helper()
	ctx := context.Background()
	for _, emp := range []string{"emp-1", "emp-1", "emp-2"} {
		if _, err := eng.Queue().Enqueue(ctx, submission.EnqueueParams{
			EmployeeID: emp,
			Action:     action.KindClockIn,
			Timestamp:  t0,
		}); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	req, err := eng.Deletions().SubmitRequest(ctx, deletion.SubmitParams{EmployeeID: "emp-1", Email: "emp-1@example.com"})
	if err != nil {
		t.Fatalf("SubmitRequest: %v", err)
	}
	return req
}

func TestHealth(t *testing.T) {
	_, srv := newServer(t)
	var body map[string]bool
	if code := get(t, srv, "/healthz", &body); code != http.StatusOK || !body["ok"] {
		t.Fatalf("healthz = %d %v", code, body)
	}
}

func TestStats(t *testing.T) {
	eng, srv := newServer(t)
	seed(t, eng)

	var global api.StatsResponse
	if code := get(t, srv, "/v1/stats", &global); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if global.Submissions.Pending != 3 || global.Submissions.Total != 3 {
		t.Errorf("submissions = %+v, want 3 pending", global.Submissions)
	}
	if global.Deletions.Pending != 1 {
		t.Errorf("deletions = %+v, want 1 pending", global.Deletions)
	}

	var emp api.StatsResponse
	if code := get(t, srv, "/v1/employees/emp-2/stats", &emp); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if emp.Submissions.Total != 1 || emp.Deletions.Total != 0 {
		t.Errorf("emp-2 stats = %+v", emp)
	}
}

func TestEmployeeQueue(t *testing.T) {
	eng, srv := newServer(t)
	seed(t, eng)

	var items []map[string]any
	if code := get(t, srv, "/v1/employees/emp-1/queue", &items); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if items[0]["employee_id"] != "emp-1" {
		t.Errorf("employee_id = %v", items[0]["employee_id"])
	}

	var empty []map[string]any
	if code := get(t, srv, "/v1/employees/nobody/queue", &empty); code != http.StatusOK || len(empty) != 0 {
		t.Errorf("unknown employee = %d %v, want empty list", code, empty)
	}
}

func TestDeletions(t *testing.T) {
	eng, srv := newServer(t)
	req := seed(t, eng)

	var list []map[string]any
	if code := get(t, srv, "/v1/employees/emp-1/deletions", &list); code != http.StatusOK || len(list) != 1 {
		t.Fatalf("list = %d %v", code, list)
	}

	var pending map[string]any
	if code := get(t, srv, "/v1/employees/emp-1/deletions/pending", &pending); code != http.StatusOK {
		t.Fatalf("pending status = %d", code)
	}
	if pending["id"] != req.ID.String() {
		t.Errorf("pending id = %v, want %s", pending["id"], req.ID)
	}

	if code := get(t, srv, "/v1/employees/emp-2/deletions/pending", nil); code != http.StatusNotFound {
		t.Errorf("no pending request: status = %d, want 404", code)
	}

	path := "/v1/employees/emp-1/deletions/" + req.ID.String()
	if code := get(t, srv, path, nil); code != http.StatusOK {
		t.Errorf("owner lookup: status = %d, want 200", code)
	}
	// Another employee cannot see the request.
	path = "/v1/employees/emp-2/deletions/" + req.ID.String()
	if code := get(t, srv, path, nil); code != http.StatusNotFound {
		t.Errorf("foreign lookup: status = %d, want 404", code)
	}
	if code := get(t, srv, "/v1/employees/emp-1/deletions/"+id.NewDeletionID().String(), nil); code != http.StatusNotFound {
		t.Errorf("unknown id: status = %d, want 404", code)
	}

	var errBody api.ErrorResponse
	if code := get(t, srv, "/v1/employees/emp-1/deletions/not-an-id", &errBody); code != http.StatusBadRequest {
		t.Errorf("malformed id: status = %d, want 400", code)
	}
	if errBody.Error == "" {
		t.Error("expected an error message")
	}
}
