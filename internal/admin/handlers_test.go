package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	logx "fitfeed/pkg/logx"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeJobs struct {
	reminderMsg string
	blastName   string
	blastLink   string
	blastCopy   string
	fail        bool
}

func (f *fakeJobs) MassWorkoutReminder(_ context.Context, msg string) (int, error) {
	if f.fail {
		return 0, context.DeadlineExceeded
	}
	f.reminderMsg = msg
	return 7, nil
}

func (f *fakeJobs) FeaturedSuggestionBlast(_ context.Context, name, link, copyText string) (int, error) {
	f.blastName, f.blastLink, f.blastCopy = name, link, copyText
	return 3, nil
}

func newTestRouter(t *testing.T, jobs Jobs, token string) http.Handler {
	t.Helper()
	s := New(Config{Enabled: true}, jobs, func() map[string]any {
		return map[string]any{"worker_enabled": true}
	}, logx.Nop())
	return s.router(token)
}

func doJSON(t *testing.T, h http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *strings.Reader
	if body == "" {
		rd = strings.NewReader("")
	} else {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	h := newTestRouter(t, &fakeJobs{}, "")
	w := doJSON(t, h, http.MethodGet, "/healthz", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload["status"] != "ok" {
		t.Fatalf("status field = %v", payload["status"])
	}
	if payload["worker_enabled"] != true {
		t.Fatalf("worker_enabled = %v", payload["worker_enabled"])
	}
}

func TestWorkoutReminderJob(t *testing.T) {
	t.Parallel()
	jobs := &fakeJobs{}
	h := newTestRouter(t, jobs, "")

	w := doJSON(t, h, http.MethodPost, "/admin/jobs/workout-reminder", `{"custom_message":"move it"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if jobs.reminderMsg != "move it" {
		t.Fatalf("custom message = %q", jobs.reminderMsg)
	}
	var resp map[string]int
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["sent"] != 7 {
		t.Fatalf("sent = %d", resp["sent"])
	}
}

func TestWorkoutReminderEmptyBody(t *testing.T) {
	t.Parallel()
	jobs := &fakeJobs{}
	h := newTestRouter(t, jobs, "")
	w := doJSON(t, h, http.MethodPost, "/admin/jobs/workout-reminder", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
}

func TestFeaturedBlastJob(t *testing.T) {
	t.Parallel()
	jobs := &fakeJobs{}
	h := newTestRouter(t, jobs, "")

	body := `{"workout_name":"Morning HIIT","deep_link":"app://workout/42","custom_copy":"try it"}`
	w := doJSON(t, h, http.MethodPost, "/admin/jobs/featured-blast", body, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if jobs.blastName != "Morning HIIT" || jobs.blastLink != "app://workout/42" || jobs.blastCopy != "try it" {
		t.Fatalf("blast args = %q %q %q", jobs.blastName, jobs.blastLink, jobs.blastCopy)
	}
}

func TestFeaturedBlastValidation(t *testing.T) {
	t.Parallel()
	h := newTestRouter(t, &fakeJobs{}, "")
	w := doJSON(t, h, http.MethodPost, "/admin/jobs/featured-blast", `{"custom_copy":"x"}`, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestBearerAuth(t *testing.T) {
	t.Parallel()
	jobs := &fakeJobs{}
	h := newTestRouter(t, jobs, "secret")

	w := doJSON(t, h, http.MethodPost, "/admin/jobs/workout-reminder", `{"custom_message":"x"}`, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: status = %d, want 401", w.Code)
	}
	w = doJSON(t, h, http.MethodPost, "/admin/jobs/workout-reminder", `{"custom_message":"x"}`, "wrong")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token: status = %d, want 401", w.Code)
	}
	w = doJSON(t, h, http.MethodPost, "/admin/jobs/workout-reminder", `{"custom_message":"x"}`, "secret")
	if w.Code != http.StatusOK {
		t.Fatalf("good token: status = %d, want 200", w.Code)
	}
	// Health stays open.
	w = doJSON(t, h, http.MethodGet, "/healthz", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("healthz with token configured: status = %d", w.Code)
	}
}

func TestJobError(t *testing.T) {
	t.Parallel()
	h := newTestRouter(t, &fakeJobs{fail: true}, "")
	w := doJSON(t, h, http.MethodPost, "/admin/jobs/workout-reminder", `{"custom_message":"x"}`, "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
}
