package chat

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/ticket-assistant/backend/internal/model/chat"
	"github.com/zhouzirui/ticket-assistant/backend/internal/service/assistant/assistanttest"
	"github.com/zhouzirui/ticket-assistant/backend/internal/testutil"
)

func setupRouter() *chi.Mux {
	handler := New(assistanttest.NewEngine(testutil.NewDataAPI()), 0)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r
}

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func createSession(t *testing.T, r http.Handler, body any) chat.Session {
	t.Helper()

	resp := do(t, r, http.MethodPost, "/session", body)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var sess chat.Session
	if err := json.Unmarshal(resp.Body.Bytes(), &sess); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	return sess
}

func TestCreateSessionGuest(t *testing.T) {
	r := setupRouter()

	sess := createSession(t, r, nil)
	if sess.ID == "" || sess.User != nil {
		t.Fatalf("unexpected session: %+v", sess)
	}
}

func TestCreateSessionMissingUserID(t *testing.T) {
	r := setupRouter()

	resp := do(t, r, http.MethodPost, "/session", map[string]any{"user": map[string]string{"name": "Nok"}})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	r := setupRouter()

	resp := do(t, r, http.MethodGet, "/session/missing", nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestMessageRequiresText(t *testing.T) {
	r := setupRouter()
	sess := createSession(t, r, nil)

	resp := do(t, r, http.MethodPost, "/assistant/"+sess.ID+"/messages", map[string]string{"message": "  "})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestGuestConfirmationNavigatesToLogin(t *testing.T) {
	r := setupRouter()
	sess := createSession(t, r, nil)

	resp := do(t, r, http.MethodPost, "/assistant/"+sess.ID+"/messages", map[string]string{"message": "ยืนยันการจอง"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var body struct {
		Action struct {
			Type    string            `json:"type"`
			Payload map[string]string `json:"payload"`
		} `json:"action"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Action.Type != "navigate" || body.Action.Payload["url"] != "/login" {
		t.Fatalf("unexpected action: %+v", body.Action)
	}
}

func TestBookingResumesAfterSignIn(t *testing.T) {
	r := setupRouter()
	sess := createSession(t, r, nil)
	base := "/assistant/" + sess.ID

	if resp := do(t, r, http.MethodPost, base+"/messages", map[string]string{"message": "จอง Jazz Night"}); resp.Code != http.StatusOK {
		t.Fatalf("offer: expected 200, got %d", resp.Code)
	}
	if resp := do(t, r, http.MethodPost, base+"/messages", map[string]string{"message": "บัตร VIP"}); resp.Code != http.StatusOK {
		t.Fatalf("pick: expected 200, got %d", resp.Code)
	}

	resp := do(t, r, http.MethodPost, "/session/"+sess.ID+"/signin", map[string]any{"user": map[string]string{"id": "u1"}})
	if resp.Code != http.StatusOK {
		t.Fatalf("signin: expected 200, got %d", resp.Code)
	}

	var body struct {
		Pending *chat.NavigatePayload `json:"pending"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Pending == nil || body.Pending.URL != "/checkout" || body.Pending.Params["ticketType"] != "vip" {
		t.Fatalf("unexpected pending: %+v", body.Pending)
	}

	resp = do(t, r, http.MethodGet, base+"/pending", nil)
	if resp.Code != http.StatusOK || !bytes.Contains(resp.Body.Bytes(), []byte(`"pending":null`)) {
		t.Fatalf("expected consumed pending, got %d %s", resp.Code, resp.Body.String())
	}
}

func TestToggleAndKnowledge(t *testing.T) {
	r := setupRouter()
	sess := createSession(t, r, nil)

	resp := do(t, r, http.MethodPost, "/session/"+sess.ID+"/toggle", nil)
	if resp.Code != http.StatusOK || !bytes.Contains(resp.Body.Bytes(), []byte(`"open":false`)) {
		t.Fatalf("toggle: unexpected %d %s", resp.Code, resp.Body.String())
	}

	resp = do(t, r, http.MethodGet, "/assistant/"+sess.ID+"/knowledge?force=true", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("knowledge: expected 200, got %d", resp.Code)
	}
	var view struct {
		Snapshot struct {
			Events []json.RawMessage `json:"events"`
		} `json:"snapshot"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(view.Snapshot.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(view.Snapshot.Events))
	}
}
