package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/4xmen/gapchat/internal/assets"
	"github.com/4xmen/gapchat/internal/auth"
	"github.com/4xmen/gapchat/internal/chat"
	"github.com/4xmen/gapchat/internal/message"
	"github.com/4xmen/gapchat/internal/store/sqlstore"
)

var (
	testStore     *sqlstore.SQLStore
	testAuthSvc   *auth.Service
	testRouter    *gin.Engine
	testUploadDir string
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)

	dataDir, err := os.MkdirTemp("", "gapchat-test-data")
	if err != nil {
		panic(err)
	}

	testStore, err = sqlstore.New(dataDir + "/test.db")
	if err != nil {
		panic(err)
	}

	testUploadDir = dataDir + "/uploads"
	blobs, err := assets.NewLocalStore(testUploadDir, "/api/files")
	if err != nil {
		panic(err)
	}
	uploader := assets.NewUploader(blobs, 1<<20)

	testAuthSvc = auth.New(testStore, uploader, "test-jwt-secret")
	testRouter = setupTestRouter(uploader)

	code := m.Run()

	testStore.Close()
	os.RemoveAll(dataDir)
	os.Exit(code)
}

func setupTestRouter(uploader *assets.Uploader) *gin.Engine {
	router := gin.New()

	chatSvc := chat.New(testStore)
	RegisterRoutes(
		router.Group("/api"),
		NewAuthHandler(testAuthSvc, false),
		NewChatHandler(chatSvc),
		NewMessageHandler(message.New(testStore, uploader)),
	)

	return router
}

func clearTestData() {
	db := testStore.DB()
	db.Exec("DELETE FROM messages")
	db.Exec("DELETE FROM chat_members")
	db.Exec("DELETE FROM chats")
	db.Exec("DELETE FROM users")
}

type testUser struct {
	ID     string
	Cookie *http.Cookie
}

func doRequest(method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	testRouter.ServeHTTP(w, req)
	return w
}

func sessionCookieFrom(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == sessionCookie {
			return c
		}
	}
	return nil
}

func signup(t *testing.T, name, email string) testUser {
	t.Helper()
	w := doRequest("POST", "/api/auth/signup", map[string]string{
		"name": name, "email": email, "password": "password123",
	}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("signup(%s) status = %d, body = %s", email, w.Code, w.Body.String())
	}

	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	cookie := sessionCookieFrom(w)
	if cookie == nil {
		t.Fatalf("signup(%s) did not set a session cookie", email)
	}
	return testUser{ID: resp["id"].(string), Cookie: cookie}
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("invalid JSON response %q: %v", w.Body.String(), err)
	}
}

func pngDataURL(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestSignup(t *testing.T) {
	clearTestData()

	tests := []struct {
		name       string
		body       map[string]string
		wantStatus int
		wantError  string
	}{
		{
			name:       "valid signup",
			body:       map[string]string{"name": "Sara", "email": "sara@example.com", "password": "password123"},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "duplicate email",
			body:       map[string]string{"name": "Sara", "email": "sara@example.com", "password": "password123"},
			wantStatus: http.StatusBadRequest,
			wantError:  "Email already exists",
		},
		{
			name:       "missing name",
			body:       map[string]string{"email": "x@example.com", "password": "password123"},
			wantStatus: http.StatusBadRequest,
			wantError:  "All fields are required",
		},
		{
			name:       "short password",
			body:       map[string]string{"name": "X", "email": "x@example.com", "password": "12345"},
			wantStatus: http.StatusBadRequest,
			wantError:  "Password must be at least 6 characters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest("POST", "/api/auth/signup", tt.body, nil)
			if w.Code != tt.wantStatus {
				t.Fatalf("Signup() status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}

			var resp map[string]any
			decode(t, w, &resp)

			if tt.wantError != "" {
				if resp["error"] != tt.wantError {
					t.Errorf("error = %v, want %q", resp["error"], tt.wantError)
				}
				return
			}

			if _, ok := resp["id"]; !ok {
				t.Error("Expected id in response")
			}
			for _, key := range []string{"password", "passwordHash", "password_hash"} {
				if _, ok := resp[key]; ok {
					t.Errorf("response leaks %q", key)
				}
			}
			if bytes.Contains(w.Body.Bytes(), []byte("$2a$")) {
				t.Error("response contains a bcrypt hash")
			}

			cookie := sessionCookieFrom(w)
			if cookie == nil || !cookie.HttpOnly || cookie.MaxAge != 7*24*60*60 {
				t.Errorf("unexpected session cookie: %+v", cookie)
			}
		})
	}
}

func TestSignupRejectsMalformedJSON(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/auth/signup", bytes.NewReader([]byte("{")))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	testRouter.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestLogin(t *testing.T) {
	clearTestData()
	signup(t, "Login User", "login@example.com")

	tests := []struct {
		name       string
		body       map[string]string
		wantStatus int
	}{
		{"valid login", map[string]string{"email": "login@example.com", "password": "password123"}, http.StatusOK},
		{"wrong password", map[string]string{"email": "login@example.com", "password": "wrongpassword"}, http.StatusBadRequest},
		{"unknown email", map[string]string{"email": "nobody@example.com", "password": "password123"}, http.StatusBadRequest},
		{"missing password", map[string]string{"email": "login@example.com"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest("POST", "/api/auth/login", tt.body, nil)
			if w.Code != tt.wantStatus {
				t.Errorf("Login() status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK && sessionCookieFrom(w) == nil {
				t.Error("Expected session cookie on login")
			}
		})
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	clearTestData()
	signup(t, "Enum", "enum@example.com")

	wrongPassword := doRequest("POST", "/api/auth/login", map[string]string{
		"email": "enum@example.com", "password": "not-the-password",
	}, nil)
	unknownEmail := doRequest("POST", "/api/auth/login", map[string]string{
		"email": "ghost@example.com", "password": "not-the-password",
	}, nil)

	if wrongPassword.Code != unknownEmail.Code {
		t.Fatalf("status differs: %d vs %d", wrongPassword.Code, unknownEmail.Code)
	}
	if !bytes.Equal(wrongPassword.Body.Bytes(), unknownEmail.Body.Bytes()) {
		t.Fatalf("bodies differ: %q vs %q", wrongPassword.Body.String(), unknownEmail.Body.String())
	}
}

func TestLogout(t *testing.T) {
	w := doRequest("POST", "/api/auth/logout", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Logout() status = %d, want 200", w.Code)
	}
	cookie := sessionCookieFrom(w)
	if cookie == nil || cookie.Value != "" || cookie.MaxAge >= 0 {
		t.Fatalf("expected an expired session cookie, got %+v", cookie)
	}
}

func TestAuthMiddleware(t *testing.T) {
	clearTestData()
	user := signup(t, "Mid", "mid@example.com")

	orphanToken, _, err := testAuthSvc.GenerateToken("no-such-user")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	bearerToken, _, err := testAuthSvc.GenerateToken(user.ID)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	tests := []struct {
		name       string
		setup      func(r *http.Request)
		wantStatus int
		wantError  string
	}{
		{"no token", func(r *http.Request) {}, http.StatusUnauthorized, "No Token Provided"},
		{"garbage token", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: sessionCookie, Value: "not-a-jwt"})
		}, http.StatusUnauthorized, "Invalid Token"},
		{"unknown user", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: sessionCookie, Value: orphanToken})
		}, http.StatusNotFound, "User not found"},
		{"valid cookie", func(r *http.Request) { r.AddCookie(user.Cookie) }, http.StatusOK, ""},
		{"valid bearer", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+bearerToken)
		}, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/auth/check", nil)
			tt.setup(req)
			w := httptest.NewRecorder()
			testRouter.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var resp map[string]any
			decode(t, w, &resp)
			if tt.wantError != "" && resp["error"] != tt.wantError {
				t.Errorf("error = %v, want %q", resp["error"], tt.wantError)
			}
			if tt.wantError == "" && resp["id"] != user.ID {
				t.Errorf("check returned %v, want user %s", resp["id"], user.ID)
			}
		})
	}
}

func TestUpdateProfile(t *testing.T) {
	clearTestData()
	user := signup(t, "Before", "profile@example.com")

	w := doRequest("PUT", "/api/auth/update-profile", map[string]any{}, user.Cookie)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty patch status = %d, want 400", w.Code)
	}

	w = doRequest("PUT", "/api/auth/update-profile", map[string]any{
		"name":       "After",
		"aboutMe":    "hello there",
		"profilePic": pngDataURL(t),
	}, user.Cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("UpdateProfile() status = %d, body %s", w.Code, w.Body.String())
	}
	var resp map[string]any
	decode(t, w, &resp)
	if resp["name"] != "After" || resp["aboutMe"] != "hello there" {
		t.Fatalf("unexpected profile: %v", resp)
	}
	pic, _ := resp["profilePic"].(string)
	if pic == "" {
		t.Fatal("expected profilePic URL")
	}

	w = doRequest("PUT", "/api/auth/update-profile", map[string]any{"aboutMe": nil, "profilePic": nil}, user.Cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("clear status = %d, body %s", w.Code, w.Body.String())
	}
	decode(t, w, &resp)
	if resp["aboutMe"] != "" || resp["profilePic"] != "" || resp["name"] != "After" {
		t.Fatalf("unexpected profile after clear: %v", resp)
	}

	w = doRequest("PUT", "/api/auth/update-profile", map[string]any{"name": "  "}, user.Cookie)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("blank name status = %d, want 400", w.Code)
	}
}

func TestChatEndpoints(t *testing.T) {
	clearTestData()
	a := signup(t, "A", "a@example.com")
	b := signup(t, "B", "b@example.com")
	c := signup(t, "C", "c@example.com")
	d := signup(t, "D", "d@example.com")

	w := doRequest("POST", "/api/chat", map[string]any{
		"memberIds": []string{b.ID, c.ID}, "isGroup": true, "name": "trio",
	}, a.Cookie)
	if w.Code != http.StatusCreated {
		t.Fatalf("create group status = %d, body %s", w.Code, w.Body.String())
	}
	var group struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Members []struct {
			ID string `json:"id"`
		} `json:"members"`
	}
	decode(t, w, &group)
	if len(group.Members) != 3 {
		t.Fatalf("group members = %d, want 3", len(group.Members))
	}

	t.Run("group of two after dedup", func(t *testing.T) {
		w := doRequest("POST", "/api/chat", map[string]any{
			"memberIds": []string{b.ID, b.ID, a.ID}, "isGroup": true, "name": "pair",
		}, a.Cookie)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", w.Code)
		}
	})

	t.Run("list", func(t *testing.T) {
		w := doRequest("GET", "/api/chat/chats", nil, b.Cookie)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		var chats []map[string]any
		decode(t, w, &chats)
		if len(chats) != 1 || chats[0]["id"] != group.ID {
			t.Fatalf("unexpected chats: %v", chats)
		}
	})

	t.Run("list empty", func(t *testing.T) {
		w := doRequest("GET", "/api/chat/chats", nil, d.Cookie)
		if w.Code != http.StatusOK || w.Body.String() != "[]" {
			t.Fatalf("status = %d body = %s, want empty array", w.Code, w.Body.String())
		}
	})

	t.Run("get as outsider", func(t *testing.T) {
		w := doRequest("GET", "/api/chat/"+group.ID, nil, d.Cookie)
		if w.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", w.Code)
		}
	})

	t.Run("get missing", func(t *testing.T) {
		w := doRequest("GET", "/api/chat/does-not-exist", nil, a.Cookie)
		if w.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", w.Code)
		}
	})

	t.Run("rename", func(t *testing.T) {
		w := doRequest("PUT", "/api/chat/"+group.ID+"/name", map[string]string{"name": "squad"}, b.Cookie)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		var resp map[string]any
		decode(t, w, &resp)
		if resp["name"] != "squad" {
			t.Fatalf("name = %v", resp["name"])
		}
	})

	t.Run("add members", func(t *testing.T) {
		w := doRequest("PUT", "/api/chat/"+group.ID+"/members", map[string]any{"memberIds": []string{d.ID}}, d.Cookie)
		if w.Code != http.StatusForbidden {
			t.Fatalf("outsider status = %d, want 403", w.Code)
		}

		w = doRequest("PUT", "/api/chat/"+group.ID+"/members", map[string]any{"memberIds": []string{}}, a.Cookie)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("empty status = %d, want 400", w.Code)
		}

		w = doRequest("PUT", "/api/chat/"+group.ID+"/members", map[string]any{"memberIds": []string{d.ID, b.ID}}, a.Cookie)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		var resp struct {
			Members []map[string]any `json:"members"`
		}
		decode(t, w, &resp)
		if len(resp.Members) != 4 {
			t.Fatalf("members = %d, want 4", len(resp.Members))
		}
	})

	t.Run("leave", func(t *testing.T) {
		w := doRequest("DELETE", "/api/chat/"+group.ID+"/members/me", nil, d.Cookie)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		w = doRequest("GET", "/api/chat/"+group.ID, nil, d.Cookie)
		if w.Code != http.StatusForbidden {
			t.Fatalf("after leave status = %d, want 403", w.Code)
		}
	})

	t.Run("group operations on direct chat", func(t *testing.T) {
		w := doRequest("POST", "/api/chat", map[string]any{"memberIds": []string{b.ID}, "isGroup": false}, a.Cookie)
		if w.Code != http.StatusCreated {
			t.Fatalf("create direct status = %d, body %s", w.Code, w.Body.String())
		}
		var direct map[string]any
		decode(t, w, &direct)
		if direct["name"] != "" {
			t.Fatalf("direct chat name = %v, want empty", direct["name"])
		}
		id := direct["id"].(string)

		for _, req := range []struct {
			method, path string
			body         any
		}{
			{"PUT", "/api/chat/" + id + "/members", map[string]any{"memberIds": []string{c.ID}}},
			{"DELETE", "/api/chat/" + id + "/members/me", nil},
			{"PUT", "/api/chat/" + id + "/name", map[string]string{"name": "x"}},
		} {
			// An outsider still gets the type error, not 403.
			w := doRequest(req.method, req.path, req.body, d.Cookie)
			if w.Code != http.StatusBadRequest {
				t.Errorf("%s %s status = %d, want 400", req.method, req.path, w.Code)
			}
		}
	})
}

func TestMessageEndpoints(t *testing.T) {
	clearTestData()
	a := signup(t, "A", "ma@example.com")
	b := signup(t, "B", "mb@example.com")

	w := doRequest("POST", "/api/chat", map[string]any{"memberIds": []string{b.ID}}, a.Cookie)
	if w.Code != http.StatusCreated {
		t.Fatalf("create chat status = %d", w.Code)
	}
	var chatResp map[string]any
	decode(t, w, &chatResp)
	chatID := chatResp["id"].(string)
	base := "/api/message/chat/" + chatID

	w = doRequest("POST", base, map[string]string{}, a.Cookie)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty message status = %d, want 400", w.Code)
	}

	w = doRequest("POST", base, map[string]string{"image": "!!not-base64!!"}, a.Cookie)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad image status = %d, want 400", w.Code)
	}

	w = doRequest("POST", base, map[string]string{"text": "caption", "image": pngDataURL(t)}, a.Cookie)
	if w.Code != http.StatusCreated {
		t.Fatalf("send image status = %d, body %s", w.Code, w.Body.String())
	}
	var imageMsg map[string]any
	decode(t, w, &imageMsg)
	imageURL, _ := imageMsg["image"].(string)
	if imageURL == "" {
		t.Fatal("expected stored image URL")
	}

	w = doRequest("POST", base, map[string]string{"text": "plain"}, b.Cookie)
	if w.Code != http.StatusCreated {
		t.Fatalf("send text status = %d", w.Code)
	}
	var textMsg map[string]any
	decode(t, w, &textMsg)
	textID := textMsg["id"].(string)
	imageID := imageMsg["id"].(string)

	t.Run("only the sender may edit", func(t *testing.T) {
		w := doRequest("PUT", "/api/message/"+textID, map[string]string{"text": "hijacked"}, a.Cookie)
		if w.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", w.Code)
		}
	})

	t.Run("edit requires text", func(t *testing.T) {
		w := doRequest("PUT", "/api/message/"+textID, map[string]any{}, b.Cookie)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", w.Code)
		}
	})

	t.Run("clear text without image", func(t *testing.T) {
		w := doRequest("PUT", "/api/message/"+textID, map[string]string{"text": ""}, b.Cookie)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", w.Code)
		}
	})

	t.Run("clear text with image", func(t *testing.T) {
		w := doRequest("PUT", "/api/message/"+imageID, map[string]string{"text": ""}, a.Cookie)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
		}
		var resp map[string]any
		decode(t, w, &resp)
		if resp["text"] != "" || resp["image"] != imageURL {
			t.Fatalf("unexpected message: %v", resp)
		}
	})

	t.Run("edit missing", func(t *testing.T) {
		w := doRequest("PUT", "/api/message/nope", map[string]string{"text": "x"}, a.Cookie)
		if w.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", w.Code)
		}
	})

	t.Run("edit without body by non-sender", func(t *testing.T) {
		w := doRequest("PUT", "/api/message/"+textID, nil, a.Cookie)
		if w.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", w.Code)
		}
	})

	t.Run("edit without body on missing message", func(t *testing.T) {
		w := doRequest("PUT", "/api/message/does-not-exist", nil, b.Cookie)
		if w.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", w.Code)
		}
	})

	t.Run("edit without body by sender", func(t *testing.T) {
		w := doRequest("PUT", "/api/message/"+textID, nil, b.Cookie)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", w.Code)
		}
		var resp map[string]string
		decode(t, w, &resp)
		if resp["error"] != "Text is required" {
			t.Fatalf("error = %q", resp["error"])
		}
	})

	t.Run("edit with malformed body", func(t *testing.T) {
		req := httptest.NewRequest("PUT", "/api/message/does-not-exist", strings.NewReader("{not json"))
		req.Header.Set("Content-Type", "application/json")
		req.AddCookie(b.Cookie)
		w := httptest.NewRecorder()
		testRouter.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", w.Code)
		}
	})

	t.Run("only the sender may delete", func(t *testing.T) {
		w := doRequest("DELETE", "/api/message/"+imageID, nil, b.Cookie)
		if w.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", w.Code)
		}
	})

	t.Run("delete", func(t *testing.T) {
		w := doRequest("DELETE", "/api/message/"+imageID, nil, a.Cookie)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}

		w = doRequest("GET", base, nil, a.Cookie)
		var msgs []map[string]any
		decode(t, w, &msgs)
		if len(msgs) != 1 || msgs[0]["id"] != textID {
			t.Fatalf("unexpected messages after delete: %v", msgs)
		}
	})
}

// A signs up, opens a direct chat with B and sends a message. C is not a
// member: the chat itself is hidden from C but its messages are readable.
func TestDirectChatScenario(t *testing.T) {
	clearTestData()
	a := signup(t, "A", "scenario-a@example.com")
	b := signup(t, "B", "scenario-b@example.com")
	c := signup(t, "C", "scenario-c@example.com")

	w := doRequest("POST", "/api/chat", map[string]any{"memberIds": []string{b.ID}, "isGroup": false}, a.Cookie)
	if w.Code != http.StatusCreated {
		t.Fatalf("create chat status = %d", w.Code)
	}
	var chatResp map[string]any
	decode(t, w, &chatResp)
	chatID := chatResp["id"].(string)

	w = doRequest("POST", "/api/message/chat/"+chatID, map[string]string{"text": "hi B"}, a.Cookie)
	if w.Code != http.StatusCreated {
		t.Fatalf("send status = %d", w.Code)
	}

	w = doRequest("GET", "/api/message/chat/"+chatID, nil, c.Cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("outsider list status = %d, want 200", w.Code)
	}
	var msgs []map[string]any
	decode(t, w, &msgs)
	if len(msgs) != 1 || msgs[0]["text"] != "hi B" || msgs[0]["senderId"] != a.ID || msgs[0]["chatId"] != chatID {
		t.Fatalf("unexpected messages: %v", msgs)
	}

	w = doRequest("GET", "/api/chat/"+chatID, nil, c.Cookie)
	if w.Code != http.StatusForbidden {
		t.Fatalf("outsider get chat status = %d, want 403", w.Code)
	}
}

func TestMembershipEnforcedRouter(t *testing.T) {
	clearTestData()
	a := signup(t, "A", "strict-a@example.com")
	b := signup(t, "B", "strict-b@example.com")
	c := signup(t, "C", "strict-c@example.com")

	chatSvc := chat.New(testStore)
	direct, err := chatSvc.Create(context.Background(), a.ID, chat.CreateInput{MemberIDs: []string{b.ID}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	router := gin.New()
	RegisterRoutes(
		router.Group("/api"),
		NewAuthHandler(testAuthSvc, false),
		NewChatHandler(chatSvc),
		NewMessageHandler(message.New(testStore, nil, message.WithMembership(chatSvc))),
	)

	for _, method := range []string{"GET", "POST"} {
		body, _ := json.Marshal(map[string]string{"text": "drive-by"})
		req := httptest.NewRequest(method, "/api/message/chat/"+direct.ID, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.AddCookie(c.Cookie)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusForbidden {
			t.Errorf("%s as outsider status = %d, want 403", method, w.Code)
		}
	}
}
