package chatproxy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// 可编程的下游假服务
type chatStub struct {
	loginCalls   int64
	refreshCalls int64
	askCalls     int64

	ask401Times int64 // 前 N 次 ask 回 401
	askStatus   int   // 非 401 时的状态码，0 当 200
	finalText   string

	lastAsk struct {
		ConversationID  *string   `json:"conversationId"`
		ParentMessageID string    `json:"parentMessageId"`
		Files           []FileRef `json:"files"`
		Model           string    `json:"model"`
		Text            string    `json:"text"`
	}
	lastLoginEmail string
}

func newChatStub(t *testing.T) (*chatStub, *httptest.Server) {
	t.Helper()
	st := &chatStub{finalText: "final answer"}
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login":
			atomic.AddInt64(&st.loginCalls, 1)
			var body struct {
				Email string `json:"email"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			st.lastLoginEmail = body.Email
			http.SetCookie(w, &http.Cookie{Name: "refreshToken", Value: "RT1"})
			fmt.Fprint(w, `{"token":"AT1"}`)
		case "/api/auth/refresh":
			atomic.AddInt64(&st.refreshCalls, 1)
			if ck, err := r.Cookie("refreshToken"); err != nil || ck.Value == "" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			fmt.Fprint(w, `{"token":"AT2"}`)
		case "/api/ask/openAI":
			n := atomic.AddInt64(&st.askCalls, 1)
			_ = json.NewDecoder(r.Body).Decode(&st.lastAsk)
			if n <= st.ask401Times {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			if st.askStatus != 0 {
				w.WriteHeader(st.askStatus)
				return
			}
			// 流式响应：取最后一个非空事件
			fmt.Fprint(w, "data: {\"responseMessage\":{\"conversationId\":\"conv1\",\"messageId\":\"mid1\",\"text\":\"partial\"}}\n")
			fmt.Fprint(w, "\n")
			fmt.Fprintf(w, "data: {\"responseMessage\":{\"conversationId\":\"conv1\",\"messageId\":\"mid2\",\"text\":%q}}\n", st.finalText)
		case "/api/files/images":
			fmt.Fprint(w, `{"file_id":"F1","filepath":"/uploads/F1.jpg","height":1707,"width":1280,"type":"image/jpeg"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(s.Close)
	return st, s
}

func newTestClient(s *httptest.Server) (*Client, *SessionStore, *CredentialStore) {
	sessions := NewSessionStore()
	creds := NewCredentialStore()
	return NewClient(s.URL, "gpt-4o-mini", 5*time.Second, sessions, creds), sessions, creds
}

func TestAskLoginAndStreamParse(t *testing.T) {
	stub, srv := newChatStub(t)
	c, sessions, creds := newTestClient(srv)

	answer, err := c.Ask(context.Background(), "openid123456", "hello", "")
	if err != nil {
		t.Fatal(err)
	}
	if answer != "final answer" {
		t.Errorf("answer = %q", answer)
	}
	if stub.lastLoginEmail != "openid1234@user.com" {
		t.Errorf("login email = %q, want first 10 chars", stub.lastLoginEmail)
	}
	if _, ok := creds.Get("openid123456"); !ok {
		t.Error("credentials not stored after login")
	}

	// 只取最后一个事件，中间 partial 丢弃；游标指到最终消息
	st := sessions.Get("openid123456")
	if st.ConversationID != "conv1" || st.LastMessageID != "mid2" || st.LastGenerationText != "final answer" {
		t.Errorf("session = %+v", st)
	}

	// 首问 conversationId 为 null，parent 指向全零 uuid
	if stub.lastAsk.ConversationID != nil {
		t.Errorf("first ask conversationId = %v, want null", *stub.lastAsk.ConversationID)
	}
	if stub.lastAsk.ParentMessageID != NilMessageID {
		t.Errorf("first ask parent = %q", stub.lastAsk.ParentMessageID)
	}
	if stub.lastAsk.Files == nil {
		t.Error("files must be [] not null")
	}
}

// 调用方传什么模型就发什么，空串落回配置的默认模型
func TestAskModelSelection(t *testing.T) {
	stub, srv := newChatStub(t)
	c, _, _ := newTestClient(srv)
	ctx := context.Background()

	if _, err := c.Ask(ctx, "u1", "hi", ""); err != nil {
		t.Fatal(err)
	}
	if stub.lastAsk.Model != "gpt-4o-mini" {
		t.Errorf("model = %q, want configured default", stub.lastAsk.Model)
	}
	if c.Model() != "gpt-4o-mini" {
		t.Errorf("Model() = %q", c.Model())
	}

	if _, err := c.Ask(ctx, "u1", "hi", "gpt-4o"); err != nil {
		t.Fatal(err)
	}
	if stub.lastAsk.Model != "gpt-4o" {
		t.Errorf("model = %q, want caller override", stub.lastAsk.Model)
	}
}

func TestAskContinuesConversation(t *testing.T) {
	stub, srv := newChatStub(t)
	c, _, _ := newTestClient(srv)
	ctx := context.Background()

	if _, err := c.Ask(ctx, "u1", "first", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Ask(ctx, "u1", "second", ""); err != nil {
		t.Fatal(err)
	}

	if stub.lastAsk.ConversationID == nil || *stub.lastAsk.ConversationID != "conv1" {
		t.Errorf("second ask conversationId = %v, want conv1", stub.lastAsk.ConversationID)
	}
	if stub.lastAsk.ParentMessageID != "mid2" {
		t.Errorf("second ask parent = %q, want mid2", stub.lastAsk.ParentMessageID)
	}
}

// 401 触发一次刷新一次重试，成功收尾
func TestAskRefreshAndRetryOn401(t *testing.T) {
	stub, srv := newChatStub(t)
	stub.ask401Times = 1
	c, _, creds := newTestClient(srv)
	creds.Set("u1", Credentials{AccessToken: "stale", RefreshToken: "RT0"})

	answer, err := c.Ask(context.Background(), "u1", "hello", "")
	if err != nil {
		t.Fatal(err)
	}
	if answer != "final answer" {
		t.Errorf("answer = %q", answer)
	}
	if n := atomic.LoadInt64(&stub.refreshCalls); n != 1 {
		t.Errorf("refresh called %d times, want 1", n)
	}
	if n := atomic.LoadInt64(&stub.askCalls); n != 2 {
		t.Errorf("ask called %d times, want 2", n)
	}
	if cred, _ := creds.Get("u1"); cred.AccessToken != "AT2" {
		t.Errorf("creds not rotated: %+v", cred)
	}
}

// 刷新后再 401 直接报错，不会无限循环
func TestAskPersistent401Fails(t *testing.T) {
	stub, srv := newChatStub(t)
	stub.ask401Times = 100
	c, _, creds := newTestClient(srv)
	creds.Set("u1", Credentials{AccessToken: "stale", RefreshToken: "RT0"})

	if _, err := c.Ask(context.Background(), "u1", "hello", ""); err == nil {
		t.Fatal("want error on persistent 401")
	}
	if n := atomic.LoadInt64(&stub.askCalls); n != 2 {
		t.Errorf("ask called %d times, want exactly 2", n)
	}
}

// 失败的 Ask 不碰会话游标
func TestAskFailureLeavesSessionUntouched(t *testing.T) {
	stub, srv := newChatStub(t)
	stub.askStatus = http.StatusInternalServerError
	c, sessions, creds := newTestClient(srv)
	creds.Set("u1", Credentials{AccessToken: "AT1"})

	sessions.Update("u1", func(st *ConversationState) {
		st.ConversationID = "conv-old"
		st.LastMessageID = "mid-old"
		st.LastGenerationText = "gen-old"
		st.PendingFiles = []FileRef{{FileID: "F9"}}
	})

	if _, err := c.Ask(context.Background(), "u1", "hello", ""); err == nil {
		t.Fatal("want error on 500")
	}

	st := sessions.Get("u1")
	if st.ConversationID != "conv-old" || st.LastMessageID != "mid-old" ||
		st.LastGenerationText != "gen-old" || len(st.PendingFiles) != 1 {
		t.Errorf("session changed after failed ask: %+v", st)
	}
}

func TestUploadImageAppendsPendingFile(t *testing.T) {
	stub, srv := newChatStub(t)
	c, sessions, _ := newTestClient(srv)
	ctx := context.Background()

	if !c.UploadImage(ctx, "u1", []byte("jpegbytes"), "a.jpg") {
		t.Fatal("upload should succeed")
	}
	st := sessions.Get("u1")
	if len(st.PendingFiles) != 1 || st.PendingFiles[0].FileID != "F1" {
		t.Fatalf("pending files = %+v", st.PendingFiles)
	}

	// 下一次 Ask 带上附件，成功后清空
	if _, err := c.Ask(ctx, "u1", "看看这张图", ""); err != nil {
		t.Fatal(err)
	}
	if len(stub.lastAsk.Files) != 1 || stub.lastAsk.Files[0].FileID != "F1" {
		t.Errorf("ask files = %+v", stub.lastAsk.Files)
	}
	if st := sessions.Get("u1"); len(st.PendingFiles) != 0 {
		t.Errorf("pending files not cleared: %+v", st.PendingFiles)
	}
}

func TestUploadImageFailureReturnsFalse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/auth/login" {
			fmt.Fprint(w, `{"token":"AT1"}`)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	c, sessions, _ := newTestClient(srv)

	if c.UploadImage(context.Background(), "u1", []byte("x"), "a.jpg") {
		t.Error("upload must report false on 500")
	}
	if st := sessions.Get("u1"); len(st.PendingFiles) != 0 {
		t.Errorf("pending files = %+v", st.PendingFiles)
	}
}

func TestEndConversationResetsCursor(t *testing.T) {
	_, srv := newChatStub(t)
	c, sessions, _ := newTestClient(srv)

	if _, err := c.Ask(context.Background(), "u1", "hi", ""); err != nil {
		t.Fatal(err)
	}
	c.EndConversation("u1")
	if st := sessions.Get("u1"); st.ConversationID != "" || st.LastMessageID != NilMessageID {
		t.Errorf("session after end = %+v", st)
	}
}

func TestDeriveEmail(t *testing.T) {
	if got := deriveEmail("short"); got != "short@user.com" {
		t.Errorf("deriveEmail(short) = %q", got)
	}
	if got := deriveEmail("abcdefghijKLMN"); got != "abcdefghij@user.com" {
		t.Errorf("deriveEmail long = %q", got)
	}
}
