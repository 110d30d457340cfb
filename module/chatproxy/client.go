package chatproxy

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"wxrelay/logger"
	"wxrelay/tools/errs"
)

const (
	loginPath   = "/api/auth/login"
	refreshPath = "/api/auth/refresh"
	askPath     = "/api/ask/openAI"
	imagePath   = "/api/files/images"

	refreshCookieName = "refreshToken"
)

// Client 下游聊天服务的代理。凭据在 CredentialStore，会话游标在 SessionStore，
// 每个用户的请求链路是：无凭据先登录 -> 调用 -> 401 则静默刷新（刷不动就重新登录）
// 后重试一次，仍失败就向上报错，不做更多重试。
type Client struct {
	baseURL  string
	model    string
	hc       *http.Client
	sessions *SessionStore
	creds    *CredentialStore
}

func NewClient(baseURL, model string, timeout time.Duration, sessions *SessionStore, creds *CredentialStore) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		model:    model,
		hc:       &http.Client{Timeout: timeout},
		sessions: sessions,
		creds:    creds,
	}
}

func (c *Client) Sessions() *SessionStore { return c.sessions }

// Model 配置里的默认模型，调用方按会员档位决定实际传哪个。
func (c *Client) Model() string { return c.model }

// EndConversation 丢弃该用户的会话游标，下一条消息从全新会话开始。
func (c *Client) EndConversation(openID string) {
	c.sessions.Delete(openID)
}

// 用 openid 推导下游账号：邮箱取前 10 位，密码就是 openid 本身。
func deriveEmail(openID string) string {
	name := openID
	if len(name) > 10 {
		name = name[:10]
	}
	return name + "@user.com"
}

func (c *Client) login(ctx context.Context, openID string) (Credentials, error) {
	body, _ := json.Marshal(map[string]string{
		"email":    deriveEmail(openID),
		"password": openID,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+loginPath, bytes.NewReader(body))
	if err != nil {
		return Credentials{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return Credentials{}, errs.WrapMsg(err, "chat login")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Credentials{}, errs.ErrUpstreamAuth.WithDetail(fmt.Sprintf("login status %d", resp.StatusCode))
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Credentials{}, errs.WrapMsg(err, "chat login decode")
	}

	cred := Credentials{
		AccessToken:  out.Token,
		RefreshToken: cookieValue(resp, refreshCookieName),
	}
	c.creds.Set(openID, cred)
	return cred, nil
}

// refresh 静默续期；续不动就回退到重新登录。
func (c *Client) refresh(ctx context.Context, openID string, cred Credentials) (Credentials, error) {
	if cred.AccessToken == "" && cred.RefreshToken == "" {
		return c.login(ctx, openID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+refreshPath, nil)
	if err != nil {
		return Credentials{}, err
	}
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	req.AddCookie(&http.Cookie{Name: refreshCookieName, Value: cred.RefreshToken})

	resp, err := c.hc.Do(req)
	if err != nil {
		return Credentials{}, errs.WrapMsg(err, "chat refresh")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Infof("[chatproxy] refresh failed for %s (status %d), relogin", openID, resp.StatusCode)
		return c.login(ctx, openID)
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Credentials{}, errs.WrapMsg(err, "chat refresh decode")
	}

	next := Credentials{AccessToken: out.Token, RefreshToken: cred.RefreshToken}
	if v := cookieValue(resp, refreshCookieName); v != "" {
		next.RefreshToken = v
	}
	c.creds.Set(openID, next)
	return next, nil
}

func cookieValue(resp *http.Response, name string) string {
	for _, ck := range resp.Cookies() {
		if ck.Name == name {
			return ck.Value
		}
	}
	return ""
}

type askPayload struct {
	ConversationID          *string   `json:"conversationId"`
	Endpoint                string    `json:"endpoint"`
	Error                   bool      `json:"error"`
	Generation              *string   `json:"generation"`
	IsContinued             bool      `json:"isContinued"`
	IsCreatedByUser         bool      `json:"isCreatedByUser"`
	Key                     string    `json:"key"`
	Files                   []FileRef `json:"files"`
	MessageID               string    `json:"messageId"`
	Model                   string    `json:"model"`
	OverrideParentMessageID *string   `json:"overrideParentMessageId"`
	ParentMessageID         string    `json:"parentMessageId"`
	ResponseMessageID       string    `json:"responseMessageId"`
	Sender                  string    `json:"sender"`
	Text                    string    `json:"text"`
}

type responseMessage struct {
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId"`
	Text           string `json:"text"`
}

// Ask 把一句话发给下游并返回最终回复，model 为空时用配置的默认模型。
// 成功后更新会话游标并清空待发附件；失败时会话状态保持原样，下次还能续上。
func (c *Client) Ask(ctx context.Context, openID, prompt, model string) (string, error) {
	if model == "" {
		model = c.model
	}
	cred, ok := c.creds.Get(openID)
	if !ok {
		var err error
		if cred, err = c.login(ctx, openID); err != nil {
			return "", err
		}
	}

	state := c.sessions.Get(openID)
	payload := askPayload{
		ConversationID:    nullable(state.ConversationID),
		Endpoint:          "openAI",
		Generation:        nullable(state.LastGenerationText),
		IsCreatedByUser:   true,
		Key:               "never",
		Files:             state.PendingFiles,
		MessageID:         uuid.NewString(),
		Model:             model,
		ParentMessageID:   state.LastMessageID,
		ResponseMessageID: state.LastMessageID,
		Sender:            "User",
		Text:              prompt,
	}
	if payload.Files == nil {
		payload.Files = []FileRef{}
	}

	resp, err := c.doAsk(ctx, cred, payload)
	if err != nil {
		return "", err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		if cred, err = c.refresh(ctx, openID, cred); err != nil {
			return "", err
		}
		// 刷新后只重试这一次
		if resp, err = c.doAsk(ctx, cred, payload); err != nil {
			return "", err
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errs.New(fmt.Sprintf("ask status %d", resp.StatusCode))
	}

	final, err := parseFinalEvent(resp.Body)
	if err != nil {
		return "", err
	}

	c.sessions.Update(openID, func(st *ConversationState) {
		st.ConversationID = final.ConversationID
		st.LastMessageID = final.MessageID
		st.LastGenerationText = final.Text
		st.PendingFiles = nil
	})
	return final.Text, nil
}

func (c *Client) doAsk(ctx context.Context, cred Credentials, payload askPayload) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+askPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, errs.WrapMsg(err, "chat ask")
	}
	return resp, nil
}

// parseFinalEvent 逐行读流式响应，只取最后一个非空事件的 responseMessage。
// 中间的增量 delta 直接丢弃，这是沿袭来的简化，暂不累积。
func parseFinalEvent(r io.Reader) (*responseMessage, error) {
	var last string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if line == "" {
			continue
		}
		last = line
	}
	if err := sc.Err(); err != nil {
		return nil, errs.WrapMsg(err, "read ask stream")
	}
	if last == "" {
		return nil, errs.New("empty ask stream")
	}

	var out struct {
		ResponseMessage *responseMessage `json:"responseMessage"`
	}
	if err := json.Unmarshal([]byte(last), &out); err != nil {
		return nil, errs.WrapMsg(err, "decode final event")
	}
	if out.ResponseMessage == nil {
		return nil, errs.New("final event has no responseMessage")
	}
	return out.ResponseMessage, nil
}

// UploadImage 上传图片给下游，成功则挂到待发附件里，由下一次 Ask 带出。
// 失败返回 false（不抛错），调用方好生成“请重试”的用户提示。
func (c *Client) UploadImage(ctx context.Context, openID string, data []byte, filename string) bool {
	cred, ok := c.creds.Get(openID)
	if !ok {
		var err error
		if cred, err = c.login(ctx, openID); err != nil {
			logger.Errorf("[chatproxy] upload login failed for %s: %v", openID, err)
			return false
		}
	}

	resp, err := c.doUpload(ctx, cred, data, filename)
	if err != nil {
		logger.Errorf("[chatproxy] upload failed for %s: %v", openID, err)
		return false
	}

	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		if cred, err = c.refresh(ctx, openID, cred); err != nil {
			logger.Errorf("[chatproxy] upload refresh failed for %s: %v", openID, err)
			return false
		}
		if resp, err = c.doUpload(ctx, cred, data, filename); err != nil {
			logger.Errorf("[chatproxy] upload retry failed for %s: %v", openID, err)
			return false
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Errorf("[chatproxy] upload status %d for %s", resp.StatusCode, openID)
		return false
	}

	var file FileRef
	if err := json.NewDecoder(resp.Body).Decode(&file); err != nil {
		logger.Errorf("[chatproxy] upload decode failed for %s: %v", openID, err)
		return false
	}

	c.sessions.Update(openID, func(st *ConversationState) {
		st.PendingFiles = append(st.PendingFiles, file)
	})
	return true
}

func (c *Client) doUpload(ctx context.Context, cred Credentials, data []byte, filename string) (*http.Response, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(data); err != nil {
		return nil, err
	}
	_ = mw.WriteField("file_id", uuid.NewString())
	_ = mw.WriteField("width", "1280")
	_ = mw.WriteField("height", "1707")
	_ = mw.WriteField("endpoint", "openAI")
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+imagePath, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, errs.WrapMsg(err, "chat upload")
	}
	return resp, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
