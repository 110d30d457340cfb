package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	usermodel "wxrelay/module/user/model"
	jwtlib "wxrelay/tools/security"
)

// 会员信息接口要带上下游余额账户
func TestMyVipIncludesBalance(t *testing.T) {
	f := newWebhookFixture(t)
	f.users.balance = &usermodel.Balance{OpenID: "openid1", TokenCredits: 10000}

	token, _, err := jwtlib.Generate(jwtlib.Options{Secret: []byte("test-secret"), TTL: time.Hour}, "openid1")
	if err != nil {
		t.Fatal(err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/vip/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	f.engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var out struct {
		Active  bool               `json:"active"`
		Balance *usermodel.Balance `json:"balance"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out.Balance == nil || out.Balance.TokenCredits != 10000 {
		t.Errorf("balance = %+v, want 10000 credits", out.Balance)
	}
	if out.Active {
		t.Error("no vip record must report inactive")
	}
}
