package wechat

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/silenceper/wechat/v2"
	"github.com/silenceper/wechat/v2/cache"
	"github.com/silenceper/wechat/v2/officialaccount"
	"github.com/silenceper/wechat/v2/officialaccount/basic"
	offConfig "github.com/silenceper/wechat/v2/officialaccount/config"
	"github.com/silenceper/wechat/v2/officialaccount/material"
	"github.com/silenceper/wechat/v2/officialaccount/menu"
	"github.com/silenceper/wechat/v2/officialaccount/message"
	oasrv "github.com/silenceper/wechat/v2/officialaccount/server"

	"wxrelay/tools/errs"
)

const (
	qrCodeURLPrefix  = "https://mp.weixin.qq.com/cgi-bin/showqrcode?ticket="
	qrTicketExpireIn = 10 * 60 // 登录二维码有效期（秒）
)

// APIClient 公众号平台接口的薄封装。access_token 的获取、缓存和续期
// 全部由官方库托管（cache 可选 Redis，多实例共享一份 token）。
type APIClient struct {
	oa *officialaccount.OfficialAccount
	hc *http.Client // 拉临时素材用
}

func NewAPIClient(appID, appSecret, verifyToken string, store cache.Cache, timeout time.Duration) *APIClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if store == nil {
		store = cache.NewMemory()
	}
	wc := wechat.NewWechat()
	oa := wc.GetOfficialAccount(&offConfig.Config{
		AppID:     appID,
		AppSecret: appSecret,
		Token:     verifyToken,
		Cache:     store,
	})
	return &APIClient{oa: oa, hc: &http.Client{Timeout: timeout}}
}

// CallbackServer 回调处理器：验签、echostr、报文解码、回复编码都在库里。
func (c *APIClient) CallbackServer(req *http.Request, w http.ResponseWriter) *oasrv.Server {
	return c.oa.GetServer(req, w)
}

// QrCode 登录二维码：ticket + 可直接展示的图片地址
type QrCode struct {
	Ticket string `json:"code"`
	URL    string `json:"url"`
}

// CreateLoginQrCode 创建临时字符串场景二维码，场景值随机。
func (c *APIClient) CreateLoginQrCode(ctx context.Context) (*QrCode, error) {
	req := &basic.Request{
		ExpireSeconds: qrTicketExpireIn,
		ActionName:    "QR_STR_SCENE",
	}
	req.ActionInfo.Scene.SceneStr = uuid.NewString()

	tk, err := c.oa.GetBasic().GetQRTicket(req)
	if err != nil {
		return nil, errs.WrapMsg(err, "qrcode/create")
	}
	return &QrCode{Ticket: tk.Ticket, URL: qrCodeURLPrefix + url.QueryEscape(tk.Ticket)}, nil
}

// OAuth2Info 网页授权换取的 openid 等信息
type OAuth2Info struct {
	AccessToken string `json:"access_token"`
	OpenID      string `json:"openid"`
}

func (c *APIClient) OAuth2InfoByCode(ctx context.Context, code string) (*OAuth2Info, error) {
	res, err := c.oa.GetOauth().GetUserAccessToken(code)
	if err != nil {
		return nil, errs.ErrUpstreamAuth.WithDetail(err.Error())
	}
	return &OAuth2Info{AccessToken: res.AccessToken, OpenID: res.OpenID}, nil
}

// UserInfo 用户基本信息（昵称、头像）
type UserInfo struct {
	OpenID     string `json:"openid"`
	Nickname   string `json:"nickname"`
	HeadImgURL string `json:"headimgurl"`
}

// GetUserInfo oauthToken 为空时走公众号接口（cgi-bin/user/info），
// 否则走网页授权接口（sns/userinfo）。
func (c *APIClient) GetUserInfo(ctx context.Context, oauthToken, openID string) (*UserInfo, error) {
	if oauthToken == "" {
		info, err := c.oa.GetUser().GetUserInfo(openID)
		if err != nil {
			return nil, errs.WrapMsg(err, "user/info")
		}
		return &UserInfo{OpenID: info.OpenID, Nickname: info.Nickname, HeadImgURL: info.Headimgurl}, nil
	}

	info, err := c.oa.GetOauth().GetUserInfo(oauthToken, openID, "zh_CN")
	if err != nil {
		return nil, errs.WrapMsg(err, "sns/userinfo")
	}
	return &UserInfo{OpenID: info.OpenID, Nickname: info.Nickname, HeadImgURL: info.HeadImgURL}, nil
}

// ImageAsset 素材库里的一张图片
type ImageAsset struct {
	MediaID string `json:"media_id"`
	Name    string `json:"name"`
}

// ListImageAssets 拉取永久图片素材列表，回复会员引导图用。
func (c *APIClient) ListImageAssets(ctx context.Context) ([]ImageAsset, error) {
	list, err := c.oa.GetMaterial().BatchGetMaterial(material.PermanentMaterialTypeImage, 0, 20)
	if err != nil {
		return nil, errs.WrapMsg(err, "batchget_material")
	}
	out := make([]ImageAsset, 0, len(list.Item))
	for _, it := range list.Item {
		out = append(out, ImageAsset{MediaID: it.MediaID, Name: it.Name})
	}
	return out, nil
}

// DownloadMedia 拉取用户发来的临时素材（图片原图等）。
func (c *APIClient) DownloadMedia(ctx context.Context, mediaID string) ([]byte, error) {
	mediaURL, err := c.oa.GetMaterial().GetMediaURL(mediaID)
	if err != nil {
		return nil, errs.WrapMsg(err, "media/get")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, errs.WrapMsg(err, "download media")
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// PushTextMessage 客服消息接口推文本。回调的 5 秒窗口来不及出结果时，
// 真正的回复走这条通道。
func (c *APIClient) PushTextMessage(ctx context.Context, openID, text string) error {
	err := c.oa.GetCustomerMessageManager().Send(message.NewCustomerTextMessage(openID, text))
	return errs.WrapMsg(err, "custom/send text")
}

func (c *APIClient) PushImageMessage(ctx context.Context, openID, mediaID string) error {
	err := c.oa.GetCustomerMessageManager().Send(message.NewCustomerImgMessage(openID, mediaID))
	return errs.WrapMsg(err, "custom/send image")
}

// EnsureMenu 覆盖式同步自定义菜单，启动时按路由层的菜单项建。
func (c *APIClient) EnsureMenu(items []MenuItem) error {
	buttons := make([]*menu.Button, 0, len(items))
	for _, it := range items {
		buttons = append(buttons, menu.NewClickButton(it.Name, it.Key))
	}
	return errs.WrapMsg(c.oa.GetMenu().SetMenu(buttons), "menu/create")
}
