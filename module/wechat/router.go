package wechat

import (
	"context"
	"strings"

	"github.com/silenceper/wechat/v2/officialaccount/message"

	"wxrelay/logger"
	usermodel "wxrelay/module/user/model"
)

// 同步回复与推送用到的文案
const (
	AckSuccess = "success" // 平台约定的“收到”应答，真正的回复走客服消息

	ReplyLoginOK         = "登录成功！"
	ReplyWelcome         = "欢迎关注"
	ReplyConversationEnd = "本轮对话已结束，随时开始新话题。"
	ReplyUnsupported     = "暂不支持该类型消息"
	ReplyContactUs       = "会员已到期或未开通，请联系客服。"
	ReplyServerBusy      = "服务器开小差了，请稍后重试"
	ReplyImageSaved      = "图片已收到，继续输入问题即可一起发给模型。"
	ReplyRetryUpload     = "图片上传失败，请重试"

	// 用户输入这句话就清掉会话，下一条消息从新会话开始
	EndConversationCommand = "结束对话"

	// 开通会员菜单：点一下异步推开通/续费引导图
	MenuKeyVip = "MENU_VIP"
)

// MenuItem 自定义菜单的一个按钮，启动时按此同步到公众号。
type MenuItem struct {
	Name   string
	Key    string
	Prompt string // 预置人设提示词；空表示不走问答链路
}

// 菜单项与预置人设。点人设菜单等价于发了一条对应内容的文本。
var menuItems = []MenuItem{
	{Name: "翻译助手", Key: "MENU_TRANSLATOR", Prompt: "请扮演中英互译助手：我发中文你给英文，发英文给中文，只输出译文。"},
	{Name: "程序员", Key: "MENU_PROGRAMMER", Prompt: "请扮演资深程序员，回答我的技术问题时给出可运行的示例代码。"},
	{Name: "面试官", Key: "MENU_INTERVIEWER", Prompt: "请扮演技术面试官，针对我的回答逐步追问并在最后给出评价。"},
	{Name: "开通会员", Key: MenuKeyVip},
}

// MenuItems 启动时菜单同步用。
func MenuItems() []MenuItem {
	return menuItems
}

func menuPrompt(key string) (string, bool) {
	for _, it := range menuItems {
		if it.Key == key && it.Prompt != "" {
			return it.Prompt, true
		}
	}
	return "", false
}

// PlatformAPI 路由层用到的平台接口子集
type PlatformAPI interface {
	GetUserInfo(ctx context.Context, oauthToken, openID string) (*UserInfo, error)
	ListImageAssets(ctx context.Context) ([]ImageAsset, error)
	DownloadMedia(ctx context.Context, mediaID string) ([]byte, error)
	PushTextMessage(ctx context.Context, openID, text string) error
	PushImageMessage(ctx context.Context, openID, mediaID string) error
}

// ChatBackend 下游聊天服务（chatproxy.Client 实现）
type ChatBackend interface {
	Ask(ctx context.Context, openID, prompt, model string) (string, error)
	UploadImage(ctx context.Context, openID string, data []byte, filename string) bool
	EndConversation(openID string)
	Model() string
}

// UserDirectory 用户建档查档
type UserDirectory interface {
	FindByOpenID(ctx context.Context, openID string) (*usermodel.User, error)
	EnsureUser(ctx context.Context, openID, nickname, avatar string) (*usermodel.User, error)
}

// Membership 会员门禁
type Membership interface {
	IsActive(ctx context.Context, openID string) bool
	ReplyAssetName(ctx context.Context, openID string) string
	// ModelFor 返回该用户实际允许使用的模型（最低档会员钳到默认小模型）
	ModelFor(ctx context.Context, openID, requested string) string
}

// Router 回调消息的调度中枢：分类 -> 查会员 -> 决定同步回复还是异步推送。
// 能在 5 秒窗口内出结果的（扫码、关注、门禁拦截、结束对话）直接回复；
// 要问下游模型的一律丢给 Dispatcher，返回 nil 让回调先应答 success。
type Router struct {
	api      PlatformAPI
	chat     ChatBackend
	users    UserDirectory
	gate     Membership
	qrCache  *QrTicketCache
	dispatch *Dispatcher
}

func NewRouter(api PlatformAPI, chat ChatBackend, users UserDirectory, gate Membership, qrCache *QrTicketCache, dispatch *Dispatcher) *Router {
	return &Router{
		api:      api,
		chat:     chat,
		users:    users,
		gate:     gate,
		qrCache:  qrCache,
		dispatch: dispatch,
	}
}

// HandleMessage 返回同步回复；nil 表示没有同步内容（结果走客服消息异步推）。
// 分类优先级：扫码 > 关注 > 菜单点击 > 普通消息 > 不支持。
func (r *Router) HandleMessage(ctx context.Context, ev *message.MixMessage) *message.Reply {
	switch {
	case IsScanQrCode(ev):
		return r.handleScanLogin(ctx, ev)
	case IsSubscribeEvent(ev):
		return r.handleSubscribe(ctx, ev)
	case IsMenuClick(ev):
		return r.handleMenuClick(ctx, ev)
	case IsNormalMessage(ev):
		return r.handleNormalMessage(ctx, ev)
	default:
		return ReplyText(ReplyUnsupported)
	}
}

// 扫码：没见过的用户先建档，再把 openid 写进 ticket 缓存给轮询端取。
// ticket 已带 openid 时不覆盖，防止重放扫码顶掉已消费的标记。
func (r *Router) handleScanLogin(ctx context.Context, ev *message.MixMessage) *message.Reply {
	openID := string(ev.FromUserName)
	if err := r.ensureUser(ctx, openID); err != nil {
		logger.Errorf("[router] ensure user %s on scan: %v", openID, err)
	}

	if v, ok := r.qrCache.Peek(ev.Ticket); !ok || v == "" {
		r.qrCache.Put(ev.Ticket, openID)
	}
	return ReplyText(ReplyLoginOK)
}

func (r *Router) handleSubscribe(ctx context.Context, ev *message.MixMessage) *message.Reply {
	openID := string(ev.FromUserName)
	if err := r.ensureUser(ctx, openID); err != nil {
		logger.Errorf("[router] ensure user %s on subscribe: %v", openID, err)
	}
	return ReplyText(ReplyWelcome)
}

// 菜单点击：人设菜单换成预置提示词后当普通文本走异步链路，
// 会员菜单异步推开通/续费引导图。
func (r *Router) handleMenuClick(ctx context.Context, ev *message.MixMessage) *message.Reply {
	openID := string(ev.FromUserName)
	if ev.EventKey == MenuKeyVip {
		r.dispatchVipGuide(openID)
		return nil
	}
	prompt, ok := menuPrompt(ev.EventKey)
	if !ok {
		logger.Warnf("[router] unknown menu key %q from %s", ev.EventKey, openID)
		return nil
	}
	r.dispatchAsk(openID, prompt)
	return nil
}

func (r *Router) handleNormalMessage(ctx context.Context, ev *message.MixMessage) *message.Reply {
	openID := string(ev.FromUserName)

	if !r.gate.IsActive(ctx, openID) {
		return r.replyMembershipGate(ctx, openID)
	}

	if ev.MsgType == message.MsgTypeText && strings.TrimSpace(ev.Content) == EndConversationCommand {
		r.chat.EndConversation(openID)
		return ReplyText(ReplyConversationEnd)
	}

	switch ev.MsgType {
	case message.MsgTypeText:
		r.dispatchAsk(openID, ev.Content)
		return nil
	case message.MsgTypeImage:
		r.dispatchImageUpload(openID, ev.MediaID)
		return nil
	case message.MsgTypeVoice:
		// 开了语音识别的公众号会带识别结果，拿它当文本问
		if ev.Recognition != "" {
			r.dispatchAsk(openID, ev.Recognition)
			return nil
		}
		return ReplyText(ReplyUnsupported)
	default:
		return ReplyText(ReplyUnsupported)
	}
}

// 非会员：按“没开过/到期”选素材库里的引导图同步回复，
// 找不到素材就落到文案。会话状态不动。
func (r *Router) replyMembershipGate(ctx context.Context, openID string) *message.Reply {
	if media, ok := r.guideImage(ctx, openID); ok {
		return ReplyImage(media)
	}
	return ReplyText(ReplyContactUs)
}

func (r *Router) guideImage(ctx context.Context, openID string) (string, bool) {
	name := r.gate.ReplyAssetName(ctx, openID)
	assets, err := r.api.ListImageAssets(ctx)
	if err != nil {
		logger.Errorf("[router] list image assets: %v", err)
		return "", false
	}
	for _, a := range assets {
		if strings.Contains(a.Name, name) {
			return a.MediaID, true
		}
	}
	return "", false
}

// dispatchAsk 异步问下游并走客服消息推回。模型按会员档位钳制。
// 任务内所有失败都转成用户可见的重试提示，不会向外冒。
func (r *Router) dispatchAsk(openID, prompt string) {
	r.dispatch.Enqueue(openID, func() {
		ctx := context.Background()
		model := r.gate.ModelFor(ctx, openID, r.chat.Model())
		answer, err := r.chat.Ask(ctx, openID, prompt, model)
		if err != nil {
			logger.Errorf("[router] ask failed for %s: %v", openID, err)
			r.pushText(ctx, openID, ReplyServerBusy)
			return
		}
		r.pushText(ctx, openID, answer)
	})
}

func (r *Router) dispatchImageUpload(openID, mediaID string) {
	r.dispatch.Enqueue(openID, func() {
		ctx := context.Background()
		data, err := r.api.DownloadMedia(ctx, mediaID)
		if err != nil {
			logger.Errorf("[router] download media %s: %v", mediaID, err)
			r.pushText(ctx, openID, ReplyRetryUpload)
			return
		}
		if !r.chat.UploadImage(ctx, openID, data, mediaID+".jpg") {
			r.pushText(ctx, openID, ReplyRetryUpload)
			return
		}
		r.pushText(ctx, openID, ReplyImageSaved)
	})
}

// dispatchVipGuide 客服消息推开通/续费引导图，找不到素材退化成文案。
func (r *Router) dispatchVipGuide(openID string) {
	r.dispatch.Enqueue(openID, func() {
		ctx := context.Background()
		media, ok := r.guideImage(ctx, openID)
		if !ok {
			r.pushText(ctx, openID, ReplyContactUs)
			return
		}
		if err := r.api.PushImageMessage(ctx, openID, media); err != nil {
			logger.Errorf("[router] push vip guide to %s: %v", openID, err)
			r.pushText(ctx, openID, ReplyContactUs)
		}
	})
}

func (r *Router) pushText(ctx context.Context, openID, text string) {
	if err := r.api.PushTextMessage(ctx, openID, text); err != nil {
		logger.Errorf("[router] push to %s failed: %v", openID, err)
	}
}

func (r *Router) ensureUser(ctx context.Context, openID string) error {
	u, err := r.users.FindByOpenID(ctx, openID)
	if err != nil {
		return err
	}
	if u != nil {
		return nil
	}

	info, err := r.api.GetUserInfo(ctx, "", openID)
	if err != nil {
		// 拿不到昵称头像也要建档，登录流程不能卡在这
		logger.Warnf("[router] get user info %s: %v", openID, err)
		info = &UserInfo{OpenID: openID}
	}
	_, err = r.users.EnsureUser(ctx, openID, info.Nickname, info.HeadImgURL)
	return err
}
