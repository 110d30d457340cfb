package wechat

import (
	"strconv"

	"github.com/silenceper/wechat/v2/officialaccount/message"
)

// 回调报文的解码和回复 XML 的编码都走官方库（message.MixMessage / message.Reply），
// 这里只保留本服务自己的分类语义。

// IsScanQrCode 带 Ticket 就按扫码处理。注意要在 subscribe 判断之前调用：
// 未关注用户扫登录码时平台发的是 subscribe 事件 + Ticket，此时按扫码算。
func IsScanQrCode(ev *message.MixMessage) bool {
	return ev.Ticket != ""
}

func IsSubscribeEvent(ev *message.MixMessage) bool {
	return ev.Event == message.EventSubscribe
}

func IsMenuClick(ev *message.MixMessage) bool {
	return ev.MsgType == message.MsgTypeEvent && ev.Event == message.EventClick
}

func IsNormalMessage(ev *message.MixMessage) bool {
	switch ev.MsgType {
	case message.MsgTypeText, message.MsgTypeImage, message.MsgTypeVoice,
		message.MsgTypeVideo, message.MsgTypeShortVideo, message.MsgTypeLocation, message.MsgTypeLink:
		return true
	}
	return false
}

// MsgKey 去重键。事件消息没有 MsgId，返回空串表示不去重。
func MsgKey(ev *message.MixMessage) string {
	if ev.MsgID == 0 {
		return ""
	}
	return strconv.FormatInt(ev.MsgID, 10)
}

// ReplyText 文本同步回复，收发双方对调由库的 Server 填充。
func ReplyText(content string) *message.Reply {
	return &message.Reply{MsgType: message.MsgTypeText, MsgData: message.NewText(content)}
}

func ReplyImage(mediaID string) *message.Reply {
	return &message.Reply{MsgType: message.MsgTypeImage, MsgData: message.NewImage(mediaID)}
}
