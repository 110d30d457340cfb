package wechat

import (
	"testing"

	"github.com/silenceper/wechat/v2/officialaccount/message"
)

func TestClassificationPredicates(t *testing.T) {
	scan := &message.MixMessage{
		CommonToken: message.CommonToken{MsgType: message.MsgTypeEvent},
	}
	scan.Event = message.EventSubscribe
	scan.Ticket = "TICKET_1"
	// 带 Ticket 的 subscribe 是扫码，不是普通关注
	if !IsScanQrCode(scan) {
		t.Error("subscribe with ticket should classify as scan")
	}
	if !IsSubscribeEvent(scan) {
		t.Error("it is still a subscribe event; caller order decides")
	}

	sub := &message.MixMessage{
		CommonToken: message.CommonToken{MsgType: message.MsgTypeEvent},
	}
	sub.Event = message.EventSubscribe
	if IsScanQrCode(sub) {
		t.Error("plain subscribe must not classify as scan")
	}

	click := &message.MixMessage{
		CommonToken: message.CommonToken{MsgType: message.MsgTypeEvent},
	}
	click.Event = message.EventClick
	click.EventKey = "MENU_TRANSLATOR"
	if !IsMenuClick(click) {
		t.Error("CLICK event should classify as menu click")
	}
	if IsNormalMessage(click) {
		t.Error("event must not classify as normal message")
	}

	for _, mt := range []message.MsgType{
		message.MsgTypeText, message.MsgTypeImage, message.MsgTypeVoice,
		message.MsgTypeVideo, message.MsgTypeShortVideo, message.MsgTypeLocation, message.MsgTypeLink,
	} {
		ev := &message.MixMessage{CommonToken: message.CommonToken{MsgType: mt}}
		if !IsNormalMessage(ev) {
			t.Errorf("%s should classify as normal message", mt)
		}
	}
}

func TestMsgKey(t *testing.T) {
	ev := &message.MixMessage{}
	ev.MsgID = 1234567890123456
	if got := MsgKey(ev); got != "1234567890123456" {
		t.Errorf("MsgKey = %q", got)
	}
	// 事件消息没有 MsgId，空键表示不去重
	if got := MsgKey(&message.MixMessage{}); got != "" {
		t.Errorf("event MsgKey = %q, want empty", got)
	}
}

func TestReplyConstructors(t *testing.T) {
	r := ReplyText("你好")
	if r.MsgType != message.MsgTypeText {
		t.Errorf("reply type = %s", r.MsgType)
	}
	txt, ok := r.MsgData.(*message.Text)
	if !ok || string(txt.Content) != "你好" {
		t.Errorf("reply data = %#v", r.MsgData)
	}

	ri := ReplyImage("MEDIA_1")
	if ri.MsgType != message.MsgTypeImage {
		t.Errorf("image reply type = %s", ri.MsgType)
	}
	img, ok := ri.MsgData.(*message.Image)
	if !ok || string(img.Image.MediaID) != "MEDIA_1" {
		t.Errorf("image reply data = %#v", ri.MsgData)
	}
}
