package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/silenceper/wechat/v2/officialaccount/message"

	"wxrelay/logger"
	"wxrelay/module/wechat"
	"wxrelay/tools/errs"
)

// handleWebhookVerify 服务器配置校验：签名过了原样回 echostr。
func (s *Server) handleWebhookVerify(c *gin.Context) {
	signature := c.Query("signature")
	timestamp := c.Query("timestamp")
	nonce := c.Query("nonce")
	echostr := c.Query("echostr")

	if !s.verifier.Verify(signature, timestamp, nonce) {
		c.String(http.StatusInternalServerError, "Wechat verify failed!")
		return
	}
	c.String(http.StatusOK, echostr)
}

// handleWebhookMessage 回调主入口。签名先在这里校验（失败按约定回 500），
// 报文解码、回复编码交给官方库的 Server；业务只在消息回调里做去重和路由。
// 响应体要么是同步回复的 XML，要么是 "success"（结果稍后用客服消息推）。
func (s *Server) handleWebhookMessage(c *gin.Context) {
	signature := c.Query("signature")
	timestamp := c.Query("timestamp")
	nonce := c.Query("nonce")

	if !s.verifier.Verify(signature, timestamp, nonce) {
		logger.Warnf("[webhook] %v: ts=%s nonce=%s", errs.ErrSignatureMismatch, timestamp, nonce)
		c.String(http.StatusInternalServerError, "Wechat verify failed!")
		return
	}

	srv := s.platform.CallbackServer(c.Request, c.Writer)
	srv.SkipValidate(true) // 上面已验过签
	srv.SetMessageHandler(func(ev *message.MixMessage) *message.Reply {
		// 平台对超时投递会重试，重复的 MsgId 直接应答，不再处理。
		// 事件消息没有 MsgId，不参与去重。
		if key := wechat.MsgKey(ev); key != "" && !s.deduper.FirstSeen(c.Request.Context(), key) {
			logger.Infof("[webhook] duplicate msg %s from %s", key, ev.FromUserName)
			return nil
		}
		return s.router.HandleMessage(c.Request.Context(), ev)
	})

	if err := srv.Serve(); err != nil {
		logger.Errorf("[webhook] %v: %v", errs.ErrMalformedPayload, err)
		c.String(http.StatusBadRequest, "bad request")
		return
	}
	if err := srv.Send(); err != nil {
		logger.Errorf("[webhook] send reply failed: %v", err)
	}
	// 没有同步回复时库不写响应体，按平台约定补一个 success
	if !c.Writer.Written() {
		c.String(http.StatusOK, wechat.AckSuccess)
	}
}
