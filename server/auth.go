package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wxrelay/logger"
	jwtlib "wxrelay/tools/security"
)

// handleOAuthLogin 网页授权登录：code 换 openid，首次见建档，签发站点令牌。
func (s *Server) handleOAuthLogin(c *gin.Context) {
	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "code is required"})
		return
	}

	info, err := s.api.OAuth2InfoByCode(c.Request.Context(), req.Code)
	if err != nil {
		logger.Errorf("[auth] oauth code exchange: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Something went wrong"})
		return
	}
	if info.OpenID == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Something went wrong"})
		return
	}

	user, err := s.users.FindByOpenID(c.Request.Context(), info.OpenID)
	if err == nil && user == nil {
		// 首次登录，补昵称头像建档；拿不到资料也照样建
		nickname, avatar := "", ""
		if wxUser, uerr := s.api.GetUserInfo(c.Request.Context(), info.AccessToken, info.OpenID); uerr == nil {
			nickname, avatar = wxUser.Nickname, wxUser.HeadImgURL
		} else {
			logger.Warnf("[auth] get user info: %v", uerr)
		}
		user, err = s.users.EnsureUser(c.Request.Context(), info.OpenID, nickname, avatar)
	}
	if err != nil {
		logger.Errorf("[auth] ensure user: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Something went wrong"})
		return
	}

	token, _, err := jwtlib.Generate(s.jwtOpts, info.OpenID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Something went wrong"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}

// handleGetQrCode 下发登录二维码，同时在 ticket 缓存里占个空位等扫码。
func (s *Server) handleGetQrCode(c *gin.Context) {
	qr, err := s.api.CreateLoginQrCode(c.Request.Context())
	if err != nil {
		logger.Errorf("[auth] create login qrcode: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "qrcode unavailable"})
		return
	}
	s.qrCache.Put(qr.Ticket, "")
	c.JSON(http.StatusOK, qr)
}

// handleCheckQrCode 浏览器轮询扫码结果。读到 openid 即登录成功，
// 缓存读后即删，同一张码的成功结果只能取一次。
func (s *Server) handleCheckQrCode(c *gin.Context) {
	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "code is required"})
		return
	}

	openID, ok := s.qrCache.Get(req.Code)
	if !ok || openID == "" {
		// 未扫码（或占位被消费）：空对象让前端继续轮询
		c.JSON(http.StatusOK, gin.H{})
		return
	}

	user, err := s.users.FindByOpenID(c.Request.Context(), openID)
	if err != nil || user == nil {
		logger.Errorf("[auth] qr login user %s missing: %v", openID, err)
		c.JSON(http.StatusOK, gin.H{})
		return
	}

	token, _, err := jwtlib.Generate(s.jwtOpts, openID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Something went wrong"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}
