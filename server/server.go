package server

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"

	"wxrelay/global/config"
	mid "wxrelay/middleware"
	goodssrv "wxrelay/module/goods/service"
	ordersrv "wxrelay/module/order/service"
	usermodel "wxrelay/module/user/model"
	usersrv "wxrelay/module/user/service"
	"wxrelay/module/wechat"
	"wxrelay/service/storage"
	jwtlib "wxrelay/tools/security"
)

// QrCodeCreator 平台登录二维码的创建入口（wechat.APIClient 实现）
type QrCodeCreator interface {
	CreateLoginQrCode(ctx context.Context) (*wechat.QrCode, error)
	OAuth2InfoByCode(ctx context.Context, code string) (*wechat.OAuth2Info, error)
	GetUserInfo(ctx context.Context, oauthToken, openID string) (*wechat.UserInfo, error)
}

// UserStore 登录与会员查询用到的用户档案操作（usersrv.Store 实现）
type UserStore interface {
	FindByOpenID(ctx context.Context, openID string) (*usermodel.User, error)
	EnsureUser(ctx context.Context, openID, nickname, avatar string) (*usermodel.User, error)
	GetVip(ctx context.Context, openID string) (*usermodel.Vip, error)
	GetBalance(ctx context.Context, openID string) (*usermodel.Balance, error)
}

// Server 聚合各服务对象，对外只暴露 HTTP 面。
type Server struct {
	cfg      *config.AppConfig
	verifier *wechat.SignatureVerifier
	router   *wechat.Router
	platform *wechat.APIClient
	api      QrCodeCreator
	qrCache  *wechat.QrTicketCache
	deduper  storage.Deduper
	users    UserStore
	gate     *usersrv.Gate
	goods    *goodssrv.Store
	orders   *ordersrv.Store
	jwtOpts  jwtlib.Options
}

type Deps struct {
	Cfg      *config.AppConfig
	Verifier *wechat.SignatureVerifier
	Router   *wechat.Router
	Platform *wechat.APIClient
	API      QrCodeCreator
	QrCache  *wechat.QrTicketCache
	Deduper  storage.Deduper
	Users    UserStore
	Gate     *usersrv.Gate
	Goods    *goodssrv.Store
	Orders   *ordersrv.Store
}

func New(d Deps) *Server {
	return &Server{
		cfg:      d.Cfg,
		verifier: d.Verifier,
		router:   d.Router,
		platform: d.Platform,
		api:      d.API,
		qrCache:  d.QrCache,
		deduper:  d.Deduper,
		users:    d.Users,
		gate:     d.Gate,
		goods:    d.Goods,
		orders:   d.Orders,
		jwtOpts:  jwtlib.Options{Secret: d.Cfg.JwtSecret, TTL: d.Cfg.JwtTTL},
	}
}

// Register 挂路由。回调与登录是开放接口，商品/订单/会员信息要带站点令牌。
func (s *Server) Register(e *gin.Engine) {
	open := mid.RouteOpt{}
	auth := mid.RouteOpt{IsAuth: true, Jwt: s.jwtOpts}

	mid.GET(e, "/api/auth/weixin/check", s.handleWebhookVerify, open)
	mid.POST(e, "/api/auth/weixin/check", s.handleWebhookMessage, open)

	mid.POST(e, "/api/auth/weixin/login", s.handleOAuthLogin, open)
	mid.GET(e, "/api/auth/weixin/qrcode", s.handleGetQrCode, open)
	mid.POST(e, "/api/auth/weixin/qrcode/check", s.handleCheckQrCode, open)

	mid.GET(e, "/api/goods", s.handleListGoods, open)
	mid.POST(e, "/api/orders", s.handleCreateOrder, auth)
	mid.GET(e, "/api/orders", s.handleListOrders, auth)
	mid.GET(e, "/api/vip/me", s.handleMyVip, auth)
}

func (s *Server) Addr() string {
	return fmt.Sprintf(":%d", s.cfg.Port)
}
