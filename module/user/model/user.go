package model

import "time"

// User 微信侧用户主档。OpenID 全局唯一，是所有会话/凭据状态的关联键。
type User struct {
	OpenID    string    `bson:"wx_open_id" json:"openId"`
	Username  string    `bson:"username" json:"username"` // 微信昵称
	Avatar    string    `bson:"avatar,omitempty" json:"avatar"`
	Email     string    `bson:"email" json:"email"` // 下游账号邮箱，由 openid 推导
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
}

// Balance 下游服务的 token 余额账户，建档时初始化一笔。
type Balance struct {
	OpenID       string    `bson:"user_open_id" json:"openId"`
	TokenCredits int64     `bson:"token_credits" json:"tokenCredits"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updatedAt"`
}

// Vip 会员记录。ExpiredTime 过了即失效；GoodsLevel 最低档只放行默认小模型。
type Vip struct {
	OpenID      string    `bson:"user_open_id" json:"openId"`
	GoodsLevel  string    `bson:"goods_level" json:"goodsLevel"`
	GoodsName   string    `bson:"goods_name" json:"goodsName"`
	ExpiredTime time.Time `bson:"expired_time" json:"expiredTime"`
}
