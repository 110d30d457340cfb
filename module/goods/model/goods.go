package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// 商品类型
const (
	TypeVip   = "vip"   // 会员，Count 表示月份
	TypePoint = "point" // 积分包，Count 表示积分数量
)

// Goods 可购买的会员档位或积分包。价格单位为分。
type Goods struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Type        string             `bson:"type" json:"type"`
	Level       string             `bson:"level,omitempty" json:"level"` // 会员档位，"1" 最低
	Price       int64              `bson:"price" json:"price"`
	MarketPrice int64              `bson:"market_price" json:"marketPrice"`
	Desc        string             `bson:"desc,omitempty" json:"desc"`
	Count       int                `bson:"count" json:"count"`
	CreatedAt   time.Time          `bson:"created_at" json:"createdAt"`
}
