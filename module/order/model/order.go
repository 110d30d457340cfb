package model

import "time"

// 支付状态
const (
	StatusPending   = "0" // 待支付
	StatusPaid      = "1" // 已完成
	StatusClosed    = "2" // 已关闭
	StatusRefunding = "3"
	StatusRefunded  = "4"
)

// Order 一笔购买记录。支付回调的验签解密不在本服务范围内，
// 状态流转由外部支付网关确认后写入。
type Order struct {
	OrderID    string    `bson:"order_id" json:"orderId"`
	UserOpenID string    `bson:"user_open_id" json:"userOpenId"`
	GoodsID    string    `bson:"goods_id" json:"goodsId"`
	GoodsName  string    `bson:"goods_name" json:"goodsName"`
	GoodsNum   int       `bson:"goods_num" json:"goodsNum"`
	GoodsType  string    `bson:"goods_type" json:"goodsType"`
	Total      int64     `bson:"total" json:"total"` // 单位为分
	Status     string    `bson:"status" json:"status"`
	PayType    string    `bson:"pay_type" json:"payType"` // wechat
	CreatedAt  time.Time `bson:"created_at" json:"createdAt"`
}
