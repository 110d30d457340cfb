package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	goodsmodel "wxrelay/module/goods/model"
	ordermodel "wxrelay/module/order/model"
	"wxrelay/tools/errs"
)

const orderCollection = "orders"

type Store struct {
	orders *mongo.Collection
}

func NewStore(db *mongo.Database) *Store {
	return &Store{orders: db.Collection(orderCollection)}
}

// Create 以待支付状态下单。
func (s *Store) Create(ctx context.Context, openID string, g *goodsmodel.Goods, num int) (*ordermodel.Order, error) {
	if num <= 0 {
		num = 1
	}
	o := &ordermodel.Order{
		OrderID:    uuid.NewString(),
		UserOpenID: openID,
		GoodsID:    g.ID.Hex(),
		GoodsName:  g.Name,
		GoodsNum:   num,
		GoodsType:  g.Type,
		Total:      g.Price * int64(num),
		Status:     ordermodel.StatusPending,
		PayType:    "wechat",
		CreatedAt:  time.Now(),
	}
	if _, err := s.orders.InsertOne(ctx, o); err != nil {
		return nil, errs.WrapMsg(err, "create order")
	}
	return o, nil
}

func (s *Store) ListByUser(ctx context.Context, openID string) ([]ordermodel.Order, error) {
	cur, err := s.orders.Find(ctx, bson.M{"user_open_id": openID})
	if err != nil {
		return nil, errs.WrapMsg(err, "list orders")
	}
	defer cur.Close(ctx)

	var out []ordermodel.Order
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.WrapMsg(err, "decode orders")
	}
	return out, nil
}

// UpdateStatus 支付网关确认后流转状态。
func (s *Store) UpdateStatus(ctx context.Context, orderID, status string) error {
	_, err := s.orders.UpdateOne(ctx, bson.M{"order_id": orderID}, bson.M{"$set": bson.M{"status": status}})
	return errs.WrapMsg(err, "update order status")
}
