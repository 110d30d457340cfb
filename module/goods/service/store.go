package service

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	goodsmodel "wxrelay/module/goods/model"
	"wxrelay/tools/errs"
)

const goodsCollection = "goods"

type Store struct {
	goods *mongo.Collection
}

func NewStore(db *mongo.Database) *Store {
	return &Store{goods: db.Collection(goodsCollection)}
}

// List 商品列表，购买页展示用。
func (s *Store) List(ctx context.Context) ([]goodsmodel.Goods, error) {
	cur, err := s.goods.Find(ctx, bson.M{})
	if err != nil {
		return nil, errs.WrapMsg(err, "list goods")
	}
	defer cur.Close(ctx)

	var out []goodsmodel.Goods
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.WrapMsg(err, "decode goods")
	}
	return out, nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*goodsmodel.Goods, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, errs.WrapMsg(err, "bad goods id")
	}
	var g goodsmodel.Goods
	err = s.goods.FindOne(ctx, bson.M{"_id": oid}).Decode(&g)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "find goods")
	}
	return &g, nil
}
