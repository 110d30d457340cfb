package service

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	usermodel "wxrelay/module/user/model"
	"wxrelay/tools/errs"
)

const (
	userCollection    = "users"
	vipCollection     = "vips"
	balanceCollection = "balances"

	// 建档时初始化的下游 token 余额
	initialTokenCredits = 10000
)

// Store 用户、会员与余额记录的 Mongo 存取。
type Store struct {
	users    *mongo.Collection
	vips     *mongo.Collection
	balances *mongo.Collection
}

func NewStore(db *mongo.Database) *Store {
	return &Store{
		users:    db.Collection(userCollection),
		vips:     db.Collection(vipCollection),
		balances: db.Collection(balanceCollection),
	}
}

func (s *Store) FindByOpenID(ctx context.Context, openID string) (*usermodel.User, error) {
	var u usermodel.User
	err := s.users.FindOne(ctx, bson.M{"wx_open_id": openID}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "find user")
	}
	return &u, nil
}

// EnsureUser 按 openid 幂等建档。已存在直接返回，不覆盖昵称头像。
func (s *Store) EnsureUser(ctx context.Context, openID, nickname, avatar string) (*usermodel.User, error) {
	if u, err := s.FindByOpenID(ctx, openID); err != nil || u != nil {
		return u, err
	}

	email := openID
	if len(email) > 10 {
		email = email[:10]
	}
	u := &usermodel.User{
		OpenID:    openID,
		Username:  nickname,
		Avatar:    avatar,
		Email:     email + "@user.com",
		CreatedAt: time.Now(),
	}
	opts := options.Update().SetUpsert(true)
	if _, err := s.users.UpdateOne(ctx, bson.M{"wx_open_id": openID}, bson.M{"$setOnInsert": u}, opts); err != nil {
		return nil, errs.WrapMsg(err, "ensure user")
	}

	// 新用户顺手开好下游余额账户，充一笔初始额度
	if err := s.ensureBalance(ctx, openID); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Store) ensureBalance(ctx context.Context, openID string) error {
	b := &usermodel.Balance{
		OpenID:       openID,
		TokenCredits: initialTokenCredits,
		UpdatedAt:    time.Now(),
	}
	opts := options.Update().SetUpsert(true)
	_, err := s.balances.UpdateOne(ctx, bson.M{"user_open_id": openID}, bson.M{"$setOnInsert": b}, opts)
	return errs.WrapMsg(err, "ensure balance")
}

func (s *Store) GetBalance(ctx context.Context, openID string) (*usermodel.Balance, error) {
	var b usermodel.Balance
	err := s.balances.FindOne(ctx, bson.M{"user_open_id": openID}).Decode(&b)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "find balance")
	}
	return &b, nil
}

func (s *Store) GetVip(ctx context.Context, openID string) (*usermodel.Vip, error) {
	var v usermodel.Vip
	err := s.vips.FindOne(ctx, bson.M{"user_open_id": openID}).Decode(&v)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "find vip")
	}
	return &v, nil
}

// UpsertVip 开通或续费后写会员记录，下单支付流程在 order 模块。
func (s *Store) UpsertVip(ctx context.Context, v *usermodel.Vip) error {
	opts := options.Update().SetUpsert(true)
	_, err := s.vips.UpdateOne(ctx, bson.M{"user_open_id": v.OpenID}, bson.M{"$set": v}, opts)
	return errs.WrapMsg(err, "upsert vip")
}
