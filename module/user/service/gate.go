package service

import (
	"context"
	"time"

	"wxrelay/logger"
	usermodel "wxrelay/module/user/model"
)

const (
	// 最低档会员只放行这一个模型
	LowestGoodsLevel = "1"
	DefaultMiniModel = "gpt-4o-mini"
)

// VipSource 会员记录来源，测试里用内存假实现替换 Mongo。
type VipSource interface {
	GetVip(ctx context.Context, openID string) (*usermodel.Vip, error)
}

// Gate 会员门禁：判断当前是否有效、请求的模型是否放行。
type Gate struct {
	src VipSource
	now func() time.Time
}

func NewGate(src VipSource) *Gate {
	return &Gate{src: src, now: time.Now}
}

// NewGateAt 注入时钟，边界用例测试用。
func NewGateAt(src VipSource, now func() time.Time) *Gate {
	return &Gate{src: src, now: now}
}

// IsActive 到期时刻当下仍算有效（闭区间），过了就失效。
func (g *Gate) IsActive(ctx context.Context, openID string) bool {
	v, err := g.src.GetVip(ctx, openID)
	if err != nil {
		logger.Errorf("[gate] vip lookup failed for %s: %v", openID, err)
		return false
	}
	if v == nil {
		return false
	}
	return !g.now().After(v.ExpiredTime)
}

// IsModelAllowed 只有最低档会员请求非默认小模型时拦截，其余一律放行；
// 没传模型也放行。
func (g *Gate) IsModelAllowed(ctx context.Context, openID, model string) bool {
	if model == "" {
		return true
	}
	v, err := g.src.GetVip(ctx, openID)
	if err != nil || v == nil {
		return true
	}
	if v.GoodsLevel == LowestGoodsLevel && model != DefaultMiniModel {
		return false
	}
	return true
}

// ModelFor 返回该用户实际可用的模型：请求的模型被拦截就降到默认小模型。
func (g *Gate) ModelFor(ctx context.Context, openID, requested string) string {
	if g.IsModelAllowed(ctx, openID, requested) {
		return requested
	}
	return DefaultMiniModel
}

// ReplyAssetName 非会员回复图的素材名前缀：从没开过会员引导“开通”，
// 开过但到期引导“续费”。
func (g *Gate) ReplyAssetName(ctx context.Context, openID string) string {
	v, err := g.src.GetVip(ctx, openID)
	if err != nil || v == nil {
		return "open"
	}
	return "continue"
}
