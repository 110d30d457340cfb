package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wxrelay/logger"
	midsec "wxrelay/middleware/security"
)

func (s *Server) handleListGoods(c *gin.Context) {
	list, err := s.goods.List(c.Request.Context())
	if err != nil {
		logger.Errorf("[api] list goods: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Something went wrong"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"goods": list})
}

func (s *Server) handleCreateOrder(c *gin.Context) {
	openID := midsec.OpenIDFrom(c)

	var req struct {
		GoodsID string `json:"goodsId" binding:"required"`
		Num     int    `json:"num"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "goodsId is required"})
		return
	}

	g, err := s.goods.FindByID(c.Request.Context(), req.GoodsID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "bad goodsId"})
		return
	}
	if g == nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "goods not found"})
		return
	}

	o, err := s.orders.Create(c.Request.Context(), openID, g, req.Num)
	if err != nil {
		logger.Errorf("[api] create order: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Something went wrong"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": o})
}

func (s *Server) handleListOrders(c *gin.Context) {
	openID := midsec.OpenIDFrom(c)
	list, err := s.orders.ListByUser(c.Request.Context(), openID)
	if err != nil {
		logger.Errorf("[api] list orders: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Something went wrong"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": list})
}

// handleMyVip 当前登录用户的会员状态和下游余额。
func (s *Server) handleMyVip(c *gin.Context) {
	openID := midsec.OpenIDFrom(c)
	vip, err := s.users.GetVip(c.Request.Context(), openID)
	if err != nil {
		logger.Errorf("[api] get vip: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Something went wrong"})
		return
	}
	// 余额查不到不算错，老数据可能没有账户
	balance, err := s.users.GetBalance(c.Request.Context(), openID)
	if err != nil {
		logger.Errorf("[api] get balance: %v", err)
	}
	c.JSON(http.StatusOK, gin.H{
		"vip":     vip,
		"active":  s.gate.IsActive(c.Request.Context(), openID),
		"balance": balance,
	})
}
