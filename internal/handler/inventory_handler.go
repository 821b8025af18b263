package handler

import (
	"cardstock/internal/repository"
	"cardstock/internal/service"
	"cardstock/pkg/response"

	"github.com/gin-gonic/gin"
)

// ============================================================
// 银行
// ============================================================

// ListBanks GET /api/v1/banks?withRelations=true
func (h *Handler) ListBanks(c *gin.Context) {
	banks, err := h.bankService.List(c.Request.Context(), queryBool(c, "withRelations"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, banks)
}

func (h *Handler) GetBank(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	bank, err := h.bankService.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, bank)
}

func (h *Handler) CreateBank(c *gin.Context) {
	var req service.CreateBankInput
	if !bindJSON(c, &req) {
		return
	}
	bank, err := h.bankService.Create(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, bank)
}

func (h *Handler) UpdateBank(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req service.UpdateBankInput
	if !bindJSON(c, &req) {
		return
	}
	bank, err := h.bankService.Update(c.Request.Context(), id, &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, bank)
}

func (h *Handler) DeleteBank(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.bankService.Delete(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	response.NoContent(c)
}

// ============================================================
// 存放地点
// ============================================================

// ListLocations GET /api/v1/locations?bankId=1
func (h *Handler) ListLocations(c *gin.Context) {
	bankID, ok := queryID(c, "bankId")
	if !ok {
		return
	}
	locations, err := h.locationService.List(c.Request.Context(), bankID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, locations)
}

func (h *Handler) GetLocation(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	location, err := h.locationService.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, location)
}

func (h *Handler) CreateLocation(c *gin.Context) {
	var req service.CreateLocationInput
	if !bindJSON(c, &req) {
		return
	}
	location, err := h.locationService.Create(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, location)
}

func (h *Handler) UpdateLocation(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req service.UpdateLocationInput
	if !bindJSON(c, &req) {
		return
	}
	location, err := h.locationService.Update(c.Request.Context(), id, &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, location)
}

func (h *Handler) DeleteLocation(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.locationService.Delete(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	response.NoContent(c)
}

// ============================================================
// 卡种
// ============================================================

// ListCardTypes GET /api/v1/card-types?bankId=1
func (h *Handler) ListCardTypes(c *gin.Context) {
	bankID, ok := queryID(c, "bankId")
	if !ok {
		return
	}
	cardTypes, err := h.cardTypeService.List(c.Request.Context(), bankID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, cardTypes)
}

func (h *Handler) GetCardType(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	cardType, err := h.cardTypeService.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, cardType)
}

func (h *Handler) CreateCardType(c *gin.Context) {
	var req service.CreateCardTypeInput
	if !bindJSON(c, &req) {
		return
	}
	cardType, err := h.cardTypeService.Create(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, cardType)
}

func (h *Handler) UpdateCardType(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req service.UpdateCardTypeInput
	if !bindJSON(c, &req) {
		return
	}
	cardType, err := h.cardTypeService.Update(c.Request.Context(), id, &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, cardType)
}

func (h *Handler) DeleteCardType(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.cardTypeService.Delete(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	response.NoContent(c)
}

// ============================================================
// 库存
// ============================================================

// ListStocks GET /api/v1/stocks?locationId=1&cardTypeId=2
func (h *Handler) ListStocks(c *gin.Context) {
	locationID, ok := queryID(c, "locationId")
	if !ok {
		return
	}
	cardTypeID, ok := queryID(c, "cardTypeId")
	if !ok {
		return
	}
	stocks, err := h.stockService.List(c.Request.Context(), repository.StockFilter{LocationID: locationID, CardTypeID: cardTypeID})
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, stocks)
}

func (h *Handler) GetStock(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	stock, err := h.stockService.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, stock)
}

func (h *Handler) CreateStock(c *gin.Context) {
	var req service.CreateStockInput
	if !bindJSON(c, &req) {
		return
	}
	stock, err := h.stockService.Create(c.Request.Context(), actor(c), &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, stock)
}

// UpdateStock 手工调整数量或告警阈值，数量变化会写审计日志
func (h *Handler) UpdateStock(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req service.UpdateStockInput
	if !bindJSON(c, &req) {
		return
	}
	stock, err := h.stockService.Update(c.Request.Context(), actor(c), id, &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, stock)
}

func (h *Handler) DeleteStock(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.stockService.Delete(c.Request.Context(), actor(c), id); err != nil {
		fail(c, err)
		return
	}
	response.NoContent(c)
}

// ============================================================
// 库存变动
// ============================================================

// ListMovements GET /api/v1/movements?type=in&locationId=1&cardTypeId=2&from=2024-01-01&to=2024-02-01
func (h *Handler) ListMovements(c *gin.Context) {
	filter := repository.MovementFilter{Type: c.Query("type")}
	var ok bool
	if filter.LocationID, ok = queryID(c, "locationId"); !ok {
		return
	}
	if filter.CardTypeID, ok = queryID(c, "cardTypeId"); !ok {
		return
	}
	if filter.From, ok = queryTime(c, "from"); !ok {
		return
	}
	if filter.To, ok = queryTime(c, "to"); !ok {
		return
	}

	movements, err := h.movementService.List(c.Request.Context(), filter)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, movements)
}

func (h *Handler) GetMovement(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	movement, err := h.movementService.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, movement)
}

// CreateMovement 入库 / 出库 / 调拨
// POST /api/v1/movements
//
// 变动记录、库存增减、审计日志和事件在同一个事务里提交，
// 库存不足或超过地点容量时整笔拒绝。
func (h *Handler) CreateMovement(c *gin.Context) {
	var req service.CreateMovementInput
	if !bindJSON(c, &req) {
		return
	}
	movement, err := h.movementService.Create(c.Request.Context(), actor(c), &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, movement)
}

// UpdateMovement 只允许修改原因和附件
func (h *Handler) UpdateMovement(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req service.UpdateMovementInput
	if !bindJSON(c, &req) {
		return
	}
	movement, err := h.movementService.Update(c.Request.Context(), id, &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, movement)
}

// DeleteMovement 删除并回滚对库存的影响
func (h *Handler) DeleteMovement(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.movementService.Delete(c.Request.Context(), actor(c), id); err != nil {
		fail(c, err)
		return
	}
	response.NoContent(c)
}
