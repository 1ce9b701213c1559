// controllers/item_controller.go
package controllers

import (
	"net/http"
	"strconv"
	"time"

	"school_asset_loan/app"
	"school_asset_loan/db"
	"school_asset_loan/models"
	"school_asset_loan/realtime"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ItemController struct{ *Srv }

func NewItemController(s *Srv) *ItemController { return &ItemController{Srv: s} }

// 管理员登记一件物品（钥匙或投影仪）
func (ic *ItemController) CreateItem(c *gin.Context) {
	var in struct {
		Name           string `json:"name" binding:"required"`
		Type           string `json:"type" binding:"required"`
		RoomName       string `json:"roomName" binding:"required"`
		ConditionNotes string `json:"conditionNotes"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	it := &models.Item{
		ID:             uuid.NewString(),
		Name:           in.Name,
		Type:           in.Type,
		RoomName:       in.RoomName,
		ConditionNotes: in.ConditionNotes,
		Status:         models.ItemAvailable,
	}
	if err := ic.Repo.CreateItem(c.Request.Context(), it); err != nil {
		fail(c, err)
		return
	}
	ic.Hub.Publish(realtime.Event{Table: "items", Action: "insert", ID: it.ID})
	c.JSON(http.StatusCreated, it)
}

// 列表（?q=&status=&type=&page=&size=）
func (ic *ItemController) ListItems(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "50"))
	res, err := ic.Repo.ListItems(c.Request.Context(), db.ItemsQuery{
		Q:      c.Query("q"),
		Status: c.Query("status"),
		Type:   c.Query("type"),
		Page:   page,
		Size:   size,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"total": res.Total, "items": res.Items})
}

func (ic *ItemController) GetItem(c *gin.Context) {
	it, err := ic.Repo.FindItemByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, it)
}

// 管理视图：物品 + 当前借用人
func (ic *ItemController) ListItemsAdmin(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "50"))
	rows, err := ic.Repo.ListItemsWithCurrentRequest(c.Request.Context(), db.ItemsQuery{
		Q:      c.Query("q"),
		Status: c.Query("status"),
		Type:   c.Query("type"),
		Page:   page,
		Size:   size,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"items": rows})
}

func (ic *ItemController) UpdateItem(c *gin.Context) {
	var in struct {
		Name           string `json:"name"`
		Type           string `json:"type"`
		RoomName       string `json:"roomName"`
		ConditionNotes string `json:"conditionNotes"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	it, err := ic.Repo.UpdateItem(c.Request.Context(), c.Param("id"), db.UpdateItemInput{
		Name:           in.Name,
		Type:           in.Type,
		RoomName:       in.RoomName,
		ConditionNotes: in.ConditionNotes,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ic.Hub.Publish(realtime.Event{Table: "items", Action: "update", ID: it.ID})
	c.JSON(http.StatusOK, it)
}

// 人工改状态：报损（damaged）与解除报损都走这里
func (ic *ItemController) SetStatus(c *gin.Context) {
	var in struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	it, err := ic.Repo.SetItemStatus(c.Request.Context(), c.Param("id"), in.Status)
	if err != nil {
		fail(c, err)
		return
	}
	ic.Hub.Publish(realtime.Event{Table: "items", Action: "update", ID: it.ID})
	c.JSON(http.StatusOK, it)
}

// 从请求集合重算一件物品的状态投影
func (ic *ItemController) Reconcile(c *gin.Context) {
	it, err := ic.Repo.ReconcileItemStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ic.Hub.Publish(realtime.Event{Table: "items", Action: "update", ID: it.ID})
	c.JSON(http.StatusOK, it)
}

// 全量清扫，返回被纠正的数量
func (ic *ItemController) ReconcileAll(c *gin.Context) {
	fixed, err := ic.Repo.ReconcileAllItems(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	if fixed > 0 {
		ic.Hub.Publish(realtime.Event{Table: "items", Action: "update", ID: ""})
	}
	c.JSON(http.StatusOK, app.H{"fixed": fixed})
}

func (ic *ItemController) DeleteItem(c *gin.Context) {
	id := c.Param("id")
	if err := ic.Repo.DeleteItem(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	ic.Hub.Publish(realtime.Event{Table: "items", Action: "delete", ID: id})
	c.JSON(http.StatusOK, app.H{"ok": true})
}

// GET /api/items/:id/availability?start=...&end=...
// 只读预检，提交前给前端提示；最终仲裁在创建申请的事务里
func (ic *ItemController) Availability(c *gin.Context) {
	start, err1 := time.Parse(time.RFC3339, c.Query("start"))
	end, err2 := time.Parse(time.RFC3339, c.Query("end"))
	if err1 != nil || err2 != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": "start and end must be RFC3339 timestamps"})
		return
	}
	conflicting, err := ic.Repo.CheckConflict(c.Request.Context(), c.Param("id"), start, end)
	if err != nil {
		fail(c, err)
		return
	}
	if conflicting == nil {
		c.JSON(http.StatusOK, app.H{"available": true})
		return
	}
	c.JSON(http.StatusOK, app.H{
		"available":     false,
		"conflictStart": conflicting.StartTime,
		"conflictEnd":   conflicting.EndTime,
	})
}
