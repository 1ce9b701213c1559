// controllers/request_controller.go
package controllers

import (
	"fmt"
	"math/rand"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"school_asset_loan/app"
	"school_asset_loan/db"
	"school_asset_loan/models"
	"school_asset_loan/realtime"

	"github.com/gin-gonic/gin"
)

type RequestController struct{ *Srv }

func NewRequestController(s *Srv) *RequestController { return &RequestController{Srv: s} }

// POST /api/requests
func (rc *RequestController) Create(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, app.H{"error": "unauthorized"})
		return
	}
	var in struct {
		ItemID    string    `json:"itemId" binding:"required"`
		Purpose   string    `json:"purpose" binding:"required"`
		StartTime time.Time `json:"startTime" binding:"required"`
		EndTime   time.Time `json:"endTime" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}

	req, err := rc.Repo.CreateRequest(c.Request.Context(), actor, db.CreateRequestInput{
		ItemID:    in.ItemID,
		Purpose:   in.Purpose,
		StartTime: in.StartTime,
		EndTime:   in.EndTime,
	})
	if err != nil {
		fail(c, err)
		return
	}
	rc.Hub.Publish(realtime.Event{Table: "borrowing_requests", Action: "insert", ID: req.ID})
	c.JSON(http.StatusCreated, req)
}

// GET /api/requests?status=&itemId=&borrowerId=&page=&size=
// 学生只能看自己的；borrowerId 过滤对审批者开放
func (rc *RequestController) List(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, app.H{"error": "unauthorized"})
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))

	q := db.RequestsQuery{
		ItemID: c.Query("itemId"),
		Status: c.Query("status"),
		Page:   page,
		Size:   size,
	}
	if actor.CanApprove() {
		q.BorrowerID = c.Query("borrowerId")
		if c.Query("mine") == "true" {
			q.BorrowerID = actor.ID
		}
	} else {
		q.BorrowerID = actor.ID
	}

	res, err := rc.Repo.ListRequests(c.Request.Context(), q)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /api/requests/:id
func (rc *RequestController) Get(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, app.H{"error": "unauthorized"})
		return
	}
	req, err := rc.Repo.FindRequestByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	if !actor.CanApprove() && req.BorrowerID != actor.ID {
		c.JSON(http.StatusForbidden, app.H{"error": "forbidden"})
		return
	}
	c.JSON(http.StatusOK, req)
}

// GET /api/requests/:id/logs
func (rc *RequestController) Logs(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, app.H{"error": "unauthorized"})
		return
	}
	req, err := rc.Repo.FindRequestByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	if !actor.CanApprove() && req.BorrowerID != actor.ID {
		c.JSON(http.StatusForbidden, app.H{"error": "forbidden"})
		return
	}
	logs, err := rc.Repo.ListActivityByRequest(c.Request.Context(), req.ID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"logs": logs})
}

// POST /api/requests/:id/approve
func (rc *RequestController) Approve(c *gin.Context) {
	rc.transition(c, db.EventApprove)
}

// POST /api/requests/:id/reject
func (rc *RequestController) Reject(c *gin.Context) {
	rc.transition(c, db.EventReject)
}

// POST /api/requests/:id/verify-return
func (rc *RequestController) VerifyReturn(c *gin.Context) {
	rc.transition(c, db.EventVerifyReturn)
}

func (rc *RequestController) transition(c *gin.Context, ev db.Event) {
	actor, ok := currentActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, app.H{"error": "unauthorized"})
		return
	}
	var in struct {
		Notes string `json:"notes"`
	}
	_ = c.ShouldBindJSON(&in)

	req, err := rc.Repo.Transition(c.Request.Context(), actor, c.Param("id"), ev, db.TransitionPayload{Notes: in.Notes})
	if err != nil {
		fail(c, err)
		return
	}
	rc.Hub.Publish(realtime.Event{Table: "borrowing_requests", Action: "update", ID: req.ID})
	rc.Hub.Publish(realtime.Event{Table: "items", Action: "update", ID: req.ItemID})
	c.JSON(http.StatusOK, req)
}

// POST /api/requests/:id/return  (multipart: photo + condition)
// 照片是强制证据：没有照片，状态机根本不会被触发
func (rc *RequestController) SubmitReturn(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, app.H{"error": "unauthorized"})
		return
	}
	id := c.Param("id")

	req, err := rc.Repo.FindRequestByID(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	if req.BorrowerID != actor.ID {
		c.JSON(http.StatusForbidden, app.H{"error": "forbidden"})
		return
	}

	file, header, err := c.Request.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": "return photo evidence is required"})
		return
	}
	defer file.Close()

	photoURL, err := rc.uploadReturnPhoto(c, actor.ID, req.ItemID, file, header)
	if err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": "upload failed: " + err.Error()})
		return
	}

	condition := c.PostForm("condition")
	out, err := rc.Repo.SubmitReturn(c.Request.Context(), actor, id, condition, photoURL)
	if err != nil {
		fail(c, err)
		return
	}
	rc.Hub.Publish(realtime.Event{Table: "borrowing_requests", Action: "update", ID: out.ID})
	c.JSON(http.StatusOK, out)
}

// 对象 key: {user}_{item}_{date}_{rand}.{ext}
func (rc *RequestController) uploadReturnPhoto(c *gin.Context, userID, itemID string, file multipart.File, header *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext == "" {
		ext = ".jpg"
	}
	key := fmt.Sprintf("%s_%s_%s_%04d%s",
		userID, itemID, time.Now().UTC().Format("20060102150405"), rand.Intn(10000), ext)
	contentType := header.Header.Get("Content-Type")
	return rc.Uploads.Upload(c.Request.Context(), key, file, contentType)
}

// DELETE /api/requests/:id/photo  管理员清掉存的照片 URL
func (rc *RequestController) ClearPhoto(c *gin.Context) {
	id := c.Param("id")
	if err := rc.Repo.ClearReturnPhoto(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	rc.Hub.Publish(realtime.Event{Table: "borrowing_requests", Action: "update", ID: id})
	c.JSON(http.StatusOK, app.H{"ok": true})
}

// DELETE /api/requests/:id  管理员删除，流水级联
func (rc *RequestController) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := rc.Repo.DeleteRequest(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	rc.Hub.Publish(realtime.Event{Table: "borrowing_requests", Action: "delete", ID: id})
	c.JSON(http.StatusOK, app.H{"ok": true})
}

// GET /api/schedule?from=...&to=...&type=key|projector
// 日历视图：给定窗口内所有占用时间段的预约
func (rc *RequestController) Schedule(c *gin.Context) {
	from, err1 := time.Parse(time.RFC3339, c.Query("from"))
	to, err2 := time.Parse(time.RFC3339, c.Query("to"))
	if err1 != nil || err2 != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": "from and to must be RFC3339 timestamps"})
		return
	}
	itemType := c.Query("type")
	if itemType != "" && itemType != models.ItemTypeKey && itemType != models.ItemTypeProjector {
		c.JSON(http.StatusBadRequest, app.H{"error": "unknown item type"})
		return
	}
	rows, err := rc.Repo.Schedule(c.Request.Context(), from, to, itemType)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"bookings": rows})
}
