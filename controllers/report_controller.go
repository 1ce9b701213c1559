// controllers/report_controller.go
package controllers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"school_asset_loan/app"
	"school_asset_loan/db"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

type ReportController struct{ *Srv }

func NewReportController(s *Srv) *ReportController { return &ReportController{Srv: s} }

// GET /api/dashboard
func (rp *ReportController) Dashboard(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, app.H{"error": "unauthorized"})
		return
	}
	stats, err := rp.Repo.GetDashboardStats(c.Request.Context(), actor.ID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GET /api/reports/summary?from=&to=
func (rp *ReportController) Summary(c *gin.Context) {
	from, to, err := parseRange(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	sum, err := rp.Repo.GetUsageSummary(c.Request.Context(), from, to)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

// GET /api/reports/activity?limit=20
func (rp *ReportController) RecentActivity(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	rows, err := rp.Repo.RecentActivity(c.Request.Context(), limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"activity": rows})
}

// GET /api/reports/export?format=xlsx|csv&from=&to=
func (rp *ReportController) Export(c *gin.Context) {
	from, to, err := parseRange(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	rows, err := rp.Repo.RequestsForExport(c.Request.Context(), from, to)
	if err != nil {
		fail(c, err)
		return
	}

	filename := "borrowing_report_" + time.Now().UTC().Format("20060102")
	switch c.DefaultQuery("format", "xlsx") {
	case "csv":
		rp.exportCSV(c, filename, rows)
	case "xlsx":
		rp.exportXLSX(c, filename, rows)
	default:
		c.JSON(http.StatusBadRequest, app.H{"error": "format must be xlsx or csv"})
	}
}

var exportHeader = []string{
	"Request ID", "Item", "Type", "Room", "Borrower", "ID Number",
	"Purpose", "Start", "End", "Status", "Requested At", "Return Condition",
}

func exportRecord(q db.RequestRow) []string {
	return []string{
		q.ID, q.ItemName, q.ItemType, q.RoomName, q.BorrowerName, q.BorrowerIDNumber,
		q.Purpose,
		q.StartTime.UTC().Format(time.RFC3339),
		q.EndTime.UTC().Format(time.RFC3339),
		q.Status,
		q.RequestedAt.UTC().Format(time.RFC3339),
		q.ReturnCondition,
	}
}

func (rp *ReportController) exportCSV(c *gin.Context, filename string, rows []db.RequestRow) {
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.csv"`, filename))
	w := csv.NewWriter(c.Writer)
	_ = w.Write(exportHeader)
	for _, q := range rows {
		_ = w.Write(exportRecord(q))
	}
	w.Flush()
}

func (rp *ReportController) exportXLSX(c *gin.Context, filename string, rows []db.RequestRow) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Requests"
	f.SetSheetName("Sheet1", sheet)
	_ = f.SetSheetRow(sheet, "A1", &exportHeader)
	for i, q := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		rec := exportRecord(q)
		_ = f.SetSheetRow(sheet, cell, &rec)
	}
	// 表头列宽稍微放开，导出的表可以直接看
	_ = f.SetColWidth(sheet, "A", "A", 36)
	_ = f.SetColWidth(sheet, "B", "L", 20)

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.xlsx"`, filename))
	if err := f.Write(c.Writer); err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
	}
}

func parseRange(c *gin.Context) (time.Time, time.Time, error) {
	var from, to time.Time
	var err error
	if v := c.Query("from"); v != "" {
		if from, err = time.Parse(time.RFC3339, v); err != nil {
			return from, to, fmt.Errorf("from must be RFC3339")
		}
	}
	if v := c.Query("to"); v != "" {
		if to, err = time.Parse(time.RFC3339, v); err != nil {
			return from, to, fmt.Errorf("to must be RFC3339")
		}
	}
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return from, to, fmt.Errorf("from must be before to")
	}
	return from, to, nil
}
