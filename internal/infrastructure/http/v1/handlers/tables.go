package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"tabula/internal/crud"
	"tabula/pkg/logger"
)

// TablesHandler serves the generic table operations. It holds no per-table
// state; the table name in the path selects everything.
type TablesHandler struct {
	*BaseHandler
	service *crud.Service
}

// NewTablesHandler creates a TablesHandler.
func NewTablesHandler(base *BaseHandler, service *crud.Service) *TablesHandler {
	return &TablesHandler{BaseHandler: base, service: service}
}

// List returns the table registry.
func (h *TablesHandler) List(c *gin.Context) {
	tables, err := h.service.ListTables(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"tables": tables})
}

// View returns columns, primary key and the most recent rows of a table.
func (h *TablesHandler) View(c *gin.Context) {
	view, err := h.service.TableView(c.Request.Context(), c.Param("table"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, view)
}

// CreateForm returns the synthesized create-form schema.
func (h *TablesHandler) CreateForm(c *gin.Context) {
	form, err := h.service.CreateForm(c.Request.Context(), c.Param("table"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, form)
}

// EditForm returns the form schema pre-populated with the row's values.
func (h *TablesHandler) EditForm(c *gin.Context) {
	form, err := h.service.EditForm(c.Request.Context(), c.Param("table"), c.Param("key"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, form)
}

// Create inserts a row from the submitted field map.
func (h *TablesHandler) Create(c *gin.Context) {
	var payload map[string]any
	if !h.BindJSON(c, &payload) {
		return
	}

	if err := h.service.Create(c.Request.Context(), c.Param("table"), payload); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c)
}

// Update rewrites the row identified by the key.
func (h *TablesHandler) Update(c *gin.Context) {
	var payload map[string]any
	if !h.BindJSON(c, &payload) {
		return
	}

	if err := h.service.Update(c.Request.Context(), c.Param("table"), c.Param("key"), payload); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"status": "success"})
}

// Delete removes the row identified by the key. Absent keys report zero
// affected rows, not an error.
func (h *TablesHandler) Delete(c *gin.Context) {
	affected, err := h.service.Delete(c.Request.Context(), c.Param("table"), c.Param("key"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"status": "deleted", "affected": affected})
}

// Export streams the table (or one record, with ?key=) as CSV.
func (h *TablesHandler) Export(c *gin.Context) {
	table := c.Param("table")
	records, err := h.service.Export(c.Request.Context(), table, c.Query("key"))
	if err != nil {
		h.Error(c, err)
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", table+".csv"))
	c.Status(http.StatusOK)

	w := csv.NewWriter(c.Writer)
	if err := w.WriteAll(records); err != nil {
		// The status line is already on the wire, so the error middleware
		// can't answer for us anymore. Log directly.
		logger.Error(c.Request.Context(), "csv export write failed",
			"table", table,
			"error", err,
		)
	}
}
