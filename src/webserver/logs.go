package webserver

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/stake-plus/catchfleet/src/store"
)

type Logs struct {
	store AccountStore
}

func NewLogs(st AccountStore) Logs {
	return Logs{store: st}
}

func (l Logs) List(c *gin.Context) {
	var accountID *uint
	if raw := c.Query("accountId"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, validationError{Message: "accountId must be a number", Field: "accountId"})
			return
		}
		v := uint(id)
		accountID = &v
	}

	limit := store.DefaultLogLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, validationError{Message: "limit must be a positive number", Field: "limit"})
			return
		}
		limit = n
	}

	entries, err := l.store.ListLogs(c.Request.Context(), accountID, limit)
	if err != nil {
		serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}
