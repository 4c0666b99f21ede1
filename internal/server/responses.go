package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/fypdeveloperss/eduExtract-sub000/internal/forum"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const messageInvalidBody = "Invalid request body"

// respondError maps a forum error kind onto its HTTP status. Internal failures answer with
// fallbackMessage so storage details never reach the client.
func (h *httpHandler) respondError(c *gin.Context, err error, fallbackMessage string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, forum.ErrInvalidInput), errors.Is(err, forum.ErrLocked):
		status = http.StatusBadRequest
	case errors.Is(err, forum.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, forum.ErrForbidden):
		status = http.StatusForbidden
	}

	message := fallbackMessage
	var serviceErr *forum.ServiceError
	if status != http.StatusInternalServerError && errors.As(err, &serviceErr) {
		message = serviceErr.Message()
	}
	if status == http.StatusInternalServerError && !errors.As(err, &serviceErr) {
		h.logger.Error("request failed", zap.String("route", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{"success": false, "error": message})
}

func respondInvalidBody(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": messageInvalidBody})
}

// bindJSON decodes an optional JSON body; an empty body leaves target at its zero value.
func bindJSON(c *gin.Context, target any) bool {
	if err := c.ShouldBindJSON(target); err != nil && !errors.Is(err, io.EOF) {
		respondInvalidBody(c)
		return false
	}
	return true
}

// pageFromQuery reads page and limit; unparsable values become zero so the service defaults apply.
func pageFromQuery(c *gin.Context) forum.PageRequest {
	return forum.PageRequest{
		Page:  queryInt(c, "page"),
		Limit: queryInt(c, "limit"),
	}
}

func queryInt(c *gin.Context, key string) int {
	value, err := strconv.Atoi(strings.TrimSpace(c.Query(key)))
	if err != nil {
		return 0
	}
	return value
}
