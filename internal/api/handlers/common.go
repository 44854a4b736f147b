package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/openhelm/supportdesk/internal/utils"
)

type APIError struct {
	Code    utils.Code `json:"code"`
	Message string     `json:"message"`
}

func writeError(c *gin.Context, err error) {
	status := utils.HTTPStatus(err)

	var ae *utils.AppError
	if errors.As(err, &ae) {
		c.JSON(status, APIError{
			Code:    ae.Code,
			Message: ae.Message,
		})
		return
	}

	c.JSON(status, APIError{
		Code:    utils.CodeInternal,
		Message: http.StatusText(status),
	})
}

func requireUserID(c *gin.Context) (uint, bool) {
	if v, ok := c.Get("user_id"); ok {
		if id, ok := v.(uint); ok && id != 0 {
			return id, true
		}
	}

	writeError(c, utils.E(utils.CodeUnauthorized, "Auth", "unauthorized", nil))
	return 0, false
}

// actorID is the optional variant for endpoints usable without auth.
func actorID(c *gin.Context) *uint {
	if v, ok := c.Get("user_id"); ok {
		if id, ok := v.(uint); ok && id != 0 {
			return &id
		}
	}
	return nil
}

func pathID(c *gin.Context, name string) (uint, bool) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || n == 0 {
		writeError(c, utils.E(utils.CodeInvalidArgument, "Params", "invalid "+name, err))
		return 0, false
	}
	return uint(n), true
}
