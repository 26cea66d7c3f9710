package handler

import (
	"strings"

	"github.com/labstack/echo/v4"

	"neighborly/internal/domain/entity"
	"neighborly/internal/usecase"
	"neighborly/pkg/errors"
)

// actorFrom reads the identity set by the auth middleware.
func actorFrom(c echo.Context) usecase.Actor {
	uid, _ := c.Get("uid").(string)
	role, _ := c.Get("role").(string)
	return usecase.Actor{UserID: uid, Role: role}
}

// parseStatuses accepts a comma separated list of status names or aliases.
func parseStatuses(raw string) ([]entity.RequestStatus, error) {
	if raw == "" {
		return nil, nil
	}
	var statuses []entity.RequestStatus
	for _, part := range strings.Split(raw, ",") {
		status, ok := entity.ParseRequestStatus(part)
		if !ok {
			return nil, errors.Validation("unknown status: "+strings.TrimSpace(part), nil)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}
