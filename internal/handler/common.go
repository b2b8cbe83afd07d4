package handler // handler defines http handlers

import (
    "errors"
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/seojunpark/carpool-backend/internal/service"
)

// getUserID extracts the user_id from echo.Context and converts it to uint64.
// The JWT middleware stores the raw claim value, whose Go type depends on
// how the JSON number was decoded.
func getUserID(c echo.Context) (uint64, error) {
    v := c.Get("user_id")
    switch t := v.(type) {
    case uint64:
        return t, nil
    case int:
        return uint64(t), nil
    case int64:
        return uint64(t), nil
    case float64:
        return uint64(t), nil
    case string:
        if n, err := strconv.ParseUint(t, 10, 64); err == nil {
            return n, nil
        }
    }
    return 0, errors.New("invalid user_id in context")
}

// getRole returns the role claim stored by the JWT middleware, or "" when
// absent.
func getRole(c echo.Context) string {
    if r, ok := c.Get("role").(string); ok {
        return r
    }
    return ""
}

// pathID parses a numeric path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
    return strconv.ParseUint(c.Param(name), 10, 64)
}

// writeServiceError maps service sentinels onto HTTP status codes and
// writes the standard error envelope. Unknown errors become 500.
func writeServiceError(c echo.Context, err error) error {
    switch {
    case errors.Is(err, service.ErrRoomNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "room not found"})
    case errors.Is(err, service.ErrMembershipNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "membership not found"})
    case errors.Is(err, service.ErrMessageNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "message not found"})
    case errors.Is(err, service.ErrSettlementNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "settlement not found"})
    case errors.Is(err, service.ErrForbidden):
        return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
    case errors.Is(err, service.ErrInvalidState):
        return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
    case errors.Is(err, service.ErrValidation):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    default:
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
    }
}
