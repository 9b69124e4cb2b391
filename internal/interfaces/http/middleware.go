package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/doc-approval/internal/application/port"
	"github.com/garyjia/doc-approval/internal/domain/entity"
)

// ActorHeader carries the authenticated user id set by the fronting identity provider
const ActorHeader = "X-User-ID"

const actorKey = "actor"

// requireActor resolves the acting user from ActorHeader and aborts with 401 when it is missing or unknown
func requireActor(users port.UserRepository, logger Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(ActorHeader)
		id, err := strconv.ParseInt(raw, 10, 64)
		if raw == "" || err != nil || id <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "missing or invalid " + ActorHeader + " header",
			})
			return
		}

		user, err := users.GetByID(c.Request.Context(), id)
		if err != nil {
			logger.Error("Failed to resolve actor", "user_id", id, "error", err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, Response{
				Success: false,
				Error:   "failed to resolve user",
			})
			return
		}
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "unknown user",
			})
			return
		}

		c.Set(actorKey, user)
		c.Next()
	}
}

// actorFrom returns the user stored by requireActor
func actorFrom(c *gin.Context) *entity.User {
	if v, ok := c.Get(actorKey); ok {
		if u, ok := v.(*entity.User); ok {
			return u
		}
	}
	return nil
}
