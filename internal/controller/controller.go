package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/ducmanh-ng/Invigilo/internal/dto"
	"github.com/ducmanh-ng/Invigilo/internal/model"
	"github.com/ducmanh-ng/Invigilo/internal/repository"
	"github.com/ducmanh-ng/Invigilo/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// ContextUserKey is where the resolved acting user lives in the gin context.
const ContextUserKey = "currentUser"

// UserResolver resolves the acting user from the X-User-ID header. Session
// handling proper is outside the core; the boundary still enforces that the
// actor exists and role checks downstream get a real user row.
func UserResolver(userRepo repository.UserRepository) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		idStr := ctx.GetHeader("X-User-ID")
		if idStr == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "Missing X-User-ID header"})
			return
		}
		id, err := strconv.ParseUint(idStr, 10, 32)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "Invalid X-User-ID header"})
			return
		}
		user, err := userRepo.FindByID(uint(id))
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "Unknown user"})
			return
		}
		ctx.Set(ContextUserKey, user)
		ctx.Next()
	}
}

// RequireRoles aborts with 403 unless the acting user has one of the roles.
func RequireRoles(roles ...string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		user := CurrentUser(ctx)
		if user == nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "Not authenticated"})
			return
		}
		for _, role := range roles {
			if user.Role == role {
				ctx.Next()
				return
			}
		}
		ctx.AbortWithStatusJSON(http.StatusForbidden, dto.ErrorResponse{Message: "Not authorized"})
	}
}

// CurrentUser returns the resolved acting user, or nil outside UserResolver.
func CurrentUser(ctx *gin.Context) *model.User {
	v, ok := ctx.Get(ContextUserKey)
	if !ok {
		return nil
	}
	user, _ := v.(*model.User)
	return user
}

// ParamUint parses a numeric path parameter.
func ParamUint(ctx *gin.Context, name string) (uint, bool) {
	val, err := strconv.ParseUint(ctx.Param(name), 10, 32)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid " + name + " format"})
		return 0, false
	}
	return uint(val), true
}

// ParamQueryUint parses a numeric query parameter.
func ParamQueryUint(ctx *gin.Context, name string) (uint, bool) {
	val, err := strconv.ParseUint(ctx.Query(name), 10, 32)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid " + name + " format"})
		return 0, false
	}
	return uint(val), true
}

// RespondError maps domain errors onto HTTP statuses.
func RespondError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrAttemptNotFound),
		errors.Is(err, service.ErrAlertNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Message: err.Error()})
	case errors.Is(err, service.ErrAttemptAlreadyTerminated),
		errors.Is(err, service.ErrAttemptTerminated),
		errors.Is(err, service.ErrInvalidTransition):
		ctx.JSON(http.StatusConflict, dto.ErrorResponse{Message: err.Error()})
	case errors.Is(err, service.ErrNotAttemptOwner),
		errors.Is(err, service.ErrInvalidAgentToken):
		ctx.JSON(http.StatusForbidden, dto.ErrorResponse{Message: err.Error()})
	case errors.Is(err, service.ErrRateLimited):
		ctx.JSON(http.StatusTooManyRequests, dto.ErrorResponse{Message: err.Error()})
	default:
		log.Error().Err(err).Str("path", ctx.FullPath()).Msg("Unhandled service error")
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Internal server error", Details: []string{err.Error()}})
	}
}
