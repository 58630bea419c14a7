package v1

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"city.newnan/ark-console/internal/config"
	"city.newnan/ark-console/internal/middleware"
	"city.newnan/ark-console/internal/model"
	"city.newnan/ark-console/internal/service"
)

// UserController 用户相关API控制器
type UserController struct {
	UserService *service.UserService
	Config      *config.Config
}

// NewUserController 创建用户控制器
func NewUserController(cfg *config.Config) *UserController {
	return &UserController{
		UserService: service.NewUserService(cfg),
		Config:      cfg,
	}
}

// setTokenCookie 把JWT令牌写入Cookie
func (c *UserController) setTokenCookie(ctx *gin.Context, token string, maxAge int) {
	ctx.SetCookie(
		"token",
		token,
		maxAge,
		"/",
		"",
		c.Config.JWTCookieSecure,
		c.Config.JWTCookieHTTPOnly,
	)
}

// Register 用户注册，第一个注册的用户成为管理员
func (c *UserController) Register(ctx *gin.Context) {
	var req model.UserRegister
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, model.ErrorResponse(http.StatusBadRequest, "无效的请求参数: "+err.Error()))
		return
	}

	user, token, err := c.UserService.Register(req)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, model.ErrorResponse(http.StatusInternalServerError, "注册失败: "+err.Error()))
		return
	}

	c.setTokenCookie(ctx, token, int(c.Config.JWTExpireTime.Seconds()))

	ctx.JSON(http.StatusOK, model.SuccessResponse(map[string]interface{}{
		"user":  user.ToUserResponse(),
		"token": token,
	}))
}

// Login 用户登录并获取认证Token
func (c *UserController) Login(ctx *gin.Context) {
	var req model.UserLogin
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, model.ErrorResponse(http.StatusBadRequest, "无效的请求参数: "+err.Error()))
		return
	}

	user, token, err := c.UserService.Login(req)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, model.ErrorResponse(http.StatusUnauthorized, "登录失败: "+err.Error()))
		return
	}

	c.setTokenCookie(ctx, token, int(c.Config.JWTExpireTime.Seconds()))

	ctx.JSON(http.StatusOK, model.SuccessResponse(map[string]interface{}{
		"user":  user.ToUserResponse(),
		"token": token,
	}))
}

// GetProfile 获取当前登录用户信息
func (c *UserController) GetProfile(ctx *gin.Context) {
	userID := middleware.GetCurrentUserID(ctx)
	user, err := c.UserService.GetUserByID(userID)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, model.ErrorResponse(http.StatusInternalServerError, "获取用户信息失败: "+err.Error()))
		return
	}

	ctx.JSON(http.StatusOK, model.SuccessResponse(user.ToUserResponse()))
}

// UpdateProfile 更新当前登录用户信息
func (c *UserController) UpdateProfile(ctx *gin.Context) {
	var req model.UserUpdate
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, model.ErrorResponse(http.StatusBadRequest, "无效的请求参数: "+err.Error()))
		return
	}

	userID := middleware.GetCurrentUserID(ctx)
	user, err := c.UserService.UpdateUser(userID, req)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, model.ErrorResponse(http.StatusInternalServerError, "更新用户信息失败: "+err.Error()))
		return
	}

	ctx.JSON(http.StatusOK, model.SuccessResponse(user.ToUserResponse()))
}

// ListUsers 管理员获取用户列表
func (c *UserController) ListUsers(ctx *gin.Context) {
	query := ctx.Query("query")

	users, err := c.UserService.ListUsers(query)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, model.ErrorResponse(http.StatusInternalServerError, "获取用户列表失败: "+err.Error()))
		return
	}

	userResponses := make([]model.UserResponse, 0, len(users))
	for _, user := range users {
		userResponses = append(userResponses, user.ToUserResponse())
	}

	ctx.JSON(http.StatusOK, model.SuccessResponse(userResponses))
}

// GetUser 管理员获取指定用户信息
func (c *UserController) GetUser(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, model.ErrorResponse(http.StatusBadRequest, "无效的用户ID"))
		return
	}

	user, err := c.UserService.GetUserByID(uint(id))
	if err != nil {
		ctx.JSON(http.StatusNotFound, model.ErrorResponse(http.StatusNotFound, "获取用户信息失败: "+err.Error()))
		return
	}

	ctx.JSON(http.StatusOK, model.SuccessResponse(user.ToUserResponse()))
}

// DeleteUser 管理员删除指定用户
func (c *UserController) DeleteUser(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, model.ErrorResponse(http.StatusBadRequest, "无效的用户ID"))
		return
	}

	// 确保不能删除自己
	currentUserID := middleware.GetCurrentUserID(ctx)
	if currentUserID == uint(id) {
		ctx.JSON(http.StatusBadRequest, model.ErrorResponse(http.StatusBadRequest, "不能删除自己的账号"))
		return
	}

	if err := c.UserService.DeleteUser(uint(id)); err != nil {
		ctx.JSON(http.StatusInternalServerError, model.ErrorResponse(http.StatusInternalServerError, "删除用户失败: "+err.Error()))
		return
	}

	ctx.JSON(http.StatusOK, model.SuccessResponse(nil))
}

// DisableUser 管理员禁用指定用户账号
func (c *UserController) DisableUser(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, model.ErrorResponse(http.StatusBadRequest, "无效的用户ID"))
		return
	}

	// 确保不能禁用自己
	currentUserID := middleware.GetCurrentUserID(ctx)
	if currentUserID == uint(id) {
		ctx.JSON(http.StatusBadRequest, model.ErrorResponse(http.StatusBadRequest, "不能禁用自己的账号"))
		return
	}

	if err := c.UserService.DisableUser(uint(id)); err != nil {
		ctx.JSON(http.StatusInternalServerError, model.ErrorResponse(http.StatusInternalServerError, "禁用用户失败: "+err.Error()))
		return
	}

	ctx.JSON(http.StatusOK, model.SuccessResponse(nil))
}

// EnableUser 管理员启用指定用户账号
func (c *UserController) EnableUser(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, model.ErrorResponse(http.StatusBadRequest, "无效的用户ID"))
		return
	}

	if err := c.UserService.EnableUser(uint(id)); err != nil {
		ctx.JSON(http.StatusInternalServerError, model.ErrorResponse(http.StatusInternalServerError, "启用用户失败: "+err.Error()))
		return
	}

	ctx.JSON(http.StatusOK, model.SuccessResponse(nil))
}

// ChangeUserRole 管理员更改指定用户的角色
func (c *UserController) ChangeUserRole(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, model.ErrorResponse(http.StatusBadRequest, "无效的用户ID"))
		return
	}

	var req struct {
		Role string `json:"role" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, model.ErrorResponse(http.StatusBadRequest, "无效的请求参数: "+err.Error()))
		return
	}

	if err := c.UserService.ChangeUserRole(uint(id), req.Role); err != nil {
		ctx.JSON(http.StatusInternalServerError, model.ErrorResponse(http.StatusInternalServerError, "更改用户角色失败: "+err.Error()))
		return
	}

	ctx.JSON(http.StatusOK, model.SuccessResponse(nil))
}

// RefreshToken 刷新当前用户的JWT令牌
func (c *UserController) RefreshToken(ctx *gin.Context) {
	token, err := middleware.RefreshToken(ctx, c.Config)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, model.ErrorResponse(http.StatusInternalServerError, "刷新令牌失败: "+err.Error()))
		return
	}

	c.setTokenCookie(ctx, token, int(c.Config.JWTExpireTime.Seconds()))

	ctx.JSON(http.StatusOK, model.SuccessResponse(map[string]string{
		"token": token,
	}))
}

// Logout 用户登出，清除认证Cookie
func (c *UserController) Logout(ctx *gin.Context) {
	c.setTokenCookie(ctx, "", -1)
	ctx.JSON(http.StatusOK, model.SuccessResponse(nil))
}
