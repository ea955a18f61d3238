package handlers

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the REST API under api. Everything except signup,
// login and logout requires a session.
func RegisterRoutes(api *gin.RouterGroup, authH *AuthHandler, chatH *ChatHandler, msgH *MessageHandler) {
	authGroup := api.Group("/auth")
	{
		authGroup.POST("/signup", authH.Signup)
		authGroup.POST("/login", authH.Login)
		authGroup.POST("/logout", authH.Logout)
		authGroup.PUT("/update-profile", authH.AuthMiddleware(), authH.UpdateProfile)
		authGroup.GET("/check", authH.AuthMiddleware(), authH.Check)
	}

	chatGroup := api.Group("/chat")
	chatGroup.Use(authH.AuthMiddleware())
	{
		chatGroup.POST("", chatH.Create)
		chatGroup.GET("/chats", chatH.List)
		chatGroup.GET("/:chatId", chatH.Get)
		chatGroup.PUT("/:chatId/members", chatH.AddMembers)
		chatGroup.DELETE("/:chatId/members/me", chatH.Leave)
		chatGroup.PUT("/:chatId/name", chatH.Rename)
	}

	msgGroup := api.Group("/message")
	msgGroup.Use(authH.AuthMiddleware())
	{
		msgGroup.GET("/chat/:chatId", msgH.List)
		msgGroup.POST("/chat/:chatId", msgH.Send)
		msgGroup.PUT("/:messageId", msgH.Edit)
		msgGroup.DELETE("/:messageId", msgH.Delete)
	}
}
