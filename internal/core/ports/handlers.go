package ports

import (
	"github.com/gin-gonic/gin"
)

type HTTPHandler interface {
	ListRooms(c *gin.Context)
	CreateRoom(c *gin.Context)
	GetRoom(c *gin.Context)
	CreateInvite(c *gin.Context)
	SetSecretWord(c *gin.Context)
	ClearRoom(c *gin.Context)
	ExportPNG(c *gin.Context)
	ExportPDF(c *gin.Context)
	SaveSnapshot(c *gin.Context)
	GetSnapshot(c *gin.Context)
}
