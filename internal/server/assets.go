package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	assetdomain "github.com/smallbiznis/lubeqc/internal/asset/domain"
)

func (s *Server) ListAssets(c *gin.Context) {
	ctx := c.Request.Context()
	if c.Query("source") == "catalog" {
		c.JSON(http.StatusOK, gin.H{"data": s.assetSvc.CatalogIDs(ctx)})
		return
	}
	list, err := s.assetSvc.List(ctx)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list})
}

func (s *Server) GetAssetProfile(c *gin.Context) {
	profile, err := s.assetSvc.Profile(c.Request.Context(), c.Param("name"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": profile})
}

func (s *Server) GetAssetImage(c *gin.Context) {
	img, err := s.assetSvc.Image(c.Request.Context(), c.Param("name"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if img.Path != "" {
		c.File(img.Path)
		return
	}
	c.Data(http.StatusOK, img.ContentType, img.Data)
}

func (s *Server) UpsertAsset(c *gin.Context) {
	var req assetdomain.CustomAsset
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	asset, err := s.assetSvc.Upsert(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": asset})
}

func (s *Server) ListRoutes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": s.inspectionSvc.Routes()})
}
