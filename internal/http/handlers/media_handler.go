package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/baticonnect/artisan-backend/internal/http/handlers/common"
	"github.com/baticonnect/artisan-backend/internal/storage"
)

// MediaHandler accepts proof photo uploads. The returned URL is what the
// artisan submits with the milestone proof.
type MediaHandler struct {
	photos  *storage.PhotoStorage
	baseURL string
}

func NewMediaHandler(photos *storage.PhotoStorage, baseURL string) *MediaHandler {
	return &MediaHandler{photos: photos, baseURL: baseURL}
}

// UploadProofPhoto handles POST /media/proof-photos.
func (h *MediaHandler) UploadProofPhoto(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}

	file, _, err := c.Request.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photo form field is required"})
		return
	}
	defer file.Close()

	relativePath, size, err := h.photos.Save(c.Request.Context(), userID, file)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"url":  h.baseURL + "/media/" + relativePath,
		"size": size,
	})
}
