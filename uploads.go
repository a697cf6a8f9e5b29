package main

import (
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/rentroll_backend/config"
	"bitbucket.org/mmdatafocus/rentroll_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const maxUploadSizeBytes int64 = 5 * 1024 * 1024

var imageMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

var attachmentMimeTypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       true,
	"image/jpeg": true,
	"image/png":  true,
}

func readUploadPart(c *gin.Context, field string) (name, contentType string, payload []byte, ok bool) {
	fileHeader, err := c.FormFile(field)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": field + " file is required"})
		return "", "", nil, false
	}
	if fileHeader.Size > maxUploadSizeBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file size exceeds 5MB limit"})
		return "", "", nil, false
	}

	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read file"})
		return "", "", nil, false
	}
	defer f.Close()

	payload, err = utils.ReadAllLimited(f, maxUploadSizeBytes)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read file"})
		return "", "", nil, false
	}

	contentType = fileHeader.Header.Get("Content-Type")
	return fileHeader.Filename, contentType, payload, true
}

func uploadObjectPath(ownerId, kind, fileName string) string {
	stamp := time.Now().UTC().Format("20060102T150405")
	return path.Join(kind, ownerId, fmt.Sprintf("%s_%s_%s", stamp, uuid.NewString()[:8], utils.SanitizeFileName(fileName)))
}

// uploadDocumentHandler stores a supporting document in the bucket and
// returns its descriptor. Storage failure is a hard error: the caller must
// not persist a document reference that was never written.
func uploadDocumentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerId, ok := resolvedOwnerId(c)
		if !ok {
			return
		}

		name, contentType, payload, ok := readUploadPart(c, "file")
		if !ok {
			return
		}
		if !attachmentMimeTypes[contentType] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported file type"})
			return
		}

		objectPath := uploadObjectPath(ownerId, "documents", name)
		uploaded, err := utils.UploadDocument(c.Request.Context(), objectPath, contentType, payload)
		if err != nil {
			logger := config.GetLogger()
			config.LogError(logger, "uploads.go", "uploadDocumentHandler", objectPath, nil, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
			return
		}
		uploaded.Name = strings.TrimSpace(name)
		c.JSON(http.StatusOK, uploaded)
	}
}

// uploadProfilePhotoHandler resizes the image before storing it. Photos are
// display assets, so they get bounded to a small edge server-side.
func uploadProfilePhotoHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerId, ok := resolvedOwnerId(c)
		if !ok {
			return
		}

		name, contentType, payload, ok := readUploadPart(c, "file")
		if !ok {
			return
		}
		if !imageMimeTypes[contentType] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported image type"})
			return
		}

		objectPath := uploadObjectPath(ownerId, "profile-photos", name)
		uploaded, err := utils.UploadProfilePhoto(c.Request.Context(), objectPath, contentType, payload)
		if err != nil {
			logger := config.GetLogger()
			config.LogError(logger, "uploads.go", "uploadProfilePhotoHandler", objectPath, nil, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
			return
		}
		uploaded.Name = strings.TrimSpace(name)
		c.JSON(http.StatusOK, uploaded)
	}
}
