package handlers

import (
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/fleetkeeper/fleetkeeper/internal/apperr"
	"github.com/fleetkeeper/fleetkeeper/internal/authz"
	"github.com/fleetkeeper/fleetkeeper/internal/blob"
	"github.com/fleetkeeper/fleetkeeper/internal/middleware/session"
)

type AttachmentHandler struct {
	DB   *gorm.DB
	Blob blob.Store
}

// Extensions a browser can render inline; everything else falls back to a
// forced download.
var inlineExtensions = map[string]bool{
	".pdf": true, ".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".txt": true,
}

func (h *AttachmentHandler) Download(c echo.Context) error {
	return h.serve(c, true)
}

func (h *AttachmentHandler) View(c echo.Context) error {
	return h.serve(c, false)
}

// serve walks attachment -> record -> equipment -> owner before opening
// storage; both retrieval modes share the exact same chain.
func (h *AttachmentHandler) serve(c echo.Context, forceDownload bool) error {
	user := session.CurrentUser(c)
	id, err := parseIDParam(c, "id")
	if err != nil {
		return errorResponse(c, err)
	}

	var originalName, storedName string
	switch c.Param("kind") {
	case "service":
		att, err := authz.ServiceAttachment(h.DB, id, user.ID)
		if err != nil {
			return errorResponse(c, err)
		}
		originalName, storedName = att.OriginalName, att.StoredName
	case "repair":
		att, err := authz.RepairAttachment(h.DB, id, user.ID)
		if err != nil {
			return errorResponse(c, err)
		}
		originalName, storedName = att.OriginalName, att.StoredName
	default:
		return errorResponse(c, apperr.ErrNotFound)
	}

	f, err := h.Blob.Open(storedName)
	if err != nil {
		return errorResponse(c, err)
	}
	defer f.Close()

	ext := strings.ToLower(filepath.Ext(originalName))
	contentType := mime.TypeByExtension(ext)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	disposition := "attachment"
	if !forceDownload && inlineExtensions[ext] {
		disposition = "inline"
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`%s; filename=%q`, disposition, originalName))

	return c.Stream(http.StatusOK, contentType, f)
}
