package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/amoylab/wshub/internal/apiserver/activity"
	"github.com/amoylab/wshub/internal/apiserver/middleware"
	"github.com/amoylab/wshub/internal/common/dto"
	"github.com/amoylab/wshub/internal/i18n"
	"github.com/amoylab/wshub/internal/storage"
)

var avatarTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// UploadAvatar stores the multipart "avatar" file and points the caller's
// profile at it. The previous avatar is removed after the switch.
func (h *Handler) UploadAvatar(c *gin.Context) {
	ctx := c.Request.Context()
	user := middleware.CurrentUser(c)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxAvatar+1<<20)
	header, err := c.FormFile("avatar")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			i18n.RespondWithError(c, i18n.ErrorAvatarTooLarge)
			return
		}
		i18n.RespondWithError(c, i18n.ErrorAvatarRequired)
		return
	}
	if header.Size > h.maxAvatar {
		i18n.RespondWithError(c, i18n.ErrorAvatarTooLarge)
		return
	}

	file, err := header.Open()
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	defer file.Close()

	sniff := make([]byte, 512)
	n, err := io.ReadFull(file, sniff)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		h.respondDomainError(c, err)
		return
	}
	contentType := http.DetectContentType(sniff[:n])
	ext, ok := avatarTypes[contentType]
	if !ok {
		i18n.RespondWithError(c, i18n.ErrorAvatarUnsupported)
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		h.respondDomainError(c, err)
		return
	}

	key := uuid.NewString() + ext
	if err := h.avatars.Put(ctx, key, file, contentType); err != nil {
		h.respondDomainError(c, err)
		return
	}

	previous := user.AvatarKey
	user.AvatarKey = key
	if err := h.db.UpdateUser(ctx, user); err != nil {
		_ = h.avatars.Delete(ctx, key)
		h.respondDomainError(c, err)
		return
	}
	if previous != "" {
		if err := h.avatars.Delete(ctx, previous); err != nil {
			h.logger.Warn("failed to delete previous avatar", zap.String("key", previous), zap.Error(err))
		}
	}

	h.activities.Record(ctx, user.ID, nil, activity.TypeAvatarUpdated, "Avatar updated",
		map[string]any{"contentType": contentType, "size": header.Size})

	info := toUserInfo(user)
	c.JSON(http.StatusOK, dto.AvatarResponse{AvatarURL: info.AvatarURL, User: info})
}

// GetAvatar streams a stored avatar
func (h *Handler) GetAvatar(c *gin.Context) {
	obj, err := h.avatars.Get(c.Request.Context(), c.Param("key"))
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidKey) {
		i18n.RespondWithError(c, i18n.ErrorAvatarNotFound)
		return
	}
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	defer obj.Body.Close()

	c.Header("Cache-Control", "private, max-age=86400")
	c.DataFromReader(http.StatusOK, obj.Size, obj.ContentType, obj.Body, nil)
}
