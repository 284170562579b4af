package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/nocson47/beaconofknowledge/internal/config"
	"github.com/nocson47/beaconofknowledge/internal/models"
	"github.com/nocson47/beaconofknowledge/internal/repository"

	"github.com/chai2010/webp"
	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register WebP decoder
)

const (
	DefaultAvatarDir         = "/tmp/beacon/avatars"
	DefaultAvatarMaxUploadMB = 5
	AvatarSize               = 256
	AvatarWebPQuality        = 80
	avatarURLPrefix          = "/avatars/"
	maxAvatarSourceDimension = 8000
)

type UploadAvatarInput struct {
	UserID      uint
	ContentType string
	Content     []byte
}

// AvatarService normalizes uploads to a square WebP and stores them on local disk.
type AvatarService struct {
	userRepo           repository.UserRepository
	dir                string
	maxUploadSizeBytes int64
}

func NewAvatarService(userRepo repository.UserRepository, cfg *config.Config) *AvatarService {
	dir := DefaultAvatarDir
	maxMB := DefaultAvatarMaxUploadMB
	if cfg != nil {
		if cfg.AvatarDir != "" {
			dir = cfg.AvatarDir
		}
		if cfg.AvatarMaxUploadMB > 0 {
			maxMB = cfg.AvatarMaxUploadMB
		}
	}
	return &AvatarService{
		userRepo:           userRepo,
		dir:                dir,
		maxUploadSizeBytes: int64(maxMB) * 1024 * 1024,
	}
}

// Dir is where avatar files live; the server mounts it under /avatars.
func (s *AvatarService) Dir() string { return s.dir }

// Upload replaces the caller's avatar and returns its URL path.
func (s *AvatarService) Upload(ctx context.Context, in UploadAvatarInput) (string, error) {
	if in.UserID == 0 {
		return "", models.NewUnauthenticatedError("Authentication required")
	}
	if len(in.Content) == 0 {
		return "", models.NewValidationError("No file uploaded")
	}
	if int64(len(in.Content)) > s.maxUploadSizeBytes {
		return "", models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxUploadSizeBytes/(1024*1024)))
	}

	detected := http.DetectContentType(in.Content)
	if !isAllowedImageMIME(detected) {
		return "", models.NewValidationError("Invalid image type")
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(in.Content))
	if err != nil {
		return "", models.NewValidationError("Invalid image file")
	}
	if cfg.Width > maxAvatarSourceDimension || cfg.Height > maxAvatarSourceDimension {
		return "", models.NewValidationError("Image dimensions too large")
	}
	if provided := normalizeContentType(in.ContentType); strings.HasPrefix(provided, "image/") &&
		provided != formatMIME(format) &&
		!(provided == "image/jpg" && format == "jpeg") {
		return "", models.NewValidationError("Image content type mismatch")
	}

	decoded, _, err := image.Decode(bytes.NewReader(in.Content))
	if err != nil {
		return "", models.NewValidationError("Invalid image file")
	}

	square := resizeSquare(centerCrop(decoded), AvatarSize)
	var buf bytes.Buffer
	if err := webp.Encode(&buf, square, &webp.Options{Quality: AvatarWebPQuality}); err != nil {
		return "", models.NewInternalError(err)
	}

	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return "", err
	}

	name := uuid.NewString() + ".webp"
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return "", models.NewInternalError(err)
	}
	fullPath := filepath.Join(s.dir, name)
	if err := os.WriteFile(fullPath, buf.Bytes(), 0o600); err != nil {
		return "", models.NewInternalError(err)
	}

	url := avatarURLPrefix + name
	if err := s.userRepo.SetAvatar(ctx, user.ID, url); err != nil {
		_ = os.Remove(fullPath)
		return "", err
	}
	s.removeOld(user.Avatar)
	return url, nil
}

// removeOld deletes a previous avatar only when it is one of ours.
func (s *AvatarService) removeOld(previous string) {
	name, ok := strings.CutPrefix(previous, avatarURLPrefix)
	if !ok || name == "" || name != path.Base(name) {
		return
	}
	_ = os.Remove(filepath.Join(s.dir, name))
}

func centerCrop(src image.Image) image.Image {
	b := src.Bounds()
	side := min(b.Dx(), b.Dy())
	if side <= 0 {
		return src
	}
	x := b.Min.X + (b.Dx()-side)/2
	y := b.Min.Y + (b.Dy()-side)/2
	dst := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.Draw(dst, dst.Bounds(), src, image.Point{X: x, Y: y}, draw.Src)
	return dst
}

func resizeSquare(src image.Image, size int) image.Image {
	if src.Bounds().Dx() == size && src.Bounds().Dy() == size {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)
	return dst
}

func isAllowedImageMIME(contentType string) bool {
	switch normalizeContentType(contentType) {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func formatMIME(format string) string {
	switch format {
	case "jpeg", "png", "gif", "webp":
		return "image/" + format
	default:
		return ""
	}
}
