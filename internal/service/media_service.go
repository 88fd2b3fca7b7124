package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	"github.com/maheshrc27/postflow/internal/apperr"
	"github.com/maheshrc27/postflow/internal/transfer"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const MaxMediaSize = 512 << 20

var allowedMediaTypes = map[string]struct{}{
	"mp4": {}, "mov": {}, "jpg": {}, "png": {},
}

// MediaService stores uploaded media and hands back a public URL that can
// be placed in a post's media list.
type MediaService interface {
	Upload(ctx context.Context, userID int64, file []byte) (*transfer.MediaUpload, error)
}

type mediaService struct {
	r2 *R2Service
}

func NewMediaService(r2 *R2Service) MediaService {
	return &mediaService{r2: r2}
}

func (s *mediaService) Upload(ctx context.Context, userID int64, file []byte) (*transfer.MediaUpload, error) {
	if len(file) == 0 {
		return nil, apperr.InvalidInput("file", "file is empty")
	}
	if len(file) > MaxMediaSize {
		return nil, apperr.InvalidInput("file", "file exceeds %d bytes", MaxMediaSize)
	}

	fileType, err := filetype.Match(file)
	if err != nil || fileType == types.Unknown {
		return nil, apperr.InvalidInput("file", "unsupported file type")
	}
	if _, ok := allowedMediaTypes[fileType.Extension]; !ok {
		return nil, apperr.InvalidInput("file", "file type %s is not allowed", fileType.Extension)
	}

	id, err := gonanoid.New()
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	key := fmt.Sprintf("%d/%s.%s", userID, id, fileType.Extension)

	if err := s.r2.UploadToR2(ctx, key, file, fileType.MIME.Value); err != nil {
		return nil, fmt.Errorf("uploading media: %w", err)
	}

	return &transfer.MediaUpload{
		URL:         s.r2.PublicURL(key),
		Key:         key,
		ContentType: fileType.MIME.Value,
	}, nil
}
