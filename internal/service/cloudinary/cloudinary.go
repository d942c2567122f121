package cloudinarysrv

import (
	"context"
	"fmt"
	"mime/multipart"

	"github.com/fazamuttaqien/remitquota/internal/domain"
	"github.com/fazamuttaqien/remitquota/internal/service"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CloudinaryConfig holds Cloudinary configuration
type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
}

type cloudinaryStore struct {
	client *cloudinary.Cloudinary
	log    *zap.Logger
}

// Upload implements FileStore. The public id is random so user-supplied
// filenames never collide or leak into storage paths.
func (c *cloudinaryStore) Upload(ctx context.Context, file *multipart.FileHeader, folder string) (*domain.Attachment, error) {
	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer src.Close()

	publicID := uuid.NewString()
	result, err := c.client.Upload.Upload(ctx, src, uploader.UploadParams{
		Folder:    folder,
		PublicID:  publicID,
		Overwrite: func(b bool) *bool { return &b }(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload to Cloudinary: %w", err)
	}

	c.log.Debug("Attachment uploaded",
		zap.String("public_id", result.PublicID),
		zap.String("folder", folder),
	)

	return &domain.Attachment{
		URL:      result.SecureURL,
		PublicID: result.PublicID,
	}, nil
}

// Destroy implements FileStore
func (c *cloudinaryStore) Destroy(ctx context.Context, publicID string) error {
	_, err := c.client.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID: publicID,
	})
	if err != nil {
		return fmt.Errorf("failed to destroy Cloudinary asset: %w", err)
	}
	return nil
}

func NewCloudinaryStore(config CloudinaryConfig, log *zap.Logger) (service.FileStore, error) {
	cld, err := cloudinary.NewFromParams(config.CloudName, config.APIKey, config.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Cloudinary: %w", err)
	}

	return &cloudinaryStore{
		client: cld,
		log:    log,
	}, nil
}
