package services

import (
	"context"
	"fmt"
	"mime/multipart"

	"github.com/google/uuid"
	"github.com/kendall-kelly/fabmarket-api/utils"
)

// DesignFileService handles CAD file upload, retrieval, and deletion
type DesignFileService interface {
	// UploadDesign validates and uploads a CAD file, returns the storage key and extension
	UploadDesign(ctx context.Context, fileHeader *multipart.FileHeader) (key string, ext string, err error)

	// GetDesignURL generates a URL for downloading an uploaded design
	GetDesignURL(ctx context.Context, key string) (string, error)

	// DeleteDesign removes a design file from storage
	DeleteDesign(ctx context.Context, key string) error
}

// StorageDesignFileService implements DesignFileService on top of ObjectStorage
type StorageDesignFileService struct {
	storage ObjectStorage
}

var designFileServiceInstance DesignFileService

// NewDesignFileService builds a design file service backed by storage
func NewDesignFileService(storage ObjectStorage) *StorageDesignFileService {
	return &StorageDesignFileService{storage: storage}
}

// InitDesignFileService initializes the global design file service
func InitDesignFileService(storage ObjectStorage) DesignFileService {
	designFileServiceInstance = NewDesignFileService(storage)
	return designFileServiceInstance
}

// GetDesignFileService returns the initialized design file service instance,
// building one over the installed storage when none was set explicitly
func GetDesignFileService() DesignFileService {
	if designFileServiceInstance == nil {
		if storage := GetS3Service(); storage != nil {
			return NewDesignFileService(storage)
		}
	}
	return designFileServiceInstance
}

// SetDesignFileService sets the design file service instance (primarily for testing)
func SetDesignFileService(service DesignFileService) {
	designFileServiceInstance = service
}

// UploadDesign validates the CAD file and stores it under designs/<uuid><ext>
func (s *StorageDesignFileService) UploadDesign(ctx context.Context, fileHeader *multipart.FileHeader) (string, string, error) {
	if err := utils.ValidateDesignFile(fileHeader); err != nil {
		return "", "", err
	}

	file, err := fileHeader.Open()
	if err != nil {
		return "", "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	ext := utils.DesignFileExtension(fileHeader.Filename)
	key := fmt.Sprintf("designs/%s%s", uuid.NewString(), ext)
	if err := s.storage.UploadFile(ctx, key, file, "application/octet-stream"); err != nil {
		return "", "", fmt.Errorf("failed to upload design: %w", err)
	}
	return key, ext, nil
}

// GetDesignURL generates a presigned URL for downloading a design
func (s *StorageDesignFileService) GetDesignURL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}

	url, err := s.storage.GetPresignedURL(ctx, key)
	if err != nil {
		return "", fmt.Errorf("failed to generate design URL: %w", err)
	}
	return url, nil
}

// DeleteDesign deletes a design file from storage
func (s *StorageDesignFileService) DeleteDesign(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}

	if err := s.storage.DeleteFile(ctx, key); err != nil {
		return fmt.Errorf("failed to delete design: %w", err)
	}
	return nil
}
