package services

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"

	"github.com/sortirkopi/bean-order-api/apperror"
	"github.com/sortirkopi/bean-order-api/utils"
)

// ImageService stores payment proof images and hands out opaque keys
type ImageService interface {
	// UploadImage validates and stores a proof for orderID, returns the storage key
	UploadImage(ctx context.Context, fileHeader *multipart.FileHeader, orderID uint) (string, error)

	// GetImageURL generates a URL for accessing an uploaded image
	GetImageURL(ctx context.Context, imageKey string) (string, error)

	// DeleteImage removes an image from storage
	DeleteImage(ctx context.Context, imageKey string) error
}

// S3ImageService implements ImageService using AWS S3 for storage
type S3ImageService struct {
	s3Service S3Interface
}

// NewS3ImageService creates an image service on top of an S3 backend
func NewS3ImageService(s3Service S3Interface) *S3ImageService {
	return &S3ImageService{s3Service: s3Service}
}

// UploadImage validates and uploads an image file to S3
func (s *S3ImageService) UploadImage(ctx context.Context, fileHeader *multipart.FileHeader, orderID uint) (string, error) {
	if err := utils.ValidateImageFile(fileHeader); err != nil {
		return "", err
	}

	content, err := utils.ReadUploadedFile(fileHeader)
	if err != nil {
		return "", apperror.Upstream("Failed to read proof image", err)
	}

	key := ProofKeyPrefix + utils.ProofObjectName(orderID, fileHeader.Filename)
	if err := s.s3Service.PutObject(ctx, key, utils.ContentTypeFor(fileHeader.Filename), content); err != nil {
		return "", apperror.Upstream("Failed to upload proof image", err)
	}

	return key, nil
}

// GetImageURL generates a presigned URL for accessing an image
func (s *S3ImageService) GetImageURL(ctx context.Context, imageKey string) (string, error) {
	if imageKey == "" {
		return "", nil
	}

	url, err := s.s3Service.GetPresignedURL(ctx, imageKey)
	if err != nil {
		return "", fmt.Errorf("failed to generate image URL: %w", err)
	}

	return url, nil
}

// DeleteImage deletes an image from S3
func (s *S3ImageService) DeleteImage(ctx context.Context, imageKey string) error {
	if imageKey == "" {
		return nil
	}

	if err := s.s3Service.DeleteObject(ctx, imageKey); err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}

	return nil
}

// LocalImageService stores proofs on local disk and serves them through
// GET /api/v1/uploads/:filename. Meant for development.
type LocalImageService struct {
	dir string
}

// NewLocalImageService creates an image service writing into dir
func NewLocalImageService(dir string) *LocalImageService {
	return &LocalImageService{dir: dir}
}

// UploadImage validates and saves an image file under the upload directory
func (s *LocalImageService) UploadImage(ctx context.Context, fileHeader *multipart.FileHeader, orderID uint) (string, error) {
	if err := utils.ValidateImageFile(fileHeader); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", apperror.Upstream("Upload cancelled", err)
	}

	name := utils.ProofObjectName(orderID, fileHeader.Filename)
	if err := utils.SaveUploadedFile(fileHeader, s.dir, name); err != nil {
		return "", apperror.Upstream("Failed to store proof image", err)
	}

	return name, nil
}

// GetImageURL returns the API path of a stored image
func (s *LocalImageService) GetImageURL(_ context.Context, imageKey string) (string, error) {
	return utils.GetImageURL(imageKey), nil
}

// DeleteImage removes a stored image; a missing file is not an error
func (s *LocalImageService) DeleteImage(_ context.Context, imageKey string) error {
	if imageKey == "" {
		return nil
	}

	err := os.Remove(filepath.Join(s.dir, filepath.Base(imageKey)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}

var (
	_ ImageService = (*S3ImageService)(nil)
	_ ImageService = (*LocalImageService)(nil)
)
