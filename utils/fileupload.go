package utils

import (
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/kendall-kelly/fabmarket-api/geometry"
)

const (
	// MaxFileSize is 50MB in bytes; CAD meshes run larger than images
	MaxFileSize = 50 * 1024 * 1024
)

// AllowedDesignExtensions lists the CAD extensions accepted for upload
var AllowedDesignExtensions = []string{".stl", ".step", ".stp", ".iges", ".igs"}

// FileUploadError represents a file upload validation error
type FileUploadError struct {
	Code    string
	Message string
}

func (e *FileUploadError) Error() string {
	return e.Message
}

// DesignFileExtension returns the lower-cased extension of filename, e.g. ".stl"
func DesignFileExtension(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

// ValidateDesignFile validates the uploaded CAD file format and size
func ValidateDesignFile(fileHeader *multipart.FileHeader) error {
	if fileHeader.Size == 0 {
		return &FileUploadError{
			Code:    "EMPTY_FILE",
			Message: "Uploaded file is empty",
		}
	}

	// Check file size
	if fileHeader.Size > MaxFileSize {
		return &FileUploadError{
			Code:    "FILE_TOO_LARGE",
			Message: fmt.Sprintf("File size exceeds maximum allowed size of %d MB", MaxFileSize/(1024*1024)),
		}
	}

	// Check file extension against the formats the analyzer recognizes
	ext := DesignFileExtension(fileHeader.Filename)
	if geometry.FormatFromExtension(ext) == geometry.FormatUnknown {
		return &FileUploadError{
			Code:    "INVALID_FILE_FORMAT",
			Message: fmt.Sprintf("Only %s files are allowed", strings.Join(AllowedDesignExtensions, ", ")),
		}
	}

	return nil
}
