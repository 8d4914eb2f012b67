package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
)

// MockS3Service is an in-memory ObjectStorage for testing
type MockS3Service struct {
	files         map[string][]byte
	downloadFails []error
	downloadCalls int
	mu            sync.RWMutex
}

// NewMockS3Service creates a new mock S3 service
func NewMockS3Service() *MockS3Service {
	return &MockS3Service{
		files: make(map[string][]byte),
	}
}

// SetAsMockForTesting sets this mock as the global storage instance for testing
func (m *MockS3Service) SetAsMockForTesting() {
	SetS3Service(m)
}

// PutObject seeds the mock with content under key
func (m *MockS3Service) PutObject(key string, content []byte) {
	m.mu.Lock()
	m.files[key] = content
	m.mu.Unlock()
}

// FailNextDownloads makes the next n downloads return err before touching storage
func (m *MockS3Service) FailNextDownloads(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i < n; i++ {
		m.downloadFails = append(m.downloadFails, err)
	}
}

// DownloadCalls returns how many downloads were attempted
func (m *MockS3Service) DownloadCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.downloadCalls
}

// UploadFile simulates uploading a file to S3
func (m *MockS3Service) UploadFile(ctx context.Context, key string, body io.Reader, contentType string) error {
	content, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	m.PutObject(key, content)
	return nil
}

// DownloadToFile writes the stored content to path
func (m *MockS3Service) DownloadToFile(ctx context.Context, key, path string) error {
	m.mu.Lock()
	m.downloadCalls++
	if len(m.downloadFails) > 0 {
		err := m.downloadFails[0]
		m.downloadFails = m.downloadFails[1:]
		m.mu.Unlock()
		return err
	}
	content, exists := m.files[key]
	m.mu.Unlock()

	if !exists {
		return fmt.Errorf("%w: mock://%s", ErrObjectNotFound, key)
	}
	return os.WriteFile(path, content, 0o600)
}

// GetPresignedURL simulates generating a presigned URL
func (m *MockS3Service) GetPresignedURL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}

	m.mu.RLock()
	_, exists := m.files[key]
	m.mu.RUnlock()

	if !exists {
		return "", fmt.Errorf("file not found in mock S3: %s", key)
	}
	return fmt.Sprintf("https://test-bucket.s3.us-east-1.amazonaws.com/%s?mock=true", key), nil
}

// DeleteFile simulates deleting a file from S3
func (m *MockS3Service) DeleteFile(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}

	m.mu.Lock()
	delete(m.files, key)
	m.mu.Unlock()
	return nil
}

// FileExists checks if a file exists in mock storage
func (m *MockS3Service) FileExists(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.files[key]
	return exists
}

// GetUploadedFiles returns a copy of all stored files (for testing assertions)
func (m *MockS3Service) GetUploadedFiles() map[string][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	files := make(map[string][]byte, len(m.files))
	for k, v := range m.files {
		files[k] = v
	}
	return files
}
