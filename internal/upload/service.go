package upload

import (
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dutchcoders/go-clamd"
	"github.com/google/uuid"

	"fieldCV/internal/errcode"
)

// Service 负责将上传文件落盘并生成可访问的 URL。
// 文件按 YYYY/MM/DD 日期目录存放，文件名使用 uuid 避免冲突。
type Service struct {
	dir          string
	siteURL      string
	maxFileSize  int64
	allowedTypes map[string]struct{}
	clamdAddr    string
	logger       *slog.Logger
}

// StoredFile 描述一次成功落盘的结果。
type StoredFile struct {
	URL      string `json:"url"`
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}

// NewService 构造 Service。allowedTypes 为逗号分隔的 MIME 白名单。
func NewService(dir, siteURL string, maxFileSize int64, allowedTypes, clamdAddr string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	allowed := make(map[string]struct{})
	for _, t := range strings.Split(allowedTypes, ",") {
		t = strings.TrimSpace(strings.ToLower(t))
		if t != "" {
			allowed[t] = struct{}{}
		}
	}
	return &Service{
		dir:          dir,
		siteURL:      strings.TrimRight(siteURL, "/"),
		maxFileSize:  maxFileSize,
		allowedTypes: allowed,
		clamdAddr:    clamdAddr,
		logger:       logger,
	}
}

// Dir 返回上传根目录，路由层用它挂载静态文件服务。
func (s *Service) Dir() string {
	return s.dir
}

// Store 校验并保存上传文件。校验失败返回业务错误码，磁盘错误原样返回。
func (s *Service) Store(file *multipart.FileHeader) (*StoredFile, error) {
	if file.Size <= 0 {
		return nil, errcode.New(errcode.BadRequest, "empty file")
	}
	if s.maxFileSize > 0 && file.Size > s.maxFileSize {
		return nil, errcode.New(errcode.BadRequest, fmt.Sprintf("file exceeds limit of %d bytes", s.maxFileSize))
	}

	contentType := strings.ToLower(strings.TrimSpace(file.Header.Get("Content-Type")))
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = strings.TrimSpace(contentType[:idx])
	}
	if len(s.allowedTypes) > 0 {
		if _, ok := s.allowedTypes[contentType]; !ok {
			return nil, errcode.New(errcode.BadRequest, "file type not allowed: "+contentType)
		}
	}

	if s.clamdAddr != "" {
		if err := s.scan(file); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	relDir := filepath.Join(now.Format("2006"), now.Format("01"), now.Format("02"))
	absDir := filepath.Join(s.dir, relDir)
	if err := os.MkdirAll(absDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	name := uuid.NewString() + ext
	absPath := filepath.Join(absDir, name)

	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(absPath)
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(absPath)
		return nil, fmt.Errorf("write file: %w", err)
	}

	relPath := path.Join(filepath.ToSlash(relDir), name)
	return &StoredFile{
		URL:      s.siteURL + "/uploads/" + relPath,
		Path:     relPath,
		Size:     file.Size,
		MimeType: contentType,
	}, nil
}

// scan 把文件流送到 clamd 做病毒扫描，命中则拒绝上传。
func (s *Service) scan(file *multipart.FileHeader) error {
	reader, err := file.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer reader.Close()

	client := clamd.NewClamd(s.clamdAddr)
	abortChan := make(chan bool)
	defer close(abortChan)

	scanChan, err := client.ScanStream(reader, abortChan)
	if err != nil {
		s.logger.Error("scan file", slog.String("error", err.Error()))
		return errcode.New(errcode.SystemError, "failed to scan file")
	}
	for result := range scanChan {
		if result.Status != clamd.RES_OK {
			return errcode.New(errcode.BadRequest, "malicious file detected")
		}
	}
	return nil
}
