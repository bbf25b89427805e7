package handler

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/contatus/contatus/internal/filestore"
	"github.com/contatus/contatus/internal/importer"
	"github.com/contatus/contatus/internal/pkg/errcode"
	"github.com/contatus/contatus/internal/pkg/response"
)

//go:embed template-contatos.csv
var contactTemplateCSV []byte

type ImportHandler struct {
	imports       *importer.Service
	archive       filestore.Store
	maxUploadSize int64
}

func NewImportHandler(imports *importer.Service, archive filestore.Store, maxUploadSize int64) *ImportHandler {
	return &ImportHandler{imports: imports, archive: archive, maxUploadSize: maxUploadSize}
}

// Upload receives a multipart spreadsheet plus import options and either
// returns the finished result (small files) or a job id to poll.
func (h *ImportHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "file is required")
		return
	}
	if h.maxUploadSize > 0 && file.Size > h.maxUploadSize {
		response.Error(c, errcode.ErrInvalidFile, "file too large (max "+formatUploadLimit(h.maxUploadSize)+")")
		return
	}
	data, err := readMultipartFile(file)
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "failed to read file")
		return
	}

	cfg := importer.DefaultConfig()
	cfg.SkipDuplicates = c.DefaultPostForm("skipDuplicates", "true") == "true"
	cfg.UpdateExisting = c.DefaultPostForm("updateExisting", "false") == "true"
	cfg.CreateTags = c.DefaultPostForm("createTags", "true") == "true"
	if raw := c.PostForm("columnMapping"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &cfg.ColumnMapping); err != nil {
			response.Error(c, errcode.ErrInvalid, "invalid columnMapping")
			return
		}
	}

	h.archiveUpload(c, file.Filename, data)

	outcome, err := h.imports.ProcessImport(c.Request.Context(), importer.File{
		Name:        file.Filename,
		ContentType: contentTypeOf(file.Header.Get("Content-Type"), file.Filename),
		Data:        data,
	}, getUserID(c), getOrgID(c), cfg)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, outcome)
}

// Status reports progress for an async import job.
func (h *ImportHandler) Status(c *gin.Context) {
	jobID := c.Param("job_id")
	if jobID == "" {
		response.Error(c, errcode.ErrInvalid, "job_id required")
		return
	}
	status, err := h.imports.GetJobStatus(c.Request.Context(), getOrgID(c), jobID)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, status)
}

// Columns peeks at the file header so the client can build a column mapping
// before committing to an import.
func (h *ImportHandler) Columns(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "file is required")
		return
	}
	if h.maxUploadSize > 0 && file.Size > h.maxUploadSize {
		response.Error(c, errcode.ErrInvalidFile, "file too large (max "+formatUploadLimit(h.maxUploadSize)+")")
		return
	}
	data, err := readMultipartFile(file)
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "failed to read file")
		return
	}
	columns, err := h.imports.ExtractColumns(data, contentTypeOf(file.Header.Get("Content-Type"), file.Filename))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"columns": columns})
}

// Template serves the example CSV. Public, no auth.
func (h *ImportHandler) Template(c *gin.Context) {
	c.Header("Content-Disposition", `attachment; filename="template-contatos.csv"`)
	c.Data(200, "text/csv; charset=utf-8", contactTemplateCSV)
}

// archiveUpload keeps a copy of the raw upload for later inspection. Archive
// failures must never fail the import itself.
func (h *ImportHandler) archiveUpload(c *gin.Context, filename string, data []byte) {
	if h.archive == nil {
		return
	}
	key := time.Now().UTC().Format("20060102T150405") + "-" + uuid.NewString() + filepath.Ext(filename)
	r := newByteFile(data)
	if err := h.archive.Save(c.Request.Context(), key, r, int64(len(data))); err != nil {
		logutil.GetLogger(c.Request.Context()).Warn("archive upload failed",
			zap.String("key", key),
			zap.String("filename", filename),
			zap.Error(err),
		)
	}
}

func readMultipartFile(file *multipart.FileHeader) ([]byte, error) {
	opened, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer opened.Close()
	return io.ReadAll(opened)
}

// contentTypeOf trusts the multipart header unless it is missing or the
// generic octet-stream many clients send, in which case the file extension
// decides.
func contentTypeOf(headerType, filename string) string {
	if base, _, err := mime.ParseMediaType(headerType); err == nil {
		headerType = base
	}
	if headerType != "" && headerType != "application/octet-stream" {
		return headerType
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return importer.MimeCSV
	case ".xls":
		return importer.MimeExcelLegacy
	case ".xlsx":
		return importer.MimeExcelWorkbook
	}
	return headerType
}

type byteFile struct {
	*bytes.Reader
}

func newByteFile(data []byte) *byteFile {
	return &byteFile{Reader: bytes.NewReader(data)}
}

func (f *byteFile) Close() error {
	return nil
}
