package controllers

import (
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"barangay/internal/storage"
	"barangay/pkg/utils"
)

// maxUploadMemory bounds the in-memory part of multipart parsing; larger
// files spill to temp files.
const maxUploadMemory = 16 << 20

// idParam parses a positive numeric path parameter, writing a 400 on failure.
func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		utils.RespondError(c, http.StatusBadRequest, "Invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// openFiles opens the uploaded parts as storage files. The returned closer must be
// called once the files have been consumed.
func openFiles(headers []*multipart.FileHeader) ([]storage.File, func(), error) {
	var (
		files   []storage.File
		handles []multipart.File
	)
	closeAll := func() {
		for _, h := range handles {
			h.Close()
		}
	}
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		handles = append(handles, f)
		files = append(files, storage.File{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Reader:      f,
		})
	}
	return files, closeAll, nil
}

func isMultipart(c *gin.Context) bool {
	return c.ContentType() == gin.MIMEMultipartPOSTForm
}
