package server

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"hashfile/internal/api"
	"hashfile/internal/blobstore"
	"hashfile/internal/filetype"
	"hashfile/internal/models"
	"hashfile/internal/storage"
)

const (
	mediaTypeSniffBytes = 3072
	downloadNamePrefix  = "file_"
	downloadNameChars   = 8
)

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	principal, _ := authPrincipalFromContext(r.Context())

	records, err := s.engine.List(r.Context(), principal.User.ID)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	resp := make([]api.FileResponse, 0, len(records))
	for _, record := range records {
		resp = append(resp, fileResponse(record))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	principal, _ := authPrincipalFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, classifyMultipartError(err))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("no file part"), ErrCodeMissingRequired))
		return
	}
	defer file.Close()

	filename := strings.TrimSpace(header.Filename)
	if filename == "" {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("no selected file"), ErrCodeMissingRequired))
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, s.maxUploadBytes+1))
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, classifyMultipartError(err))
		return
	}
	if int64(len(data)) > s.maxUploadBytes {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("file exceeds %d bytes", s.maxUploadBytes), ErrCodeRequestTooLarge))
		return
	}

	result, err := s.engine.Upload(r.Context(), principal.User.ID, filename, data)
	if err != nil {
		s.writeFileError(w, r, err)
		return
	}

	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	s.writeJSON(w, status, api.UploadResponse{Hash: result.Address, Duplicate: result.Duplicate})
}

func (s *Server) handleDownloadFile(w http.ResponseWriter, r *http.Request) {
	principal, _ := authPrincipalFromContext(r.Context())

	address, ok := s.pathAddressOrBadRequest(w, r)
	if !ok {
		return
	}

	record, rc, err := s.engine.Download(r.Context(), principal.User.ID, address)
	if err != nil {
		s.writeFileError(w, r, err)
		return
	}
	defer rc.Close()

	buffered := bufio.NewReaderSize(rc, mediaTypeSniffBytes)
	head, err := buffered.Peek(mediaTypeSniffBytes)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		s.writeFileError(w, r, &storage.StorageIOError{Op: "read", Address: address, Err: err})
		return
	}

	w.Header().Set("Content-Type", filetype.DetectMediaType(head))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", downloadName(address)))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if record.SizeBytes > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(record.SizeBytes, 10))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, buffered); err != nil {
		// Headers are already sent; all that is left is to record the failure.
		s.log().Error("stream download", "user_id", principal.User.ID, "address", address, "error", err)
	}
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	principal, _ := authPrincipalFromContext(r.Context())

	address, ok := s.pathAddressOrBadRequest(w, r)
	if !ok {
		return
	}

	if err := s.engine.Delete(r.Context(), principal.User.ID, address); err != nil {
		s.writeFileError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.DeleteResponse{Message: "file deleted", Hash: address})
}

func (s *Server) pathAddressOrBadRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	address := strings.TrimSpace(r.PathValue("hash"))
	if !blobstore.ValidAddress(address) {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("invalid file hash"), ErrCodeInvalidAddress))
		return "", false
	}
	return address, true
}

func (s *Server) writeFileError(w http.ResponseWriter, r *http.Request, err error) {
	s.writeServiceError(w, r, classifyFileError(err))
}

// classifyFileError maps storage outcomes to API errors. Every denial is
// reported with the same status and message regardless of its reason.
func classifyFileError(err error) error {
	if denial, ok := storage.AsDenial(err); ok {
		return notFoundCode(denial, ErrCodeFileNotFound)
	}

	var partial *storage.PartialFailureError
	if errors.As(err, &partial) {
		return makeAPIError(http.StatusInternalServerError, "internal", ErrCodePartialFailure, err)
	}

	var ioErr *storage.StorageIOError
	if errors.As(err, &ioErr) {
		return makeAPIError(http.StatusInternalServerError, "internal", ErrCodeStorageFailure, err)
	}

	switch {
	case errors.Is(err, storage.ErrUnsupportedType):
		return badRequestCode(fmt.Errorf("file type not allowed"), ErrCodeUnsupportedType)
	case errors.Is(err, blobstore.ErrInvalidAddress):
		return badRequestCode(fmt.Errorf("invalid file hash"), ErrCodeInvalidAddress)
	default:
		return storeFailure(err)
	}
}

func downloadName(address string) string {
	prefix := address
	if len(prefix) > downloadNameChars {
		prefix = prefix[:downloadNameChars]
	}
	return downloadNamePrefix + prefix
}

func fileResponse(record models.FileRecord) api.FileResponse {
	return api.FileResponse{
		Hash:       record.Hash,
		SizeBytes:  record.SizeBytes,
		UploadedAt: record.UploadedAt,
	}
}
