package http

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/forgetmenot/remind/internal/adapters"
	"github.com/forgetmenot/remind/internal/vault"
)

// VaultHandler exposes the Memory Vault's health/count/build-metadata/
// upload-metadata operations per §4.11.
type VaultHandler struct {
	logger  *zap.Logger
	store   vault.Store
	storage adapters.ObjectStorage
	bucket  string
}

func NewVaultHandler(logger *zap.Logger, store vault.Store, storage adapters.ObjectStorage, bucket string) *VaultHandler {
	return &VaultHandler{logger: logger, store: store, storage: storage, bucket: bucket}
}

func (h *VaultHandler) Health(c *gin.Context) {
	if _, err := h.store.Count(c.Request.Context()); err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, nil)
}

func (h *VaultHandler) Count(c *gin.Context) {
	count, err := h.store.Count(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"count": count})
}

// BuildMetadata walks object storage and returns the intermediate metadata
// CSV as the response body, mirroring the vault-build-metadata CLI helper.
func (h *VaultHandler) BuildMetadata(c *gin.Context) {
	csvData, err := vault.BuildMetadataCSV(c.Request.Context(), h.storage, h.bucket)
	if err != nil {
		fail(c, err)
		return
	}
	c.Data(http.StatusOK, "text/csv", csvData)
}

// UploadMetadata reads a metadata CSV from the request body and upserts
// every row into the Vault, mirroring the vault-upload CLI helper.
func (h *VaultHandler) UploadMetadata(c *gin.Context) {
	csvData, err := io.ReadAll(c.Request.Body)
	if err != nil {
		badRequest(c, "could not read request body")
		return
	}
	count, err := vault.UploadMetadataCSV(c.Request.Context(), h.store, csvData)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"upserted": count})
}
