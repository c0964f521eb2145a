package chain

import (
	"strconv"

	"github.com/ahmadzakiakmal/insurance-ledger/repository/models"
)

// DefaultDocumentType is used when an upload does not name its type
const DefaultDocumentType = "accident_evidence"

// DigestDocument records the content hash of an uploaded document. The
// content itself is discarded.
func (f *Factory) DigestDocument(fileName string, content []byte, uploaderID, documentType string) models.DocumentHash {
	now := f.sim.Now()
	if documentType == "" {
		documentType = DefaultDocumentType
	}
	return models.DocumentHash{
		ID:           "doc_" + GenerateHash(fileName+strconv.FormatInt(now.UnixMilli(), 10)),
		FileName:     fileName,
		Hash:         "ipfs_" + GenerateHash(string(content)),
		UploadDate:   FormatTimestamp(now),
		UploaderID:   uploaderID,
		DocumentType: documentType,
	}
}

// EntityID returns "<prefix>_" + hash(defining field + creation time in ms)
func (f *Factory) EntityID(prefix, field string) string {
	return prefix + "_" + GenerateHash(field+strconv.FormatInt(f.sim.Now().UnixMilli(), 10))
}
