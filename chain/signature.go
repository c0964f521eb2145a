package chain

import "github.com/ahmadzakiakmal/insurance-ledger/repository/models"

// GenerateSignature returns a placeholder signature over data. It is not a
// cryptographic signature.
func GenerateSignature(data, privateKey string) string {
	return "ecc_" + GenerateHash(data+privateKey)
}

// ValidateMultiSignature reports whether at least required approvals are
// approved and carry a signature.
func ValidateMultiSignature(required int, approvals []models.Approval) bool {
	valid := 0
	for _, a := range approvals {
		if a.Status == models.ApprovalApproved && a.Signature != "" {
			valid++
		}
	}
	return valid >= required
}
