package dto

// LockRequest starts an outbound transfer on the source side. The caller is
// taken from the authenticated session, not the body.
type LockRequest struct {
	Amount string `json:"amount" binding:"required"`
}

// BurnRequest starts an inbound transfer on the destination side.
type BurnRequest struct {
	Amount string `json:"amount" binding:"required"`
}

// ReleaseRequest completes a relayed transfer: unlock on the source side,
// mint on the destination side. Nonce is the origin-side counter from the
// consumed event, echoed into the emitted event and the history row. Proof
// carries the validator signature in signature access mode (hex, 65 bytes);
// it is ignored in roles mode.
type ReleaseRequest struct {
	Recipient  string `json:"recipient" binding:"required"`
	Amount     string `json:"amount" binding:"required"`
	Nonce      uint64 `json:"nonce"`
	TransferID string `json:"transfer_id" binding:"required"`
	Proof      string `json:"proof,omitempty"`
}

// TransferResponse is returned by lock and burn.
type TransferResponse struct {
	Success    bool   `json:"success"`
	TransferID string `json:"transfer_id"`
	Nonce      uint64 `json:"nonce"`
	Message    string `json:"message,omitempty"`
}

// RoleRequest grants or revokes the relayer role.
type RoleRequest struct {
	Principal string `json:"principal" binding:"required"`
}

// EmergencyWithdrawRequest drains funds held by the endpoint account to a
// recovery account. Asset defaults to the endpoint's local asset; any other
// asset stranded on the endpoint account may be named instead.
type EmergencyWithdrawRequest struct {
	Recipient string `json:"recipient" binding:"required"`
	Amount    string `json:"amount" binding:"required"`
	Asset     string `json:"asset,omitempty"`
}

// RotateValidatorRequest replaces the release-proof signer (signature mode).
type RotateValidatorRequest struct {
	Validator string `json:"validator" binding:"required"`
}
