package oracle

import (
	"strconv"

	"signescrow/core/types"
)

const (
	EventTypeInitialized         = "Initialized"
	EventTypeNewSignatureProcess = "NewSignatureProcess"
	EventTypeSignatureResponse   = "SignatureResponse"
)

func NewInitializedEvent(admin types.Principal) *types.Event {
	return &types.Event{Type: EventTypeInitialized, Attributes: map[string]string{
		"admin": admin.String(),
	}}
}

func NewSignatureProcessEvent(signaturitID string, oracleID uint32) *types.Event {
	return &types.Event{Type: EventTypeNewSignatureProcess, Attributes: map[string]string{
		"signaturit_id": signaturitID,
		"oracle_id":     strconv.FormatUint(uint64(oracleID), 10),
	}}
}

func NewSignatureResponseEvent(signaturitID string, oracleID uint32, isSuccess bool) *types.Event {
	return &types.Event{Type: EventTypeSignatureResponse, Attributes: map[string]string{
		"signaturit_id": signaturitID,
		"oracle_id":     strconv.FormatUint(uint64(oracleID), 10),
		"is_success":    strconv.FormatBool(isSuccess),
	}}
}
