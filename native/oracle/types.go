package oracle

import (
	"encoding/binary"
	"fmt"

	"signescrow/core/ledger"
	"signescrow/core/types"
)

// Contract function names.
const (
	FnInitialize                  = "initialize"
	FnRegisterNewSignatureProcess = "register_new_signature_process"
	FnSignatureResponse           = "signature_response"
	FnGetProcess                  = "get_process"
	FnGetProcessByOracleID        = "get_process_by_oracle_id"
	FnAdmin                       = "admin"
	FnRegisterCounter             = "register_counter"

	// Callbacks every registrant must expose.
	FnCompletedSignature = "completed_signature"
	FnFailedSignature    = "failed_signature"
)

// ResponseStatus tracks the outcome reported for a signature process.
type ResponseStatus uint8

const (
	StatusFailed ResponseStatus = iota
	StatusCompleted
	StatusWait
)

func (s ResponseStatus) String() string {
	switch s {
	case StatusFailed:
		return "failed"
	case StatusCompleted:
		return "completed"
	case StatusWait:
		return "wait"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Terminal reports whether no further transition is allowed.
func (s ResponseStatus) Terminal() bool {
	return s == StatusFailed || s == StatusCompleted
}

// Process is the oracle's record of a tracked signing workflow.
type Process struct {
	ID       string          `json:"id"`
	OracleID uint32          `json:"oracleId"`
	SendTo   types.Principal `json:"sendTo"`
	Status   ResponseStatus  `json:"status"`
}

type keyTag byte

const (
	tagAdmin keyTag = iota + 1
	tagRegisterCounter
	tagSignaturitProcess
	tagOracleProcess
)

type dataKey struct {
	tag      keyTag
	id       string
	oracleID uint32
}

func (k dataKey) StorageKey() []byte {
	switch k.tag {
	case tagSignaturitProcess:
		return ledger.BytesKey(byte(k.tag), []byte(k.id))
	case tagOracleProcess:
		var raw [4]byte
		binary.BigEndian.PutUint32(raw[:], k.oracleID)
		return ledger.BytesKey(byte(k.tag), raw[:])
	default:
		return ledger.BytesKey(byte(k.tag))
	}
}

// Every oracle record is persistent.
func (k dataKey) Class() ledger.StorageClass { return ledger.Persistent }

func adminKey() dataKey                        { return dataKey{tag: tagAdmin} }
func counterKey() dataKey                      { return dataKey{tag: tagRegisterCounter} }
func processKey(id string) dataKey             { return dataKey{tag: tagSignaturitProcess, id: id} }
func oracleProcessKey(oracleID uint32) dataKey { return dataKey{tag: tagOracleProcess, oracleID: oracleID} }
