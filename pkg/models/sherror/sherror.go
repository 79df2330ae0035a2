package sherror

import (
	"errors"
	"fmt"
)

const (
	SHARD_CONFIG_ERROR    = "SHCFG"
	SHARD_ALGORITHM_ERROR = "SHALG"
	SHARD_ROUTING_ERROR   = "SHRTE"
	SHARD_REWRITE_ERROR   = "SHRWR"
	SHARD_MERGE_ERROR     = "SHMRG"
	SHARD_CANCELED        = "SHCAN"
	SHARD_UNSUPPORTED     = "SHUNS"
	SHARD_PARSE_ERROR     = "SHPRS"
	SHARD_EXECUTION_ERROR = "SHEXE"
	SHARD_UNEXPECTED      = "SHUNX"
)

var existingErrorCodeMap = map[string]string{
	SHARD_CONFIG_ERROR:    "Configuration error",
	SHARD_ALGORITHM_ERROR: "Sharding algorithm error",
	SHARD_ROUTING_ERROR:   "Routing error",
	SHARD_REWRITE_ERROR:   "Rewrite error",
	SHARD_MERGE_ERROR:     "Merge error",
	SHARD_CANCELED:        "Statement canceled",
	SHARD_UNSUPPORTED:     "Unsupported statement",
	SHARD_PARSE_ERROR:     "Parse error",
	SHARD_EXECUTION_ERROR: "Execution error",
}

func GetMessageByCode(errorCode string) string {
	rep, ok := existingErrorCodeMap[errorCode]
	if ok {
		return rep
	}
	return "Unexpected error"
}

var _ error = &ShardError{}

type ShardError struct {
	Err error

	ErrorCode string
}

func New(errorCode string, msg string) *ShardError {
	return &ShardError{
		Err:       errors.New(msg),
		ErrorCode: errorCode,
	}
}

func Newf(errorCode string, format string, a ...any) *ShardError {
	return &ShardError{
		Err:       fmt.Errorf(format, a...),
		ErrorCode: errorCode,
	}
}

func NewByCode(errorCode string) *ShardError {
	return New(errorCode, GetMessageByCode(errorCode))
}

// Wrap attaches a code to an arbitrary error. Errors already carrying a code are returned as is.
func Wrap(errorCode string, err error) error {
	if err == nil {
		return nil
	}
	var se *ShardError
	if errors.As(err, &se) {
		return err
	}
	return &ShardError{Err: err, ErrorCode: errorCode}
}

func (er *ShardError) Error() string {
	return fmt.Sprintf("Code: %s. Name: %s. Description: %s.",
		er.ErrorCode, GetMessageByCode(er.ErrorCode), er.Err)
}

func (er *ShardError) Unwrap() error {
	return er.Err
}

// Is reports equality by error code, so sentinel comparisons survive re-wrapping.
func (er *ShardError) Is(target error) bool {
	t, ok := target.(*ShardError)
	if !ok {
		return false
	}
	return t.ErrorCode == er.ErrorCode && t.Err.Error() == er.Err.Error()
}

// Code returns the code of the first ShardError in the chain, or SHARD_UNEXPECTED.
func Code(err error) string {
	var se *ShardError
	if errors.As(err, &se) {
		return se.ErrorCode
	}
	return SHARD_UNEXPECTED
}
