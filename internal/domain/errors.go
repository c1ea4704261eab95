package domain

import "fmt"

// EngineError is the unified error type for the engine.
// Each error has a numeric code and human-readable message.
type EngineError struct {
	Code    int
	Message string
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	return fmt.Sprintf("engine error %d: %s", e.Code, e.Message)
}

// Is matches any EngineError carrying the same code, so that errors built
// with NewEngineError compare equal to the sentinel of their family.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewEngineError creates a new EngineError.
func NewEngineError(code int, msg string) *EngineError {
	return &EngineError{Code: code, Message: msg}
}

// WrapEngineError creates an EngineError that includes a cause.
func WrapEngineError(code int, msg string, cause error) *EngineError {
	return &EngineError{Code: code, Message: fmt.Sprintf("%s: %v", msg, cause)}
}

// ---- Geometry / COGO errors (-32010 to -32039) ----

var (
	ErrInsufficientPoints = &EngineError{Code: -32010, Message: "at least 3 points are required"}
	ErrZeroArea           = &EngineError{Code: -32011, Message: "polygon area is zero"}
	ErrRingNotClosed      = &EngineError{Code: -32012, Message: "ring is not closed"}
	ErrInvalidGeometry    = &EngineError{Code: -32013, Message: "invalid geometry"}
	ErrParentNotPolygon   = &EngineError{Code: -32014, Message: "parent parcel must be a single polygon"}
	ErrAdjustmentFailed   = &EngineError{Code: -32015, Message: "traverse adjustment failed"}
	ErrBrokenTraverse     = &EngineError{Code: -32016, Message: "observations do not form a connected traverse"}
	ErrNonFiniteValue     = &EngineError{Code: -32017, Message: "coordinate is not a finite number"}
)

// ---- Parsing / file errors (-32040 to -32069) ----

var (
	ErrFileTooLarge      = &EngineError{Code: -32040, Message: "file exceeds size limit"}
	ErrFileExtension     = &EngineError{Code: -32041, Message: "file extension not allowed"}
	ErrFileEmpty         = &EngineError{Code: -32042, Message: "file is empty"}
	ErrFormatUnsupported = &EngineError{Code: -32043, Message: "no parser registered for format"}
	ErrColumnNotFound    = &EngineError{Code: -32044, Message: "column not found"}
	ErrInvalidNotation   = &EngineError{Code: -32045, Message: "invalid coordinate notation"}
	ErrProjection        = &EngineError{Code: -32046, Message: "coordinate reprojection failed"}
	ErrUnitSpecInvalid   = &EngineError{Code: -32047, Message: "unit specification validation failed"}
	ErrDocumentSchema    = &EngineError{Code: -32048, Message: "document does not match schema"}
)

// ---- Quota errors (-32070 to -32099) ----

var (
	ErrNoEligibleUnits  = &EngineError{Code: -32070, Message: "no eligible units for quota calculation"}
	ErrZeroTotalArea    = &EngineError{Code: -32071, Message: "total eligible area is zero"}
	ErrQuotaOutOfRange  = &EngineError{Code: -32072, Message: "quota must be between 0 and 100"}
	ErrUnitNotFound     = &EngineError{Code: -32073, Message: "unit not found"}
	ErrQuotaSumMismatch = &EngineError{Code: -32074, Message: "quotas do not sum to 100"}
)

// ---- Seal / workflow errors (-32100 to -32129) ----

var (
	ErrSealMismatch      = &EngineError{Code: -32100, Message: "seal hash mismatch: data may have been modified"}
	ErrSealBlocked       = &EngineError{Code: -32101, Message: "seal precondition not met"}
	ErrInvalidTransition = &EngineError{Code: -32102, Message: "invalid stage transition"}
	ErrGateNotRegistered = &EngineError{Code: -32103, Message: "no gate registered for stage"}
	ErrSealNotFound      = &EngineError{Code: -32104, Message: "seal not found"}
)

// ---- Store / Config errors (-32130 to -32159) ----

var (
	ErrStoreInit       = &EngineError{Code: -32130, Message: "failed to initialize store"}
	ErrStoreQuery      = &EngineError{Code: -32131, Message: "store query failed"}
	ErrStoreWrite      = &EngineError{Code: -32132, Message: "store write failed"}
	ErrSnapshotCorrupt = &EngineError{Code: -32134, Message: "snapshot checksum mismatch"}
	ErrConfigInvalid   = &EngineError{Code: -32136, Message: "invalid configuration"}
)
