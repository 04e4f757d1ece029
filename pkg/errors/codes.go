package errors

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal   ErrorCode = "COMMON_001"
	ErrCodeBadRequest ErrorCode = "COMMON_002"
	ErrCodeNotFound   ErrorCode = "COMMON_003"
	ErrCodeConflict   ErrorCode = "COMMON_004"
	ErrCodeTimeout    ErrorCode = "COMMON_005"
	ErrCodeValidation ErrorCode = "COMMON_006"
	ErrCodeDatabase   ErrorCode = "COMMON_007"
	ErrCodeCache      ErrorCode = "COMMON_008"
	ErrCodeExternal   ErrorCode = "COMMON_009"
	ErrCodeStorage    ErrorCode = "COMMON_010"
	ErrCodeMessaging  ErrorCode = "COMMON_011"

	// ErrCodeServiceUnavailable marks an unreachable external dependency;
	// callers may retry with backoff.
	ErrCodeServiceUnavailable ErrorCode = "COMMON_012"
)

// Structure / receptor pipeline error codes.
const (
	// ErrCodeInvalidAccession marks a malformed structure accession code,
	// rejected before any network call.
	ErrCodeInvalidAccession ErrorCode = "STRUCT_001"

	// ErrCodeStructureNotFound marks an accession the remote repository does
	// not know about.
	ErrCodeStructureNotFound ErrorCode = "STRUCT_002"

	// ErrCodeStructureParse marks a raw structure file that could not be
	// parsed into atoms.
	ErrCodeStructureParse ErrorCode = "STRUCT_003"

	// ErrCodeEmptySelection marks a selection that matched no atoms.
	ErrCodeEmptySelection ErrorCode = "STRUCT_004"

	// ErrCodeProtonationUnavailable marks a protonation step that failed
	// while the caller demanded protonation (mode "require").
	ErrCodeProtonationUnavailable ErrorCode = "STRUCT_005"
)

// Grid box error codes.
const (
	// ErrCodeAmbiguousBoxSpec marks a grid-box request where neither or both
	// of the mutually exclusive input modes were supplied.
	ErrCodeAmbiguousBoxSpec ErrorCode = "BOX_001"

	// ErrCodeInvalidBoxExtent marks non-positive box dimensions.
	ErrCodeInvalidBoxExtent ErrorCode = "BOX_002"
)

// Ligand pipeline error codes.
const (
	// ErrCodeInvalidSMILES marks a SMILES string that failed to parse.
	ErrCodeInvalidSMILES ErrorCode = "LIG_001"

	// ErrCodeConformerGeneration marks a per-variant 3D embedding failure.
	ErrCodeConformerGeneration ErrorCode = "LIG_002"

	// ErrCodeNoValidVariant marks a ligand preparation where every
	// protonation variant failed.
	ErrCodeNoValidVariant ErrorCode = "LIG_003"

	// ErrCodeLigandEncoding marks a PDBQT encoding failure for a ligand.
	ErrCodeLigandEncoding ErrorCode = "LIG_004"
)

// Docking engine error codes.
const (
	// ErrCodeEngineNotFound marks an unresolvable engine binary path.
	ErrCodeEngineNotFound ErrorCode = "ENG_001"

	// ErrCodeEngineTimeout marks a docking run that exceeded its wall-clock
	// budget and was forcibly terminated.
	ErrCodeEngineTimeout ErrorCode = "ENG_002"

	// ErrCodeEngineExecution marks any other non-zero engine exit; the
	// captured diagnostic text travels in the error detail.
	ErrCodeEngineExecution ErrorCode = "ENG_003"

	// ErrCodeMalformedOutput marks an engine pose file with no poses or with
	// scores that violate the engine's ordering convention.
	ErrCodeMalformedOutput ErrorCode = "ENG_004"

	// ErrCodeRunConflict marks a docking run rejected because an identical
	// receptor+ligand+box combination is already in flight.
	ErrCodeRunConflict ErrorCode = "ENG_005"
)

// Aliases used throughout the codebase.
const (
	CodeUnknown = ErrorCode("UNKNOWN")
	CodeOK      = ErrorCode("OK")

	CodeInternal        = ErrCodeInternal
	CodeInvalidParam    = ErrCodeBadRequest
	CodeNotFound        = ErrCodeNotFound
	CodeConflict        = ErrCodeConflict
	CodeValidation      = ErrCodeValidation
	CodeTimeout         = ErrCodeTimeout
	CodeDatabaseError   = ErrCodeDatabase
	CodeCacheError      = ErrCodeCache
	CodeExternalService = ErrCodeExternal
	CodeStorageError    = ErrCodeStorage
	CodeMessagingError  = ErrCodeMessaging

	CodeInvalidAccession       = ErrCodeInvalidAccession
	CodeStructureNotFound      = ErrCodeStructureNotFound
	CodeStructureParse         = ErrCodeStructureParse
	CodeEmptySelection         = ErrCodeEmptySelection
	CodeProtonationUnavailable = ErrCodeProtonationUnavailable
	CodeAmbiguousBoxSpec       = ErrCodeAmbiguousBoxSpec
	CodeInvalidBoxExtent       = ErrCodeInvalidBoxExtent
	CodeInvalidSMILES          = ErrCodeInvalidSMILES
	CodeConformerGeneration    = ErrCodeConformerGeneration
	CodeNoValidVariant         = ErrCodeNoValidVariant
	CodeLigandEncoding         = ErrCodeLigandEncoding
	CodeEngineNotFound         = ErrCodeEngineNotFound
	CodeEngineTimeout          = ErrCodeEngineTimeout
	CodeEngineExecution        = ErrCodeEngineExecution
	CodeMalformedOutput        = ErrCodeMalformedOutput
	CodeRunConflict            = ErrCodeRunConflict
)
