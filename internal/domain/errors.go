package domain

import "errors"

// Domain errors.
var (
	// ErrFolderNotFound is returned when a folder cannot be found.
	ErrFolderNotFound = errors.New("folder not found")

	// ErrFileNotFound is returned when a file reference is not in the folder.
	ErrFileNotFound = errors.New("file not found in folder")

	// ErrNoActiveFolder is returned when files are dropped with no active folder.
	ErrNoActiveFolder = errors.New("no active folder")

	// ErrNoPayload is returned when a save request carries no archive bytes.
	ErrNoPayload = errors.New("no file provided")

	// ErrNothingToExport is returned when every folder is empty.
	ErrNothingToExport = errors.New("no files to export")

	// ErrExportInProgress is returned when an export is requested while one runs.
	ErrExportInProgress = errors.New("export already in progress")

	// ErrStorageFull is returned when the sink lacks space for the archive.
	ErrStorageFull = errors.New("insufficient storage space")

	// ErrPreviewNotFound is returned for unknown or released preview handles.
	ErrPreviewNotFound = errors.New("preview not found")
)

// FolderError wraps an error with folder context.
type FolderError struct {
	FolderID FolderID
	Op       string
	Err      error
}

func (e *FolderError) Error() string {
	if e.FolderID != "" {
		return e.Op + " [" + e.FolderID.String() + "]: " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *FolderError) Unwrap() error {
	return e.Err
}

// NewFolderError creates a new FolderError.
func NewFolderError(folderID FolderID, op string, err error) *FolderError {
	return &FolderError{
		FolderID: folderID,
		Op:       op,
		Err:      err,
	}
}
