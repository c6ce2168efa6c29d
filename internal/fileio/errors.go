package fileio

import "github.com/lakestore/core/pkg/errors"

var (
	ErrNotFound      = errors.MustNewCode("fileio.not_found")
	ErrAlreadyExists = errors.MustNewCode("fileio.already_exists")
	ErrIOFatal       = errors.MustNewCode("fileio.io_fatal")
	ErrIOTransient   = errors.MustNewCode("fileio.io_transient")
	ErrLockHeld      = errors.MustNewCode("fileio.lock_held")
)

func errNotFound(path string) *errors.Error {
	return errors.New(ErrNotFound, "file not found", nil).AddContext("path", path)
}

func errAlreadyExists(path string) *errors.Error {
	return errors.New(ErrAlreadyExists, "file already exists", nil).AddContext("path", path)
}

func errorsNewIOFatal(cause error, path string) *errors.Error {
	return errors.New(ErrIOFatal, "io operation failed", cause).AddContext("path", path)
}
