package dataprovider

import (
	"errors"
	"os"
)

var (
	ErrExist         = os.ErrExist
	ErrNotExist      = os.ErrNotExist
	ErrPermission    = os.ErrPermission
	ErrInvalidParent = &os.PathError{Op: "parent", Err: errors.New("parent does not exist or not a directory")}
	ErrInvalidName   = &os.PathError{Op: "name", Err: errors.New("name is blank or longer than 255 characters")}
)
