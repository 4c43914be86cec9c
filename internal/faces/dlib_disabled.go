//go:build !dlib

package faces

import "errors"

// NewDlibBackend is unavailable without the "dlib" build tag.
func NewDlibBackend(string) (Backend, error) {
	return nil, errors.New("dlib backend not compiled in, rebuild with -tags dlib")
}
