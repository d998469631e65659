//go:build !linux

package hardware

import (
	"github.com/cockroachdb/errors"
)

func inContainer() (bool, error) {
	return false, nil
}

func getContainerMemLimit() (uint64, error) {
	return 0, errors.New("not supported")
}

func getContainerMemUsed() (uint64, error) {
	return 0, errors.New("not supported")
}
