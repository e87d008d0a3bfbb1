//go:build !mvs || !cgo

package mvsdk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewDriver_MVSUnavailable(t *testing.T) {
	_, err := NewDriver(BackendMVS, nil)
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}
