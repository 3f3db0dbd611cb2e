package core

import (
	"github.com/cockroachdb/errors"
)

var (
	ErrSwapchainBooting = errors.New("swapchain resized or recreated, booting")
)
