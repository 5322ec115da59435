//go:build !linux

package screenrec

import (
	"context"
	"fmt"
)

// ProbePortal reports ErrNotSupported outside Linux.
func ProbePortal(ctx context.Context) (PortalInfo, error) {
	return PortalInfo{}, fmt.Errorf("portal: %w", ErrNotSupported)
}
