// Package backendversion gates process-group construction on a minimum
// collective-backend version, and renders backend error messages
// annotated with the resolved version.
package backendversion

import (
	"fmt"

	"github.com/coreos/go-semver/semver"

	"github.com/gocollective/ncclpg/ncclerr"
)

// CheckMinimum parses both versions and fails with ncclerr.BackendError if
// reported is older than minimum.
func CheckMinimum(reported, minimum string) error {
	rv, err := semver.NewVersion(reported)
	if err != nil {
		return ncclerr.Wrap(ncclerr.BackendError, err, "unparsable backend version %q", reported)
	}
	mv, err := semver.NewVersion(minimum)
	if err != nil {
		return ncclerr.Wrap(ncclerr.BackendError, err, "unparsable minimum backend version %q", minimum)
	}
	if rv.LessThan(*mv) {
		return ncclerr.New(ncclerr.BackendError, "backend version %s is older than the minimum supported %s", rv, mv)
	}
	return nil
}

// Annotate formats a backend error message together with the backend's
// self-reported version, e.g. "rank mismatch (backend version 2.18.3)".
func Annotate(msg, version string) string {
	return fmt.Sprintf("%s (backend version %s)", msg, version)
}
