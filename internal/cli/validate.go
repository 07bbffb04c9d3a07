package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/agrisa/satellite-data-service/internal/apperr"
)

// ReadRequest decodes a JSON request from path. "-" reads stdin.
func ReadRequest(path string, stdin io.Reader, v any) error {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("read request %s: %w", path, err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.Wrap(apperr.KindInvalidInput, "invalid request file "+path, err)
	}
	return nil
}

// ExitCode maps an error kind to a process exit status: 2 for caller
// mistakes, 3 when nothing was found, 4 for platform trouble and 1 for
// everything else.
func ExitCode(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindInvalidInput:
		return 2
	case apperr.KindNoCandidates, apperr.KindNoImagery, apperr.KindNoFieldAtPoint, apperr.KindNotFound:
		return 3
	case apperr.KindRemotePlatform, apperr.KindUnavailable:
		return 4
	default:
		return 1
	}
}

// HandleError logs err and exits with its code.
func HandleError(err error) {
	switch ExitCode(err) {
	case 2:
		log.Error().Err(err).Msg("Invalid request")
	case 3:
		log.Warn().Err(err).Msg("No result")
	case 4:
		log.Error().Err(err).Msg("Earth Engine is unavailable. Check GEE_PROJECT_ID and the service account key")
	default:
		log.Error().Err(err).Msg("Command failed")
	}
	os.Exit(ExitCode(err))
}
