package cli

import (
	"errors"
	"fmt"

	"github.com/aryankumar/fanout/internal/chunk"
	"github.com/aryankumar/fanout/internal/executor"
	"github.com/aryankumar/fanout/internal/merge"
	"github.com/aryankumar/fanout/internal/submit"
	"github.com/aryankumar/fanout/internal/util"
)

// FriendlyError converts command errors into a message for the terminal
func FriendlyError(err error) string {
	if err == nil {
		return ""
	}

	var (
		perr *chunk.InvalidPartitionError
		werr *executor.WorkerExecutionError
		serr *submit.SubmissionError
		merr *merge.MergeIntegrityError
	)

	switch {
	case errors.As(err, &perr):
		return fmt.Sprintf("Cannot split %d units into chunks: %s. Check process_size, sites_per_worker and nodes.", perr.Total, perr.Reason)
	case errors.As(err, &werr):
		return fmt.Sprintf("Chunk %d failed, no results were written: %v", werr.ChunkIndex, werr.Err)
	case errors.As(err, &serr):
		return "Not every job was kicked off, see the report above: " + err.Error()
	case errors.As(err, &merr):
		return "Chunk results do not line up, output was not written: " + merr.Error()
	default:
		return util.FriendlyError(err)
	}
}
