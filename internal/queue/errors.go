package queue

import "errors"

// ErrDuplicateJob is returned by Enqueue when jobId has already been
// submitted and its job record still exists (Ack deletes the record).
var ErrDuplicateJob = errors.New("queue: duplicate job id")

// ErrNotReserved reports that a job is not currently held by the caller
// (already acked, or reclaimed after its visibility timeout expired). The
// Redis queue's Ack and Nack do not check reservation ownership and never
// return it.
var ErrNotReserved = errors.New("queue: job not reserved")
