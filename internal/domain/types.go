package domain

import "github.com/lib/pq"

type (
	BoardName = string

	ThreadId = int64
	PostId   = int64

	// PostIds is the ordered post sequence of a thread. Stored in postgres
	// as a native BIGINT[] so append is a single array_append statement.
	PostIds = pq.Int64Array

	PostText = string
)
