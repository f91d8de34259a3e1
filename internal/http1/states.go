package http1

type parserState uint8

const (
	eMethod parserState = iota + 1
	eURI
	eProto
	eHeaderName
	eHeaderValue
	eFixedBody
	eChunkedBody
	eCompleted
)

// chunkState is the nested sub-machine driving chunked transfer coding.
type chunkState uint8

const (
	eChunkSize chunkState = iota + 1
	eChunkExtension
	eChunkData
	eChunkDataDone
	eTrailerName
	eTrailerValue
)
