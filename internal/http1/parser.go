package http1

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/emberhttp/ember/config"
	"github.com/emberhttp/ember/http/method"
	"github.com/emberhttp/ember/http/proto"
	"github.com/emberhttp/ember/http/status"
	"github.com/emberhttp/ember/internal/conduit"
	"github.com/emberhttp/ember/internal/strutil"
	"github.com/emberhttp/ember/kv"
	"github.com/indigo-web/utils/uf"
	"github.com/pkg/errors"
)

const (
	// bodyLength markers, used until the header block settles the framing
	lengthUnknown int64 = -1
	lengthChunked int64 = -2
)

// OnHeaders is invoked exactly once per request, at the header block
// terminator and before any body byte becomes observable. After it returns,
// the caller owns the parser's body conduit reference.
type OnHeaders func(m method.Method, uri *url.URL, protocol proto.Proto, headers *kv.Storage)

// Parser is a single-owner incremental HTTP/1.x request parser. It is fed
// arbitrary byte slices via Offer and tolerates slicing at any byte
// boundary, keeping partial tokens in its scratch buffer. One instance
// serves exactly one request.
type Parser struct {
	cfg       *config.Config
	onHeaders OnHeaders

	state parserState

	buff      []byte
	lineSize  int
	headSpace int

	method    method.Method
	uri       *url.URL
	protocol  proto.Proto
	headers   *kv.Storage
	trailers  *kv.Storage
	curHeader string

	bodyLength    int64
	bodyBytesRead int64
	chunkState    chunkState
	curChunkSize  int64

	body *conduit.Conduit
}

func NewParser(cfg *config.Config, onHeaders OnHeaders) *Parser {
	return &Parser{
		cfg:        cfg,
		onHeaders:  onHeaders,
		state:      eMethod,
		headers:    kv.NewPrealloc(cfg.Headers.Prealloc),
		bodyLength: lengthUnknown,
	}
}

// Complete reports whether the request, including its body and trailers,
// has been fully consumed.
func (p *Parser) Complete() bool {
	return p.state == eCompleted
}

// Body returns the conduit carrying the request body. Nil until the header
// block is terminated; the canonical empty conduit for bodiless requests.
func (p *Parser) Body() *conduit.Conduit {
	return p.body
}

// Trailers returns trailer fields of a chunked body, or nil if there were
// none. Must only be read after the body conduit reported END.
func (p *Parser) Trailers() *kv.Storage {
	return p.trailers
}

// Offer feeds the next piece of the wire stream into the parser. Framing
// violations surface as status.HTTPError; anything else is an internal
// fault of the conduit or the peer.
func (p *Parser) Offer(data []byte) (err error) {
	for len(data) > 0 {
		switch p.state {
		case eCompleted:
			return status.NewDetailed(
				status.BadRequest, "Request body too long",
				"more request was found even though no more was expected",
			)
		case eFixedBody:
			data, err = p.parseFixedBody(data)
		case eChunkedBody:
			data, err = p.parseChunkedBody(data)
		default:
			data, err = p.parseRequestLineAndHeaders(data)
		}

		if err != nil {
			return err
		}
	}

	return nil
}

func (p *Parser) parseRequestLineAndHeaders(data []byte) ([]byte, error) {
	for i := 0; i < len(data); i++ {
		c := data[i]

		switch p.state {
		case eMethod, eURI, eProto:
			p.lineSize++
			if p.lineSize > p.cfg.URI.MaxLength {
				return nil, status.NewDetailed(
					status.RequestURITooLong, "URI too long",
					fmt.Sprintf("request line exceeded %d bytes", p.cfg.URI.MaxLength),
				)
			}
		case eHeaderName, eHeaderValue:
			p.headSpace++
			if p.headSpace > p.cfg.Headers.MaxSpace {
				return nil, status.NewDetailed(
					status.HeaderFieldsTooLarge, "HTTP headers too large",
					fmt.Sprintf("header block exceeded %d bytes", p.cfg.Headers.MaxSpace),
				)
			}
		}

		switch c {
		case ' ':
			switch p.state {
			case eMethod:
				p.method = method.Parse(uf.B2S(p.buff))
				if p.method == method.Unknown {
					return nil, status.NewDetailed(
						status.BadRequest, "unknown request method",
						"method was "+string(p.buff),
					)
				}

				p.state = eURI
				p.buff = p.buff[:0]
			case eURI:
				uri, err := url.Parse(string(p.buff))
				if err != nil {
					return nil, status.NewDetailed(
						status.BadRequest, "invalid request target",
						"target was "+string(p.buff),
					)
				}

				p.uri = uri
				p.state = eProto
				p.buff = p.buff[:0]
			case eHeaderValue:
				// a pre-pended space on a header value is ignored
				if len(p.buff) > 0 {
					p.buff = append(p.buff, c)
				}
			default:
				return nil, status.NewDetailed(
					status.BadRequest, "bad request",
					"unexpected space in the request line or a header name",
				)
			}
		case '\r':
			// tolerated and ignored everywhere, LF alone terminates lines
		case '\n':
			switch p.state {
			case eProto:
				p.protocol = proto.Parse(uf.B2S(p.buff))
				if p.protocol == proto.Unknown {
					return nil, errors.Errorf("unsupported HTTP protocol %q", p.buff)
				}

				p.state = eHeaderName
				p.buff = p.buff[:0]
			case eHeaderName:
				if len(p.buff) > 0 {
					return nil, status.NewDetailed(
						status.BadRequest, "A header name included a line feed character",
						"value was "+string(p.buff),
					)
				}

				rest := data[i+1:]
				if err := p.endOfHeaders(); err != nil {
					return nil, err
				}

				p.onHeaders(p.method, p.uri, p.protocol, p.headers)

				// yield, so the caller gets a chance to dispatch the body
				// through the conduit
				return rest, nil
			case eHeaderValue:
				if err := p.commitHeader(); err != nil {
					return nil, err
				}

				p.state = eHeaderName
			default:
				p.buff = append(p.buff, c)
			}
		case ':':
			if p.state == eHeaderName {
				p.curHeader = string(p.buff)
				p.state = eHeaderValue
				p.buff = p.buff[:0]
				break
			}

			p.buff = append(p.buff, c)
		default:
			p.buff = append(p.buff, c)
		}
	}

	return nil, nil
}

// commitHeader finalizes the pending header field: trims the value, runs
// the framing-sensitive checks and stores the pair.
func (p *Parser) commitHeader() error {
	val := strutil.TrimWS(string(p.buff))
	p.buff = p.buff[:0]

	switch {
	case strutil.CmpFold(p.curHeader, "content-length"):
		if p.bodyLength == lengthChunked {
			return status.NewDetailed(
				status.BadRequest, "Content-Length set after chunked encoding sent",
				"transfer-encoding was already declared chunked",
			)
		}

		prev := p.bodyLength
		length, err := strconv.ParseInt(val, 10, 64)
		if err != nil || length < 0 {
			return status.NewDetailed(
				status.BadRequest, "Invalid content-length header",
				"header was "+val,
			)
		}

		p.bodyLength = length
		if prev != lengthUnknown && prev != p.bodyLength {
			return status.NewDetailed(
				status.BadRequest, "Multiple content-length headers",
				fmt.Sprintf("first was %d and then %d", prev, p.bodyLength),
			)
		}
	case strutil.CmpFold(p.curHeader, "transfer-encoding"):
		if p.bodyLength > lengthUnknown {
			return status.NewDetailed(
				status.BadRequest, "Can't have transfer-encoding with content-length",
				"content-length was already declared",
			)
		}

		// only the final coding matters; leading codings are surfaced to
		// the consumer verbatim and never decoded here
		if strings.HasSuffix(strings.ToLower(val), "chunked") {
			p.bodyLength = lengthChunked
		}
	}

	p.headers.Add(p.curHeader, val)

	return nil
}

// endOfHeaders settles the body framing once the empty line arrives.
func (p *Parser) endOfHeaders() error {
	hasContentLength := p.bodyLength > lengthUnknown
	hasTransferEncoding := p.headers.Has("transfer-encoding")

	switch {
	case hasContentLength && hasTransferEncoding:
		return status.NewDetailed(
			status.BadRequest, "A request cannot have both transfer encoding and content length",
			"headers declared content-length "+strconv.FormatInt(p.bodyLength, 10),
		)
	case hasContentLength:
		if p.bodyLength == 0 {
			p.state = eCompleted
			p.body = conduit.Empty
			break
		}

		p.body = conduit.New(p.cfg.Body.ReadTimeout, p.cfg.Body.MaxSize)
		p.state = eFixedBody
	case hasTransferEncoding:
		p.body = conduit.New(p.cfg.Body.ReadTimeout, p.cfg.Body.MaxSize)
		p.chunkState = eChunkSize
		p.state = eChunkedBody
	default:
		p.state = eCompleted
		p.body = conduit.Empty
	}

	return nil
}

func (p *Parser) parseFixedBody(data []byte) ([]byte, error) {
	p.bodyBytesRead += int64(len(data))

	copied := make([]byte, len(data))
	copy(copied, data)
	if err := p.body.HandOff(copied, nil); err != nil {
		return nil, err
	}

	switch {
	case p.bodyBytesRead == p.bodyLength:
		p.body.Close()
		p.state = eCompleted
	case p.bodyBytesRead > p.bodyLength:
		return nil, status.NewDetailed(
			status.BadRequest, "Request body too long",
			fmt.Sprintf(
				"the client declared a body length of %d but has already sent %d",
				p.bodyLength, p.bodyBytesRead,
			),
		)
	}

	return nil, nil
}

func (p *Parser) parseChunkedBody(data []byte) ([]byte, error) {
	i := 0

	if p.chunkState != eChunkData {
		for ; i < len(data); i++ {
			c := data[i]
			if c == '\r' {
				continue
			}

			switch p.chunkState {
			case eChunkSize:
				switch {
				case isHex(c):
					p.buff = append(p.buff, c)
				case c == '\n' || c == ';':
					size, err := strconv.ParseInt(uf.B2S(p.buff), 16, 64)
					if err != nil {
						return nil, status.NewDetailed(
							status.BadRequest, "malformed chunk-encoded data",
							"chunk size was "+string(p.buff),
						)
					}

					p.curChunkSize = size
					p.buff = p.buff[:0]

					if c == ';' {
						p.chunkState = eChunkExtension
					} else if p.curChunkSize == 0 {
						p.chunkState = eTrailerName
					} else {
						p.chunkState = eChunkData
					}
				default:
					return nil, status.NewDetailed(
						status.BadRequest,
						fmt.Sprintf("Invalid character in chunk size declaration: %c", c),
						"chunk size may consist of hex digits only",
					)
				}
			case eChunkExtension:
				// chunk extensions are ignored wholesale
				if c == '\n' {
					if p.curChunkSize == 0 {
						p.chunkState = eTrailerName
					} else {
						p.chunkState = eChunkData
					}
				}
			case eChunkDataDone:
				if c != '\n' {
					return nil, status.NewDetailed(
						status.BadRequest,
						fmt.Sprintf("Extra data after chunk was supposed to end: %c", c),
						"a chunk must be terminated by a line feed",
					)
				}

				p.chunkState = eChunkSize
			case eTrailerName:
				switch c {
				case '\n':
					if len(p.buff) > 0 {
						return nil, status.NewDetailed(
							status.BadRequest, "HTTP Protocol error - trailer line had no value",
							"while reading a trailer name ("+string(p.buff)+") a newline was found, but there was no ':' first",
						)
					}

					p.body.Close()
					p.state = eCompleted

					return data[i+1:], nil
				case ':':
					p.curHeader = string(p.buff)
					p.buff = p.buff[:0]
					if p.trailers == nil {
						p.trailers = kv.New()
					}
					p.chunkState = eTrailerValue
				default:
					p.buff = append(p.buff, c)
				}
			case eTrailerValue:
				if c == '\n' {
					p.trailers.Add(p.curHeader, strutil.TrimWS(string(p.buff)))
					p.buff = p.buff[:0]
					p.chunkState = eTrailerName
					break
				}

				p.buff = append(p.buff, c)
			}

			if p.chunkState == eChunkData {
				i++
				break
			}
		}
	}

	if p.chunkState == eChunkData {
		for i < len(data) {
			size := p.curChunkSize
			if rest := int64(len(data) - i); rest < size {
				size = rest
			}

			copied := make([]byte, size)
			copy(copied, data[i:i+int(size)])
			p.bodyBytesRead += size
			p.curChunkSize -= size
			if err := p.body.HandOff(copied, nil); err != nil {
				return nil, err
			}

			i += int(size)
			if p.curChunkSize == 0 {
				p.chunkState = eChunkDataDone
				break
			}
		}
	}

	return data[i:], nil
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
