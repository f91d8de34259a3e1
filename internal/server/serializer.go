package server

import (
	"strconv"

	"github.com/emberhttp/ember/http"
	"github.com/emberhttp/ember/http/proto"
	"github.com/emberhttp/ember/http/status"
)

// renderResponse serialises the response head and body into buff, which is
// reused between requests of the same connection.
func renderResponse(buff []byte, protocol proto.Proto, resp *http.Response, closing bool) []byte {
	if protocol == proto.HTTP10 {
		buff = append(buff, "HTTP/1.0 "...)
	} else {
		buff = append(buff, "HTTP/1.1 "...)
	}

	buff = strconv.AppendUint(buff, uint64(resp.Code), 10)
	buff = append(buff, ' ')
	buff = append(buff, status.Text(resp.Code)...)
	buff = append(buff, '\r', '\n')

	for name, value := range resp.Headers.Iter() {
		buff = appendHeader(buff, name, value)
	}

	buff = append(buff, "Content-Length: "...)
	buff = strconv.AppendInt(buff, int64(len(resp.Body)), 10)
	buff = append(buff, '\r', '\n')

	if closing {
		buff = appendHeader(buff, "Connection", "close")
	}

	buff = append(buff, '\r', '\n')

	return append(buff, resp.Body...)
}

func appendHeader(buff []byte, name, value string) []byte {
	buff = append(buff, name...)
	buff = append(buff, ':', ' ')
	buff = append(buff, value...)

	return append(buff, '\r', '\n')
}
