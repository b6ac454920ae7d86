package rtsp

import (
	"bufio"
	"fmt"
	"strconv"
)

// StatusCode is a RTSP/HTTP status code.
type StatusCode int

// Status codes used across both dialects.
const (
	StatusOK                          StatusCode = 200
	StatusBadRequest                  StatusCode = 400
	StatusUnauthorized                StatusCode = 401
	StatusForbidden                   StatusCode = 403
	StatusMethodNotValidInThisState   StatusCode = 455
	StatusConnectionAuthRequired      StatusCode = 470
	StatusInternalServerError         StatusCode = 500
	StatusNotImplemented              StatusCode = 501
)

var statusText = map[StatusCode]string{
	StatusOK:                        "OK",
	StatusBadRequest:                "Bad Request",
	StatusUnauthorized:              "Unauthorized",
	StatusForbidden:                 "Forbidden",
	StatusMethodNotValidInThisState: "Method Not Valid In This State",
	StatusConnectionAuthRequired:    "Connection Authorization Required",
	StatusInternalServerError:       "Internal Server Error",
	StatusNotImplemented:            "Not Implemented",
}

// String returns the reason phrase associated with code.
func (s StatusCode) String() string {
	if t, ok := statusText[s]; ok {
		return t
	}
	return "Unknown"
}

// Response is a RTSP/HTTP response.
type Response struct {
	StatusCode StatusCode
	Header     Header
	Content    []byte
}

// Read parses a Response from rb.
func (res *Response) Read(rb *bufio.Reader) error {
	byts, err := readBytesLimited(rb, ' ', maxProtocolLength)
	if err != nil {
		return err
	}
	if string(byts[:len(byts)-1]) != protocol10 {
		return fmt.Errorf("invalid protocol")
	}

	byts, err = readBytesLimited(rb, ' ', 4)
	if err != nil {
		return err
	}
	statusCode64, err := strconv.ParseInt(string(byts[:len(byts)-1]), 10, 32)
	if err != nil {
		return fmt.Errorf("invalid status code")
	}
	res.StatusCode = StatusCode(statusCode64)

	if _, err := readBytesLimited(rb, '\r', 256); err != nil {
		return err
	}
	if err := readByteEqual(rb, '\n'); err != nil {
		return err
	}

	res.Header = make(Header)
	if err := res.Header.read(rb); err != nil {
		return err
	}

	var c payload
	if err := c.read(rb, res.Header); err != nil {
		return err
	}
	res.Content = []byte(c)

	return nil
}

// Write serializes res to bw.
func (res Response) Write(bw *bufio.Writer) error {
	if _, err := bw.Write([]byte(fmt.Sprintf("%s %d %s\r\n", protocol10, res.StatusCode, res.StatusCode.String()))); err != nil {
		return err
	}

	if len(res.Content) != 0 {
		if res.Header == nil {
			res.Header = make(Header)
		}
		res.Header.Set("Content-Length", fmt.Sprintf("%d", len(res.Content)))
	}

	if err := res.Header.write(bw); err != nil {
		return err
	}

	if err := payload(res.Content).write(bw); err != nil {
		return err
	}

	return bw.Flush()
}
