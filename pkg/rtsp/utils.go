package rtsp

import (
	"bufio"
	"fmt"
)

func readBytesLimited(rb *bufio.Reader, delim byte, maxLen int) ([]byte, error) {
	for i := 1; i <= maxLen; i++ {
		byts, err := rb.Peek(i)
		if err != nil {
			return nil, err
		}

		if byts[i-1] == delim {
			rb.Discard(i) //nolint:errcheck
			return byts, nil
		}
	}
	return nil, fmt.Errorf("buffer length exceeds %d", maxLen)
}

func readByteEqual(rb *bufio.Reader, expected byte) error {
	byt, err := rb.ReadByte()
	if err != nil {
		return err
	}

	if byt != expected {
		return fmt.Errorf("expected '%c', got '%c'", expected, byt)
	}

	return nil
}
