/*
Copyright (c) The anyrpc Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package connstate

import "strings"

// findHeaderEnd locates the blank line that terminates the header
// block, accepting either CRLF or LF line endings, and returns the
// offset where the header block ends (the start of the blank line), or
// -1 if the header block isn't complete yet.
func findHeaderEnd(buf []byte) int {
	s := string(buf)
	if i := strings.Index(s, "\r\n\r\n"); i >= 0 {
		return i
	}
	if i := strings.Index(s, "\n\n"); i >= 0 {
		return i
	}
	return -1
}

// headerEndLen reports how many bytes the blank-line terminator found
// at idx by findHeaderEnd occupies, so the caller can locate where the
// body begins.
func headerEndLen(buf []byte, idx int) int {
	if idx+1 < len(buf) && buf[idx] == '\r' && buf[idx+1] == '\n' {
		if idx+3 < len(buf) && buf[idx+2] == '\r' && buf[idx+3] == '\n' {
			return 4
		}
	}
	if idx < len(buf) && buf[idx] == '\n' {
		return 2
	}
	return 4
}

func splitLines(block string) []string {
	block = strings.ReplaceAll(block, "\r\n", "\n")
	return strings.Split(block, "\n")
}

// parseRequest parses the request line and headers of headerBlock
// (everything up to, but not including, the blank-line terminator).
func parseRequest(headerBlock []byte) (Request, error) {
	lines := splitLines(string(headerBlock))
	if len(lines) == 0 || lines[0] == "" {
		return Request{}, ErrMalformedRequest
	}
	fields := strings.Fields(lines[0])
	if len(fields) != 3 {
		return Request{}, ErrMalformedRequest
	}
	req := Request{
		Method:      fields[0],
		URI:         fields[1],
		HTTPVersion: fields[2],
		Headers:     make(map[string]string),
	}

	for _, line := range lines[1:] {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			return Request{}, ErrMalformedRequest
		}
		key := strings.ToLower(strings.TrimSpace(line[:colon]))
		val := strings.TrimSpace(line[colon+1:])
		req.Headers[key] = val
	}

	req.ContentType = req.Headers["content-type"]

	isHTTP11 := req.HTTPVersion == "HTTP/1.1"
	if isHTTP11 {
		if _, ok := req.Headers["host"]; !ok {
			return Request{}, ErrMissingHost
		}
	}
	if strings.EqualFold(req.Method, "POST") {
		v, ok := req.Headers["content-length"]
		if !ok {
			return Request{}, ErrMissingContentLength
		}
		if n, err := atoiNonNegative(v); err != nil || n < 0 {
			return Request{}, ErrMissingContentLength
		}
	}

	req.KeepAlive = isHTTP11
	if conn, ok := req.Headers["connection"]; ok {
		req.KeepAlive = strings.EqualFold(strings.TrimSpace(conn), "keep-alive")
	}

	return req, nil
}

func atoiNonNegative(s string) (int, error) {
	n := 0
	if s == "" {
		return 0, ErrMalformedRequest
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, ErrMalformedRequest
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}
