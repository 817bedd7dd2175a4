// Package calc implements the calculator wire format and evaluator shared by
// the calcpool server and client.
package calc

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	formContentType = "application/x-www-form-urlencoded"

	// DefaultMaxBodyBytes bounds request and response bodies when no limit is given
	DefaultMaxBodyBytes int64 = 64 << 10
)

var (
	ErrMissingOperator  = errors.New("missing operator")
	ErrMalformedRequest = errors.New("malformed request")
	ErrMalformedReply   = errors.New("malformed response")
)

// Request is a single calculation: an operator applied to its operands in order
type Request struct {
	Operator string
	Operands []string
}

// String renders the request as its unescaped form body
func (r Request) String() string {
	return "operator=" + r.Operator + "&operands=" + formatOperands(r.Operands)
}

// formatOperands renders operands as a quoted list: ["1", "2"]
func formatOperands(operands []string) string {
	var sb strings.Builder

	sb.WriteByte('[')
	for i, operand := range operands {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(strconv.Quote(operand))
	}
	sb.WriteByte(']')

	return sb.String()
}

// ParseLine parses an input line of the form "op,a,b,..."
func ParseLine(line string) (Request, error) {
	tokens := strings.Split(strings.TrimSpace(line), ",")

	operator := strings.TrimSpace(tokens[0])
	if operator == "" {
		return Request{}, ErrMissingOperator
	}

	operands := make([]string, 0, len(tokens)-1)
	for _, token := range tokens[1:] {
		operands = append(operands, strings.TrimSpace(token))
	}

	return Request{Operator: operator, Operands: operands}, nil
}

// EncodeRequest builds the HTTP/1.1 POST sent by the client. Form values are
// query-escaped so operators such as "+" survive decoding.
func EncodeRequest(operator string, operands []string) []byte {
	body := "operator=" + url.QueryEscape(operator) + "&operands=" + url.QueryEscape(formatOperands(operands))

	var sb strings.Builder

	sb.WriteString("POST / HTTP/1.1\r\n")
	sb.WriteString("Host: calcpool\r\n")
	sb.WriteString("Content-Type: " + formContentType + "\r\n")
	sb.WriteString("Content-Length: " + strconv.Itoa(len(body)) + "\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(body)

	return []byte(sb.String())
}

// ReadRequest reads one request from r and decodes its form body. Bodies
// larger than maxBodyBytes are rejected; a non-positive limit selects
// DefaultMaxBodyBytes.
func ReadRequest(r *bufio.Reader, maxBodyBytes int64) (Request, error) {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}

	httpReq, err := http.ReadRequest(r)
	if err != nil {
		return Request{}, fmt.Errorf("%w: %w", ErrMalformedRequest, err)
	}
	defer httpReq.Body.Close()

	httpReq.Body = http.MaxBytesReader(nil, httpReq.Body, maxBodyBytes)
	if err := httpReq.ParseForm(); err != nil {
		return Request{}, fmt.Errorf("%w: %w", ErrMalformedRequest, err)
	}

	operator := strings.TrimSpace(httpReq.PostForm.Get("operator"))
	if operator == "" {
		return Request{}, ErrMissingOperator
	}

	return Request{
		Operator: operator,
		Operands: parseOperands(httpReq.PostForm.Get("operands")),
	}, nil
}

// parseOperands accepts both ["1", "2"] and 1,2
func parseOperands(raw string) []string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "[") && strings.HasSuffix(raw, "]") {
		raw = strings.TrimSpace(raw[1 : len(raw)-1])
	}

	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	operands := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if unquoted, err := strconv.Unquote(part); err == nil {
			part = unquoted
		}
		operands = append(operands, part)
	}

	return operands
}

// Response is the decoded server reply
type Response struct {
	StatusCode int
	Result     float64
	Error      string
	Body       string
}

// OK reports whether the server computed a result
func (r Response) OK() bool {
	return r.StatusCode == http.StatusOK
}

// FormatResult renders a result the way responses carry it
func FormatResult(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteResponse writes "result=<v>" with 200 OK, or "error=<msg>" with
// 400 Bad Request when evalErr is set.
func WriteResponse(w io.Writer, result float64, evalErr error) error {
	status := http.StatusOK
	body := "result=" + FormatResult(result)

	if evalErr != nil {
		status = http.StatusBadRequest
		body = "error=" + evalErr.Error()
	}

	return writeResponse(w, status, body)
}

// WriteUnavailable tells the client its request was not accepted
func WriteUnavailable(w io.Writer, reason error) error {
	return writeResponse(w, http.StatusServiceUnavailable, "error="+reason.Error())
}

func writeResponse(w io.Writer, status int, body string) error {
	resp := &http.Response{
		StatusCode:    status,
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        make(http.Header),
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: int64(len(body)),
		Close:         true,
	}
	resp.Header.Set("Content-Type", "text/plain; charset=utf-8")

	return resp.Write(w)
}

// ReadResponse reads one server reply from r
func ReadResponse(r *bufio.Reader) (Response, error) {
	httpResp, err := http.ReadResponse(r, nil)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %w", ErrMalformedReply, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, DefaultMaxBodyBytes))
	if err != nil {
		return Response{}, fmt.Errorf("%w: %w", ErrMalformedReply, err)
	}

	resp := Response{
		StatusCode: httpResp.StatusCode,
		Body:       strings.TrimSpace(string(data)),
	}

	key, value, found := strings.Cut(resp.Body, "=")
	if !found {
		return resp, fmt.Errorf("%w: %q", ErrMalformedReply, resp.Body)
	}

	switch key {
	case "result":
		resp.Result, err = strconv.ParseFloat(value, 64)
		if err != nil {
			return resp, fmt.Errorf("%w: %w", ErrMalformedReply, err)
		}
	case "error":
		resp.Error = value
	default:
		return resp, fmt.Errorf("%w: unknown field %q", ErrMalformedReply, key)
	}

	return resp, nil
}
