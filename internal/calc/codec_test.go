package calc

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    Request
		wantErr error
	}{
		{
			name: "binary",
			line: "add,1,2",
			want: Request{Operator: "add", Operands: []string{"1", "2"}},
		},
		{
			name: "surrounding whitespace",
			line: "  mul, 3 , 4 \n",
			want: Request{Operator: "mul", Operands: []string{"3", "4"}},
		},
		{
			name: "operator only",
			line: "max",
			want: Request{Operator: "max", Operands: []string{}},
		},
		{
			name:    "empty line",
			line:    "",
			wantErr: ErrMissingOperator,
		},
		{
			name:    "empty operator",
			line:    ",1,2",
			wantErr: ErrMissingOperator,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLine(tt.line)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRequest_String(t *testing.T) {
	req := Request{Operator: "sub", Operands: []string{"10", "4"}}
	assert.Equal(t, `operator=sub&operands=["10", "4"]`, req.String())

	assert.Equal(t, `operator=max&operands=[]`, Request{Operator: "max"}.String())
}

func TestEncodeRequest_Format(t *testing.T) {
	raw := string(EncodeRequest("add", []string{"1", "2"}))

	head, body, found := strings.Cut(raw, "\r\n\r\n")
	require.True(t, found)

	lines := strings.Split(head, "\r\n")
	assert.Equal(t, "POST / HTTP/1.1", lines[0])
	assert.Contains(t, lines, "Content-Type: application/x-www-form-urlencoded")
	assert.Contains(t, lines, "Content-Length: "+strconv.Itoa(len(body)))
	assert.True(t, strings.HasPrefix(body, "operator=add&operands="))
}

func TestReadRequest_RoundTrip(t *testing.T) {
	tests := []struct {
		operator string
		operands []string
	}{
		{"add", []string{"1", "2", "3"}},
		{"+", []string{"1.5", "-2"}},
		{"^", []string{"2", "10"}},
		{"div", []string{"1e3", "4"}},
		{"min", nil},
	}

	for _, tt := range tests {
		t.Run(tt.operator, func(t *testing.T) {
			r := bufio.NewReader(bytes.NewReader(EncodeRequest(tt.operator, tt.operands)))

			got, err := ReadRequest(r, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.operator, got.Operator)
			assert.Equal(t, len(tt.operands), len(got.Operands))
			for i := range tt.operands {
				assert.Equal(t, tt.operands[i], got.Operands[i])
			}
		})
	}
}

func TestReadRequest_PlainOperandList(t *testing.T) {
	body := "operator=mul&operands=2,3,4"
	raw := "POST / HTTP/1.1\r\nHost: x\r\nContent-Type: application/x-www-form-urlencoded\r\n" +
		"Content-Length: " + strconv.Itoa(len(body)) + "\r\n\r\n" + body

	got, err := ReadRequest(bufio.NewReader(strings.NewReader(raw)), 0)
	require.NoError(t, err)
	assert.Equal(t, Request{Operator: "mul", Operands: []string{"2", "3", "4"}}, got)
}

func TestReadRequest_Errors(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		max     int64
		wantErr error
	}{
		{
			name:    "not http",
			raw:     "add,1,2\n",
			wantErr: ErrMalformedRequest,
		},
		{
			name:    "truncated",
			raw:     "POST / HTTP/1.1\r\nContent-Type: application/x-www-form-urlencoded\r\n",
			wantErr: ErrMalformedRequest,
		},
		{
			name: "no operator",
			raw: "POST / HTTP/1.1\r\nHost: x\r\nContent-Type: application/x-www-form-urlencoded\r\n" +
				"Content-Length: 11\r\n\r\noperands=[]",
			wantErr: ErrMissingOperator,
		},
		{
			name: "wrong content type",
			raw: "POST / HTTP/1.1\r\nHost: x\r\nContent-Type: text/plain\r\n" +
				"Content-Length: 12\r\n\r\noperator=add",
			wantErr: ErrMissingOperator,
		},
		{
			name: "body too large",
			raw: "POST / HTTP/1.1\r\nHost: x\r\nContent-Type: application/x-www-form-urlencoded\r\n" +
				"Content-Length: 29\r\n\r\noperator=add&operands=[1,2,3]",
			max:     8,
			wantErr: ErrMalformedRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadRequest(bufio.NewReader(strings.NewReader(tt.raw)), tt.max)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestWriteResponse(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteResponse(&buf, 3.5, nil))

	assert.True(t, strings.HasPrefix(buf.String(), "HTTP/1.1 200 OK\r\n"))
	assert.True(t, strings.HasSuffix(buf.String(), "\r\n\r\nresult=3.5"))

	buf.Reset()
	require.NoError(t, WriteResponse(&buf, 0, ErrDivisionByZero))

	assert.True(t, strings.HasPrefix(buf.String(), "HTTP/1.1 400 Bad Request\r\n"))
	assert.True(t, strings.HasSuffix(buf.String(), "error=division by zero"))
}

func TestReadResponse(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteResponse(&buf, -12.25, nil))

	resp, err := ReadResponse(bufio.NewReader(&buf))
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.Equal(t, -12.25, resp.Result)
	assert.Equal(t, "result=-12.25", resp.Body)

	buf.Reset()
	require.NoError(t, WriteResponse(&buf, 0, ErrUnknownOperator))

	resp, err = ReadResponse(bufio.NewReader(&buf))
	require.NoError(t, err)
	assert.False(t, resp.OK())
	assert.Equal(t, 400, resp.StatusCode)
	assert.Equal(t, "unknown operator", resp.Error)
}

func TestWriteUnavailable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteUnavailable(&buf, assert.AnError))

	resp, err := ReadResponse(bufio.NewReader(&buf))
	require.NoError(t, err)
	assert.Equal(t, 503, resp.StatusCode)
	assert.Equal(t, assert.AnError.Error(), resp.Error)
}

func TestReadResponse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"garbage", "nope\r\n\r\n"},
		{"no field", "HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\n42"},
		{"unknown field", "HTTP/1.1 200 OK\r\nContent-Length: 7\r\n\r\nvalue=1"},
		{"bad number", "HTTP/1.1 200 OK\r\nContent-Length: 9\r\n\r\nresult=xy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadResponse(bufio.NewReader(strings.NewReader(tt.raw)))
			assert.ErrorIs(t, err, ErrMalformedReply)
		})
	}
}
