package zbus

import (
	"fmt"
	"strconv"
	"strings"
)

// Command nibble bits of a request frame.
const (
	CmdRequest     byte = 0x4 // request active
	CmdWriteEnable byte = 0x2 // write-enable
	CmdEnable      byte = 0x1 // cycle enable
)

// Command nibbles emitted for each transaction kind.
const (
	cmdWrite  = CmdRequest | CmdWriteEnable | CmdEnable // 7
	cmdRead   = CmdRequest | CmdWriteEnable | CmdEnable // 7, data field is don't-care
	cmdIdle   = CmdRequest                              // 4
	cmdFinish = 0x0

	cmdMask = CmdRequest | CmdWriteEnable | CmdEnable
)

// Status bits of the leading response digit.
const (
	StatusAck byte = 0x2
	StatusReq byte = 0x1
)

// SelectAll enables all four bytes of a word.
const SelectAll uint8 = 0xF

const (
	fieldSep   = '_'
	selWidth   = 1
	wordWidth  = 8
	frameLen   = 1 + 1 + selWidth + 1 + wordWidth + 1 + wordWidth // 21
	dontCare8  = "xxxxxxxx"
	dontCare1  = "x"
	respLen    = 1 + wordWidth
	statusOnly = 1
)

// Kind is the kind of a bus transaction.
type Kind uint8

const (
	KindIdle Kind = iota
	KindWrite
	KindRead
	KindFinish
)

func (k Kind) String() string {
	switch k {
	case KindIdle:
		return "Idle"
	case KindWrite:
		return "Write"
	case KindRead:
		return "Read"
	case KindFinish:
		return "Finish"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Transaction is one bus operation requested by the adapter.
//
// Select and Address are meaningful for Write and Read, Data only for Write.
// Fields that are not meaningful for the kind are encoded as don't-care placeholders.
type Transaction struct {
	Kind    Kind
	Select  uint8
	Address uint32
	Data    uint32
}

// WriteTx returns a Write transaction.
func WriteTx(address, data uint32, sel uint8) Transaction {
	return Transaction{Kind: KindWrite, Select: sel, Address: address, Data: data}
}

// ReadTx returns a Read transaction.
func ReadTx(address uint32, sel uint8) Transaction {
	return Transaction{Kind: KindRead, Select: sel, Address: address}
}

// IdleTx returns an Idle transaction.
func IdleTx() Transaction {
	return Transaction{Kind: KindIdle}
}

// FinishTx returns a Finish transaction.
func FinishTx() Transaction {
	return Transaction{Kind: KindFinish}
}

// HasSelect reports whether the select field is meaningful for the transaction kind.
func (t Transaction) HasSelect() bool {
	return t.Kind == KindWrite || t.Kind == KindRead
}

// HasAddress reports whether the address field is meaningful for the transaction kind.
func (t Transaction) HasAddress() bool {
	return t.Kind == KindWrite || t.Kind == KindRead
}

// HasData reports whether the data field is meaningful for the transaction kind.
func (t Transaction) HasData() bool {
	return t.Kind == KindWrite
}

// Command returns the command nibble of the transaction.
func (t Transaction) Command() byte {
	switch t.Kind {
	case KindWrite:
		return cmdWrite
	case KindRead:
		return cmdRead
	case KindIdle:
		return cmdIdle
	default:
		return cmdFinish
	}
}

// Validate checks the transaction kind and the width of the select mask.
func (t Transaction) Validate() error {
	if t.Kind > KindFinish {
		return fmt.Errorf("%w: %d", ErrInvalidKind, t.Kind)
	}
	if t.HasSelect() && t.Select > SelectAll {
		return fmt.Errorf("%w: 0x%X", ErrInvalidSelect, t.Select)
	}

	return nil
}

func (t Transaction) String() string {
	switch t.Kind {
	case KindWrite:
		return fmt.Sprintf("Write(sel=%x, adr=%08x, dat=%08x)", t.Select, t.Address, t.Data)
	case KindRead:
		return fmt.Sprintf("Read(sel=%x, adr=%08x)", t.Select, t.Address)
	default:
		return t.Kind.String()
	}
}

// EncodeFrame renders t as a request frame without the line terminator.
//
// The encoding is deterministic: hex digits are lowercase, address and data are zero padded
// to eight digits, and don't-care fields are filled with 'x'.
func EncodeFrame(t Transaction) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.Grow(frameLen)

	sb.WriteByte(hexDigit(t.Command()))
	sb.WriteByte(fieldSep)

	if t.HasSelect() {
		sb.WriteByte(hexDigit(t.Select))
	} else {
		sb.WriteString(dontCare1)
	}
	sb.WriteByte(fieldSep)

	if t.HasAddress() {
		writeWord(&sb, t.Address)
	} else {
		sb.WriteString(dontCare8)
	}
	sb.WriteByte(fieldSep)

	if t.HasData() {
		writeWord(&sb, t.Data)
	} else {
		sb.WriteString(dontCare8)
	}

	return sb.String(), nil
}

// DecodeFrame parses a request frame, the inverse of EncodeFrame.
//
// The command nibble selects the kind:
//   - 0: Finish
//   - 4 (request only): Idle
//   - 5 (request, enable): Read
//   - 7 (request, write-enable, enable): Write when the data field is a number, Read otherwise
//
// Every other nibble is malformed: bit3 is undefined, a nonzero command without the request
// bit carries no transaction, and write-enable without cycle enable (6) is contradictory.
//
// Fields that are don't-care for the decoded kind are ignored, whether they hold the
// placeholder or a number, and are left zero in the result.
func DecodeFrame(line string) (Transaction, error) {
	fields := strings.Split(line, string(fieldSep))
	if len(fields) != 4 {
		return Transaction{}, fmt.Errorf("%w: frame %q has %d fields, want 4", ErrMalformedFrame, line, len(fields))
	}

	cmdField, selField, adrField, datField := fields[0], fields[1], fields[2], fields[3]
	if len(cmdField) != 1 || len(selField) != selWidth || len(adrField) != wordWidth || len(datField) != wordWidth {
		return Transaction{}, fmt.Errorf("%w: frame %q has wrong field widths", ErrMalformedFrame, line)
	}

	cmd, ok := parseHexDigit(cmdField[0])
	if !ok {
		return Transaction{}, fmt.Errorf("%w: invalid command %q in frame %q", ErrMalformedFrame, cmdField, line)
	}

	sel, selSet, err := parseField(selField)
	if err != nil {
		return Transaction{}, fmt.Errorf("%w: select field of frame %q: %w", ErrMalformedFrame, line, err)
	}
	adr, adrSet, err := parseField(adrField)
	if err != nil {
		return Transaction{}, fmt.Errorf("%w: address field of frame %q: %w", ErrMalformedFrame, line, err)
	}
	dat, datSet, err := parseField(datField)
	if err != nil {
		return Transaction{}, fmt.Errorf("%w: data field of frame %q: %w", ErrMalformedFrame, line, err)
	}

	switch {
	case cmd == cmdFinish:
		return FinishTx(), nil

	case cmd&^cmdMask != 0, cmd&CmdRequest == 0:
		return Transaction{}, fmt.Errorf("%w: unknown command 0x%X in frame %q", ErrMalformedFrame, cmd, line)

	case cmd&CmdEnable == 0 && cmd&CmdWriteEnable != 0:
		return Transaction{}, fmt.Errorf("%w: write-enable without cycle enable in frame %q", ErrMalformedFrame, line)

	case cmd&CmdEnable == 0:
		return IdleTx(), nil
	}

	if !selSet || !adrSet {
		return Transaction{}, fmt.Errorf("%w: request frame %q without select or address", ErrMalformedFrame, line)
	}

	if cmd&CmdWriteEnable != 0 && datSet {
		return WriteTx(adr, dat, uint8(sel)), nil //nolint:gosec // sel is a single hex digit
	}

	return ReadTx(adr, uint8(sel)), nil //nolint:gosec // sel is a single hex digit
}

// Status is a decoded response line.
type Status struct {
	// Ack is set when the peer accepted or completed the current request.
	Ack bool
	// ReqPending is set when the peer has read data ready.
	ReqPending bool
	// Raw is the complete response line.
	Raw string
}

// Payload decodes the data word carried by the response.
func (s Status) Payload() (uint32, error) {
	return DecodePayload(s.Raw)
}

// DecodeStatus decodes the ack and req bits from the leading status digit of a response line.
func DecodeStatus(line string) (Status, error) {
	if len(line) < statusOnly {
		return Status{}, fmt.Errorf("%w: empty response", ErrMalformedFrame)
	}

	st, ok := parseHexDigit(line[0])
	if !ok {
		return Status{}, fmt.Errorf("%w: invalid status digit %q in response %q", ErrMalformedFrame, line[0], line)
	}

	return Status{
		Ack:        st&StatusAck != 0,
		ReqPending: st&StatusReq != 0,
		Raw:        line,
	}, nil
}

// DecodePayload interprets the characters following the status digit as a hexadecimal word.
// Exactly eight hex digits are required.
func DecodePayload(line string) (uint32, error) {
	if len(line) != respLen {
		return 0, fmt.Errorf("%w: response %q has %d payload digits, want %d", ErrMalformedFrame, line, max(len(line)-1, 0), wordWidth)
	}

	v, set, err := parseField(line[1:])
	if err != nil {
		return 0, fmt.Errorf("%w: payload of response %q: %w", ErrMalformedFrame, line, err)
	}
	if !set {
		return 0, fmt.Errorf("%w: response %q carries no data", ErrMalformedFrame, line)
	}

	return v, nil
}

// Response is the peer side of a response line.
type Response struct {
	Ack       bool
	Req       bool
	Data      uint32
	DataValid bool
}

// Encode renders the response as "<status digit><8 hex digits | xxxxxxxx>".
func (r Response) Encode() string {
	var st byte
	if r.Ack {
		st |= StatusAck
	}
	if r.Req {
		st |= StatusReq
	}

	var sb strings.Builder
	sb.Grow(respLen)
	sb.WriteByte(hexDigit(st))
	if r.DataValid {
		writeWord(&sb, r.Data)
	} else {
		sb.WriteString(dontCare8)
	}

	return sb.String()
}

// --- field helpers ---

const hexDigits = "0123456789abcdef"

func hexDigit(v uint8) byte {
	return hexDigits[v&0xF]
}

func writeWord(sb *strings.Builder, v uint32) {
	for shift := 28; shift >= 0; shift -= 4 {
		sb.WriteByte(hexDigits[(v>>uint(shift))&0xF])
	}
}

func parseHexDigit(c byte) (uint8, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}

func isDontCare(c byte) bool {
	return c == 'x' || c == 'X'
}

// parseField parses a fixed-width field that is either all hex digits or all placeholders.
// set is false for a placeholder field.
func parseField(f string) (v uint32, set bool, err error) {
	if isDontCare(f[0]) {
		for i := 1; i < len(f); i++ {
			if !isDontCare(f[i]) {
				return 0, false, fmt.Errorf("mixed placeholder field %q", f)
			}
		}

		return 0, false, nil
	}

	for i := 0; i < len(f); i++ {
		d, ok := parseHexDigit(f[i])
		if !ok {
			return 0, false, fmt.Errorf("invalid hex digit %q in %q", f[i], f)
		}
		v = v<<4 | uint32(d)
	}

	return v, true, nil
}
