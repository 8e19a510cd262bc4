package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
)

// CurrentSchemaVersion is the encoding version written by Encode. Decode
// accepts the current version only; the format is append-only, so future
// versions extend rather than reinterpret it.
const CurrentSchemaVersion = 1

var errStringTooLong = errors.New("session field too long")

// Encode serializes a session to the compact binary record format:
// a version byte followed by length-prefixed strings, big-endian int64
// timestamps, and a validity byte.
func Encode(s *Session) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(CurrentSchemaVersion)

	for _, field := range []string{
		s.SessionID,
		s.UserID,
		s.AccessToken,
		s.RefreshToken,
		s.Metadata.UserAgent,
		s.Metadata.NetworkOrigin,
		s.Metadata.FingerprintHash,
		s.Metadata.DeviceClass,
	} {
		if err := writeString(&buf, field); err != nil {
			return nil, err
		}
	}

	for _, ts := range []int64{
		s.Metadata.CreatedAt,
		s.Metadata.LastActivityAt,
		s.ExpiresAt,
	} {
		if err := binary.Write(&buf, binary.BigEndian, ts); err != nil {
			return nil, err
		}
	}

	if s.IsValid {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}

	return buf.Bytes(), nil
}

// Decode parses a binary record produced by Encode.
func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != CurrentSchemaVersion {
		return nil, errors.New("invalid session schema version")
	}

	s := &Session{}
	for _, dst := range []*string{
		&s.SessionID,
		&s.UserID,
		&s.AccessToken,
		&s.RefreshToken,
		&s.Metadata.UserAgent,
		&s.Metadata.NetworkOrigin,
		&s.Metadata.FingerprintHash,
		&s.Metadata.DeviceClass,
	} {
		v, err := readString(reader)
		if err != nil {
			return nil, err
		}
		*dst = v
	}

	for _, dst := range []*int64{
		&s.Metadata.CreatedAt,
		&s.Metadata.LastActivityAt,
		&s.ExpiresAt,
	} {
		if err := binary.Read(reader, binary.BigEndian, dst); err != nil {
			return nil, err
		}
	}

	valid, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	s.IsValid = valid == 1

	return s, nil
}

func writeString(buf *bytes.Buffer, v string) error {
	// uint16 length prefix: signed tokens routinely exceed 255 bytes.
	if len(v) > math.MaxUint16 {
		return errStringTooLong
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(len(v))); err != nil {
		return err
	}
	buf.WriteString(v)
	return nil
}

func readString(reader *bytes.Reader) (string, error) {
	var length uint16
	if err := binary.Read(reader, binary.BigEndian, &length); err != nil {
		return "", err
	}
	raw := make([]byte, length)
	if _, err := io.ReadFull(reader, raw); err != nil {
		return "", err
	}
	return string(raw), nil
}
