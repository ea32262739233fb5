package dir_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabrielcbarbosa01/blockfs"
	"github.com/gabrielcbarbosa01/blockfs/dir"
)

type entryCodecTest struct {
	Entry   dir.Entry
	Encoded []byte
}

var entryCodecTests = [...]entryCodecTest{
	{
		Entry: dir.Entry{Name: "notes.txt", Kind: dir.KindFile, FirstBlock: 5, Size: 0},
		Encoded: append(
			[]byte("notes.txt                "),
			0x01, 0x05, 0x00, 0x00, 0x00, 0x00, 0x00),
	},
	{
		Entry: dir.Entry{Name: "projects", Kind: dir.KindDirectory, FirstBlock: 700},
		Encoded: append(
			[]byte("projects                 "),
			0x02, 0xBC, 0x02, 0x00, 0x00, 0x00, 0x00),
	},
	{
		// A name at exactly the width limit has no padding.
		Entry: dir.Entry{Name: "exactly-twenty-five-bytes", Kind: dir.KindFile, FirstBlock: 2047, Size: 4096},
		Encoded: append(
			[]byte("exactly-twenty-five-bytes"),
			0x01, 0xFF, 0x07, 0x00, 0x10, 0x00, 0x00),
	},
	{
		Entry: dir.Entry{},
		Encoded: append(
			bytes.Repeat([]byte{' '}, 25),
			0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00),
	},
}

func TestEntryEncode(t *testing.T) {
	for _, test := range entryCodecTests {
		encoded := test.Entry.Encode()
		require.Len(t, encoded, dir.EntrySize)
		assert.Equalf(t, test.Encoded, encoded, "encoding of %+v is wrong", test.Entry)
	}
}

func TestEntryDecode(t *testing.T) {
	for _, test := range entryCodecTests {
		decoded, err := dir.DecodeEntry(test.Encoded)
		require.NoErrorf(t, err, "failed to decode %+v", test.Entry)
		assert.Equal(t, test.Entry, decoded)
	}
}

func TestEntryRoundTrip(t *testing.T) {
	entries := []dir.Entry{
		{Name: "a", Kind: dir.KindFile, FirstBlock: 5},
		{Name: "sub dir with spaces", Kind: dir.KindDirectory, FirstBlock: 6},
		{Name: "UPPER.lower", Kind: dir.KindFile, FirstBlock: 100, Size: 123456},
		{},
	}
	for _, entry := range entries {
		decoded, err := dir.DecodeEntry(entry.Encode())
		require.NoError(t, err)
		assert.Equal(t, entry, decoded)
	}
}

// A zero-filled record, as found in a freshly formatted block, is an empty
// entry.
func TestEntryDecodeZeroRecord(t *testing.T) {
	decoded, err := dir.DecodeEntry(make([]byte, dir.EntrySize))
	require.NoError(t, err)
	assert.Equal(t, dir.Entry{}, decoded)
	assert.True(t, decoded.IsEmpty())
}

func TestEntryDecodeWrongLength(t *testing.T) {
	for _, length := range []int{0, 1, dir.EntrySize - 1, dir.EntrySize + 1, 2 * dir.EntrySize} {
		_, err := dir.DecodeEntry(make([]byte, length))
		assert.ErrorIsf(t, err, blockfs.ErrMalformedRecord, "length %d should fail", length)
	}
}

func TestEntryDecodeUnknownKind(t *testing.T) {
	record := dir.Entry{Name: "x", Kind: dir.KindFile}.Encode()
	record[dir.MaxNameLength] = 0x7F

	_, err := dir.DecodeEntry(record)
	assert.ErrorIs(t, err, blockfs.ErrMalformedRecord)
}

// The codec truncates; rejecting long names is the operations layer's job.
func TestEntryEncodeTruncatesLongName(t *testing.T) {
	entry := dir.Entry{
		Name: "this-name-is-clearly-longer-than-the-limit",
		Kind: dir.KindFile,
	}
	decoded, err := dir.DecodeEntry(entry.Encode())
	require.NoError(t, err)
	assert.Equal(t, entry.Name[:dir.MaxNameLength], decoded.Name)
}
