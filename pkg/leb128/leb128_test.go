package leb128

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundTrip(t *testing.T) {
	test := func(n uint64) {
		encoded, err := Encode(n)
		assert.NoError(t, err)
		decoded, length, err := Decode(encoded)
		assert.NoError(t, err)
		assert.Equal(t, n, decoded)
		assert.Equal(t, len(encoded), length)
	}

	test(0)
	test(1)
	test(MaxValue)
	// powers of two up to 2^62 (2^63 itself is out of range)
	for i := 0; i < 63; i++ {
		test(uint64(1) << uint(i))
	}

	// alternating bits
	var n uint64
	for i := 0; i < 63; i++ {
		n = n<<1 | uint64(i%2)
	}
	test(n)
}

func TestEncodeOutOfRange(t *testing.T) {
	_, err := Encode(MaxValue + 1)
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = Encode(^uint64(0))
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestDecodeError(t *testing.T) {
	testError := func(name string, bytes []byte, expectedError error) {
		t.Run(name, func(t *testing.T) {
			_, _, err := Decode(bytes)
			if expectedError == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, expectedError)
			}
		})
	}

	testError("empty", []byte{}, ErrEmpty)
	testError("unterminated", []byte{0b1000_0000}, ErrUnterminated)

	// a value spanning exactly the 9-byte bound is valid
	testError("valid 9 bytes", []byte{
		128, 128, 128, 128, 128, 128, 128, 128, 0b0111_1111,
	}, nil)

	// more than 9 bytes always overflows the 63-bit domain
	testError("overflow 10 bytes", []byte{
		128, 128, 128, 128, 128, 128, 128, 128, 128, 0,
	}, ErrOutOfRange)
}
