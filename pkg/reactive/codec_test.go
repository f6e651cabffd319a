package reactive

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncoderFunc_AdaptsPlainFunction(t *testing.T) {
	var enc Encoder[int] = EncoderFunc[int](func(v int) ([]byte, error) {
		return []byte(strconv.Itoa(v)), nil
	})
	b, err := enc.Encode(42)
	assert.NoError(t, err)
	assert.Equal(t, []byte("42"), b)
}

func TestDecoderFunc_AdaptsPlainFunction(t *testing.T) {
	var dec Decoder[int] = DecoderFunc[int](func(data []byte) (int, error) {
		return strconv.Atoi(string(data))
	})
	v, err := dec.Decode([]byte("42"))
	assert.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestEncode_TransformsEachValueToBytes(t *testing.T) {
	enc := EncoderFunc[int](func(v int) ([]byte, error) { return []byte(strconv.Itoa(v)), nil })
	values, completion := Collect[[]byte](Encode[int](Sequence(1, 2, 3), enc))
	assert.Equal(t, [][]byte{[]byte("1"), []byte("2"), []byte("3")}, values)
	assert.True(t, completion.IsFinished())
}

func TestEncode_FailurePropagatesAndCancelsUpstream(t *testing.T) {
	boom := assertableErr("encode failed")
	enc := EncoderFunc[int](func(v int) ([]byte, error) {
		if v == 2 {
			return nil, boom
		}
		return []byte(strconv.Itoa(v)), nil
	})
	values, completion := Collect[[]byte](Encode[int](Sequence(1, 2, 3), enc))
	assert.Equal(t, [][]byte{[]byte("1")}, values)
	assert.True(t, completion.IsFailed())
	assert.Equal(t, boom, completion.Err)
}

func TestDecode_TransformsEachChunkToAValue(t *testing.T) {
	dec := DecoderFunc[int](func(data []byte) (int, error) { return strconv.Atoi(string(data)) })
	values, completion := Collect[int](Decode[int](Sequence([]byte("1"), []byte("2")), dec))
	assert.Equal(t, []int{1, 2}, values)
	assert.True(t, completion.IsFinished())
}

func TestDecode_FailurePropagates(t *testing.T) {
	dec := DecoderFunc[int](func(data []byte) (int, error) { return strconv.Atoi(string(data)) })
	values, completion := Collect[int](Decode[int](Sequence([]byte("1"), []byte("not-a-number")), dec))
	assert.Equal(t, []int{1}, values)
	assert.True(t, completion.IsFailed())
}
