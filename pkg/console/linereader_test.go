// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package console

import (
	"context"
	"io"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/mfmode/pkg/transport/transporttest"
)

func TestReadLine_BackspaceEditsLine(t *testing.T) {
	mock := transporttest.New("bad\bc\r")
	line, err := NewLineReader(mock).ReadLine(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "bac", line)
	assert.Equal(t, "bad\b \bc\r", mock.Sent(), "every byte echoed, erase sequence after backspace")
}

func TestReadLine_DeleteActsLikeBackspace(t *testing.T) {
	mock := transporttest.New("ab\x7f\x7fxy\n")
	line, err := NewLineReader(mock).ReadLine(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "xy", line)
	assert.Equal(t, "ab\x7f \x7f\x7f \x7fxy\n", mock.Sent())
}

func TestReadLine_BackspaceOnEmptyIsNoop(t *testing.T) {
	mock := transporttest.New("\b\x7f\bok\r")
	line, err := NewLineReader(mock).ReadLine(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", line)
	assert.Equal(t, "\b\x7f\bok\r", mock.Sent(), "no erase sequence on an empty buffer")
}

func TestReadLine_TimeoutsAreRetried(t *testing.T) {
	mock := &transporttest.Mock{}
	mock.FeedTimeout()
	mock.FeedString("s")
	mock.FeedTimeout()
	mock.FeedTimeout()
	mock.FeedString("id\r")

	line, err := NewLineReader(mock).ReadLine(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sid", line)
	assert.Equal(t, 7, mock.RecvCalls())
}

func TestReadLine_EmptyLine(t *testing.T) {
	line, err := NewLineReader(transporttest.New("\r")).ReadLine(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "", line)
}

func TestReadLine_StopsAtFirstTerminator(t *testing.T) {
	mock := transporttest.New("one\r\ntwo\r")
	r := NewLineReader(mock)

	first, err := r.ReadLine(context.Background())
	require.NoError(t, err)
	second, err := r.ReadLine(context.Background())
	require.NoError(t, err)
	third, err := r.ReadLine(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"one", "", "two"}, []string{first, second, third})
}

func TestReadLine_FullCapacityAccepted(t *testing.T) {
	input := strings.Repeat("x", DefaultLineCapacity)
	line, err := NewLineReader(transporttest.New(input + "\r")).ReadLine(context.Background())
	require.NoError(t, err)
	assert.Len(t, line, DefaultLineCapacity)
}

func TestReadLine_Overflow(t *testing.T) {
	mock := transporttest.New(strings.Repeat("x", DefaultLineCapacity+10) + "\r")
	_, err := NewLineReader(mock).ReadLine(context.Background())
	assert.ErrorIs(t, err, ErrLineOverflow)
	assert.Equal(t, 10, mock.Pending(), "reading stops at the first byte past capacity")
}

func TestReadLine_BackspaceFreesCapacity(t *testing.T) {
	input := strings.Repeat("x", 4) + "\b" + "yz\r"
	line, err := NewLineReader(transporttest.New(input), WithLineCapacity(5)).ReadLine(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "xxxyz", line)
}

func TestReadLine_TransportErrorReturned(t *testing.T) {
	mock := transporttest.New("abc")
	mock.EOFWhenDrained = true
	_, err := NewLineReader(mock).ReadLine(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadLine_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewLineReader(&transporttest.Mock{}, WithByteTimeout(time.Millisecond)).ReadLine(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLineReaderOptions(t *testing.T) {
	r := NewLineReader(&transporttest.Mock{}, WithLineCapacity(0), WithByteTimeout(-1))
	assert.Equal(t, DefaultLineCapacity, r.Capacity())
	assert.Equal(t, DefaultByteTimeout, r.byteTimeout)
}

// TestReadLine_StackSemantics compares the editor against a simple stack
// model on random input mixing characters and erase bytes.
func TestReadLine_StackSemantics(t *testing.T) {
	seed := time.Now().UnixNano()
	t.Logf("Seed: %d", seed)
	rng := rand.New(rand.NewSource(seed))

	alphabet := []byte("abc xyz019.")
	for round := 0; round < 500; round++ {
		var input []byte
		var model []byte
		length := rng.Intn(40)
		for i := 0; i < length; i++ {
			switch rng.Intn(4) {
			case 0:
				input = append(input, Backspace)
				if len(model) > 0 {
					model = model[:len(model)-1]
				}
			case 1:
				input = append(input, Delete)
				if len(model) > 0 {
					model = model[:len(model)-1]
				}
			default:
				c := alphabet[rng.Intn(len(alphabet))]
				input = append(input, c)
				model = append(model, c)
			}
		}
		input = append(input, CR)

		line, err := NewLineReader(transporttest.New(string(input))).ReadLine(context.Background())
		require.NoError(t, err, "round %d input %q", round, input)
		require.Equal(t, string(model), line, "round %d input %q", round, input)
	}
}
