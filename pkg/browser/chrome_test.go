package browser

import (
	"math"
	"testing"

	"github.com/chromedp/cdproto/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallArguments(t *testing.T) {
	args, err := callArguments([]interface{}{"src", 3})
	require.NoError(t, err)
	require.Len(t, args, 2)
	assert.Equal(t, `"src"`, string(args[0].Value))
	assert.Equal(t, `3`, string(args[1].Value))

	_, err = callArguments([]interface{}{math.NaN()})
	assert.Error(t, err)
}

func TestDecodeCallResult(t *testing.T) {
	var res attributeResult
	obj := &runtime.RemoteObject{Value: []byte(`{"ok":true,"value":"https://lh5.googleusercontent.com/p/x=w0-h0"}`)}
	require.NoError(t, decodeCallResult(obj, nil, &res))
	assert.True(t, res.OK)
	assert.Equal(t, "https://lh5.googleusercontent.com/p/x=w0-h0", res.Value)

	text := new(string)
	require.NoError(t, decodeCallResult(&runtime.RemoteObject{Value: []byte(`null`)}, nil, &text))
	assert.Nil(t, text, "null means the node is gone")

	shown := true
	require.NoError(t, decodeCallResult(&runtime.RemoteObject{}, nil, &shown))
	assert.True(t, shown, "undefined leaves the target untouched")

	err := decodeCallResult(nil, &runtime.ExceptionDetails{Text: "Uncaught TypeError"}, &shown)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Uncaught TypeError")
}
