package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindThroughWrapping(t *testing.T) {
	base := New(KindGateway, "API Error: bad (retcode: %d)", 100)
	wrapped := fmt.Errorf("[LocalFunc] failed to invoke tool, toolName=qq.x, err=%w", base)

	assert.Equal(t, KindGateway, KindOf(wrapped))
	assert.True(t, Is(wrapped, KindGateway))
	assert.False(t, Is(wrapped, KindTransport))
	assert.Equal(t, "API Error: bad (retcode: 100)", Message(wrapped))
	assert.Equal(t, "gateway", base.ErrorCode())
}

func TestIsWalksNestedKinds(t *testing.T) {
	inner := New(KindTransport, "Request failed: timeout")
	outer := Wrap(KindFeedPublish, inner, "QZone Publish failed: %s", inner.Message)

	assert.Equal(t, KindFeedPublish, KindOf(outer))
	assert.True(t, Is(outer, KindTransport))
	assert.ErrorIs(t, outer, inner)
}

func TestPlainErrors(t *testing.T) {
	plain := errors.New("boom")
	assert.Equal(t, KindInternal, KindOf(plain))
	assert.Equal(t, "boom", Message(plain))
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Empty(t, Message(nil))
}
