package httpcontext

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"
)

func TestAttachCarriesRequestMetadata(t *testing.T) {
	rc := &fasthttp.RequestCtx{}
	rc.Request.Header.Set("X-Request-ID", "req-42")
	rc.Request.Header.Set(UserIDHeader, "user-1")
	rc.Request.Header.SetUserAgent("planner-test")

	ctx, cancel := NewAdapter(time.Second).Attach(rc)
	defer cancel()

	userID, ok := UserID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "user-1", userID)
	assert.Equal(t, "planner-test", ctx.Value(KeyUserAgent))
	assert.Equal(t, "req-42", string(rc.Response.Header.Peek("X-Request-ID")))

	deadline, ok := ctx.Deadline()
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Second), deadline, 100*time.Millisecond)
}

func TestAttachGeneratesRequestID(t *testing.T) {
	rc := &fasthttp.RequestCtx{}
	ctx, cancel := NewAdapter(0).AttachWithTimeout(rc, time.Minute)
	defer cancel()

	assert.Len(t, string(rc.Response.Header.Peek("X-Request-ID")), 36)
	_, ok := UserID(ctx)
	assert.False(t, ok)
}
